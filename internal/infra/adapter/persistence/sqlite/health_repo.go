package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// HealthRepo implements repository.HealthRepository using SQLite.
type HealthRepo struct {
	store *Store
}

const healthColumns = `id, subscription_id, provider, source_url, state, score,
success_rate_24h, avg_latency_ms, consecutive_failures, cooldown_until, last_ok_at,
last_error, updated_at`

// Get retrieves the health row for one candidate, or entity.ErrNotFound.
func (repo *HealthRepo) Get(ctx context.Context, subscriptionID int64, provider, url string) (*entity.SourceHealth, error) {
	query := `SELECT ` + healthColumns + `
FROM source_health
WHERE subscription_id = ? AND provider = ? AND source_url = ?`
	row := repo.store.db.QueryRowContext(ctx, query, subscriptionID, provider, url)
	health, err := scanHealth(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return health, nil
}

// MapBySubscription retrieves all health rows for a subscription keyed by
// "provider|url".
func (repo *HealthRepo) MapBySubscription(ctx context.Context, subscriptionID int64) (map[string]*entity.SourceHealth, error) {
	query := `SELECT ` + healthColumns + ` FROM source_health WHERE subscription_id = ?`
	rows, err := repo.store.db.QueryContext(ctx, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("MapBySubscription: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]*entity.SourceHealth)
	for rows.Next() {
		health, err := scanHealth(rows)
		if err != nil {
			return nil, fmt.Errorf("MapBySubscription: %w", err)
		}
		result[health.Provider+"|"+health.SourceURL] = health
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("MapBySubscription: rows.Err: %w", err)
	}
	return result, nil
}

// Upsert inserts or replaces the health row for one candidate.
func (repo *HealthRepo) Upsert(ctx context.Context, health *entity.SourceHealth) error {
	defer repo.store.Lock()()

	const query = `
INSERT INTO source_health
    (subscription_id, provider, source_url, state, score, success_rate_24h, avg_latency_ms,
     consecutive_failures, cooldown_until, last_ok_at, last_error, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(subscription_id, provider, source_url) DO UPDATE SET
    state = excluded.state,
    score = excluded.score,
    success_rate_24h = excluded.success_rate_24h,
    avg_latency_ms = excluded.avg_latency_ms,
    consecutive_failures = excluded.consecutive_failures,
    cooldown_until = excluded.cooldown_until,
    last_ok_at = excluded.last_ok_at,
    last_error = excluded.last_error,
    updated_at = excluded.updated_at
`
	_, err := repo.store.db.ExecContext(ctx, query,
		health.SubscriptionID, health.Provider, health.SourceURL, health.State,
		health.Score, health.SuccessRate24h, health.AvgLatencyMS,
		health.ConsecutiveFailures, toNullTime(health.CooldownUntil),
		toNullTime(health.LastOkAt), health.LastError, health.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("Upsert: ExecContext: %w", err)
	}
	return nil
}

// LastOkBySubscription returns each subscription's most recent last_ok_at.
func (repo *HealthRepo) LastOkBySubscription(ctx context.Context) (map[int64]time.Time, error) {
	const query = `
SELECT subscription_id, MAX(last_ok_at)
FROM source_health
WHERE last_ok_at IS NOT NULL
GROUP BY subscription_id
`
	rows, err := repo.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("LastOkBySubscription: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[int64]time.Time)
	for rows.Next() {
		var subID int64
		var lastOk sql.NullTime
		if err := rows.Scan(&subID, &lastOk); err != nil {
			return nil, fmt.Errorf("LastOkBySubscription: Scan: %w", err)
		}
		if lastOk.Valid {
			result[subID] = lastOk.Time.UTC()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LastOkBySubscription: rows.Err: %w", err)
	}
	return result, nil
}

func scanHealth(row rowScanner) (*entity.SourceHealth, error) {
	var health entity.SourceHealth
	var cooldown, lastOk sql.NullTime
	err := row.Scan(&health.ID, &health.SubscriptionID, &health.Provider, &health.SourceURL,
		&health.State, &health.Score, &health.SuccessRate24h, &health.AvgLatencyMS,
		&health.ConsecutiveFailures, &cooldown, &lastOk, &health.LastError, &health.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan health: %w", err)
	}
	health.CooldownUntil = fromNullTime(cooldown)
	health.LastOkAt = fromNullTime(lastOk)
	return &health, nil
}

// AttemptRepo implements repository.AttemptRepository using SQLite.
type AttemptRepo struct {
	store *Store
}

// Insert appends one immutable attempt row.
func (repo *AttemptRepo) Insert(ctx context.Context, attempt *entity.FetchAttempt) error {
	defer repo.store.Lock()()
	const query = `
INSERT INTO fetch_attempts
    (sync_run_id, subscription_id, provider, source_url, status, http_code, latency_ms,
     error_kind, error_message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	latency := attempt.LatencyMS
	if latency < 0 {
		latency = 0
	}
	_, err := repo.store.db.ExecContext(ctx, query,
		attempt.SyncRunID, attempt.SubscriptionID, attempt.Provider, attempt.SourceURL,
		attempt.Status, toNullInt(attempt.HTTPCode), latency,
		attempt.ErrorKind, attempt.ErrorMessage, attempt.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("Insert: ExecContext: %w", err)
	}
	return nil
}

// ListSince returns attempts for one candidate at or after the bound.
func (repo *AttemptRepo) ListSince(ctx context.Context, subscriptionID int64, provider, url string, since time.Time) ([]*entity.FetchAttempt, error) {
	const query = `
SELECT id, sync_run_id, subscription_id, provider, source_url, status, http_code,
       latency_ms, error_kind, error_message, created_at
FROM fetch_attempts
WHERE subscription_id = ? AND provider = ? AND source_url = ? AND created_at >= ?
ORDER BY created_at ASC, id ASC
`
	rows, err := repo.store.db.QueryContext(ctx, query, subscriptionID, provider, url, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("ListSince: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	attempts := make([]*entity.FetchAttempt, 0, 16)
	for rows.Next() {
		var attempt entity.FetchAttempt
		var httpCode sql.NullInt64
		err := rows.Scan(&attempt.ID, &attempt.SyncRunID, &attempt.SubscriptionID,
			&attempt.Provider, &attempt.SourceURL, &attempt.Status, &httpCode,
			&attempt.LatencyMS, &attempt.ErrorKind, &attempt.ErrorMessage, &attempt.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ListSince: Scan: %w", err)
		}
		attempt.HTTPCode = fromNullInt(httpCode)
		attempts = append(attempts, &attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSince: rows.Err: %w", err)
	}
	return attempts, nil
}
