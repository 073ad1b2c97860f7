package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// SyncRunRepo implements repository.SyncRunRepository using SQLite.
type SyncRunRepo struct {
	store *Store
}

const syncRunColumns = `id, public_id, "trigger", started_at, finished_at, success_count, fail_count, new_count`

// Create opens a new sync run row and returns its id.
func (repo *SyncRunRepo) Create(ctx context.Context, run *entity.SyncRun) (int64, error) {
	defer repo.store.Lock()()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO sync_runs (public_id, "trigger", started_at, finished_at, success_count, fail_count, new_count)
VALUES (?, ?, ?, ?, ?, ?, ?)
`
	result, err := repo.store.db.ExecContext(ctx, query,
		run.PublicID, run.Trigger, run.StartedAt.UTC(), toNullTime(run.FinishedAt),
		run.SuccessCount, run.FailCount, run.NewCount)
	if err != nil {
		return 0, fmt.Errorf("Create: ExecContext: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("Create: LastInsertId: %w", err)
	}
	run.ID = id
	return id, nil
}

// Update persists the run counters, trigger and finish time.
func (repo *SyncRunRepo) Update(ctx context.Context, run *entity.SyncRun) error {
	defer repo.store.Lock()()

	const query = `
UPDATE sync_runs
SET "trigger" = ?, finished_at = ?, success_count = ?, fail_count = ?, new_count = ?
WHERE id = ?
`
	_, err := repo.store.db.ExecContext(ctx, query,
		run.Trigger, toNullTime(run.FinishedAt), run.SuccessCount, run.FailCount, run.NewCount, run.ID)
	if err != nil {
		return fmt.Errorf("Update: ExecContext: %w", err)
	}
	return nil
}

// InsertItem records one per-subscription outcome.
func (repo *SyncRunRepo) InsertItem(ctx context.Context, item *entity.SyncRunItem) error {
	defer repo.store.Lock()()

	const query = `
INSERT INTO sync_run_items (sync_run_id, subscription_id, status, new_count, error_message)
VALUES (?, ?, ?, ?, ?)
`
	_, err := repo.store.db.ExecContext(ctx, query,
		item.SyncRunID, item.SubscriptionID, item.Status, item.NewCount, item.ErrorMessage)
	if err != nil {
		return fmt.Errorf("InsertItem: ExecContext: %w", err)
	}
	return nil
}

// LastSuccessFinishedAt returns when the most recent run with a SUCCESS item
// for this subscription finished, or nil.
func (repo *SyncRunRepo) LastSuccessFinishedAt(ctx context.Context, subscriptionID int64) (*time.Time, error) {
	const query = `
SELECT r.finished_at
FROM sync_runs r
INNER JOIN sync_run_items i ON i.sync_run_id = r.id
WHERE i.subscription_id = ? AND i.status = ? AND r.finished_at IS NOT NULL
ORDER BY r.finished_at DESC
LIMIT 1
`
	var finished sql.NullTime
	err := repo.store.db.QueryRowContext(ctx, query, subscriptionID, entity.SyncItemStatusSuccess).Scan(&finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LastSuccessFinishedAt: %w", err)
	}
	return fromNullTime(finished), nil
}

// LatestStartedInWindow returns the most recent run started in [start, end).
func (repo *SyncRunRepo) LatestStartedInWindow(ctx context.Context, start, end time.Time) (*entity.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + `
FROM sync_runs
WHERE started_at >= ? AND started_at < ?
ORDER BY started_at DESC
LIMIT 1`
	return repo.scanOne(repo.store.db.QueryRowContext(ctx, query, start.UTC(), end.UTC()))
}

// Latest returns the globally most recent run.
func (repo *SyncRunRepo) Latest(ctx context.Context) (*entity.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY started_at DESC LIMIT 1`
	return repo.scanOne(repo.store.db.QueryRowContext(ctx, query))
}

// ListItems returns the per-subscription items of one run.
func (repo *SyncRunRepo) ListItems(ctx context.Context, runID int64) ([]*entity.SyncRunItem, error) {
	const query = `
SELECT id, sync_run_id, subscription_id, status, new_count, error_message
FROM sync_run_items
WHERE sync_run_id = ?
ORDER BY subscription_id ASC
`
	rows, err := repo.store.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("ListItems: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.SyncRunItem, 0, 16)
	for rows.Next() {
		var item entity.SyncRunItem
		err := rows.Scan(&item.ID, &item.SyncRunID, &item.SubscriptionID,
			&item.Status, &item.NewCount, &item.ErrorMessage)
		if err != nil {
			return nil, fmt.Errorf("ListItems: Scan: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListItems: rows.Err: %w", err)
	}
	return items, nil
}

func (repo *SyncRunRepo) scanOne(row *sql.Row) (*entity.SyncRun, error) {
	var run entity.SyncRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.PublicID, &run.Trigger, &run.StartedAt, &finished,
		&run.SuccessCount, &run.FailCount, &run.NewCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan sync run: %w", err)
	}
	run.FinishedAt = fromNullTime(finished)
	return &run, nil
}

// DiscoveryRepo implements repository.DiscoveryRepository using SQLite.
type DiscoveryRepo struct {
	store *Store
}

// InsertRun records one per-subscription discovery outcome.
func (repo *DiscoveryRepo) InsertRun(ctx context.Context, run *entity.DiscoveryRun) error {
	defer repo.store.Lock()()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO discovery_runs (sync_run_id, subscription_id, channel, status, ref_count, error_kind, latency_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
	_, err := repo.store.db.ExecContext(ctx, query,
		run.SyncRunID, run.SubscriptionID, run.Channel, run.Status,
		run.RefCount, run.ErrorKind, run.LatencyMS, run.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("InsertRun: ExecContext: %w", err)
	}
	return nil
}

// ListRunsByRun returns the discovery rows recorded for one sync run.
func (repo *DiscoveryRepo) ListRunsByRun(ctx context.Context, syncRunID int64) ([]*entity.DiscoveryRun, error) {
	const query = `
SELECT id, sync_run_id, subscription_id, channel, status, ref_count, error_kind, latency_ms, created_at
FROM discovery_runs
WHERE sync_run_id = ?
ORDER BY subscription_id ASC
`
	rows, err := repo.store.db.QueryContext(ctx, query, syncRunID)
	if err != nil {
		return nil, fmt.Errorf("ListRunsByRun: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*entity.DiscoveryRun, 0, 16)
	for rows.Next() {
		var run entity.DiscoveryRun
		err := rows.Scan(&run.ID, &run.SyncRunID, &run.SubscriptionID, &run.Channel,
			&run.Status, &run.RefCount, &run.ErrorKind, &run.LatencyMS, &run.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ListRunsByRun: Scan: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRunsByRun: rows.Err: %w", err)
	}
	return runs, nil
}

// UpsertRef stores a discovered article link, keeping the highest confidence
// seen for the (subscription, url) pair and refreshing hints.
func (repo *DiscoveryRepo) UpsertRef(ctx context.Context, ref *entity.ArticleRef) error {
	defer repo.store.Lock()()

	if ref.DiscoveredAt.IsZero() {
		ref.DiscoveredAt = time.Now().UTC()
	}
	const query = `
INSERT INTO article_refs (subscription_id, url, title_hint, published_at_hint, channel, confidence, discovered_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(subscription_id, url) DO UPDATE SET
    title_hint = CASE WHEN excluded.title_hint != '' THEN excluded.title_hint ELSE article_refs.title_hint END,
    published_at_hint = COALESCE(excluded.published_at_hint, article_refs.published_at_hint),
    channel = excluded.channel,
    confidence = MAX(article_refs.confidence, excluded.confidence)
`
	_, err := repo.store.db.ExecContext(ctx, query,
		ref.SubscriptionID, ref.URL, ref.TitleHint, toNullTime(ref.PublishedAtHint),
		ref.Channel, ref.Confidence, ref.DiscoveredAt.UTC())
	if err != nil {
		return fmt.Errorf("UpsertRef: ExecContext: %w", err)
	}
	return nil
}

// ListRecentRefs returns the newest refs for a subscription.
func (repo *DiscoveryRepo) ListRecentRefs(ctx context.Context, subscriptionID int64, limit int) ([]*entity.ArticleRef, error) {
	const query = `
SELECT id, subscription_id, url, title_hint, published_at_hint, channel, confidence, discovered_at
FROM article_refs
WHERE subscription_id = ?
ORDER BY discovered_at DESC, id DESC
LIMIT ?
`
	rows, err := repo.store.db.QueryContext(ctx, query, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecentRefs: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	refs := make([]*entity.ArticleRef, 0, limit)
	for rows.Next() {
		var ref entity.ArticleRef
		var hint sql.NullTime
		err := rows.Scan(&ref.ID, &ref.SubscriptionID, &ref.URL, &ref.TitleHint,
			&hint, &ref.Channel, &ref.Confidence, &ref.DiscoveredAt)
		if err != nil {
			return nil, fmt.Errorf("ListRecentRefs: Scan: %w", err)
		}
		ref.PublishedAtHint = fromNullTime(hint)
		refs = append(refs, &ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRecentRefs: rows.Err: %w", err)
	}
	return refs, nil
}

// CoverageRepo implements repository.CoverageRepository using SQLite.
type CoverageRepo struct {
	store *Store
}

// Upsert inserts or replaces the coverage aggregate for a date.
func (repo *CoverageRepo) Upsert(ctx context.Context, row *entity.CoverageDaily) error {
	defer repo.store.Lock()()

	const query = `
INSERT INTO coverage_daily (date, total_subs, success_subs, delayed_subs, fail_subs, coverage_ratio, detail_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(date) DO UPDATE SET
    total_subs = excluded.total_subs,
    success_subs = excluded.success_subs,
    delayed_subs = excluded.delayed_subs,
    fail_subs = excluded.fail_subs,
    coverage_ratio = excluded.coverage_ratio,
    detail_json = excluded.detail_json
`
	_, err := repo.store.db.ExecContext(ctx, query,
		row.Date, row.TotalSubs, row.SuccessSubs, row.DelayedSubs, row.FailSubs,
		row.CoverageRatio, row.DetailJSON)
	if err != nil {
		return fmt.Errorf("Upsert: ExecContext: %w", err)
	}
	return nil
}

// Get retrieves the coverage aggregate for a date, or entity.ErrNotFound.
func (repo *CoverageRepo) Get(ctx context.Context, date string) (*entity.CoverageDaily, error) {
	const query = `
SELECT date, total_subs, success_subs, delayed_subs, fail_subs, coverage_ratio, detail_json
FROM coverage_daily WHERE date = ?
`
	var row entity.CoverageDaily
	err := repo.store.db.QueryRowContext(ctx, query, date).Scan(
		&row.Date, &row.TotalSubs, &row.SuccessSubs, &row.DelayedSubs, &row.FailSubs,
		&row.CoverageRatio, &row.DetailJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &row, nil
}

// AuthSessionRepo implements repository.AuthSessionRepository using SQLite.
type AuthSessionRepo struct {
	store *Store
}

// Get retrieves the credential metadata for a provider, or entity.ErrNotFound.
func (repo *AuthSessionRepo) Get(ctx context.Context, provider string) (*entity.AuthSessionEntry, error) {
	const query = `SELECT provider, secret_digest, expires_at, updated_at FROM auth_sessions WHERE provider = ?`
	var entry entity.AuthSessionEntry
	var expires sql.NullTime
	err := repo.store.db.QueryRowContext(ctx, query, provider).Scan(
		&entry.Provider, &entry.SecretDigest, &expires, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	entry.ExpiresAt = fromNullTime(expires)
	return &entry, nil
}

// Upsert inserts or replaces the credential metadata for a provider.
func (repo *AuthSessionRepo) Upsert(ctx context.Context, entry *entity.AuthSessionEntry) error {
	defer repo.store.Lock()()

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO auth_sessions (provider, secret_digest, expires_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(provider) DO UPDATE SET
    secret_digest = excluded.secret_digest,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at
`
	_, err := repo.store.db.ExecContext(ctx, query,
		entry.Provider, entry.SecretDigest, toNullTime(entry.ExpiresAt), entry.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("Upsert: ExecContext: %w", err)
	}
	return nil
}

// Delete removes the credential metadata for a provider.
func (repo *AuthSessionRepo) Delete(ctx context.Context, provider string) error {
	defer repo.store.Lock()()

	if _, err := repo.store.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE provider = ?`, provider); err != nil {
		return fmt.Errorf("Delete: ExecContext: %w", err)
	}
	return nil
}
