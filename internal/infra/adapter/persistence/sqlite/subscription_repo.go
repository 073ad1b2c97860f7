package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// SubscriptionRepo implements repository.SubscriptionRepository using SQLite.
type SubscriptionRepo struct {
	store *Store
}

const subscriptionColumns = `id, name, wechat_id, source_url, source_status, discovery_status,
preferred_provider, source_mode, last_error, created_at, updated_at`

// Create inserts a new subscription and returns its id.
func (repo *SubscriptionRepo) Create(ctx context.Context, sub *entity.Subscription) (int64, error) {
	if err := sub.Validate(); err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}
	defer repo.store.Lock()()

	now := time.Now().UTC()
	if sub.SourceStatus == "" {
		sub.SourceStatus = entity.SourceStatusPending
	}
	if sub.DiscoveryStatus == "" {
		sub.DiscoveryStatus = entity.DiscoveryStatusPending
	}
	if sub.SourceMode == "" {
		sub.SourceMode = entity.SourceModeAuto
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now

	const query = `
INSERT INTO subscriptions (name, wechat_id, source_url, source_status, discovery_status,
    preferred_provider, source_mode, last_error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	result, err := repo.store.db.ExecContext(ctx, query,
		sub.Name, sub.WechatID, sub.SourceURL, sub.SourceStatus, sub.DiscoveryStatus,
		sub.PreferredProvider, sub.SourceMode, sub.LastError, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("Create: ExecContext: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("Create: LastInsertId: %w", err)
	}
	sub.ID = id
	return id, nil
}

// GetByID retrieves a subscription by its surrogate id.
func (repo *SubscriptionRepo) GetByID(ctx context.Context, id int64) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`
	return repo.scanOne(repo.store.db.QueryRowContext(ctx, query, id))
}

// GetByWechatID retrieves a subscription by its business identifier.
func (repo *SubscriptionRepo) GetByWechatID(ctx context.Context, wechatID string) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE wechat_id = ?`
	return repo.scanOne(repo.store.db.QueryRowContext(ctx, query, wechatID))
}

// List retrieves all subscriptions ordered by id ascending. The deterministic
// order is what makes sync-run items reproducible.
func (repo *SubscriptionRepo) List(ctx context.Context) ([]*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY id ASC`
	rows, err := repo.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	subs := make([]*entity.Subscription, 0, 32)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows.Err: %w", err)
	}
	return subs, nil
}

// Update persists the mutable subscription fields.
func (repo *SubscriptionRepo) Update(ctx context.Context, sub *entity.Subscription) error {
	defer repo.store.Lock()()

	sub.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE subscriptions
SET name = ?, source_url = ?, source_status = ?, discovery_status = ?,
    preferred_provider = ?, source_mode = ?, last_error = ?, updated_at = ?
WHERE id = ?
`
	_, err := repo.store.db.ExecContext(ctx, query,
		sub.Name, sub.SourceURL, sub.SourceStatus, sub.DiscoveryStatus,
		sub.PreferredProvider, sub.SourceMode, sub.LastError, sub.UpdatedAt, sub.ID)
	if err != nil {
		return fmt.Errorf("Update: ExecContext: %w", err)
	}
	return nil
}

// Delete removes the subscription; all children cascade.
func (repo *SubscriptionRepo) Delete(ctx context.Context, id int64) error {
	defer repo.store.Lock()()

	if _, err := repo.store.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("Delete: ExecContext: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*entity.Subscription, error) {
	var sub entity.Subscription
	err := row.Scan(&sub.ID, &sub.Name, &sub.WechatID, &sub.SourceURL,
		&sub.SourceStatus, &sub.DiscoveryStatus, &sub.PreferredProvider,
		&sub.SourceMode, &sub.LastError, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &sub, nil
}

func (repo *SubscriptionRepo) scanOne(row *sql.Row) (*entity.Subscription, error) {
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}
