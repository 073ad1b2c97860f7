package sqlite

import (
	"context"
	"fmt"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// SourceRepo implements repository.SourceRepository using SQLite.
type SourceRepo struct {
	store *Store
}

const sourceColumns = `id, subscription_id, provider, source_url, priority, is_pinned,
is_active, confidence, discovered_at, metadata_json`

// Upsert inserts a candidate row or reactivates and updates the existing one.
// A pinned flag is only ever raised here; demotion goes through Update.
func (repo *SourceRepo) Upsert(ctx context.Context, src *entity.SubscriptionSource) error {
	defer repo.store.Lock()()

	const query = `
INSERT INTO subscription_sources
    (subscription_id, provider, source_url, priority, is_pinned, is_active, confidence, discovered_at, metadata_json)
VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)
ON CONFLICT(subscription_id, provider, source_url) DO UPDATE SET
    priority = excluded.priority,
    is_active = 1,
    confidence = excluded.confidence,
    is_pinned = CASE WHEN excluded.is_pinned = 1 THEN 1 ELSE subscription_sources.is_pinned END,
    metadata_json = CASE WHEN excluded.metadata_json != '' THEN excluded.metadata_json ELSE subscription_sources.metadata_json END,
    discovered_at = excluded.discovered_at
`
	_, err := repo.store.db.ExecContext(ctx, query,
		src.SubscriptionID, src.Provider, src.SourceURL, src.Priority, src.Pinned,
		src.Confidence, src.DiscoveredAt.UTC(), src.MetadataJSON)
	if err != nil {
		return fmt.Errorf("Upsert: ExecContext: %w", err)
	}
	return nil
}

// ListActive retrieves active candidates for a subscription ordered by priority.
func (repo *SourceRepo) ListActive(ctx context.Context, subscriptionID int64) ([]*entity.SubscriptionSource, error) {
	query := `SELECT ` + sourceColumns + `
FROM subscription_sources
WHERE subscription_id = ? AND is_active = 1
ORDER BY priority ASC, id ASC`
	return repo.list(ctx, query, subscriptionID)
}

// ListActiveByProvider retrieves active candidates for one provider.
func (repo *SourceRepo) ListActiveByProvider(ctx context.Context, subscriptionID int64, provider string) ([]*entity.SubscriptionSource, error) {
	query := `SELECT ` + sourceColumns + `
FROM subscription_sources
WHERE subscription_id = ? AND provider = ? AND is_active = 1
ORDER BY priority ASC, id ASC`
	return repo.list(ctx, query, subscriptionID, provider)
}

// ListByProvider retrieves all candidates for one provider, active or not.
func (repo *SourceRepo) ListByProvider(ctx context.Context, subscriptionID int64, provider string) ([]*entity.SubscriptionSource, error) {
	query := `SELECT ` + sourceColumns + `
FROM subscription_sources
WHERE subscription_id = ? AND provider = ?
ORDER BY priority ASC, id ASC`
	return repo.list(ctx, query, subscriptionID, provider)
}

// Update persists a candidate row in place.
func (repo *SourceRepo) Update(ctx context.Context, src *entity.SubscriptionSource) error {
	defer repo.store.Lock()()

	const query = `
UPDATE subscription_sources
SET priority = ?, is_pinned = ?, is_active = ?, confidence = ?, metadata_json = ?
WHERE id = ?
`
	_, err := repo.store.db.ExecContext(ctx, query,
		src.Priority, src.Pinned, src.Active, src.Confidence, src.MetadataJSON, src.ID)
	if err != nil {
		return fmt.Errorf("Update: ExecContext: %w", err)
	}
	return nil
}

func (repo *SourceRepo) list(ctx context.Context, query string, args ...any) ([]*entity.SubscriptionSource, error) {
	rows, err := repo.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make([]*entity.SubscriptionSource, 0, 8)
	for rows.Next() {
		var src entity.SubscriptionSource
		err := rows.Scan(&src.ID, &src.SubscriptionID, &src.Provider, &src.SourceURL,
			&src.Priority, &src.Pinned, &src.Active, &src.Confidence,
			&src.DiscoveredAt, &src.MetadataJSON)
		if err != nil {
			return nil, fmt.Errorf("list sources: Scan: %w", err)
		}
		sources = append(sources, &src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sources: rows.Err: %w", err)
	}
	return sources, nil
}
