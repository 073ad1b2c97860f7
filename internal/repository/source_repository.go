package repository

import (
	"context"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// SourceRepository manages (provider, url) feed candidates per subscription.
type SourceRepository interface {
	// Upsert inserts the row or reactivates/updates the existing one.
	// Pinned is only ever raised by an upsert, never cleared.
	Upsert(ctx context.Context, src *entity.SubscriptionSource) error
	ListActive(ctx context.Context, subscriptionID int64) ([]*entity.SubscriptionSource, error)
	ListActiveByProvider(ctx context.Context, subscriptionID int64, provider string) ([]*entity.SubscriptionSource, error)
	ListByProvider(ctx context.Context, subscriptionID int64, provider string) ([]*entity.SubscriptionSource, error)
	Update(ctx context.Context, src *entity.SubscriptionSource) error
}

// HealthRepository manages per-candidate rolling reliability rows.
type HealthRepository interface {
	Get(ctx context.Context, subscriptionID int64, provider, url string) (*entity.SourceHealth, error)
	// MapBySubscription keys rows by "provider|url".
	MapBySubscription(ctx context.Context, subscriptionID int64) (map[string]*entity.SourceHealth, error)
	Upsert(ctx context.Context, health *entity.SourceHealth) error
	// LastOkBySubscription returns the most recent last_ok_at per subscription.
	LastOkBySubscription(ctx context.Context) (map[int64]time.Time, error)
}

// AttemptRepository appends and queries the immutable fetch attempt log.
type AttemptRepository interface {
	Insert(ctx context.Context, attempt *entity.FetchAttempt) error
	// ListSince returns attempts for one candidate at or after the bound,
	// ordered by creation time.
	ListSince(ctx context.Context, subscriptionID int64, provider, url string, since time.Time) ([]*entity.FetchAttempt, error)
}
