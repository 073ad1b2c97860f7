package repository

import (
	"context"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// SyncRunRepository manages sync runs and their per-subscription items.
type SyncRunRepository interface {
	Create(ctx context.Context, run *entity.SyncRun) (int64, error)
	Update(ctx context.Context, run *entity.SyncRun) error
	InsertItem(ctx context.Context, item *entity.SyncRunItem) error
	// LastSuccessFinishedAt returns the finished_at of the most recent run
	// whose item for this subscription ended in SUCCESS, or nil.
	LastSuccessFinishedAt(ctx context.Context, subscriptionID int64) (*time.Time, error)
	// LatestStartedInWindow returns the most recent run started in
	// [start, end), or nil when none exists.
	LatestStartedInWindow(ctx context.Context, start, end time.Time) (*entity.SyncRun, error)
	Latest(ctx context.Context) (*entity.SyncRun, error)
	ListItems(ctx context.Context, runID int64) ([]*entity.SyncRunItem, error)
}

// DiscoveryRepository manages discovery runs and discovered article refs.
type DiscoveryRepository interface {
	InsertRun(ctx context.Context, run *entity.DiscoveryRun) error
	ListRunsByRun(ctx context.Context, syncRunID int64) ([]*entity.DiscoveryRun, error)
	// UpsertRef keeps the highest confidence for an existing (sub, url) ref
	// and refreshes hints.
	UpsertRef(ctx context.Context, ref *entity.ArticleRef) error
	// ListRecentRefs returns the newest refs for a subscription.
	ListRecentRefs(ctx context.Context, subscriptionID int64, limit int) ([]*entity.ArticleRef, error)
}

// CoverageRepository manages the per-date coverage aggregates.
type CoverageRepository interface {
	Upsert(ctx context.Context, row *entity.CoverageDaily) error
	Get(ctx context.Context, date string) (*entity.CoverageDaily, error)
}

// AuthSessionRepository manages credential metadata; secrets live in the vault.
type AuthSessionRepository interface {
	Get(ctx context.Context, provider string) (*entity.AuthSessionEntry, error)
	Upsert(ctx context.Context, entry *entity.AuthSessionEntry) error
	Delete(ctx context.Context, provider string) error
}
