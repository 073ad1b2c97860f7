// Package repository defines the persistence interfaces consumed by the
// usecase layer. Implementations live under internal/infra/adapter.
package repository

import (
	"context"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// SubscriptionRepository manages tracked channels.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *entity.Subscription) (int64, error)
	GetByID(ctx context.Context, id int64) (*entity.Subscription, error)
	GetByWechatID(ctx context.Context, wechatID string) (*entity.Subscription, error)
	// List returns all subscriptions ordered by id ascending.
	List(ctx context.Context) ([]*entity.Subscription, error)
	Update(ctx context.Context, sub *entity.Subscription) error
	// Delete removes the subscription; children cascade in the schema.
	Delete(ctx context.Context, id int64) error
}
