// Package readstate marks articles read or unread.
package readstate

import (
	"context"
	"fmt"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

// Service upserts per-article read markers.
type Service struct {
	readStateRepo repository.ReadStateRepository
}

// NewService creates the read-state service.
func NewService(readStateRepo repository.ReadStateRepository) *Service {
	return &Service{readStateRepo: readStateRepo}
}

// Mark sets the read flag; read_at records when the article was read and
// clears on unread.
func (s *Service) Mark(ctx context.Context, articleID int64, isRead bool) error {
	state := &entity.ReadState{ArticleID: articleID, IsRead: isRead}
	if isRead {
		now := time.Now().UTC()
		state.ReadAt = &now
	}
	if err := s.readStateRepo.Upsert(ctx, state); err != nil {
		return fmt.Errorf("Mark: %w", err)
	}
	return nil
}
