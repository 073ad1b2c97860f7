package repository

import (
	"context"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// ArticleWithMeta joins an article with its optional summary, read state and
// recommendation score for the day-scoped view.
type ArticleWithMeta struct {
	Article     entity.Article
	SourceName  string
	SummaryText string
	IsRead      bool
	Score       *float64
}

// ArticleRepository manages acquired articles.
type ArticleRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Article, error)
	GetByExternalID(ctx context.Context, subscriptionID int64, externalID string) (*entity.Article, error)
	Insert(ctx context.Context, article *entity.Article) (int64, error)
	// UpdateMutable updates published_at, content_excerpt and raw_hash only;
	// title and url never change after the first insert.
	UpdateMutable(ctx context.Context, id int64, publishedAt time.Time, excerpt, rawHash string) error
	// ListWindow returns articles with published_at in [start, end) ordered by
	// published_at DESC, id ASC.
	ListWindow(ctx context.Context, start, end time.Time) ([]*entity.Article, error)
	// ListWindowWithMeta is ListWindow joined with summaries, read states,
	// recommendation scores and the owning subscription name.
	ListWindowWithMeta(ctx context.Context, start, end time.Time) ([]*ArticleWithMeta, error)
	CountWindowBySubscription(ctx context.Context, subscriptionID int64, start, end time.Time) (int, error)
}

// SummaryRepository manages the 1:1 article summaries.
type SummaryRepository interface {
	Get(ctx context.Context, articleID int64) (*entity.ArticleSummary, error)
	Upsert(ctx context.Context, summary *entity.ArticleSummary) error
}

// ReadStateRepository manages per-article read markers.
type ReadStateRepository interface {
	Upsert(ctx context.Context, state *entity.ReadState) error
}

// EmbeddingRepository manages serialized article vectors.
type EmbeddingRepository interface {
	Get(ctx context.Context, articleID int64) (*entity.ArticleEmbedding, error)
	Insert(ctx context.Context, embedding *entity.ArticleEmbedding) error
	// ListReadVectorsSince returns vectors of articles read at or after the
	// bound.
	ListReadVectorsSince(ctx context.Context, since time.Time) ([]string, error)
}

// RecommendationRepository manages per-article relevance scores.
type RecommendationRepository interface {
	Upsert(ctx context.Context, entry *entity.RecommendationScoreEntry) error
}
