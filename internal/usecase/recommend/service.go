// Package recommend scores articles by topic similarity against the
// operator's reading profile, blended with freshness decay, with a cold-start
// fallback to freshness alone.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/embedding"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/timeutil"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

const (
	// profileWindowDays bounds which read articles feed the profile.
	profileWindowDays = 30

	// freshnessHalfLifeHours is the exponential decay divisor.
	freshnessHalfLifeHours = 48.0
)

// Weights blend topic similarity and freshness. The defaults are the tested
// values; they stay configurable as tunables.
type Weights struct {
	Topic     float64
	Freshness float64
}

// DefaultWeights returns the tested default blend.
func DefaultWeights() Weights {
	return Weights{Topic: 0.7, Freshness: 0.3}
}

// UserProfile is the mean embedding of recently read articles.
type UserProfile struct {
	Vector     []float64
	SampleSize int
}

// Score is one article's relevance breakdown.
type Score struct {
	Final     float64
	Topic     float64
	Freshness float64
}

// Service implements the recommender.
type Service struct {
	embedder      *embedding.Embedder
	articleRepo   repository.ArticleRepository
	summaryRepo   repository.SummaryRepository
	embeddingRepo repository.EmbeddingRepository
	recommendRepo repository.RecommendationRepository
	weights       Weights

	now func() time.Time
}

// NewService creates the recommender.
func NewService(
	embedder *embedding.Embedder,
	articleRepo repository.ArticleRepository,
	summaryRepo repository.SummaryRepository,
	embeddingRepo repository.EmbeddingRepository,
	recommendRepo repository.RecommendationRepository,
	weights Weights,
) *Service {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Service{
		embedder:      embedder,
		articleRepo:   articleRepo,
		summaryRepo:   summaryRepo,
		embeddingRepo: embeddingRepo,
		recommendRepo: recommendRepo,
		weights:       weights,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// EnsureArticleEmbedding reads through the stored embedding, computing and
// inserting it when absent.
func (s *Service) EnsureArticleEmbedding(ctx context.Context, articleID int64, text string) ([]float64, error) {
	existing, err := s.embeddingRepo.Get(ctx, articleID)
	if err == nil {
		var vector []float64
		if err := json.Unmarshal([]byte(existing.VectorJSON), &vector); err != nil {
			return nil, fmt.Errorf("EnsureArticleEmbedding: decode stored vector: %w", err)
		}
		return vector, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("EnsureArticleEmbedding: %w", err)
	}

	vector := s.embedder.EmbedText(ctx, text)
	encoded, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("EnsureArticleEmbedding: encode vector: %w", err)
	}
	insertErr := s.embeddingRepo.Insert(ctx, &entity.ArticleEmbedding{
		ArticleID:  articleID,
		VectorJSON: string(encoded),
		Model:      s.embedder.ModelName(),
	})
	if insertErr != nil {
		return nil, fmt.Errorf("EnsureArticleEmbedding: %w", insertErr)
	}
	return vector, nil
}

// BuildUserProfile averages the embeddings of articles read in the last 30
// days and L2-normalizes the mean.
func (s *Service) BuildUserProfile(ctx context.Context) (UserProfile, error) {
	lower := s.now().AddDate(0, 0, -profileWindowDays)
	encoded, err := s.embeddingRepo.ListReadVectorsSince(ctx, lower)
	if err != nil {
		return UserProfile{}, fmt.Errorf("BuildUserProfile: %w", err)
	}
	if len(encoded) == 0 {
		return UserProfile{}, nil
	}

	var mean []float64
	samples := 0
	for _, raw := range encoded {
		var vector []float64
		if err := json.Unmarshal([]byte(raw), &vector); err != nil {
			continue
		}
		if mean == nil {
			mean = make([]float64, len(vector))
		}
		if len(vector) != len(mean) {
			continue
		}
		for i, v := range vector {
			mean[i] += v
		}
		samples++
	}
	if samples == 0 {
		return UserProfile{}, nil
	}
	for i := range mean {
		mean[i] /= float64(samples)
	}
	return UserProfile{Vector: embedding.Normalize(mean), SampleSize: samples}, nil
}

// ScoreArticle computes the relevance breakdown for one article vector.
// Cold start (no profile samples) scores on freshness alone.
func (s *Service) ScoreArticle(articleVector []float64, profile UserProfile, publishedAt time.Time) Score {
	now := s.now()

	topic := 0.0
	if profile.SampleSize > 0 && len(profile.Vector) > 0 {
		topic = embedding.Cosine(articleVector, profile.Vector)
		if topic < 0 {
			topic = 0
		}
	}

	ageHours := now.Sub(publishedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	freshness := math.Exp(-ageHours / freshnessHalfLifeHours)

	final := freshness
	if profile.SampleSize > 0 {
		final = s.weights.Topic*topic + s.weights.Freshness*freshness
	}
	return Score{Final: final, Topic: topic, Freshness: freshness}
}

// RecomputeScoresForDate ensures embeddings and upserts recommendation rows
// for every article published within the local-day window.
func (s *Service) RecomputeScoresForDate(ctx context.Context, targetDate time.Time) error {
	dayStart, dayEnd := timeutil.LocalDayBounds(targetDate)

	profile, err := s.BuildUserProfile(ctx)
	if err != nil {
		return fmt.Errorf("RecomputeScoresForDate: %w", err)
	}

	articles, err := s.articleRepo.ListWindow(ctx, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("RecomputeScoresForDate: %w", err)
	}

	for _, article := range articles {
		summaryText := ""
		if summary, err := s.summaryRepo.Get(ctx, article.ID); err == nil {
			summaryText = summary.SummaryText
		}
		text := embeddingText(article.Title, summaryText, article.ContentExcerpt)

		vector, err := s.EnsureArticleEmbedding(ctx, article.ID, text)
		if err != nil {
			return fmt.Errorf("RecomputeScoresForDate: article %d: %w", article.ID, err)
		}

		score := s.ScoreArticle(vector, profile, article.PublishedAt)
		if err := s.upsertScore(ctx, article.ID, score, profile.SampleSize); err != nil {
			return fmt.Errorf("RecomputeScoresForDate: article %d: %w", article.ID, err)
		}
	}
	return nil
}

func (s *Service) upsertScore(ctx context.Context, articleID int64, score Score, profileSize int) error {
	detail, err := json.Marshal(map[string]any{
		"topic_score":     score.Topic,
		"freshness_score": score.Freshness,
		"profile_size":    profileSize,
	})
	if err != nil {
		return err
	}
	return s.recommendRepo.Upsert(ctx, &entity.RecommendationScoreEntry{
		ArticleID:  articleID,
		Score:      score.Final,
		DetailJSON: string(detail),
		ScoredAt:   s.now(),
	})
}

func embeddingText(title, summary, excerpt string) string {
	return title + "\n" + summary + "\n" + excerpt
}
