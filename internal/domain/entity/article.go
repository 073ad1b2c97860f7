package entity

import "time"

// Article represents a unique acquired item for a subscription.
// The (SubscriptionID, ExternalID) pair is unique; Title and URL never change
// after the first insert.
type Article struct {
	ID             int64
	SubscriptionID int64
	ExternalID     string
	Title          string
	URL            string
	PublishedAt    time.Time
	FetchedAt      time.Time
	ContentExcerpt string
	RawHash        string
}

// ArticleSummary is the 1:1 summary row for an article.
// Model is either the chat model identifier or the literal "fallback".
type ArticleSummary struct {
	ArticleID   int64
	SummaryText string
	Model       string
	CreatedAt   time.Time
}

// SummaryFallbackModel is recorded when no LLM produced the summary.
const SummaryFallbackModel = "fallback"

// ReadState is the 1:1 read marker for an article.
type ReadState struct {
	ArticleID int64
	IsRead    bool
	ReadAt    *time.Time
}

// ArticleEmbedding stores a serialized dense vector per article.
type ArticleEmbedding struct {
	ArticleID  int64
	VectorJSON string
	Model      string
	CreatedAt  time.Time
}

// RecommendationScoreEntry is the 1:1 relevance score for an article with its
// topic/freshness breakdown serialized as JSON.
type RecommendationScoreEntry struct {
	ArticleID  int64
	Score      float64
	DetailJSON string
	ScoredAt   time.Time
}

// RawArticle is a normalized article record produced by a feed parser or the
// discovery materializer, before persistence.
type RawArticle struct {
	ExternalID        string
	Title             string
	URL               string
	PublishedAt       time.Time
	ContentExcerpt    string
	RawHash           string
	SourceName        string
	IsMidnightPublish bool
}
