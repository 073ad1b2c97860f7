package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

// ArticleRepo implements repository.ArticleRepository using SQLite.
type ArticleRepo struct {
	store *Store
}

const articleColumns = `id, subscription_id, external_id, title, url, published_at,
fetched_at, content_excerpt, raw_hash`

// GetByID retrieves one article by id, or entity.ErrNotFound.
func (repo *ArticleRepo) GetByID(ctx context.Context, id int64) (*entity.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ?`
	row := repo.store.db.QueryRowContext(ctx, query, id)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return article, nil
}

// GetByExternalID retrieves one article by its dedup key, or entity.ErrNotFound.
func (repo *ArticleRepo) GetByExternalID(ctx context.Context, subscriptionID int64, externalID string) (*entity.Article, error) {
	query := `SELECT ` + articleColumns + `
FROM articles WHERE subscription_id = ? AND external_id = ?`
	row := repo.store.db.QueryRowContext(ctx, query, subscriptionID, externalID)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByExternalID: %w", err)
	}
	return article, nil
}

// Insert creates a new article row and returns its id.
func (repo *ArticleRepo) Insert(ctx context.Context, article *entity.Article) (int64, error) {
	defer repo.store.Lock()()

	if article.FetchedAt.IsZero() {
		article.FetchedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO articles (subscription_id, external_id, title, url, published_at, fetched_at, content_excerpt, raw_hash)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
	result, err := repo.store.db.ExecContext(ctx, query,
		article.SubscriptionID, article.ExternalID, article.Title, article.URL,
		article.PublishedAt.UTC(), article.FetchedAt.UTC(), article.ContentExcerpt, article.RawHash)
	if err != nil {
		return 0, fmt.Errorf("Insert: ExecContext: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("Insert: LastInsertId: %w", err)
	}
	article.ID = id
	return id, nil
}

// UpdateMutable refreshes the fields later observations may change.
// Title and url are immutable after the first insert.
func (repo *ArticleRepo) UpdateMutable(ctx context.Context, id int64, publishedAt time.Time, excerpt, rawHash string) error {
	defer repo.store.Lock()()

	const query = `
UPDATE articles SET published_at = ?, content_excerpt = ?, raw_hash = ? WHERE id = ?
`
	if _, err := repo.store.db.ExecContext(ctx, query, publishedAt.UTC(), excerpt, rawHash, id); err != nil {
		return fmt.Errorf("UpdateMutable: ExecContext: %w", err)
	}
	return nil
}

// ListWindow retrieves articles published in [start, end) in day-id order:
// published_at DESC, then id ASC.
func (repo *ArticleRepo) ListWindow(ctx context.Context, start, end time.Time) ([]*entity.Article, error) {
	query := `SELECT ` + articleColumns + `
FROM articles
WHERE published_at >= ? AND published_at < ?
ORDER BY published_at DESC, id ASC`
	rows, err := repo.store.db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("ListWindow: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.Article, 0, 64)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("ListWindow: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListWindow: rows.Err: %w", err)
	}
	return articles, nil
}

// ListWindowWithMeta is ListWindow joined with summaries, read states, scores
// and the owning subscription name, in the same day-id order.
func (repo *ArticleRepo) ListWindowWithMeta(ctx context.Context, start, end time.Time) ([]*repository.ArticleWithMeta, error) {
	const query = `
SELECT a.id, a.subscription_id, a.external_id, a.title, a.url, a.published_at,
       a.fetched_at, a.content_excerpt, a.raw_hash,
       s.name AS source_name,
       COALESCE(sum.summary_text, '') AS summary_text,
       COALESCE(rs.is_read, 0) AS is_read,
       rec.score
FROM articles a
INNER JOIN subscriptions s ON s.id = a.subscription_id
LEFT JOIN article_summaries sum ON sum.article_id = a.id
LEFT JOIN read_states rs ON rs.article_id = a.id
LEFT JOIN recommendation_scores rec ON rec.article_id = a.id
WHERE a.published_at >= ? AND a.published_at < ?
ORDER BY a.published_at DESC, a.id ASC
`
	rows, err := repo.store.db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("ListWindowWithMeta: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*repository.ArticleWithMeta, 0, 64)
	for rows.Next() {
		var item repository.ArticleWithMeta
		var score sql.NullFloat64
		err := rows.Scan(&item.Article.ID, &item.Article.SubscriptionID, &item.Article.ExternalID,
			&item.Article.Title, &item.Article.URL, &item.Article.PublishedAt,
			&item.Article.FetchedAt, &item.Article.ContentExcerpt, &item.Article.RawHash,
			&item.SourceName, &item.SummaryText, &item.IsRead, &score)
		if err != nil {
			return nil, fmt.Errorf("ListWindowWithMeta: Scan: %w", err)
		}
		if score.Valid {
			value := score.Float64
			item.Score = &value
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListWindowWithMeta: rows.Err: %w", err)
	}
	return items, nil
}

// CountWindowBySubscription counts one subscription's articles in the window.
func (repo *ArticleRepo) CountWindowBySubscription(ctx context.Context, subscriptionID int64, start, end time.Time) (int, error) {
	const query = `
SELECT COUNT(*) FROM articles
WHERE subscription_id = ? AND published_at >= ? AND published_at < ?
`
	var count int
	err := repo.store.db.QueryRowContext(ctx, query, subscriptionID, start.UTC(), end.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountWindowBySubscription: %w", err)
	}
	return count, nil
}

func scanArticle(row rowScanner) (*entity.Article, error) {
	var article entity.Article
	err := row.Scan(&article.ID, &article.SubscriptionID, &article.ExternalID,
		&article.Title, &article.URL, &article.PublishedAt, &article.FetchedAt,
		&article.ContentExcerpt, &article.RawHash)
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}
	return &article, nil
}

// SummaryRepo implements repository.SummaryRepository using SQLite.
type SummaryRepo struct {
	store *Store
}

// Get retrieves the summary for an article, or entity.ErrNotFound.
func (repo *SummaryRepo) Get(ctx context.Context, articleID int64) (*entity.ArticleSummary, error) {
	const query = `SELECT article_id, summary_text, model, created_at FROM article_summaries WHERE article_id = ?`
	var summary entity.ArticleSummary
	err := repo.store.db.QueryRowContext(ctx, query, articleID).Scan(
		&summary.ArticleID, &summary.SummaryText, &summary.Model, &summary.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &summary, nil
}

// Upsert inserts or replaces the article summary.
func (repo *SummaryRepo) Upsert(ctx context.Context, summary *entity.ArticleSummary) error {
	defer repo.store.Lock()()

	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO article_summaries (article_id, summary_text, model, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(article_id) DO UPDATE SET
    summary_text = excluded.summary_text,
    model = excluded.model,
    created_at = excluded.created_at
`
	_, err := repo.store.db.ExecContext(ctx, query,
		summary.ArticleID, summary.SummaryText, summary.Model, summary.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("Upsert: ExecContext: %w", err)
	}
	return nil
}

// ReadStateRepo implements repository.ReadStateRepository using SQLite.
type ReadStateRepo struct {
	store *Store
}

// Upsert inserts or replaces the read marker for an article.
func (repo *ReadStateRepo) Upsert(ctx context.Context, state *entity.ReadState) error {
	defer repo.store.Lock()()

	const query = `
INSERT INTO read_states (article_id, is_read, read_at)
VALUES (?, ?, ?)
ON CONFLICT(article_id) DO UPDATE SET
    is_read = excluded.is_read,
    read_at = excluded.read_at
`
	_, err := repo.store.db.ExecContext(ctx, query, state.ArticleID, state.IsRead, toNullTime(state.ReadAt))
	if err != nil {
		return fmt.Errorf("Upsert: ExecContext: %w", err)
	}
	return nil
}

// EmbeddingRepo implements repository.EmbeddingRepository using SQLite.
type EmbeddingRepo struct {
	store *Store
}

// Get retrieves the embedding for an article, or entity.ErrNotFound.
func (repo *EmbeddingRepo) Get(ctx context.Context, articleID int64) (*entity.ArticleEmbedding, error) {
	const query = `SELECT article_id, vector_json, model, created_at FROM article_embeddings WHERE article_id = ?`
	var embedding entity.ArticleEmbedding
	err := repo.store.db.QueryRowContext(ctx, query, articleID).Scan(
		&embedding.ArticleID, &embedding.VectorJSON, &embedding.Model, &embedding.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &embedding, nil
}

// Insert stores a newly computed vector.
func (repo *EmbeddingRepo) Insert(ctx context.Context, embedding *entity.ArticleEmbedding) error {
	defer repo.store.Lock()()

	if embedding.CreatedAt.IsZero() {
		embedding.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO article_embeddings (article_id, vector_json, model, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(article_id) DO NOTHING
`
	_, err := repo.store.db.ExecContext(ctx, query,
		embedding.ArticleID, embedding.VectorJSON, embedding.Model, embedding.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("Insert: ExecContext: %w", err)
	}
	return nil
}

// ListReadVectorsSince returns vectors of articles read at or after the
// bound; they feed the user profile.
func (repo *EmbeddingRepo) ListReadVectorsSince(ctx context.Context, since time.Time) ([]string, error) {
	const query = `
SELECT e.vector_json
FROM article_embeddings e
INNER JOIN read_states rs ON rs.article_id = e.article_id
INNER JOIN articles a ON a.id = e.article_id
WHERE rs.is_read = 1 AND rs.read_at >= ?
`
	rows, err := repo.store.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("ListReadVectorsSince: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	vectors := make([]string, 0, 32)
	for rows.Next() {
		var vectorJSON string
		if err := rows.Scan(&vectorJSON); err != nil {
			return nil, fmt.Errorf("ListReadVectorsSince: Scan: %w", err)
		}
		vectors = append(vectors, vectorJSON)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListReadVectorsSince: rows.Err: %w", err)
	}
	return vectors, nil
}

// RecommendationRepo implements repository.RecommendationRepository using SQLite.
type RecommendationRepo struct {
	store *Store
}

// Upsert inserts or replaces the recommendation entry for an article.
func (repo *RecommendationRepo) Upsert(ctx context.Context, entry *entity.RecommendationScoreEntry) error {
	defer repo.store.Lock()()

	if entry.ScoredAt.IsZero() {
		entry.ScoredAt = time.Now().UTC()
	}
	const query = `
INSERT INTO recommendation_scores (article_id, score, detail_json, scored_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(article_id) DO UPDATE SET
    score = excluded.score,
    detail_json = excluded.detail_json,
    scored_at = excluded.scored_at
`
	_, err := repo.store.db.ExecContext(ctx, query,
		entry.ArticleID, entry.Score, entry.DetailJSON, entry.ScoredAt.UTC())
	if err != nil {
		return fmt.Errorf("Upsert: ExecContext: %w", err)
	}
	return nil
}
