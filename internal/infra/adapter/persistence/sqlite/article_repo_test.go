package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestArticleRepoGetByExternalIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .+ FROM articles WHERE subscription_id = \? AND external_id = \?`).
		WithArgs(int64(1), "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Articles.GetByExternalID(context.Background(), 1, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepoInsert(t *testing.T) {
	store, mock := newMockStore(t)
	published := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO articles`).
		WithArgs(int64(7), "e1", "标题", "https://example.com/p/1",
			published, sqlmock.AnyArg(), "excerpt", "hash").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := store.Articles.Insert(context.Background(), &entity.Article{
		SubscriptionID: 7,
		ExternalID:     "e1",
		Title:          "标题",
		URL:            "https://example.com/p/1",
		PublishedAt:    published,
		ContentExcerpt: "excerpt",
		RawHash:        "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepoUpdateMutableTouchesOnlyMutableColumns(t *testing.T) {
	store, mock := newMockStore(t)
	published := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE articles SET published_at = \?, content_excerpt = \?, raw_hash = \? WHERE id = \?`).
		WithArgs(published, "new excerpt", "new hash", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Articles.UpdateMutable(context.Background(), 42, published, "new excerpt", "new hash")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryRepoUpsert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO article_summaries`).
		WithArgs(int64(42), "一句话摘要", "gpt-4o-mini", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Summaries.Upsert(context.Background(), &entity.ArticleSummary{
		ArticleID:   42,
		SummaryText: "一句话摘要",
		Model:       "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
