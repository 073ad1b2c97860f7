package view

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

type fakeArticleRepo struct {
	window []*entity.Article
	meta   []*repository.ArticleWithMeta
}

func (f *fakeArticleRepo) GetByID(context.Context, int64) (*entity.Article, error) {
	return nil, entity.ErrNotFound
}
func (f *fakeArticleRepo) GetByExternalID(context.Context, int64, string) (*entity.Article, error) {
	return nil, entity.ErrNotFound
}
func (f *fakeArticleRepo) Insert(context.Context, *entity.Article) (int64, error) { return 0, nil }
func (f *fakeArticleRepo) UpdateMutable(context.Context, int64, time.Time, string, string) error {
	return nil
}
func (f *fakeArticleRepo) ListWindow(context.Context, time.Time, time.Time) ([]*entity.Article, error) {
	return f.window, nil
}
func (f *fakeArticleRepo) ListWindowWithMeta(context.Context, time.Time, time.Time) ([]*repository.ArticleWithMeta, error) {
	return f.meta, nil
}
func (f *fakeArticleRepo) CountWindowBySubscription(context.Context, int64, time.Time, time.Time) (int, error) {
	return 0, nil
}

func TestDayIDMapsBijection(t *testing.T) {
	now := time.Now().UTC()
	// The repository returns canonical order: published_at DESC, id ASC.
	repo := &fakeArticleRepo{window: []*entity.Article{
		{ID: 30, PublishedAt: now},
		{ID: 10, PublishedAt: now.Add(-time.Hour)},
		{ID: 20, PublishedAt: now.Add(-2 * time.Hour)},
	}}
	svc := NewService(repo)

	byArticle, byDayID, err := svc.DayIDMaps(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{30: 1, 10: 2, 20: 3}, byArticle)
	assert.Equal(t, map[int]int64{1: 30, 2: 10, 3: 20}, byDayID)

	// Inverse property.
	for articleID, dayID := range byArticle {
		assert.Equal(t, articleID, byDayID[dayID])
	}
}

func TestResolveDayID(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeArticleRepo{window: []*entity.Article{{ID: 7, PublishedAt: now}}}
	svc := NewService(repo)

	articleID, ok, err := svc.ResolveDayID(context.Background(), now, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), articleID)

	_, ok, err = svc.ResolveDayID(context.Background(), now, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = svc.ResolveDayID(context.Background(), now, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListDayModes(t *testing.T) {
	now := time.Now().UTC()
	high, low := 0.9, 0.1
	repo := &fakeArticleRepo{meta: []*repository.ArticleWithMeta{
		{Article: entity.Article{ID: 1, PublishedAt: now}, SourceName: "乙源", Score: &low},
		{Article: entity.Article{ID: 2, PublishedAt: now.Add(-time.Hour)}, SourceName: "甲源", Score: &high},
	}}
	svc := NewService(repo)

	items, err := svc.ListDay(context.Background(), now, ModeTime)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].DayID)

	items, err = svc.ListDay(context.Background(), now, ModeSource)
	require.NoError(t, err)
	assert.Equal(t, "甲源", items[0].SourceName)
	assert.Equal(t, 2, items[0].DayID, "day-ids keep the canonical enumeration")

	items, err = svc.ListDay(context.Background(), now, ModeRecommend)
	require.NoError(t, err)
	assert.Equal(t, int64(2), items[0].ArticleID, "highest score first")
}
