// Package view builds the day-scoped reader view: the transient day-id
// bijection and the ordered view rows the CLI renders.
package view

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/pkg/timeutil"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

// View modes supported by the reader.
const (
	ModeSource    = "source"
	ModeTime      = "time"
	ModeRecommend = "recommend"
)

// Item is one article row of the day view.
type Item struct {
	DayID       int
	ArticleID   int64
	SourceName  string
	Title       string
	URL         string
	Summary     string
	PublishedAt time.Time
	IsRead      bool
	Score       *float64
}

// Service resolves day-ids and assembles view rows.
type Service struct {
	articleRepo repository.ArticleRepository
}

// NewService creates the view service.
func NewService(articleRepo repository.ArticleRepository) *Service {
	return &Service{articleRepo: articleRepo}
}

// DayIDMaps builds the deterministic bijection for one local day: articles
// ordered by published_at DESC then id ASC, enumerated from 1. The mapping
// is rebuilt on demand and never persisted.
func (s *Service) DayIDMaps(ctx context.Context, targetDate time.Time) (byArticle map[int64]int, byDayID map[int]int64, err error) {
	dayStart, dayEnd := timeutil.LocalDayBounds(targetDate)
	articles, err := s.articleRepo.ListWindow(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("DayIDMaps: %w", err)
	}

	byArticle = make(map[int64]int, len(articles))
	byDayID = make(map[int]int64, len(articles))
	for idx, article := range articles {
		dayID := idx + 1
		byArticle[article.ID] = dayID
		byDayID[dayID] = article.ID
	}
	return byArticle, byDayID, nil
}

// ResolveDayID maps one day-id back to its article id; ok is false for ids
// outside the day.
func (s *Service) ResolveDayID(ctx context.Context, targetDate time.Time, dayID int) (int64, bool, error) {
	if dayID <= 0 {
		return 0, false, nil
	}
	_, byDayID, err := s.DayIDMaps(ctx, targetDate)
	if err != nil {
		return 0, false, err
	}
	articleID, ok := byDayID[dayID]
	return articleID, ok, nil
}

// ResolveDayIDs maps several day-ids at once; missing ids are absent from
// the result.
func (s *Service) ResolveDayIDs(ctx context.Context, targetDate time.Time, dayIDs []int) (map[int]int64, error) {
	_, byDayID, err := s.DayIDMaps(ctx, targetDate)
	if err != nil {
		return nil, err
	}
	resolved := make(map[int]int64, len(dayIDs))
	for _, dayID := range dayIDs {
		if articleID, ok := byDayID[dayID]; ok {
			resolved[dayID] = articleID
		}
	}
	return resolved, nil
}

// ListDay returns the day's view rows in the requested mode. Day-ids always
// follow the canonical enumeration regardless of display order.
func (s *Service) ListDay(ctx context.Context, targetDate time.Time, mode string) ([]Item, error) {
	dayStart, dayEnd := timeutil.LocalDayBounds(targetDate)
	rows, err := s.articleRepo.ListWindowWithMeta(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("ListDay: %w", err)
	}

	items := make([]Item, 0, len(rows))
	for idx, row := range rows {
		items = append(items, Item{
			DayID:       idx + 1,
			ArticleID:   row.Article.ID,
			SourceName:  row.SourceName,
			Title:       row.Article.Title,
			URL:         row.Article.URL,
			Summary:     row.SummaryText,
			PublishedAt: row.Article.PublishedAt,
			IsRead:      row.IsRead,
			Score:       row.Score,
		})
	}

	switch mode {
	case ModeSource:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].SourceName != items[j].SourceName {
				return items[i].SourceName < items[j].SourceName
			}
			return items[i].DayID < items[j].DayID
		})
	case ModeRecommend:
		sort.SliceStable(items, func(i, j int) bool {
			return scoreOf(items[i]) > scoreOf(items[j])
		})
	case ModeTime:
		// Canonical order is already publish-time descending.
	}
	return items, nil
}

func scoreOf(item Item) float64 {
	if item.Score == nil {
		return -1
	}
	return *item.Score
}
