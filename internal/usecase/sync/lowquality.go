package sync

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/utils/text"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	dateTokenRE  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// noiseTokens are promo strings mirrors inject into excerpts; a summary
// carrying one was built from boilerplate, not the article.
var noiseTokens = []string{"关注前沿科技", "原创", "发布于", "发表于", "点击上方", "扫码关注"}

// trailingSeparators mark a summary cut mid-sentence.
var trailingSeparators = []string{"...", "…", "，", "、", "；", "：", ":"}

// terminators are the characters a complete sentence may end with.
var terminators = []rune{'。', '！', '？', '.', '!', '?', '」', '”', '"'}

// refreshLowQualitySummaries re-summarizes freshly-inserted articles whose
// first summary came out weak.
func (s *Service) refreshLowQualitySummaries(ctx context.Context, articleIDs []int64, logger *slog.Logger) {
	for _, articleID := range articleIDs {
		summary, err := s.summaryRepo.Get(ctx, articleID)
		if err != nil {
			continue
		}
		if !NeedsRefresh(summary.SummaryText, summary.Model) {
			continue
		}

		article, err := s.articleRepo.GetByID(ctx, articleID)
		if err != nil {
			continue
		}
		refreshed := s.summarizer.Summarize(ctx, entity.RawArticle{
			ExternalID:     article.ExternalID,
			Title:          article.Title,
			URL:            article.URL,
			PublishedAt:    article.PublishedAt,
			ContentExcerpt: article.ContentExcerpt,
			RawHash:        article.RawHash,
		})
		err = s.summaryRepo.Upsert(ctx, &entity.ArticleSummary{
			ArticleID:   articleID,
			SummaryText: refreshed.SummaryText,
			Model:       refreshed.Model,
		})
		if err != nil {
			logger.Error("summary refresh failed",
				slog.Int64("article_id", articleID),
				slog.Any("error", err))
		}
	}
}

// NeedsRefresh applies the low-quality summary tests.
func NeedsRefresh(summaryText, model string) bool {
	compact := whitespaceRE.ReplaceAllString(summaryText, "")
	length := text.CountRunes(compact)

	if length < 24 {
		return true
	}
	if strings.ContainsAny(summaryText, "<>") {
		return true
	}
	if dateTokenRE.MatchString(summaryText) && length < 40 {
		return true
	}
	for _, token := range noiseTokens {
		if strings.Contains(summaryText, token) {
			return true
		}
	}
	for _, separator := range trailingSeparators {
		if strings.HasSuffix(summaryText, separator) {
			return true
		}
	}
	if model == entity.SummaryFallbackModel && length >= 48 && !endsWithTerminator(compact) {
		return true
	}
	return false
}

func endsWithTerminator(value string) bool {
	runes := []rune(value)
	if len(runes) == 0 {
		return false
	}
	last := runes[len(runes)-1]
	for _, terminator := range terminators {
		if last == terminator {
			return true
		}
	}
	return false
}
