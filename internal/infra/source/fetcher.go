// Package source implements the feed-provider capability set: manual rows,
// template mirrors and the directory index. All three share one fetcher that
// downloads a feed URL, normalizes entries and applies the midnight-shift
// policy.
package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/feed"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/timeutil"
	usecase "github.com/v6582374-netizen/Cerebro/internal/usecase/source"
)

// FeedFetcher downloads and normalizes one feed URL.
type FeedFetcher struct {
	client            *http.Client
	parser            *feed.Parser
	midnightShiftDays int
}

// NewFeedFetcher creates a FeedFetcher on the shared HTTP client.
func NewFeedFetcher(client *http.Client, midnightShiftDays int) *FeedFetcher {
	return &FeedFetcher{
		client:            client,
		parser:            feed.NewParser(),
		midnightShiftDays: midnightShiftDays,
	}
}

// Fetch downloads the feed, shifts midnight publish times, filters entries
// published before since, and dedups by external id within the call.
func (f *FeedFetcher) Fetch(ctx context.Context, sourceURL string, since time.Time) ([]entity.RawArticle, error) {
	body, err := httpx.Get(ctx, f.client, sourceURL, httpx.AcceptFeed, nil)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	articles := f.parser.Parse(body, sourceURL)
	if len(articles) == 0 {
		return nil, fmt.Errorf("Fetch: %s: %w", sourceURL, httpx.ErrParseEmpty)
	}

	seen := make(map[string]struct{}, len(articles))
	filtered := make([]entity.RawArticle, 0, len(articles))
	for _, article := range articles {
		article.PublishedAt = timeutil.ShiftMidnightPublish(
			article.PublishedAt, article.IsMidnightPublish, f.midnightShiftDays)
		if article.PublishedAt.Before(since) {
			continue
		}
		if _, dup := seen[article.ExternalID]; dup {
			continue
		}
		seen[article.ExternalID] = struct{}{}
		filtered = append(filtered, article)
	}
	return filtered, nil
}

// Probe checks that the URL is reachable and parses into at least one
// article, reporting latency and a classified failure.
func (f *FeedFetcher) Probe(ctx context.Context, sourceURL string) usecase.ProbeResult {
	started := time.Now()
	body, err := httpx.Get(ctx, f.client, sourceURL, httpx.AcceptFeed, nil)
	latencyMS := int(time.Since(started).Milliseconds())
	if err != nil {
		kind, code, message := httpx.Classify(err)
		return usecase.ProbeResult{LatencyMS: latencyMS, ErrorKind: kind, ErrorMessage: message, HTTPCode: code}
	}
	if len(f.parser.Parse(body, sourceURL)) == 0 {
		kind, code, message := httpx.Classify(httpx.ErrParseEmpty)
		return usecase.ProbeResult{LatencyMS: latencyMS, ErrorKind: kind, ErrorMessage: message, HTTPCode: code}
	}
	return usecase.ProbeResult{OK: true, LatencyMS: latencyMS}
}
