package source

import (
	"context"
	"fmt"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
	usecase "github.com/v6582374-netizen/Cerebro/internal/usecase/source"
)

// ManualProvider surfaces operator-managed candidate rows. Only manual-mode
// subscriptions resurface the stand-alone source_url as a pinned legacy
// candidate; in auto mode that field stays dormant so old pins cannot
// resurrect themselves.
type ManualProvider struct {
	sourceRepo repository.SourceRepository
	fetcher    *FeedFetcher
}

// NewManualProvider creates a ManualProvider.
func NewManualProvider(sourceRepo repository.SourceRepository, fetcher *FeedFetcher) *ManualProvider {
	return &ManualProvider{sourceRepo: sourceRepo, fetcher: fetcher}
}

// Name implements usecase.Provider.
func (p *ManualProvider) Name() string { return entity.ProviderManual }

// Discover returns the stored active manual rows, plus the legacy pin for
// manual-mode subscriptions.
func (p *ManualProvider) Discover(ctx context.Context, sub *entity.Subscription) ([]usecase.Candidate, error) {
	rows, err := p.sourceRepo.ListActiveByProvider(ctx, sub.ID, entity.ProviderManual)
	if err != nil {
		return nil, fmt.Errorf("Discover: %w", err)
	}

	candidates := make([]usecase.Candidate, 0, len(rows)+1)
	for _, row := range rows {
		confidence := row.Confidence
		if confidence == 0 {
			confidence = 1.0
		}
		candidates = append(candidates, usecase.Candidate{
			SubscriptionID: sub.ID,
			Provider:       entity.ProviderManual,
			URL:            row.SourceURL,
			Priority:       row.Priority,
			Pinned:         row.Pinned,
			Confidence:     confidence,
			DiscoveredAt:   row.DiscoveredAt,
			MetadataJSON:   row.MetadataJSON,
		})
	}

	if sub.SourceURL != "" && sub.SourceMode == entity.SourceModeManual {
		exists := false
		for _, candidate := range candidates {
			if candidate.URL == sub.SourceURL {
				exists = true
				break
			}
		}
		if !exists {
			candidates = append(candidates, usecase.Candidate{
				SubscriptionID: sub.ID,
				Provider:       entity.ProviderManual,
				URL:            sub.SourceURL,
				Priority:       0,
				Pinned:         true,
				Confidence:     1.0,
				DiscoveredAt:   time.Now().UTC(),
				MetadataJSON:   `{"legacy":true}`,
			})
		}
	}
	return candidates, nil
}

// Probe implements usecase.Provider.
func (p *ManualProvider) Probe(ctx context.Context, candidate usecase.Candidate) usecase.ProbeResult {
	return p.fetcher.Probe(ctx, candidate.URL)
}

// Fetch implements usecase.Provider.
func (p *ManualProvider) Fetch(ctx context.Context, candidate usecase.Candidate, since time.Time) ([]entity.RawArticle, error) {
	return p.fetcher.Fetch(ctx, candidate.URL, since)
}
