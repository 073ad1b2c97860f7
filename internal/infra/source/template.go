package source

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	usecase "github.com/v6582374-netizen/Cerebro/internal/usecase/source"
)

// templatePlaceholder is substituted with the subscription identifier.
const templatePlaceholder = "{wechat_id}"

// TemplateMirrorProvider derives one candidate per configured mirror
// template, with ascending priority so earlier templates rank higher.
type TemplateMirrorProvider struct {
	templates []string
	fetcher   *FeedFetcher
}

// NewTemplateMirrorProvider creates a TemplateMirrorProvider.
func NewTemplateMirrorProvider(templates []string, fetcher *FeedFetcher) *TemplateMirrorProvider {
	return &TemplateMirrorProvider{templates: templates, fetcher: fetcher}
}

// Name implements usecase.Provider.
func (p *TemplateMirrorProvider) Name() string { return entity.ProviderTemplateMirror }

// Discover substitutes the subscription identifier into each template.
func (p *TemplateMirrorProvider) Discover(_ context.Context, sub *entity.Subscription) ([]usecase.Candidate, error) {
	now := time.Now().UTC()
	candidates := make([]usecase.Candidate, 0, len(p.templates))
	for idx, template := range p.templates {
		if !strings.Contains(template, templatePlaceholder) {
			continue
		}
		url := strings.ReplaceAll(template, templatePlaceholder, sub.WechatID)
		metadata, _ := json.Marshal(map[string]string{"template": template})
		candidates = append(candidates, usecase.Candidate{
			SubscriptionID: sub.ID,
			Provider:       entity.ProviderTemplateMirror,
			URL:            url,
			Priority:       20 + idx,
			Confidence:     0.55,
			DiscoveredAt:   now,
			MetadataJSON:   string(metadata),
		})
	}
	return candidates, nil
}

// Probe implements usecase.Provider.
func (p *TemplateMirrorProvider) Probe(ctx context.Context, candidate usecase.Candidate) usecase.ProbeResult {
	return p.fetcher.Probe(ctx, candidate.URL)
}

// Fetch implements usecase.Provider.
func (p *TemplateMirrorProvider) Fetch(ctx context.Context, candidate usecase.Candidate, since time.Time) ([]entity.RawArticle, error) {
	return p.fetcher.Fetch(ctx, candidate.URL, since)
}
