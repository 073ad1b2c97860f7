// Package discovery implements the discovery-provider capability set: the
// general search-index provider spanning several web engines, and the
// signed-in channel provider.
package discovery

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	"github.com/v6582374-netizen/Cerebro/internal/resilience/circuitbreaker"
	usecase "github.com/v6582374-netizen/Cerebro/internal/usecase/discovery"
)

const (
	platformHost       = "mp.weixin.qq.com"
	searchDefaultLimit = 8
	queryDefaultLimit  = 6
)

// antiBotMarkers flag engine responses that are block pages, not results.
var antiBotMarkers = []string{"antispider", "captcha", "too many requests", "rate limit"}

// embeddedLinkRE recovers platform links buried in scripts or JSON when the
// anchor pass finds nothing.
var embeddedLinkRE = regexp.MustCompile(`https?://mp\.weixin\.qq\.com/s\?[^\s"'<>\\]+`)

// engine is one web search index: a name and a results-page URL builder.
type engine struct {
	name     string
	buildURL func(query string) string
}

// defaultEngines returns the fixed engine order.
func defaultEngines() []engine {
	return []engine{
		{
			name: "duckduckgo",
			buildURL: func(query string) string {
				return "https://html.duckduckgo.com/html/?" + url.Values{"q": {query}}.Encode()
			},
		},
		{
			name: "bing",
			buildURL: func(query string) string {
				return "https://www.bing.com/search?" + url.Values{"q": {query}}.Encode()
			},
		},
	}
}

// SearchIndexProvider finds per-article links through general web engines.
// Each engine sits behind its own circuit breaker; anti-bot pages trip it.
// A shared limiter enforces the inter-request delay.
type SearchIndexProvider struct {
	client   *http.Client
	engines  []engine
	breakers map[string]*circuitbreaker.CircuitBreaker
	limiter  *rate.Limiter
}

// NewSearchIndexProvider creates a SearchIndexProvider on the shared client.
func NewSearchIndexProvider(client *http.Client) *SearchIndexProvider {
	engines := defaultEngines()
	breakers := make(map[string]*circuitbreaker.CircuitBreaker, len(engines))
	for _, e := range engines {
		breakers[e.name] = circuitbreaker.New(circuitbreaker.SearchEngineConfig("search-" + e.name))
	}
	return &SearchIndexProvider{
		client:   client,
		engines:  engines,
		breakers: breakers,
		limiter:  rate.NewLimiter(rate.Every(1500*time.Millisecond), 1),
	}
}

// Name implements usecase.Provider.
func (p *SearchIndexProvider) Name() string { return entity.ProviderSearchIndex }

// Search queries the engines in order for the subscription and day; extra
// keywords sharpen the query but lower per-result confidence.
func (p *SearchIndexProvider) Search(ctx context.Context, req usecase.SearchRequest) ([]usecase.Ref, error) {
	query := fmt.Sprintf(`site:%s "%s" %s`, platformHost, req.SubscriptionName, req.Date.Format("2006-01-02"))
	specificity := 0
	for _, keyword := range req.ExtraKeywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		query += " " + keyword
		specificity++
	}
	return p.searchQuery(ctx, query, searchDefaultLimit, specificity, &req.Date)
}

// SearchByQuery implements usecase.QuerySearcher for history backtracking.
func (p *SearchIndexProvider) SearchByQuery(ctx context.Context, query string, limit int) ([]usecase.Ref, error) {
	if limit <= 0 {
		limit = queryDefaultLimit
	}
	return p.searchQuery(ctx, query, limit, 1, nil)
}

func (p *SearchIndexProvider) searchQuery(ctx context.Context, query string, limit, specificity int, dateHint *time.Time) ([]usecase.Ref, error) {
	var lastErr error
	for _, e := range p.engines {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("searchQuery: %w", err)
		}

		body, err := p.breakers[e.name].Execute(func() (interface{}, error) {
			raw, fetchErr := httpx.Get(ctx, p.client, e.buildURL(query), httpx.AcceptHTML, nil)
			if fetchErr != nil {
				return nil, fetchErr
			}
			if isAntiBotPage(string(raw)) {
				return nil, fmt.Errorf("engine %s served a block page", e.name)
			}
			return raw, nil
		})
		if err != nil {
			if err != gobreaker.ErrOpenState {
				lastErr = err
			}
			continue
		}

		refs := p.extractRefs(string(body.([]byte)), limit, specificity, dateHint)
		if len(refs) > 0 {
			return refs, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("searchQuery: all engines failed: %w", lastErr)
	}
	return nil, nil
}

// extractRefs walks result anchors first, then falls back to regex
// extraction of embedded platform links. Confidence decays with rank and
// with query specificity.
func (p *SearchIndexProvider) extractRefs(body string, limit, specificity int, dateHint *time.Time) []usecase.Ref {
	seen := make(map[string]struct{})
	refs := make([]usecase.Ref, 0, limit)

	appendRef := func(normalized, title string) bool {
		if _, dup := seen[normalized]; dup {
			return len(refs) < limit
		}
		seen[normalized] = struct{}{}
		rank := len(refs) + 1
		confidence := 1.0 - float64(rank-1)*0.1 - float64(specificity)*0.05
		if confidence < 0.2 {
			confidence = 0.2
		}
		ref := usecase.Ref{
			URL:        normalized,
			TitleHint:  strings.TrimSpace(title),
			Channel:    entity.ProviderSearchIndex,
			Confidence: confidence,
		}
		if dateHint != nil {
			hint := time.Date(dateHint.Year(), dateHint.Month(), dateHint.Day(), 0, 0, 0, 0, time.UTC)
			ref.PublishedAtHint = &hint
		}
		refs = append(refs, ref)
		return len(refs) < limit
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find("a[href]").EachWithBreak(func(_ int, selection *goquery.Selection) bool {
			href, _ := selection.Attr("href")
			normalized := NormalizePlatformLink(href)
			if normalized == "" {
				return true
			}
			return appendRef(normalized, selection.Text())
		})
	}

	if len(refs) == 0 {
		for _, raw := range embeddedLinkRE.FindAllString(body, -1) {
			normalized := NormalizePlatformLink(raw)
			if normalized == "" {
				continue
			}
			if !appendRef(normalized, "") {
				break
			}
		}
	}
	return refs
}

// NormalizePlatformLink canonicalizes a candidate href to the platform's
// article form: unescapes entities, upgrades protocol-relative links,
// unwraps redirector links carrying the target in the uddg parameter, strips
// trailing punctuation, and rejects anything off the platform host.
func NormalizePlatformLink(raw string) string {
	href := strings.TrimSpace(html.UnescapeString(raw))
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	if strings.HasPrefix(href, "/l/?") {
		if parsed, err := url.Parse(href); err == nil {
			if target := parsed.Query().Get("uddg"); target != "" {
				href = target
			}
		}
	}
	href = strings.TrimRight(href, `.,;)]"'`)

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	if !strings.EqualFold(parsed.Host, platformHost) {
		return ""
	}
	if !strings.HasPrefix(parsed.Path, "/s") {
		return ""
	}
	return href
}

func isAntiBotPage(body string) bool {
	lowered := strings.ToLower(body)
	for _, marker := range antiBotMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
