package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	usecase "github.com/v6582374-netizen/Cerebro/internal/usecase/source"
)

const (
	// directoryMinScore is the acceptance floor for fuzzy matches.
	directoryMinScore = 6

	// directoryMinCacheTTL is the lower bound on the index cache lifetime.
	directoryMinCacheTTL = 60 * time.Second

	// directoryDefaultCacheTTL keeps the index warm across a whole run.
	directoryDefaultCacheTTL = 30 * time.Minute
)

var (
	normalizeStripRE = regexp.MustCompile(`[^0-9a-z\x{4e00}-\x{9fff}]`)
	asciiTokenRE     = regexp.MustCompile(`[a-z0-9]{3,}`)
	vpHashMapRE      = regexp.MustCompile(`window\.__VP_HASH_MAP__\s*=\s*JSON\.parse\("(.*?)"\)`)
)

type directoryItem struct {
	name           string
	url            string
	normalizedName string
}

// DirectoryIndexProvider matches subscriptions against a cached external
// anchor-link index of known feeds.
type DirectoryIndexProvider struct {
	indexURL string
	client   *http.Client
	fetcher  *FeedFetcher
	cacheTTL time.Duration

	mu       sync.Mutex
	cache    []directoryItem
	cachedAt time.Time
}

// NewDirectoryIndexProvider creates a DirectoryIndexProvider. A zero TTL
// selects the default; the floor is enforced either way.
func NewDirectoryIndexProvider(indexURL string, client *http.Client, fetcher *FeedFetcher, cacheTTL time.Duration) *DirectoryIndexProvider {
	if cacheTTL <= 0 {
		cacheTTL = directoryDefaultCacheTTL
	}
	if cacheTTL < directoryMinCacheTTL {
		cacheTTL = directoryMinCacheTTL
	}
	return &DirectoryIndexProvider{
		indexURL: indexURL,
		client:   client,
		fetcher:  fetcher,
		cacheTTL: cacheTTL,
	}
}

// Name implements usecase.Provider.
func (p *DirectoryIndexProvider) Name() string { return entity.ProviderDirectoryIndex }

// Discover matches the subscription against the index by normalized name and
// identifier. Candidates carry their fuzzy score in metadata so stored rows
// can later be deactivated when the score is weak.
func (p *DirectoryIndexProvider) Discover(ctx context.Context, sub *entity.Subscription) ([]usecase.Candidate, error) {
	if p.indexURL == "" {
		return nil, nil
	}
	items, err := p.loadItems(ctx)
	if err != nil {
		// A broken index never blocks discovery from other providers.
		return nil, nil
	}
	if len(items) == 0 {
		return nil, nil
	}

	normalizedName := normalizeName(sub.Name)
	normalizedID := normalizeName(sub.WechatID)
	tokens := asciiTokens(sub.Name, sub.WechatID)

	type scored struct {
		score int
		item  directoryItem
	}
	ranked := make([]scored, 0, 4)
	for _, item := range items {
		if !containsAllTokens(item.normalizedName, tokens) {
			continue
		}
		score := candidateScore(normalizedName, normalizedID, item.normalizedName)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{score: score, item: item})
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}

	now := time.Now().UTC()
	candidates := make([]usecase.Candidate, 0, len(ranked))
	for idx, entry := range ranked {
		metadata, _ := json.Marshal(map[string]any{"name": entry.item.name, "score": entry.score})
		confidence := float64(entry.score) / 100.0
		if confidence < 0.2 {
			confidence = 0.2
		}
		if confidence > 0.95 {
			confidence = 0.95
		}
		candidates = append(candidates, usecase.Candidate{
			SubscriptionID: sub.ID,
			Provider:       entity.ProviderDirectoryIndex,
			URL:            entry.item.url,
			Priority:       60 + idx,
			Confidence:     confidence,
			DiscoveredAt:   now,
			MetadataJSON:   string(metadata),
		})
	}
	return candidates, nil
}

// Probe implements usecase.Provider.
func (p *DirectoryIndexProvider) Probe(ctx context.Context, candidate usecase.Candidate) usecase.ProbeResult {
	return p.fetcher.Probe(ctx, candidate.URL)
}

// Fetch implements usecase.Provider.
func (p *DirectoryIndexProvider) Fetch(ctx context.Context, candidate usecase.Candidate, since time.Time) ([]entity.RawArticle, error) {
	return p.fetcher.Fetch(ctx, candidate.URL, since)
}

// loadItems returns the cached index, refreshing it after the TTL. When the
// index page carries no anchors but uses the hashed-asset pattern, the asset
// URLs are fetched instead.
func (p *DirectoryIndexProvider) loadItems(ctx context.Context) ([]directoryItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil && time.Since(p.cachedAt) < p.cacheTTL {
		return p.cache, nil
	}

	body, err := httpx.Get(ctx, p.client, p.indexURL, httpx.AcceptHTML, nil)
	if err != nil {
		return nil, fmt.Errorf("loadItems: %w", err)
	}

	items := p.extractItems(string(body))
	if len(items) == 0 {
		for _, assetURL := range p.extractAssetURLs(string(body)) {
			assetBody, err := httpx.Get(ctx, p.client, assetURL, "", nil)
			if err != nil {
				continue
			}
			items = p.extractItems(string(assetBody))
			if len(items) > 0 {
				break
			}
		}
	}

	p.cache = items
	p.cachedAt = time.Now()
	return items, nil
}

// extractItems pulls (name, feed-url) pairs out of an anchor listing,
// deduplicating by URL.
func (p *DirectoryIndexProvider) extractItems(body string) []directoryItem {
	dedup := make(map[string]directoryItem)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
			href, _ := selection.Attr("href")
			href = strings.TrimSpace(href)
			if !strings.Contains(href, "/feed/") || !strings.HasSuffix(href, ".xml") {
				return
			}
			name := strings.TrimSpace(selection.Text())
			if name == "" {
				return
			}
			normalized := normalizeName(name)
			if normalized == "" {
				return
			}
			dedup[href] = directoryItem{name: name, url: href, normalizedName: normalized}
		})
	}

	items := make([]directoryItem, 0, len(dedup))
	for _, item := range dedup {
		items = append(items, item)
	}
	return items
}

// extractAssetURLs resolves the hashed asset variants of the listing used by
// index pages that render their content from JS bundles.
func (p *DirectoryIndexProvider) extractAssetURLs(body string) []string {
	match := vpHashMapRE.FindStringSubmatch(body)
	if match == nil {
		return nil
	}
	unquoted, err := strconv.Unquote(`"` + match[1] + `"`)
	if err != nil {
		return nil
	}
	hashMap := map[string]string{}
	if err := json.Unmarshal([]byte(unquoted), &hashMap); err != nil {
		return nil
	}
	hash := hashMap["list_all.md"]
	if hash == "" {
		return nil
	}

	base, err := url.Parse(p.indexURL)
	if err != nil {
		return nil
	}
	first, _ := base.Parse(fmt.Sprintf("/assets/list_all.md.%s.js", hash))
	second, _ := base.Parse(fmt.Sprintf("/assets/list_all.md.%s.lean.js", hash))
	urls := make([]string, 0, 2)
	if first != nil {
		urls = append(urls, first.String())
	}
	if second != nil {
		urls = append(urls, second.String())
	}
	return urls
}

// normalizeName lowercases and strips whitespace plus everything that is not
// alphanumeric or CJK.
func normalizeName(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	return normalizeStripRE.ReplaceAllString(lowered, "")
}

// asciiTokens collects the distinct ASCII runs of length >= 3 from the
// normalized inputs.
func asciiTokens(values ...string) []string {
	seen := make(map[string]struct{})
	tokens := make([]string, 0, 4)
	for _, value := range values {
		for _, token := range asciiTokenRE.FindAllString(normalizeName(value), -1) {
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// containsAllTokens is the conjunctive ASCII token test: every token must
// appear in the candidate.
func containsAllTokens(candidate string, tokens []string) bool {
	for _, token := range tokens {
		if !strings.Contains(candidate, token) {
			return false
		}
	}
	return true
}

// matchScore scores two normalized names: exact match 100, containment the
// shorter rune length, else 0.
func matchScore(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	if strings.Contains(b, a) || strings.Contains(a, b) {
		la, lb := len([]rune(a)), len([]rune(b))
		if la < lb {
			return la
		}
		return lb
	}
	return 0
}

// candidateScore applies the acceptance rules: subscriptions with an
// identifier of length >= 4 demand an identifier match of at least 4, and the
// best of (identifier, name) must clear the floor.
func candidateScore(normalizedName, normalizedID, itemName string) int {
	idScore := matchScore(normalizedID, itemName)
	nameScore := matchScore(normalizedName, itemName)

	if normalizedID != "" && len([]rune(normalizedID)) >= 4 && idScore < 4 {
		return 0
	}
	best := idScore
	if nameScore > best {
		best = nameScore
	}
	if best < directoryMinScore {
		return 0
	}
	return best
}
