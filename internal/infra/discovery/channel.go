package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	usecase "github.com/v6582374-netizen/Cerebro/internal/usecase/discovery"
)

const channelSearchLimit = 6

// SignedChannelProvider searches a signed-in reading platform for articles of
// a subscription. It requires a session token; absence is AUTH_EXPIRED.
type SignedChannelProvider struct {
	client  *http.Client
	baseURL string
}

// NewSignedChannelProvider creates a SignedChannelProvider on the shared
// client. baseURL defaults to the platform search endpoint.
func NewSignedChannelProvider(client *http.Client, baseURL string) *SignedChannelProvider {
	if baseURL == "" {
		baseURL = "https://weread.qq.com/web/search/global"
	}
	return &SignedChannelProvider{client: client, baseURL: baseURL}
}

// Name implements usecase.Provider.
func (p *SignedChannelProvider) Name() string { return entity.ProviderSignedChannel }

// Search queries the platform's global search with the session cookie and
// walks the response payload for platform article links.
func (p *SignedChannelProvider) Search(ctx context.Context, req usecase.SearchRequest) ([]usecase.Ref, error) {
	token := strings.TrimSpace(req.SessionToken)
	if token == "" {
		return nil, entity.ErrAuthExpired
	}

	endpoint := p.baseURL + "?" + url.Values{"keyword": {req.SubscriptionName}}.Encode()
	body, err := httpx.Get(ctx, p.client, endpoint, httpx.AcceptJSON, map[string]string{
		"Cookie":  token,
		"Referer": "https://weread.qq.com/",
	})
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("Search: decode payload: %w", err)
	}
	return extractChannelRefs(payload, channelSearchLimit), nil
}

// ParseTokenFromInput accepts either a raw cookie string or a JSON object
// with a "cookie" field, as pasted by the operator.
func ParseTokenFromInput(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		var payload map[string]any
		if err := json.Unmarshal([]byte(text), &payload); err == nil {
			if cookie, ok := payload["cookie"].(string); ok {
				if trimmed := strings.TrimSpace(cookie); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return text
}

// extractChannelRefs walks arbitrary JSON for platform article links.
// Links under url/link/href keys carry more confidence than links found in
// free-form strings.
func extractChannelRefs(payload any, limit int) []usecase.Ref {
	refs := make([]usecase.Ref, 0, limit)
	seen := make(map[string]struct{})

	add := func(link string, confidence float64) {
		if len(refs) >= limit {
			return
		}
		if !strings.Contains(link, platformHost+"/s") {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		refs = append(refs, usecase.Ref{
			URL:        link,
			Channel:    entity.ProviderSignedChannel,
			Confidence: confidence,
		})
	}

	var walk func(node any)
	walk = func(node any) {
		if len(refs) >= limit {
			return
		}
		switch value := node.(type) {
		case map[string]any:
			for key, child := range value {
				lowered := strings.ToLower(key)
				if text, ok := child.(string); ok && (lowered == "url" || lowered == "link" || lowered == "href") {
					add(text, 0.85)
					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range value {
				walk(child)
			}
		case string:
			add(value, 0.75)
		}
	}
	walk(payload)
	return refs
}
