package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	usecase "github.com/v6582374-netizen/Cerebro/internal/usecase/discovery"
)

func TestSignedChannelRequiresToken(t *testing.T) {
	p := NewSignedChannelProvider(nil, "")
	_, err := p.Search(context.Background(), usecase.SearchRequest{SubscriptionName: "频道"})
	assert.ErrorIs(t, err, entity.ErrAuthExpired)
}

func TestParseTokenFromInput(t *testing.T) {
	assert.Equal(t, "wr_sid=abc", ParseTokenFromInput("  wr_sid=abc  "))
	assert.Equal(t, "wr_sid=abc", ParseTokenFromInput(`{"cookie": "wr_sid=abc"}`))
	assert.Equal(t, `{"nota": "cookie"}`, ParseTokenFromInput(`{"nota": "cookie"}`))
	assert.Empty(t, ParseTokenFromInput("   "))
}

func TestExtractChannelRefsWalksPayload(t *testing.T) {
	payload := map[string]any{
		"results": []any{
			map[string]any{
				"title": "文章一",
				"url":   "https://mp.weixin.qq.com/s?sn=one",
			},
			map[string]any{
				"nested": map[string]any{
					"link": "https://mp.weixin.qq.com/s?sn=two",
				},
			},
			"plain text mention https://mp.weixin.qq.com/s?sn=free-text-lower-confidence",
			map[string]any{
				"url": "https://other.example/not-platform",
			},
		},
	}

	refs := extractChannelRefs(payload, 6)
	require.Len(t, refs, 3)

	urls := make(map[string]float64, len(refs))
	for _, ref := range refs {
		urls[ref.URL] = ref.Confidence
		assert.Equal(t, entity.ProviderSignedChannel, ref.Channel)
	}
	assert.Equal(t, 0.85, urls["https://mp.weixin.qq.com/s?sn=one"])
	assert.Equal(t, 0.85, urls["https://mp.weixin.qq.com/s?sn=two"])
}

func TestExtractChannelRefsRespectsLimit(t *testing.T) {
	items := make([]any, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, map[string]any{
			"url": "https://mp.weixin.qq.com/s?sn=" + string(rune('a'+i)),
		})
	}
	refs := extractChannelRefs(map[string]any{"results": items}, 6)
	assert.Len(t, refs, 6)
}
