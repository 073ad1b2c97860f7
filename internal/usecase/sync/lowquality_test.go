package sync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

func TestNeedsRefresh(t *testing.T) {
	good := "本文梳理了本周新能源行业的关键动态与政策变化，并分析了对产业链的影响。"

	tests := []struct {
		name    string
		summary string
		model   string
		want    bool
	}{
		{"healthy summary passes", good, "gpt-4o-mini", false},
		{"too short", "太短了", "gpt-4o-mini", true},
		{"html remnants", good + "<br>", "gpt-4o-mini", true},
		{"date token with thin text", "2024-01-01发布的本篇文章值得关注，内容如下。", "gpt-4o-mini", true},
		{"noise token", "关注前沿科技，获取每日行业资讯与深度分析内容推送。", "gpt-4o-mini", true},
		{"trailing ellipsis", good[:len(good)-3] + "...", "gpt-4o-mini", true},
		{"trailing comma", strings.TrimSuffix(good, "。") + "，", "gpt-4o-mini", true},
		{"trailing colon", strings.TrimSuffix(good, "。") + "：", "gpt-4o-mini", true},
		{
			"long fallback without terminator",
			strings.Repeat("述", 48),
			entity.SummaryFallbackModel,
			true,
		},
		{
			"long fallback with terminator",
			strings.Repeat("述", 47) + "。",
			entity.SummaryFallbackModel,
			false,
		},
		{
			"long llm summary without terminator passes",
			strings.Repeat("述", 48),
			"gpt-4o-mini",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsRefresh(tt.summary, tt.model))
		})
	}
}
