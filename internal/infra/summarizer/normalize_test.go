package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/utils/text"
)

func sampleArticle() entity.RawArticle {
	return entity.RawArticle{Title: "新能源汽车行业周报", URL: "https://mp.example/s?sn=a"}
}

func TestNormalizeSummaryStripsMarkup(t *testing.T) {
	got := NormalizeSummary(`摘要：<b>本周新能源车企密集发布新款车型</b>，订单数据向好，产业链公司受益明显，市场情绪回暖。`, sampleArticle())

	assert.NotContains(t, got, "<")
	assert.NotContains(t, got, ">")
	assert.False(t, strings.HasPrefix(got, "摘要"), "leading marker removed")
	assert.NotEmpty(t, got)
	assert.LessOrEqual(t, text.CountRunes(got), 50)
}

func TestNormalizeSummaryStripsQuotesAndWhitespace(t *testing.T) {
	got := NormalizeSummary("\"本周 行业 动态   总结，覆盖充电网络与电池技术，细节丰富值得阅读\"", sampleArticle())
	assert.False(t, strings.ContainsAny(got, " \t\n"))
	assert.False(t, strings.HasPrefix(got, `"`))
}

func TestNormalizeSummaryCapsAtFifty(t *testing.T) {
	long := strings.Repeat("长", 120)
	got := NormalizeSummary(long, sampleArticle())
	assert.Equal(t, 50, text.CountRunes(got))
}

func TestNormalizeSummaryPrefersSentenceBoundary(t *testing.T) {
	input := strings.Repeat("前", 40) + "。" + strings.Repeat("后", 40)
	got := NormalizeSummary(input, sampleArticle())
	assert.True(t, strings.HasSuffix(got, "。"), "cut at the sentence separator inside the window")
	assert.LessOrEqual(t, text.CountRunes(got), 50)
}

func TestNormalizeSummaryPadsThinInput(t *testing.T) {
	got := NormalizeSummary("很短", sampleArticle())
	assert.GreaterOrEqual(t, text.CountRunes(got), 30)
	assert.LessOrEqual(t, text.CountRunes(got), 50)
}

func TestNormalizeSummaryEmptyFallsBackToTitle(t *testing.T) {
	got := NormalizeSummary("   ", sampleArticle())
	assert.Contains(t, got, "新能源汽车行业周报")
}

func TestNormalizeSummaryNeverEmpty(t *testing.T) {
	got := NormalizeSummary("", entity.RawArticle{})
	assert.NotEmpty(t, got)
}
