// Package fixtures provides reusable test data generators for integration
// tests. It eliminates test data duplication and keeps article content
// realistic for summarization and embedding tests.
package fixtures

import (
	"fmt"
	"strings"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/feed"
)

// sentences is a pool of realistic Chinese article sentences.
var sentences = []string{
	"本周新能源汽车行业迎来多项政策调整，整车厂加速布局海外市场。",
	"多家芯片设计公司公布季度财报，研发投入持续增长。",
	"云计算厂商围绕大模型推理成本展开新一轮竞争。",
	"动力电池产业链上游材料价格企稳，中游扩产节奏放缓。",
	"开源社区发布了新的框架版本，性能较上一代提升明显。",
	"行业分析师认为短期波动不改长期增长趋势。",
}

// ArticleOptions configures the generated article content.
type ArticleOptions struct {
	// Length is the approximate character count of the excerpt
	Length int
}

// GenerateExcerpt generates coherent Chinese article content of roughly the
// requested rune length.
func GenerateExcerpt(opts ArticleOptions) string {
	if opts.Length <= 0 {
		opts.Length = 500
	}
	var builder strings.Builder
	for i := 0; builder.Len() < opts.Length*3; i++ {
		builder.WriteString(sentences[i%len(sentences)])
	}
	runes := []rune(builder.String())
	if len(runes) > opts.Length {
		runes = runes[:opts.Length]
	}
	return string(runes)
}

// RawArticle builds a complete RawArticle with consistent derived fields.
func RawArticle(externalID string, publishedAt time.Time) entity.RawArticle {
	title := fmt.Sprintf("行业观察 %s", externalID)
	url := fmt.Sprintf("https://mp.weixin.qq.com/s?sn=%s", externalID)
	excerpt := GenerateExcerpt(ArticleOptions{Length: 400})
	return entity.RawArticle{
		ExternalID:     externalID,
		Title:          title,
		URL:            url,
		PublishedAt:    publishedAt.UTC(),
		ContentExcerpt: excerpt,
		RawHash:        feed.RawHash(title, url, excerpt),
	}
}

// Subscription builds a pending auto-mode subscription.
func Subscription(name, wechatID string) *entity.Subscription {
	return &entity.Subscription{
		Name:         name,
		WechatID:     wechatID,
		SourceStatus: entity.SourceStatusPending,
		SourceMode:   entity.SourceModeAuto,
	}
}
