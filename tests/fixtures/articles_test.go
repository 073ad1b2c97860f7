package fixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/v6582374-netizen/Cerebro/internal/utils/text"
)

func TestGenerateExcerptLength(t *testing.T) {
	excerpt := GenerateExcerpt(ArticleOptions{Length: 300})
	assert.Equal(t, 300, text.CountRunes(excerpt))

	// Zero length falls back to the default.
	assert.Equal(t, 500, text.CountRunes(GenerateExcerpt(ArticleOptions{})))
}

func TestRawArticleDerivedFields(t *testing.T) {
	article := RawArticle("snx01", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, "snx01", article.ExternalID)
	assert.Contains(t, article.URL, "snx01")
	assert.NotEmpty(t, article.RawHash)
	assert.NotEmpty(t, article.ContentExcerpt)
}
