package summarizer

import (
	"regexp"
	"strings"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/utils/text"
)

const (
	// summaryMaxRunes is the hard cap on summary length.
	summaryMaxRunes = 50

	// summaryMinRunes is the padding floor for very thin inputs.
	summaryMinRunes = 30

	// summaryPadding extends thin summaries up to the floor.
	summaryPadding = "建议阅读全文了解细节"
)

var (
	summaryTagRE    = regexp.MustCompile(`<[^>]+>`)
	summarySpaceRE  = regexp.MustCompile(`\s+`)
	summaryPrefixRE = regexp.MustCompile(`^(摘要|概要|总结)\s*[:：]\s*`)
)

// NormalizeSummary cleans model or excerpt text into the stored summary form:
// no tags, no surrounding quotes, no leading marker, no whitespace, at most
// summaryMaxRunes runes with a sentence-boundary cut when possible, and never
// empty (the article title backs it up).
func NormalizeSummary(raw string, article entity.RawArticle) string {
	cleaned := normalizeOnce(raw)
	if cleaned == "" {
		cleaned = normalizeOnce(article.Title)
	}
	if cleaned == "" {
		cleaned = summaryPadding
	}

	if text.CountRunes(cleaned) > summaryMaxRunes {
		return text.TruncateAtSentence(cleaned, summaryMaxRunes)
	}
	if text.CountRunes(cleaned) >= summaryMinRunes {
		return cleaned
	}

	merged := cleaned
	for text.CountRunes(merged) < summaryMinRunes {
		merged += summaryPadding
	}
	return text.TruncateRunes(merged, summaryMaxRunes)
}

func normalizeOnce(raw string) string {
	noTags := summaryTagRE.ReplaceAllString(raw, " ")
	trimmed := strings.TrimSpace(noTags)
	trimmed = strings.Trim(trimmed, `"'“”‘’「」`)
	trimmed = summaryPrefixRE.ReplaceAllString(trimmed, "")
	return summarySpaceRE.ReplaceAllString(trimmed, "")
}
