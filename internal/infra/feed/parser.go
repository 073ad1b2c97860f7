// Package feed decodes RSS/Atom documents into normalized article records.
// It uses the gofeed library and derives the stable identifiers, hashes and
// midnight markers the rest of the pipeline relies on.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

var (
	tagRE        = regexp.MustCompile(`<[^>]+>`)
	spaceRE      = regexp.MustCompile(`\s+`)
	midnightRE   = regexp.MustCompile(`(?:^|\s)00:00(?::00)?(?:\s|$)`)
	excerptLimit = 2000
)

// Parser decodes feed bytes into RawArticle records.
type Parser struct {
	parser *gofeed.Parser
}

// NewParser creates a feed parser.
func NewParser() *Parser {
	return &Parser{parser: gofeed.NewParser()}
}

// Parse decodes the given feed document. Unparseable input yields an empty
// slice; the caller treats that as PARSE_EMPTY.
//
// For each entry:
//   - external_id: entry GUID, else url + "#" + ISO published time
//   - published_at: structured published/updated date, else now
//   - excerpt: HTML-stripped content or description, capped
//   - raw_hash: sha256(title|url|excerpt)
//   - midnight marker: textual publish time is exactly 00:00(:00)
func (p *Parser) Parse(content []byte, sourceURL string) []entity.RawArticle {
	parsed, err := p.parser.ParseString(string(content))
	if err != nil || parsed == nil {
		return nil
	}

	now := time.Now().UTC()
	results := make([]entity.RawArticle, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		title := CleanExcerpt(item.Title)
		if title == "" {
			title = "Untitled"
		}
		url := strings.TrimSpace(item.Link)
		if url == "" {
			url = sourceURL
		}

		publishedAt := now
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			publishedAt = item.UpdatedParsed.UTC()
		}

		publishedText := item.Published
		if publishedText == "" {
			publishedText = item.Updated
		}

		excerpt := entryExcerpt(item)
		externalID := strings.TrimSpace(item.GUID)
		if externalID == "" {
			externalID = fmt.Sprintf("%s#%s", url, publishedAt.Format(time.RFC3339))
		}

		results = append(results, entity.RawArticle{
			ExternalID:        externalID,
			Title:             title,
			URL:               url,
			PublishedAt:       publishedAt,
			ContentExcerpt:    excerpt,
			RawHash:           RawHash(title, url, excerpt),
			IsMidnightPublish: midnightRE.MatchString(publishedText),
		})
	}
	return results
}

// RawHash derives the content fingerprint stored on each article.
func RawHash(title, url, excerpt string) string {
	sum := sha256.Sum256([]byte(title + "|" + url + "|" + excerpt))
	return hex.EncodeToString(sum[:])
}

// CleanExcerpt strips tags and entities from an HTML fragment and collapses
// whitespace.
func CleanExcerpt(raw string) string {
	unescaped := html.UnescapeString(raw)
	noTags := tagRE.ReplaceAllString(unescaped, " ")
	return strings.TrimSpace(spaceRE.ReplaceAllString(noTags, " "))
}

func entryExcerpt(item *gofeed.Item) string {
	candidate := item.Content
	if strings.TrimSpace(candidate) == "" {
		candidate = item.Description
	}
	cleaned := CleanExcerpt(candidate)
	runes := []rune(cleaned)
	if len(runes) > excerptLimit {
		return string(runes[:excerptLimit])
	}
	return cleaned
}
