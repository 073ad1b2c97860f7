package discovery

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/timeutil"
)

var (
	ctRE          = regexp.MustCompile(`\bct\s*=\s*"?(\d{10})"?`)
	publishTimeRE = regexp.MustCompile(`"publish_time"\s*:\s*"([^"]+)"`)
	spaceRE       = regexp.MustCompile(`\s+`)

	// platformTitleSuffixes are trimmed from <title> fallbacks.
	platformTitleSuffixes = []string{" - 微信公众号", "_微信公众平台"}
)

const materializeExcerptLimit = 2000

// Materializer turns discovered article links into full RawArticle records by
// fetching and parsing their HTML.
type Materializer struct {
	client            *http.Client
	midnightShiftDays int
}

// NewMaterializer creates a Materializer on the shared HTTP client.
func NewMaterializer(client *http.Client, midnightShiftDays int) *Materializer {
	return &Materializer{client: client, midnightShiftDays: midnightShiftDays}
}

// Materialize fetches every ref, applies the midnight-shift policy, and
// discards articles published before since. Unfetchable refs are skipped.
func (m *Materializer) Materialize(ctx context.Context, refs []Ref, since time.Time) []entity.RawArticle {
	result := make([]entity.RawArticle, 0, len(refs))
	for _, ref := range refs {
		article, ok := m.fetchArticle(ctx, ref.URL, ref.TitleHint)
		if !ok {
			continue
		}
		article.PublishedAt = timeutil.ShiftMidnightPublish(
			article.PublishedAt, article.IsMidnightPublish, m.midnightShiftDays)
		if article.PublishedAt.Before(since) {
			continue
		}
		result = append(result, article)
	}
	return result
}

func (m *Materializer) fetchArticle(ctx context.Context, articleURL, titleHint string) (entity.RawArticle, bool) {
	body, err := httpx.Get(ctx, m.client, articleURL, httpx.AcceptHTML, nil)
	if err != nil {
		return entity.RawArticle{}, false
	}
	html := string(body)

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))

	title := m.extractTitle(doc, docErr, titleHint)
	publishedAt, isMidnight := m.extractPublishTime(html)
	excerpt := m.extractExcerpt(doc, docErr, html, articleURL)

	digest := sha256.Sum256([]byte(title + "|" + articleURL + "|" + excerpt))
	return entity.RawArticle{
		ExternalID:        ExternalIDFromURL(articleURL),
		Title:             title,
		URL:               articleURL,
		PublishedAt:       publishedAt,
		ContentExcerpt:    excerpt,
		RawHash:           hex.EncodeToString(digest[:]),
		IsMidnightPublish: isMidnight,
	}, true
}

// extractTitle prefers the og:title meta, then the page title stripped of the
// platform suffix, then the hint.
func (m *Materializer) extractTitle(doc *goquery.Document, docErr error, fallback string) string {
	if fallback == "" {
		fallback = "Untitled"
	}
	if docErr != nil || doc == nil {
		return fallback
	}
	if content, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if title := strings.TrimSpace(content); title != "" {
			return title
		}
	}
	title := strings.TrimSpace(spaceRE.ReplaceAllString(doc.Find("title").First().Text(), " "))
	for _, suffix := range platformTitleSuffixes {
		title = strings.TrimSpace(strings.TrimSuffix(title, suffix))
	}
	if title != "" {
		return title
	}
	return fallback
}

// extractPublishTime reads the numeric ct= seconds when present, else the
// textual publish_time in the operator's local zone. The midnight marker is
// evaluated on the local wall clock.
func (m *Materializer) extractPublishTime(html string) (time.Time, bool) {
	if match := ctRE.FindStringSubmatch(html); match != nil {
		seconds, err := strconv.ParseInt(match[1], 10, 64)
		if err == nil {
			instant := time.Unix(seconds, 0).UTC()
			isMidnight := instant.In(time.Local).Format("15:04:05") == "00:00:00"
			return instant, isMidnight
		}
	}
	if match := publishTimeRE.FindStringSubmatch(html); match != nil {
		raw := strings.TrimSpace(match[1])
		local, err := time.ParseInLocation("2006-01-02 15:04:05", raw, time.Local)
		if err != nil {
			local, err = time.ParseInLocation("2006-01-02 15:04", raw, time.Local)
		}
		if err == nil {
			isMidnight := local.Format("15:04:05") == "00:00:00"
			return local.UTC(), isMidnight
		}
	}
	return time.Now().UTC(), false
}

// extractExcerpt reads the platform content element, then any <article>,
// then a readability pass over the whole page.
func (m *Materializer) extractExcerpt(doc *goquery.Document, docErr error, html, articleURL string) string {
	if docErr == nil && doc != nil {
		doc.Find("script, style, noscript").Remove()
		for _, selector := range []string{"#js_content", "article"} {
			text := collapseText(doc.Find(selector).First().Text())
			if text != "" {
				return truncateRunes(text, materializeExcerptLimit)
			}
		}
	}

	if parsed, err := url.Parse(articleURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(html), parsed); err == nil {
			if text := collapseText(article.TextContent); text != "" {
				return truncateRunes(text, materializeExcerptLimit)
			}
		}
	}

	if docErr == nil && doc != nil {
		return truncateRunes(collapseText(doc.Find("body").Text()), materializeExcerptLimit)
	}
	return ""
}

// ExternalIDFromURL concatenates the platform query parameters
// __biz|mid|idx|sn when any is present, else the SHA-1 of the URL.
func ExternalIDFromURL(articleURL string) string {
	parsed, err := url.Parse(articleURL)
	if err == nil {
		query := parsed.Query()
		token := strings.Trim(strings.Join([]string{
			query.Get("__biz"), query.Get("mid"), query.Get("idx"), query.Get("sn"),
		}, "|"), "|")
		if token != "" {
			return token
		}
	}
	digest := sha1.Sum([]byte(articleURL))
	return hex.EncodeToString(digest[:])
}

func collapseText(text string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(text, " "))
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
