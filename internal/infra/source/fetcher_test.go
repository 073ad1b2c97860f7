package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

const fetcherFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>频道</title>
  <link>https://example.com</link>
  <item>
    <guid>e-midnight</guid>
    <title>午夜文章</title>
    <link>https://example.com/p/midnight</link>
    <pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
    <description>midnight body</description>
  </item>
  <item>
    <guid>e-old</guid>
    <title>旧文章</title>
    <link>https://example.com/p/old</link>
    <pubDate>Fri, 01 Dec 2023 10:00:00 GMT</pubDate>
    <description>old body</description>
  </item>
  <item>
    <guid>e-dup</guid>
    <title>重复一</title>
    <link>https://example.com/p/dup1</link>
    <pubDate>Mon, 01 Jan 2024 09:00:00 GMT</pubDate>
    <description>dup body</description>
  </item>
  <item>
    <guid>e-dup</guid>
    <title>重复二</title>
    <link>https://example.com/p/dup2</link>
    <pubDate>Mon, 01 Jan 2024 09:30:00 GMT</pubDate>
    <description>dup body again</description>
  </item>
</channel>
</rss>`

func newFeedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchAppliesMidnightShift(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, fetcherFeed)
	fetcher := NewFeedFetcher(server.Client(), 2)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	articles, err := fetcher.Fetch(context.Background(), server.URL, since)
	require.NoError(t, err)

	var midnight *entity.RawArticle
	for i := range articles {
		if articles[i].ExternalID == "e-midnight" {
			midnight = &articles[i]
		}
	}
	require.NotNil(t, midnight)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), midnight.PublishedAt,
		"a 00:00:00 publish time advances by shift_days")
}

func TestFetchFiltersAndDedups(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, fetcherFeed)
	fetcher := NewFeedFetcher(server.Client(), 2)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	articles, err := fetcher.Fetch(context.Background(), server.URL, since)
	require.NoError(t, err)

	ids := make(map[string]int)
	for _, article := range articles {
		ids[article.ExternalID]++
		assert.False(t, article.PublishedAt.Before(since))
	}
	assert.NotContains(t, ids, "e-old", "entries before since are dropped")
	assert.Equal(t, 1, ids["e-dup"], "dedup within the call keeps the first entry")
}

func TestFetchParseEmpty(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, "<html>not a feed</html>")
	fetcher := NewFeedFetcher(server.Client(), 2)

	_, err := fetcher.Fetch(context.Background(), server.URL, time.Time{})
	require.Error(t, err)

	probe := fetcher.Probe(context.Background(), server.URL)
	assert.False(t, probe.OK)
	assert.Equal(t, entity.ErrKindParseEmpty, probe.ErrorKind)
}

func TestProbeClassifiesHTTPErrors(t *testing.T) {
	server := newFeedServer(t, http.StatusForbidden, "denied")
	fetcher := NewFeedFetcher(server.Client(), 2)

	probe := fetcher.Probe(context.Background(), server.URL)
	assert.False(t, probe.OK)
	assert.Equal(t, entity.ErrKindBlocked, probe.ErrorKind)
	assert.Equal(t, http.StatusForbidden, probe.HTTPCode)
	assert.GreaterOrEqual(t, probe.LatencyMS, 0)
}

func TestProbeSuccess(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, fetcherFeed)
	fetcher := NewFeedFetcher(server.Client(), 2)

	probe := fetcher.Probe(context.Background(), server.URL)
	assert.True(t, probe.OK)
}
