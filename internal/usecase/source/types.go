// Package source composes feed providers, the candidate router and the
// per-candidate health service into the failover fetch used by the sync
// engine.
package source

import (
	"context"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// Candidate is a (provider, url) pair believed to yield a subscription's feed.
type Candidate struct {
	SubscriptionID int64
	Provider       string
	URL            string
	Priority       int
	Pinned         bool
	Confidence     float64
	DiscoveredAt   time.Time
	MetadataJSON   string
}

// Key identifies the candidate within maps keyed like the health service.
func (c Candidate) Key() string {
	return c.Provider + "|" + c.URL
}

// ProbeResult reports a lightweight availability check of one candidate.
type ProbeResult struct {
	OK           bool
	LatencyMS    int
	ErrorKind    string
	ErrorMessage string
	HTTPCode     int
}

// FetchResult is the outcome of a failover fetch. On failure it carries the
// last classified error; raw errors never cross this boundary.
type FetchResult struct {
	OK           bool
	Candidate    Candidate
	Articles     []entity.RawArticle
	LatencyMS    int
	ErrorKind    string
	ErrorMessage string
}

// Provider is the feed-provider capability set. Implementations discover
// candidate URLs for a subscription, probe them cheaply, and fetch
// normalized articles.
type Provider interface {
	Name() string
	Discover(ctx context.Context, sub *entity.Subscription) ([]Candidate, error)
	Probe(ctx context.Context, candidate Candidate) ProbeResult
	Fetch(ctx context.Context, candidate Candidate, since time.Time) ([]entity.RawArticle, error)
}
