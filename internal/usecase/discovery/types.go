// Package discovery implements the v2 acquisition path: chain per-article
// link discovery across providers, backtrack through history when everything
// comes up empty, and materialize the discovered links into full articles.
package discovery

import (
	"context"
	"time"
)

// Ref is a discovered per-article link with hint metadata.
type Ref struct {
	URL             string
	TitleHint       string
	PublishedAtHint *time.Time
	Channel         string
	Confidence      float64
}

// SearchRequest carries everything a discovery provider may need for one
// subscription and day.
type SearchRequest struct {
	SubscriptionName string
	WechatID         string
	Date             time.Time
	ExtraKeywords    []string
	SessionToken     string
}

// Provider is the discovery capability set: return per-article link hints for
// a subscription and day. A signed-in provider returns
// entity.ErrAuthExpired when it has no usable session.
type Provider interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) ([]Ref, error)
}

// QuerySearcher runs a raw engine query; the orchestrator uses it for
// history backtracking.
type QuerySearcher interface {
	SearchByQuery(ctx context.Context, query string, limit int) ([]Ref, error)
}

// SecretGetter hands out session tokens; the vault implements it.
type SecretGetter interface {
	Get(provider string) (string, error)
}

// Result is the outcome of one subscription's discovery pass.
type Result struct {
	OK           bool
	Refs         []Ref
	ChannelUsed  string
	ErrorKind    string
	ErrorMessage string
	LatencyMS    int
	Status       string
}
