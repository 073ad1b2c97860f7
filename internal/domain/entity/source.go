package entity

import "time"

// Provider names form a closed enumeration; registration happens by name.
const (
	ProviderManual         = "manual"
	ProviderTemplateMirror = "rsshub_mirror"
	ProviderDirectoryIndex = "wechat2rss_index"
	ProviderSearchIndex    = "search_index"
	ProviderSignedChannel  = "weread"
)

// SubscriptionSource is a (provider, url) feed candidate for a subscription.
// Priority: lower is better. At most one pinned candidate per subscription.
type SubscriptionSource struct {
	ID             int64
	SubscriptionID int64
	Provider       string
	SourceURL      string
	Priority       int
	Pinned         bool
	Active         bool
	Confidence     float64
	DiscoveredAt   time.Time
	MetadataJSON   string
}

// ArticleRef is a discovered per-article URL hint produced before the full
// article is fetched. Unique per (subscription, url).
type ArticleRef struct {
	ID              int64
	SubscriptionID  int64
	URL             string
	TitleHint       string
	PublishedAtHint *time.Time
	Channel         string
	Confidence      float64
	DiscoveredAt    time.Time
}

// AuthSessionEntry records non-sensitive metadata about a stored credential.
// The secret itself lives in the vault; only its digest is kept here.
type AuthSessionEntry struct {
	Provider     string
	SecretDigest string
	ExpiresAt    *time.Time
	UpdatedAt    time.Time
}
