// Package config builds the immutable per-process settings from the process
// environment and the resolved .env file, and maintains that file with a
// line-preserving upsert.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults for the recognized options.
const (
	DefaultDBURL           = "sqlite:///data/wechat_agent.db"
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultDeepSeekBaseURL = "https://api.deepseek.com"
	DefaultIndexURL        = "https://wechat2rss.xlab.app/list/all/"
)

// DefaultSourceTemplates is the built-in mirror list; each entry substitutes
// {wechat_id}.
var DefaultSourceTemplates = []string{
	"https://rsshub.app/wechat/mp/{wechat_id}",
	"https://rsshub.rssforever.com/wechat/mp/{wechat_id}",
}

// Settings is the immutable configuration built once per process.
// Re-reading after environment changes is an explicit Load call.
type Settings struct {
	DBURL string

	AIProvider         string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIChatModel    string
	OpenAIEmbedModel   string
	DeepSeekAPIKey     string
	DeepSeekBaseURL    string
	DeepSeekChatModel  string
	DeepSeekEmbedModel string

	SourceTemplates []string

	HTTPTimeoutSeconds         int
	MaxConcurrency             int
	DefaultViewMode            string
	Wechat2RSSIndexURL         string
	ArticleFetchTimeoutSeconds int
	SummarySourceCharLimit     int
	MidnightShiftDays          int
	SyncOverlapSeconds         int
	IncrementalSyncEnabled     bool

	SourceMaxCandidates        int
	SourceRetryBackoffMS       int
	SourceCircuitFailThreshold int
	SourceCooldownMinutes      int

	DiscoveryV2Enabled bool
	SessionProvider    string
	SessionBackend     string
	CoverageSLATarget  float64
}

// Load builds Settings. Values come from the process environment first; the
// .env file at envPath (or the default location) fills what is missing.
func Load(envPath string) Settings {
	fileValues := map[string]string{}
	if values, err := ReadEnvFile(ResolveEnvPath(envPath)); err == nil {
		fileValues = values
	}
	get := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return fileValues[key]
	}

	viewMode := strings.ToLower(strings.TrimSpace(get("DEFAULT_VIEW_MODE")))
	switch viewMode {
	case "source", "time", "recommend":
	default:
		viewMode = "source"
	}

	sessionBackend := strings.ToLower(strings.TrimSpace(get("SESSION_BACKEND")))
	switch sessionBackend {
	case "keychain", "file":
	default:
		sessionBackend = "auto"
	}

	return Settings{
		DBURL: firstNonEmpty(get("CEREBRO_DB_URL"), DefaultDBURL),

		AIProvider:         firstNonEmpty(get("AI_PROVIDER"), "auto"),
		OpenAIAPIKey:       get("OPENAI_API_KEY"),
		OpenAIBaseURL:      firstNonEmpty(get("OPENAI_BASE_URL"), DefaultOpenAIBaseURL),
		OpenAIChatModel:    firstNonEmpty(get("OPENAI_CHAT_MODEL"), "gpt-4o-mini"),
		OpenAIEmbedModel:   firstNonEmpty(get("OPENAI_EMBED_MODEL"), "text-embedding-3-small"),
		DeepSeekAPIKey:     get("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL:    firstNonEmpty(get("DEEPSEEK_BASE_URL"), DefaultDeepSeekBaseURL),
		DeepSeekChatModel:  firstNonEmpty(get("DEEPSEEK_CHAT_MODEL"), "deepseek-chat"),
		DeepSeekEmbedModel: get("DEEPSEEK_EMBED_MODEL"),

		SourceTemplates: parseSourceTemplates(get("SOURCE_TEMPLATES")),

		HTTPTimeoutSeconds:         positiveInt(get("HTTP_TIMEOUT_SECONDS"), 15),
		MaxConcurrency:             positiveInt(get("MAX_CONCURRENCY"), 5),
		DefaultViewMode:            viewMode,
		Wechat2RSSIndexURL:         firstNonEmpty(get("WECHAT2RSS_INDEX_URL"), DefaultIndexURL),
		ArticleFetchTimeoutSeconds: positiveInt(get("ARTICLE_FETCH_TIMEOUT_SECONDS"), 15),
		SummarySourceCharLimit:     positiveInt(get("SUMMARY_SOURCE_CHAR_LIMIT"), 6000),
		MidnightShiftDays:          positiveInt(get("MIDNIGHT_SHIFT_DAYS"), 2),
		SyncOverlapSeconds:         positiveInt(get("SYNC_OVERLAP_SECONDS"), 120),
		IncrementalSyncEnabled:     parseBool(get("INCREMENTAL_SYNC_ENABLED"), true),

		SourceMaxCandidates:        positiveInt(get("SOURCE_MAX_CANDIDATES"), 3),
		SourceRetryBackoffMS:       positiveInt(get("SOURCE_RETRY_BACKOFF_MS"), 800),
		SourceCircuitFailThreshold: positiveInt(get("SOURCE_CIRCUIT_FAIL_THRESHOLD"), 3),
		SourceCooldownMinutes:      positiveInt(get("SOURCE_COOLDOWN_MINUTES"), 30),

		DiscoveryV2Enabled: parseBool(get("DISCOVERY_V2_ENABLED"), false),
		SessionProvider:    firstNonEmpty(get("SESSION_PROVIDER"), "weread"),
		SessionBackend:     sessionBackend,
		CoverageSLATarget:  ratio(get("COVERAGE_SLA_TARGET"), 0.0),
	}
}

// ResolvedAIProvider picks the effective provider: an explicit choice wins,
// else the first provider with a key, else none.
func (s Settings) ResolvedAIProvider() string {
	provider := strings.ToLower(strings.TrimSpace(s.AIProvider))
	if provider == "openai" || provider == "deepseek" {
		return provider
	}
	if s.OpenAIAPIKey != "" {
		return "openai"
	}
	if s.DeepSeekAPIKey != "" {
		return "deepseek"
	}
	return "none"
}

// ResolvedAPIKey returns the key for the effective provider, or "".
func (s Settings) ResolvedAPIKey() string {
	switch s.ResolvedAIProvider() {
	case "openai":
		return s.OpenAIAPIKey
	case "deepseek":
		return s.DeepSeekAPIKey
	}
	return ""
}

// ResolvedBaseURL returns the endpoint for the effective provider, or "".
func (s Settings) ResolvedBaseURL() string {
	switch s.ResolvedAIProvider() {
	case "openai":
		return s.OpenAIBaseURL
	case "deepseek":
		return s.DeepSeekBaseURL
	}
	return ""
}

// ResolvedChatModel returns the chat model for the effective provider.
func (s Settings) ResolvedChatModel() string {
	switch s.ResolvedAIProvider() {
	case "openai":
		return s.OpenAIChatModel
	case "deepseek":
		return s.DeepSeekChatModel
	}
	return "fallback"
}

// ResolvedEmbedModel returns the embedding model for the effective provider,
// or "" when embeddings stay local.
func (s Settings) ResolvedEmbedModel() string {
	switch s.ResolvedAIProvider() {
	case "openai":
		return strings.TrimSpace(s.OpenAIEmbedModel)
	case "deepseek":
		return strings.TrimSpace(s.DeepSeekEmbedModel)
	}
	return ""
}

// ResolveEnvPath resolves the config file location: custom path, then
// $CEREBRO_ENV_FILE, then $XDG_CONFIG_HOME/cerebro/.env, then
// ~/.config/cerebro/.env.
func ResolveEnvPath(custom string) string {
	if trimmed := strings.TrimSpace(custom); trimmed != "" {
		return expandHome(trimmed)
	}
	if fromEnv := strings.TrimSpace(os.Getenv("CEREBRO_ENV_FILE")); fromEnv != "" {
		return expandHome(fromEnv)
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(expandHome(xdg), "cerebro", ".env")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "cerebro", ".env")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func parseSourceTemplates(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), DefaultSourceTemplates...)
	}
	templates := make([]string, 0, 4)
	for _, item := range strings.Split(raw, ",") {
		candidate := strings.TrimSpace(item)
		if candidate == "" || !strings.Contains(candidate, "{wechat_id}") {
			continue
		}
		templates = append(templates, candidate)
	}
	if len(templates) == 0 {
		return append([]string(nil), DefaultSourceTemplates...)
	}
	return templates
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func positiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseBool(raw string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func ratio(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || value < 0 || value > 1 {
		return fallback
	}
	return value
}
