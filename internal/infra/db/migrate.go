package db

import (
	"database/sql"
	"fmt"
)

// MigrateUp creates all tables and indexes. Statements are idempotent so the
// migration can run on every start.
func MigrateUp(database *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    name               TEXT NOT NULL,
    wechat_id          TEXT NOT NULL UNIQUE,
    source_url         TEXT NOT NULL DEFAULT '',
    source_status      TEXT NOT NULL DEFAULT 'PENDING',
    discovery_status   TEXT NOT NULL DEFAULT 'PENDING',
    preferred_provider TEXT NOT NULL DEFAULT '',
    source_mode        TEXT NOT NULL DEFAULT 'auto',
    last_error         TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMP NOT NULL,
    updated_at         TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS subscription_sources (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    subscription_id INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    provider        TEXT NOT NULL,
    source_url      TEXT NOT NULL,
    priority        INTEGER NOT NULL DEFAULT 0,
    is_pinned       BOOLEAN NOT NULL DEFAULT 0,
    is_active       BOOLEAN NOT NULL DEFAULT 1,
    confidence      REAL NOT NULL DEFAULT 0,
    discovered_at   TIMESTAMP NOT NULL,
    metadata_json   TEXT NOT NULL DEFAULT '',
    UNIQUE(subscription_id, provider, source_url)
)`,
		`CREATE TABLE IF NOT EXISTS source_health (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    subscription_id      INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    provider             TEXT NOT NULL,
    source_url           TEXT NOT NULL,
    state                TEXT NOT NULL DEFAULT 'CLOSED',
    score                REAL NOT NULL DEFAULT 0,
    success_rate_24h     REAL NOT NULL DEFAULT 0,
    avg_latency_ms       REAL NOT NULL DEFAULT 0,
    consecutive_failures INTEGER NOT NULL DEFAULT 0,
    cooldown_until       TIMESTAMP,
    last_ok_at           TIMESTAMP,
    last_error           TEXT NOT NULL DEFAULT '',
    updated_at           TIMESTAMP NOT NULL,
    UNIQUE(subscription_id, provider, source_url)
)`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    public_id     TEXT NOT NULL DEFAULT '',
    "trigger"     TEXT NOT NULL,
    started_at    TIMESTAMP NOT NULL,
    finished_at   TIMESTAMP,
    success_count INTEGER NOT NULL DEFAULT 0,
    fail_count    INTEGER NOT NULL DEFAULT 0,
    new_count     INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS fetch_attempts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    sync_run_id     INTEGER NOT NULL REFERENCES sync_runs(id) ON DELETE CASCADE,
    subscription_id INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    provider        TEXT NOT NULL,
    source_url      TEXT NOT NULL,
    status          TEXT NOT NULL,
    http_code       INTEGER,
    latency_ms      INTEGER NOT NULL DEFAULT 0,
    error_kind      TEXT NOT NULL DEFAULT '',
    error_message   TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS articles (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    subscription_id INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    external_id     TEXT NOT NULL,
    title           TEXT NOT NULL,
    url             TEXT NOT NULL,
    published_at    TIMESTAMP NOT NULL,
    fetched_at      TIMESTAMP NOT NULL,
    content_excerpt TEXT NOT NULL DEFAULT '',
    raw_hash        TEXT NOT NULL DEFAULT '',
    UNIQUE(subscription_id, external_id)
)`,
		`CREATE TABLE IF NOT EXISTS article_summaries (
    article_id   INTEGER PRIMARY KEY REFERENCES articles(id) ON DELETE CASCADE,
    summary_text TEXT NOT NULL,
    model        TEXT NOT NULL,
    created_at   TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS read_states (
    article_id INTEGER PRIMARY KEY REFERENCES articles(id) ON DELETE CASCADE,
    is_read    BOOLEAN NOT NULL DEFAULT 0,
    read_at    TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS article_embeddings (
    article_id  INTEGER PRIMARY KEY REFERENCES articles(id) ON DELETE CASCADE,
    vector_json TEXT NOT NULL,
    model       TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS recommendation_scores (
    article_id  INTEGER PRIMARY KEY REFERENCES articles(id) ON DELETE CASCADE,
    score       REAL NOT NULL,
    detail_json TEXT NOT NULL,
    scored_at   TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS sync_run_items (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    sync_run_id     INTEGER NOT NULL REFERENCES sync_runs(id) ON DELETE CASCADE,
    subscription_id INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    status          TEXT NOT NULL,
    new_count       INTEGER NOT NULL DEFAULT 0,
    error_message   TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS discovery_runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    sync_run_id     INTEGER NOT NULL REFERENCES sync_runs(id) ON DELETE CASCADE,
    subscription_id INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    channel         TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    ref_count       INTEGER NOT NULL DEFAULT 0,
    error_kind      TEXT NOT NULL DEFAULT '',
    latency_ms      INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS article_refs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    subscription_id   INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    url               TEXT NOT NULL,
    title_hint        TEXT NOT NULL DEFAULT '',
    published_at_hint TIMESTAMP,
    channel           TEXT NOT NULL DEFAULT '',
    confidence        REAL NOT NULL DEFAULT 0,
    discovered_at     TIMESTAMP NOT NULL,
    UNIQUE(subscription_id, url)
)`,
		`CREATE TABLE IF NOT EXISTS auth_sessions (
    provider      TEXT PRIMARY KEY,
    secret_digest TEXT NOT NULL,
    expires_at    TIMESTAMP,
    updated_at    TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS coverage_daily (
    date           TEXT PRIMARY KEY,
    total_subs     INTEGER NOT NULL DEFAULT 0,
    success_subs   INTEGER NOT NULL DEFAULT 0,
    delayed_subs   INTEGER NOT NULL DEFAULT 0,
    fail_subs      INTEGER NOT NULL DEFAULT 0,
    coverage_ratio REAL NOT NULL DEFAULT 0,
    detail_json    TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_subscription ON articles(subscription_id)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_attempts_candidate
    ON fetch_attempts(subscription_id, provider, source_url, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_article_refs_subscription
    ON article_refs(subscription_id, discovered_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_run_items_run ON sync_run_items(sync_run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_discovery_runs_run ON discovery_runs(sync_run_id)`,
	}

	for _, stmt := range statements {
		if _, err := database.Exec(stmt); err != nil {
			return fmt.Errorf("MigrateUp: %w", err)
		}
	}
	return nil
}
