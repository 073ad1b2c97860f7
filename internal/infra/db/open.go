// Package db opens the local database and applies the schema migration.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ConnectionConfig holds database connection pool configuration. SQLite gets
// a single writer connection; reads share it.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}
}

// Open opens the database named by dbURL and verifies the connection.
// Accepted forms: "sqlite:///relative/path.db", "sqlite:////absolute/path.db",
// "file:path.db?options" or a bare filesystem path. Parent directories of a
// SQLite file are created as needed.
func Open(dbURL string) (*sql.DB, error) {
	path, err := sqlitePath(dbURL)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("Open: create parent dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_loc=UTC", path)
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: sql.Open: %w", err)
	}

	cfg := DefaultConnectionConfig()
	database.SetMaxOpenConns(cfg.MaxOpenConns)
	database.SetMaxIdleConns(cfg.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}

	slog.Debug("database opened", slog.String("path", path))
	return database, nil
}

// sqlitePath extracts the filesystem path from a database URL.
func sqlitePath(dbURL string) (string, error) {
	raw := strings.TrimSpace(dbURL)
	if raw == "" {
		return "", fmt.Errorf("sqlitePath: empty database URL")
	}
	switch {
	case strings.HasPrefix(raw, "sqlite:///"):
		return strings.TrimPrefix(raw, "sqlite:///"), nil
	case strings.HasPrefix(raw, "sqlite://"):
		return strings.TrimPrefix(raw, "sqlite://"), nil
	case strings.HasPrefix(raw, "sqlite:"):
		return strings.TrimPrefix(raw, "sqlite:"), nil
	case strings.HasPrefix(raw, "file:"):
		trimmed := strings.TrimPrefix(raw, "file:")
		if idx := strings.IndexByte(trimmed, '?'); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		return trimmed, nil
	case strings.Contains(raw, "://"):
		return "", fmt.Errorf("sqlitePath: unsupported database URL scheme: %s", raw)
	}
	return raw, nil
}
