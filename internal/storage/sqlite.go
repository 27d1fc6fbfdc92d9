package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tags (
  guild_id      TEXT NOT NULL,
  name          TEXT NOT NULL,
  content       TEXT NOT NULL,
  owner_id      TEXT NOT NULL,
  last_modified TEXT NOT NULL,
  PRIMARY KEY (guild_id, name)
);`,
		`CREATE TABLE IF NOT EXISTS users (
  user_id       TEXT PRIMARY KEY,
  xp            INTEGER NOT NULL DEFAULT 0,
  rep           INTEGER NOT NULL DEFAULT 0,
  currency      INTEGER NOT NULL DEFAULT 200,
  last_modified TEXT
);`,
		`CREATE TABLE IF NOT EXISTS settings (
  guild_id TEXT NOT NULL,
  name     TEXT NOT NULL,
  value    TEXT NOT NULL,
  target   TEXT NOT NULL DEFAULT '',
  kind     TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (guild_id, name, target, kind)
);`,
		`CREATE TABLE IF NOT EXISTS stocks (
  guild_id   TEXT NOT NULL,
  channel_id TEXT NOT NULL,
  amount     INTEGER NOT NULL,
  price      REAL NOT NULL,
  PRIMARY KEY (guild_id, channel_id)
);`,
		`CREATE TABLE IF NOT EXISTS user_stocks (
  user_id    TEXT NOT NULL,
  guild_id   TEXT NOT NULL,
  channel_id TEXT NOT NULL,
  amount     INTEGER NOT NULL,
  PRIMARY KEY (user_id, guild_id, channel_id)
);`,
		`CREATE INDEX IF NOT EXISTS tags_guild_id_idx ON tags(guild_id);`,
		`CREATE INDEX IF NOT EXISTS settings_guild_id_idx ON settings(guild_id);`,
		`CREATE INDEX IF NOT EXISTS user_stocks_guild_id_idx ON user_stocks(guild_id, channel_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
