package store

import (
	"context"
	"fmt"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var commonSchema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id          TEXT PRIMARY KEY,
		author_id   TEXT NOT NULL,
		title       TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		media_ref   TEXT NOT NULL,
		is_external BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  BIGINT NOT NULL,
		share_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS posts_feed_idx ON posts (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS posts_media_idx ON posts (media_ref)`,
	`CREATE TABLE IF NOT EXISTS post_likes (
		post_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (post_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS post_shares (
		post_id    TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (post_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		role         TEXT NOT NULL DEFAULT '',
		videos_count INTEGER NOT NULL DEFAULT 0,
		lost_videos  INTEGER NOT NULL DEFAULT 0
	)`,
}

// score_ledger needs an ordering column; the autoincrement syntax differs.
var ledgerSchema = map[string]string{
	DriverPostgres: `CREATE TABLE IF NOT EXISTS score_ledger (
		seq        BIGSERIAL PRIMARY KEY,
		user_id    TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		delta      INTEGER NOT NULL,
		reason     TEXT NOT NULL DEFAULT ''
	)`,
	DriverSQLite: `CREATE TABLE IF NOT EXISTS score_ledger (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		delta      INTEGER NOT NULL,
		reason     TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate creates the tables and indexes if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	stmts := append([]string{}, commonSchema...)
	stmts = append(stmts,
		ledgerSchema[r.driver],
		`CREATE INDEX IF NOT EXISTS score_ledger_user_idx ON score_ledger (user_id, seq)`,
	)
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
