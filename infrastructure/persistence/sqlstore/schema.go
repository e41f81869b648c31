package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// TargetSchemaVersion is the highest schema version this build supports
	TargetSchemaVersion int64 = 1
	// SchemaComponent names the schema this package owns
	SchemaComponent = "citymemory"
)

const sqliteSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_versions (
	component  TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	applied_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	email         TEXT NOT NULL DEFAULT '',
	registered_at TIMESTAMP NOT NULL,
	last_login    TIMESTAMP NULL
);

CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL REFERENCES users(id),
	title       TEXT NOT NULL,
	theme       TEXT NOT NULL,
	emotion     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	longitude   REAL NOT NULL,
	latitude    REAL NOT NULL,
	memory_date TEXT NOT NULL,
	privacy     TEXT NOT NULL DEFAULT 'public',
	images      TEXT NOT NULL DEFAULT '[]',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id);
CREATE INDEX IF NOT EXISTS idx_memories_privacy ON memories(privacy);

CREATE TABLE IF NOT EXISTS reactions (
	memory_id  TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL REFERENCES users(id),
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (memory_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_reactions_user ON reactions(user_id);
`

const postgresSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_versions (
	component  TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	email         TEXT NOT NULL DEFAULT '',
	registered_at TIMESTAMPTZ NOT NULL,
	last_login    TIMESTAMPTZ NULL
);

CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL REFERENCES users(id),
	title       TEXT NOT NULL,
	theme       TEXT NOT NULL,
	emotion     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	longitude   DOUBLE PRECISION NOT NULL,
	latitude    DOUBLE PRECISION NOT NULL,
	memory_date TEXT NOT NULL,
	privacy     TEXT NOT NULL DEFAULT 'public',
	images      TEXT NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id);
CREATE INDEX IF NOT EXISTS idx_memories_privacy ON memories(privacy);

CREATE TABLE IF NOT EXISTS reactions (
	memory_id  TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (memory_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_reactions_user ON reactions(user_id);
`

// SchemaVersion returns the applied version, or 0 for a fresh database
func SchemaVersion(ctx context.Context, db *sql.DB, d Dialect) (int64, error) {
	exists, err := versionsTableExists(ctx, db, d)
	if err != nil || !exists {
		return 0, err
	}

	var version int64
	err = db.QueryRowContext(ctx, d.Rebind(`SELECT version FROM schema_versions WHERE component = ?`), SchemaComponent).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func versionsTableExists(ctx context.Context, db *sql.DB, d Dialect) (bool, error) {
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_versions'`
	if d.positional {
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'schema_versions'`
	}
	var n int
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return n > 0, nil
}

// Migrate brings the database up to TargetSchemaVersion. A database written
// by a newer build is refused rather than touched.
func Migrate(ctx context.Context, db *sql.DB, d Dialect, logger *zap.Logger) error {
	current, err := SchemaVersion(ctx, db, d)
	if err != nil {
		return err
	}

	switch {
	case current == TargetSchemaVersion:
		logger.Debug("Schema is up to date", zap.String("dialect", d.Name), zap.Int64("version", current))
		return nil
	case current > TargetSchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d; upgrade the application", current, TargetSchemaVersion)
	}

	logger.Info("Initializing schema",
		zap.String("dialect", d.Name),
		zap.Int64("from", current),
		zap.Int64("to", TargetSchemaVersion),
	)

	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, d.schema); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		_, err := tx.ExecContext(ctx, d.Rebind(`
INSERT INTO schema_versions (component, version, applied_at) VALUES (?, ?, ?)
ON CONFLICT (component) DO UPDATE SET version = excluded.version, applied_at = excluded.applied_at`),
			SchemaComponent, TargetSchemaVersion, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	})
}
