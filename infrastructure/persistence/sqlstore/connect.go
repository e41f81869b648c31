package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// validSyncModes lists the allowed values for the synchronous pragma.
var validSyncModes = map[string]bool{
	"OFF":    true,
	"NORMAL": true,
	"FULL":   true,
	"EXTRA":  true,
}

// SQLiteOptions configures an embedded database file
type SQLiteOptions struct {
	Path       string
	EnableWAL  bool
	SyncPragma string
	BusyWait   time.Duration
}

// OpenSQLite opens a SQLite database with foreign keys enforced and write
// transactions taking the lock up front.
func OpenSQLite(ctx context.Context, opts SQLiteOptions) (*sql.DB, error) {
	params := url.Values{}
	params.Add("_foreign_keys", "1")
	params.Add("_txlock", "immediate")

	busy := opts.BusyWait
	if busy <= 0 {
		busy = 5 * time.Second
	}
	params.Add("_busy_timeout", fmt.Sprintf("%d", busy.Milliseconds()))

	if opts.EnableWAL {
		params.Add("_journal_mode", "WAL")
	}

	if opts.SyncPragma != "" {
		ucSyncPragma := strings.ToUpper(opts.SyncPragma)
		if !validSyncModes[ucSyncPragma] {
			return nil, fmt.Errorf("invalid sync pragma value: %s. Must be one of OFF, NORMAL, FULL, EXTRA", opts.SyncPragma)
		}
		params.Add("_synchronous", ucSyncPragma)
	}

	dsn := opts.Path
	if strings.Contains(dsn, "?") {
		dsn += "&" + params.Encode()
	} else {
		dsn += "?" + params.Encode()
	}

	db, err := sql.Open(SQLite.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", opts.Path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database '%s': %w", opts.Path, err)
	}

	return db, nil
}

// PostgresOptions configures a PostgreSQL connection pool
type PostgresOptions struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
}

// OpenPostgres opens and pings a PostgreSQL pool
func OpenPostgres(ctx context.Context, opts PostgresOptions) (*sql.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}

	db, err := sql.Open(Postgres.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLife)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}
