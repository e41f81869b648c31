// Package sqlstore implements the repositories on SQLite and PostgreSQL
// through database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"citymemory/application/ports"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store bundles the SQL repositories over one connection pool
type Store struct {
	db        *sql.DB
	dialect   Dialect
	users     *UserRepository
	memories  *MemoryRepository
	reactions *ReactionRepository
	logger    *zap.Logger
}

var _ ports.Store = (*Store)(nil)

// NewStore wraps an open database. Call Migrate before first use.
func NewStore(db *sql.DB, dialect Dialect, logger *zap.Logger) *Store {
	return &Store{
		db:        db,
		dialect:   dialect,
		users:     &UserRepository{db: db, d: dialect},
		memories:  &MemoryRepository{db: db, d: dialect},
		reactions: &ReactionRepository{db: db, d: dialect},
		logger:    logger,
	}
}

// Migrate applies the schema for this store's dialect
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db, s.dialect, s.logger)
}

func (s *Store) Users() ports.UserRepository         { return s.users }
func (s *Store) Memories() ports.MemoryRepository   { return s.memories }
func (s *Store) Reactions() ports.ReactionRepository { return s.reactions }

// DB exposes the pool for administrative tooling
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Info describes the backend
func (s *Store) Info() ports.StorageInfo {
	return ports.StorageInfo{Type: s.dialect.Name, IsPersistent: true}
}

// Close releases the pool
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// maxInArgs bounds the ids bound into one IN (...) list
const maxInArgs = 500

func toArgs(ids []string, extra ...interface{}) []interface{} {
	args := make([]interface{}, 0, len(ids)+len(extra))
	args = append(args, extra...)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
