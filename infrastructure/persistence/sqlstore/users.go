package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/samber/lo"

	"citymemory/application/ports"
	"citymemory/domain/core/entities"
)

// UserRepository stores accounts in the users table
type UserRepository struct {
	db *sql.DB
	d  Dialect
}

var _ ports.UserRepository = (*UserRepository)(nil)

const userColumns = `id, username, password_hash, email, registered_at, last_login`

// Create inserts a user; a taken username yields ports.ErrAlreadyExists
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	_, err := r.db.ExecContext(ctx, r.d.Rebind(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		user.ID(), user.Username(), user.PasswordHash(), user.Email(), user.RegisteredAt().UTC(), nullTime(user.LastLogin()))
	return classify("create user", err)
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	user, err := scanUser(row)
	return user, classify("get user", err)
}

// GetByUsername retrieves a user by exact username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	user, err := scanUser(row)
	return user, classify("get user by username", err)
}

// UpdateLastLogin stamps a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`UPDATE users SET last_login = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return classify("update last login", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update last login: %w", ports.ErrNotFound)
	}
	return nil
}

// GetUsernames resolves ids to usernames in batches
func (r *UserRepository) GetUsernames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, batch := range lo.Chunk(ids, maxInArgs) {
		rows, err := r.db.QueryContext(ctx,
			r.d.Rebind(`SELECT id, username FROM users WHERE id IN (`+placeholders(len(batch))+`)`),
			toArgs(batch)...)
		if err != nil {
			return nil, classify("get usernames", err)
		}
		for rows.Next() {
			var id, username string
			if err := rows.Scan(&id, &username); err != nil {
				rows.Close()
				return nil, classify("scan username", err)
			}
			out[id] = username
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, classify("get usernames", err)
		}
	}
	return out, nil
}

func scanUser(row *sql.Row) (*entities.User, error) {
	var (
		id, username, hash, email string
		registeredAt              time.Time
		lastLogin                 sql.NullTime
	)
	if err := row.Scan(&id, &username, &hash, &email, &registeredAt, &lastLogin); err != nil {
		return nil, err
	}
	var last *time.Time
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		last = &t
	}
	return entities.ReconstructUser(id, username, hash, email, registeredAt.UTC(), last), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
