package entities

import (
	"strings"
	"time"

	"citymemory/domain/core/valueobjects"
	"citymemory/domain/events"
	pkgerrors "citymemory/pkg/errors"
)

// User is an account that owns memories and reacts to others
type User struct {
	id           string
	username     string
	passwordHash string
	email        string
	registeredAt time.Time
	lastLogin    *time.Time

	events []events.DomainEvent
}

// NewUser creates an account around an already hashed password
func NewUser(username, passwordHash, email string, now time.Time) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, pkgerrors.NewValidationError("username is required")
	}
	if passwordHash == "" {
		return nil, pkgerrors.NewValidationError("password hash is required")
	}
	u := &User{
		id:           valueobjects.NewID(),
		username:     username,
		passwordHash: passwordHash,
		email:        strings.TrimSpace(email),
		registeredAt: now.UTC(),
	}
	u.events = append(u.events, events.NewUserRegistered(u.id, u.username, now))
	return u, nil
}

// ReconstructUser rebuilds a user from stored data
func ReconstructUser(id, username, passwordHash, email string, registeredAt time.Time, lastLogin *time.Time) *User {
	return &User{
		id:           id,
		username:     username,
		passwordHash: passwordHash,
		email:        email,
		registeredAt: registeredAt,
		lastLogin:    lastLogin,
	}
}

func (u *User) ID() string              { return u.id }
func (u *User) Username() string        { return u.username }
func (u *User) PasswordHash() string    { return u.passwordHash }
func (u *User) Email() string           { return u.email }
func (u *User) RegisteredAt() time.Time { return u.registeredAt }
func (u *User) LastLogin() *time.Time   { return u.lastLogin }

// RecordLogin stamps a successful login
func (u *User) RecordLogin(now time.Time) {
	t := now.UTC()
	u.lastLogin = &t
}

// GetUncommittedEvents returns events raised since the last commit
func (u *User) GetUncommittedEvents() []events.DomainEvent {
	return u.events
}

// MarkEventsAsCommitted clears raised events
func (u *User) MarkEventsAsCommitted() {
	u.events = nil
}

// Identity is the verified requester carried through a request. It comes
// from the session token and is trusted without re-reading the user store.
type Identity struct {
	UserID   string
	Username string
	Email    string
}

// IsZero reports whether no user is attached
func (i *Identity) IsZero() bool {
	return i == nil || i.UserID == ""
}
