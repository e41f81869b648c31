package ports

import (
	"context"
	"errors"
	"time"

	"citymemory/domain/core/entities"
	"citymemory/domain/events"
)

// Store adapters return these sentinels, wrapped with context, so the
// engine can tell business outcomes apart from infrastructure failures.
var (
	// ErrNotFound means the addressed record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists means a uniqueness constraint rejected the write
	ErrAlreadyExists = errors.New("record already exists")
	// ErrReferenceMissing means a write referenced a record that is gone
	ErrReferenceMissing = errors.New("referenced record missing")
)

// UserRepository persists accounts
type UserRepository interface {
	// Create stores a new user; ErrAlreadyExists when the username is taken
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user; ErrNotFound when absent
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByUsername retrieves a user by login name; ErrNotFound when absent
	GetByUsername(ctx context.Context, username string) (*entities.User, error)

	// UpdateLastLogin stamps a successful login
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// GetUsernames resolves user ids to usernames. Unknown ids are omitted.
	GetUsernames(ctx context.Context, ids []string) (map[string]string, error)
}

// MemoryRepository persists memories
type MemoryRepository interface {
	// Create stores a new memory
	Create(ctx context.Context, memory *entities.Memory) error

	// GetByID retrieves a memory; ErrNotFound when absent
	GetByID(ctx context.Context, id string) (*entities.Memory, error)

	// Update overwrites the editable content; ErrNotFound when absent
	Update(ctx context.Context, memory *entities.Memory) error

	// ListPublic returns every public memory
	ListPublic(ctx context.Context) ([]*entities.Memory, error)

	// ListByOwner returns every memory of one owner regardless of privacy
	ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memory, error)

	// DeleteWithReactions atomically removes a memory owned by ownerID and
	// every reaction on it; ErrNotFound when no such owned memory exists
	DeleteWithReactions(ctx context.Context, id, ownerID string) error

	// ReplaceForOwner atomically swaps the owner's whole memory set. Reactions
	// on the replaced memories and the owner's outgoing reactions go too.
	ReplaceForOwner(ctx context.Context, ownerID string, memories []*entities.Memory) error
}

// ReactionSummary is the per-request aggregate for one memory
type ReactionSummary struct {
	Count            int
	LikedByRequester bool
}

// ReactionRepository persists likes
type ReactionRepository interface {
	// Add inserts a like atomically. ErrAlreadyExists when the pair already
	// exists, ErrReferenceMissing when the memory is gone.
	Add(ctx context.Context, reaction entities.Reaction) error

	// Remove deletes a like and reports whether one existed
	Remove(ctx context.Context, memoryID, userID string) (bool, error)

	// Count returns the number of likes on a memory
	Count(ctx context.Context, memoryID string) (int, error)

	// Summaries returns counts and the requester's liked flag for each
	// memory. Memories without likes may be omitted.
	Summaries(ctx context.Context, memoryIDs []string, requesterID string) (map[string]ReactionSummary, error)
}

// StorageInfo describes the active backend for exports and stats
type StorageInfo struct {
	Type         string `json:"type"`
	IsPersistent bool   `json:"isPersistent"`
}

// Store bundles the three repositories of one backend
type Store interface {
	Users() UserRepository
	Memories() MemoryRepository
	Reactions() ReactionRepository

	// Ping checks connectivity for readiness checks
	Ping(ctx context.Context) error

	// Info describes the backend
	Info() StorageInfo

	Close() error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds; zero means no expiry
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}

// Metrics records engine operation outcomes
type Metrics interface {
	RecordOperation(ctx context.Context, operation string, duration time.Duration, err error)
}
