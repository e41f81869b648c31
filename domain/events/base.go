package events

import "time"

// SourceBackend identifies this service as the producer of published events
const SourceBackend = "citymemory.backend"

// Event types
const (
	TypeUserRegistered   = "user.registered"
	TypeMemoryCreated    = "memory.created"
	TypeMemoryUpdated    = "memory.updated"
	TypeMemoryDeleted    = "memory.deleted"
	TypeMemoryLiked      = "memory.liked"
	TypeMemoryUnliked    = "memory.unliked"
	TypeMemoriesImported = "memories.imported"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// UserRegistered is raised when a new account is created
type UserRegistered struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// NewUserRegistered creates a UserRegistered event
func NewUserRegistered(userID, username string, timestamp time.Time) UserRegistered {
	return UserRegistered{
		BaseEvent: newBase(userID, TypeUserRegistered, timestamp),
		UserID:    userID,
		Username:  username,
	}
}

// MemoryCreated is raised when a memory is recorded
type MemoryCreated struct {
	BaseEvent
	MemoryID string `json:"memory_id"`
	OwnerID  string `json:"owner_id"`
	Theme    string `json:"theme"`
	Emotion  string `json:"emotion"`
	Privacy  string `json:"privacy"`
}

// NewMemoryCreated creates a MemoryCreated event
func NewMemoryCreated(memoryID, ownerID, theme, emotion, privacy string, timestamp time.Time) MemoryCreated {
	return MemoryCreated{
		BaseEvent: newBase(memoryID, TypeMemoryCreated, timestamp),
		MemoryID:  memoryID,
		OwnerID:   ownerID,
		Theme:     theme,
		Emotion:   emotion,
		Privacy:   privacy,
	}
}

// MemoryUpdated is raised when the owner edits a memory's content
type MemoryUpdated struct {
	BaseEvent
	MemoryID       string `json:"memory_id"`
	OwnerID        string `json:"owner_id"`
	PrivacyChanged bool   `json:"privacy_changed"`
}

// NewMemoryUpdated creates a MemoryUpdated event
func NewMemoryUpdated(memoryID, ownerID string, privacyChanged bool, timestamp time.Time) MemoryUpdated {
	return MemoryUpdated{
		BaseEvent:      newBase(memoryID, TypeMemoryUpdated, timestamp),
		MemoryID:       memoryID,
		OwnerID:        ownerID,
		PrivacyChanged: privacyChanged,
	}
}

// MemoryDeleted is raised after a memory and its reactions are removed
type MemoryDeleted struct {
	BaseEvent
	MemoryID string `json:"memory_id"`
	OwnerID  string `json:"owner_id"`
}

// NewMemoryDeleted creates a MemoryDeleted event
func NewMemoryDeleted(memoryID, ownerID string, timestamp time.Time) MemoryDeleted {
	return MemoryDeleted{
		BaseEvent: newBase(memoryID, TypeMemoryDeleted, timestamp),
		MemoryID:  memoryID,
		OwnerID:   ownerID,
	}
}

// ReactionToggled is raised when a like is added or removed
type ReactionToggled struct {
	BaseEvent
	MemoryID  string `json:"memory_id"`
	UserID    string `json:"user_id"`
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"like_count"`
}

// NewReactionToggled creates a memory.liked or memory.unliked event
func NewReactionToggled(memoryID, userID string, liked bool, likeCount int, timestamp time.Time) ReactionToggled {
	eventType := TypeMemoryUnliked
	if liked {
		eventType = TypeMemoryLiked
	}
	return ReactionToggled{
		BaseEvent: newBase(memoryID, eventType, timestamp),
		MemoryID:  memoryID,
		UserID:    userID,
		Liked:     liked,
		LikeCount: likeCount,
	}
}

// MemoriesImported is raised after an import replaced a user's memory set
type MemoriesImported struct {
	BaseEvent
	OwnerID  string `json:"owner_id"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

// NewMemoriesImported creates a MemoriesImported event
func NewMemoriesImported(ownerID string, imported, skipped int, timestamp time.Time) MemoriesImported {
	return MemoriesImported{
		BaseEvent: newBase(ownerID, TypeMemoriesImported, timestamp),
		OwnerID:   ownerID,
		Imported:  imported,
		Skipped:   skipped,
	}
}
