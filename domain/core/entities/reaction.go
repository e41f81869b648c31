package entities

import "time"

// Reaction is a like linking one user to one memory. At most one exists per
// (memory, user) pair; the store enforces it atomically.
type Reaction struct {
	MemoryID  string
	UserID    string
	CreatedAt time.Time
}

// NewReaction creates a like stamped with now
func NewReaction(memoryID, userID string, now time.Time) Reaction {
	return Reaction{
		MemoryID:  memoryID,
		UserID:    userID,
		CreatedAt: now.UTC(),
	}
}
