// Package commands holds the validated inputs of the engine's operations
package commands

import "encoding/json"

// RegisterCommand creates an account
type RegisterCommand struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
}

// LoginCommand exchanges credentials for a session token
type LoginCommand struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// MemoryFields are the client-supplied attributes of a memory. Coordinates
// are pointers so that a missing axis can be told apart from zero.
type MemoryFields struct {
	Title       string   `json:"title"`
	Theme       string   `json:"theme"`
	Emotion     string   `json:"emotion"`
	Description string   `json:"description"`
	Longitude   *float64 `json:"longitude"`
	Latitude    *float64 `json:"latitude"`
	Date        string   `json:"date"`
	Privacy     string   `json:"privacy" validate:"omitempty,oneof=public private"`
	Images      []string `json:"images"`
}

// CreateMemoryCommand records a new memory for the requester
type CreateMemoryCommand struct {
	MemoryFields
}

// UpdateMemoryCommand revises an owned memory. Longitude and latitude are
// accepted but ignored.
type UpdateMemoryCommand struct {
	MemoryID string `json:"-" validate:"required"`
	MemoryFields
}

// List scopes
const (
	ScopeAll  = "all"
	ScopeMine = "my"
)

// ListMemoriesQuery selects and filters the memories a requester can see
type ListMemoriesQuery struct {
	Scope    string   `validate:"omitempty,oneof=all my mine"`
	Theme    string   `validate:"omitempty,max=32"`
	Emotions []string `validate:"max=16,dive,max=32"`
	From     string   `validate:"omitempty,datetime=2006-01-02"`
	To       string   `validate:"omitempty,datetime=2006-01-02"`
}

// ImportRecord is one memory in an export file. Fields are loosely typed so
// that a single malformed record can be skipped instead of failing the whole
// payload.
type ImportRecord struct {
	Title       string          `json:"title"`
	Theme       string          `json:"theme"`
	Emotion     string          `json:"emotion"`
	Description string          `json:"description"`
	Longitude   json.RawMessage `json:"longitude"`
	Latitude    json.RawMessage `json:"latitude"`
	Date        string          `json:"date"`
	Privacy     string          `json:"privacy"`
	Images      []string        `json:"images"`
	CreatedAt   string          `json:"createdAt"`
}

// ImportCommand carries the raw export envelope {"data": {"memories": [...]}}
type ImportCommand struct {
	Data struct {
		Memories json.RawMessage `json:"memories"`
	} `json:"data"`
}
