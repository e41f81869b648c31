package entities

import (
	"time"

	"citymemory/domain/core/valueobjects"
	"citymemory/domain/events"
	pkgerrors "citymemory/pkg/errors"
)

// Content holds the owner-editable fields of a memory. Location and
// ownership are deliberately absent: they are fixed at creation.
type Content struct {
	Title       string
	Description string
	Theme       valueobjects.Theme
	Emotion     valueobjects.Emotion
	Date        valueobjects.CalendarDate
	Privacy     valueobjects.Privacy
	Images      valueobjects.Images
}

// Memory is a single geotagged diary entry owned by one user
type Memory struct {
	id          string
	ownerID     string
	content     Content
	coordinates valueobjects.Coordinates
	createdAt   time.Time
	updatedAt   time.Time

	events []events.DomainEvent
}

// NewMemory creates a memory owned by ownerID
func NewMemory(ownerID string, content Content, coordinates valueobjects.Coordinates, now time.Time) (*Memory, error) {
	return NewImportedMemory(ownerID, content, coordinates, now, now)
}

// NewImportedMemory creates a memory that keeps the creation time recorded
// in an export file.
func NewImportedMemory(ownerID string, content Content, coordinates valueobjects.Coordinates, createdAt, now time.Time) (*Memory, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("owner cannot be empty")
	}
	if content.Title == "" {
		return nil, pkgerrors.NewValidationError("title is required")
	}
	if createdAt.IsZero() || createdAt.After(now) {
		createdAt = now
	}

	m := &Memory{
		id:          valueobjects.NewID(),
		ownerID:     ownerID,
		content:     content,
		coordinates: coordinates,
		createdAt:   createdAt.UTC(),
		updatedAt:   now.UTC(),
		events:      []events.DomainEvent{},
	}
	m.addEvent(events.NewMemoryCreated(
		m.id,
		ownerID,
		string(content.Theme),
		string(content.Emotion),
		string(content.Privacy),
		now,
	))
	return m, nil
}

// ReconstructMemory rebuilds a memory from stored data
func ReconstructMemory(
	id string,
	ownerID string,
	content Content,
	coordinates valueobjects.Coordinates,
	createdAt time.Time,
	updatedAt time.Time,
) *Memory {
	return &Memory{
		id:          id,
		ownerID:     ownerID,
		content:     content,
		coordinates: coordinates,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		events:      []events.DomainEvent{},
	}
}

// ID returns the memory identifier
func (m *Memory) ID() string { return m.id }

// OwnerID returns the identifier of the owning user
func (m *Memory) OwnerID() string { return m.ownerID }

// Content returns the editable fields
func (m *Memory) Content() Content { return m.content }

// Coordinates returns the fixed location
func (m *Memory) Coordinates() valueobjects.Coordinates { return m.coordinates }

// Privacy returns the visibility level
func (m *Memory) Privacy() valueobjects.Privacy { return m.content.Privacy }

// Date returns the calendar date of the memory
func (m *Memory) Date() valueobjects.CalendarDate { return m.content.Date }

// CreatedAt returns when the record was created
func (m *Memory) CreatedAt() time.Time { return m.createdAt }

// UpdatedAt returns when the content was last changed
func (m *Memory) UpdatedAt() time.Time { return m.updatedAt }

// IsOwnedBy reports whether userID owns the memory
func (m *Memory) IsOwnedBy(userID string) bool {
	return userID != "" && m.ownerID == userID
}

// Revise replaces the editable content. Coordinates and owner are untouched.
func (m *Memory) Revise(content Content, now time.Time) error {
	if content.Title == "" {
		return pkgerrors.NewValidationError("title is required")
	}
	privacyChanged := m.content.Privacy != content.Privacy
	m.content = content
	m.updatedAt = now.UTC()
	m.addEvent(events.NewMemoryUpdated(m.id, m.ownerID, privacyChanged, now))
	return nil
}

// GetUncommittedEvents returns events raised since the last commit
func (m *Memory) GetUncommittedEvents() []events.DomainEvent {
	return m.events
}

// MarkEventsAsCommitted clears raised events
func (m *Memory) MarkEventsAsCommitted() {
	m.events = []events.DomainEvent{}
}

func (m *Memory) addEvent(event events.DomainEvent) {
	m.events = append(m.events, event)
}

// NewerThan orders memories by calendar date, then by creation time, newest
// first.
func (m *Memory) NewerThan(other *Memory) bool {
	if c := m.content.Date.Compare(other.content.Date); c != 0 {
		return c > 0
	}
	if !m.createdAt.Equal(other.createdAt) {
		return m.createdAt.After(other.createdAt)
	}
	return m.id > other.id
}
