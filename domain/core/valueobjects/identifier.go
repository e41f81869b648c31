package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when an identifier is not a UUID
var ErrInvalidID = errors.New("identifier must be a valid UUID")

// NewID creates a new random identifier for users and memories
func NewID() string {
	return uuid.New().String()
}

// ParseID validates an externally supplied identifier. The canonical
// lowercase form is returned so lookups never miss on case.
func ParseID(id string) (string, error) {
	if id == "" {
		return "", errors.New("identifier cannot be empty")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}
