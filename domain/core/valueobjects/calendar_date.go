package valueobjects

import (
	"fmt"
	"strings"
	"time"

	pkgerrors "citymemory/pkg/errors"
)

// DateLayout is the wire format of a memory date
const DateLayout = "2006-01-02"

// CalendarDate is the user supplied day a memory happened on. It is not
// related to the creation time of the record.
type CalendarDate struct {
	value string
}

// ParseCalendarDate validates a YYYY-MM-DD date. A full RFC3339 timestamp is
// accepted and truncated to its date part.
func ParseCalendarDate(s string) (CalendarDate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CalendarDate{}, pkgerrors.NewValidationError("date is required")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return CalendarDate{value: t.Format(DateLayout)}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return CalendarDate{value: t.Format(DateLayout)}, nil
	}
	return CalendarDate{}, pkgerrors.NewValidationError(fmt.Sprintf("date must use the YYYY-MM-DD format, got '%s'", s))
}

// ReconstructCalendarDate restores a stored date
func ReconstructCalendarDate(s string) CalendarDate {
	return CalendarDate{value: s}
}

// String returns the YYYY-MM-DD form
func (d CalendarDate) String() string { return d.value }

// Month returns the YYYY-MM bucket used by the stats view
func (d CalendarDate) Month() string {
	if len(d.value) < 7 {
		return d.value
	}
	return d.value[:7]
}

// IsZero reports whether the date is unset
func (d CalendarDate) IsZero() bool { return d.value == "" }

// Compare orders dates lexically, which matches chronological order for the
// fixed-width layout.
func (d CalendarDate) Compare(other CalendarDate) int {
	return strings.Compare(d.value, other.value)
}
