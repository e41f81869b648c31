package valueobjects

import (
	"fmt"
	"math"

	pkgerrors "citymemory/pkg/errors"
)

// Coordinates is the fixed location a memory is pinned to. It is set once at
// creation and never changes afterwards.
type Coordinates struct {
	longitude float64
	latitude  float64
}

// NewCoordinates validates ranges and rounds both axes to precision decimals
func NewCoordinates(longitude, latitude float64, precision int) (Coordinates, error) {
	if math.IsNaN(longitude) || math.IsInf(longitude, 0) || longitude < -180 || longitude > 180 {
		return Coordinates{}, pkgerrors.NewValidationError(fmt.Sprintf("longitude must be between -180 and 180, got %v", longitude))
	}
	if math.IsNaN(latitude) || math.IsInf(latitude, 0) || latitude < -90 || latitude > 90 {
		return Coordinates{}, pkgerrors.NewValidationError(fmt.Sprintf("latitude must be between -90 and 90, got %v", latitude))
	}
	return Coordinates{
		longitude: round(longitude, precision),
		latitude:  round(latitude, precision),
	}, nil
}

// ReconstructCoordinates restores stored coordinates without re-validation
func ReconstructCoordinates(longitude, latitude float64) Coordinates {
	return Coordinates{longitude: longitude, latitude: latitude}
}

// Longitude returns the longitude in degrees
func (c Coordinates) Longitude() float64 { return c.longitude }

// Latitude returns the latitude in degrees
func (c Coordinates) Latitude() float64 { return c.latitude }

// Equals compares two coordinate pairs
func (c Coordinates) Equals(other Coordinates) bool {
	return c.longitude == other.longitude && c.latitude == other.latitude
}

func round(v float64, precision int) float64 {
	scale := math.Pow10(precision)
	return math.Round(v*scale) / scale
}
