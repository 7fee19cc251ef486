package domain

import (
	"time"

	"github.com/google/uuid"
)

// Visit is a recorded stay at one location. DepartedAt nil means the visit
// is still open; at most one open visit exists at any time.
type Visit struct {
	ID         string     `json:"id"`
	Coordinate Coordinate `json:"coordinate"`
	ArrivedAt  time.Time  `json:"arrived_at"`
	DepartedAt *time.Time `json:"departed_at,omitempty"`

	// Geocoding enrichment. GeocodingCompleted true means resolution was
	// attempted (successfully or not) and will not be retried automatically.
	PlaceName          string `json:"place_name,omitempty"`
	Address            string `json:"address,omitempty"`
	GeocodingCompleted bool   `json:"geocoding_completed"`

	Notes string `json:"notes,omitempty"`
}

// NewVisit creates an open visit at the given coordinate and arrival time.
func NewVisit(c Coordinate, arrivedAt time.Time) Visit {
	return Visit{
		ID:         uuid.NewString(),
		Coordinate: c,
		ArrivedAt:  arrivedAt,
	}
}

// Open reports whether the visit has no departure time yet.
func (v Visit) Open() bool {
	return v.DepartedAt == nil
}

// Duration is the length of the stay, or zero while the visit is open.
func (v Visit) Duration() time.Duration {
	if v.DepartedAt == nil {
		return 0
	}
	return v.DepartedAt.Sub(v.ArrivedAt)
}

// LocationPoint is one accepted fix, recorded only while continuous
// tracking is active. Immutable once created.
type LocationPoint struct {
	ID         string     `json:"id"`
	Coordinate Coordinate `json:"coordinate"`
	Timestamp  time.Time  `json:"timestamp"`
	Altitude   float64    `json:"altitude,omitempty"`
	Speed      float64    `json:"speed,omitempty"`
	Accuracy   float64    `json:"accuracy"`
}

// NewLocationPoint creates a LocationPoint from an accepted fix.
func NewLocationPoint(f Fix) LocationPoint {
	return LocationPoint{
		ID:         uuid.NewString(),
		Coordinate: f.Coordinate,
		Timestamp:  f.Timestamp,
		Altitude:   f.Altitude,
		Speed:      f.Speed,
		Accuracy:   f.Accuracy,
	}
}
