package domain

import (
	"context"
	"time"
)

// Envelope kinds produced by the device-side agent.
const (
	KindVisit      = "visit"
	KindFixes      = "fixes"
	KindPermission = "permission"
)

// PermissionStatus is the device location-permission state. It is a state
// value, not an error: an insufficient permission rejects a mode change and
// leaves the mode unchanged.
type PermissionStatus string

const (
	PermissionUnknown   PermissionStatus = "unknown"
	PermissionDenied    PermissionStatus = "denied"
	PermissionWhenInUse PermissionStatus = "when_in_use"
	PermissionAlways    PermissionStatus = "always"
)

// AllowsTracking reports whether the permission is sufficient to activate
// visit or continuous monitoring.
func (p PermissionStatus) AllowsTracking() bool {
	return p == PermissionWhenInUse || p == PermissionAlways
}

// VisitEvent is one stay record from the device. Zero timestamps are
// sentinels: a zero ArrivedAt means the arrival time is unknown and a zero
// DepartedAt means the device is still at the location.
type VisitEvent struct {
	Coordinate Coordinate `json:"coordinate"`
	ArrivedAt  time.Time  `json:"arrived_at,omitzero"`
	DepartedAt time.Time  `json:"departed_at,omitzero"`
}

// HasArrival reports whether the arrival time is known.
func (e VisitEvent) HasArrival() bool { return !e.ArrivedAt.IsZero() }

// HasDeparture reports whether the device has departed.
func (e VisitEvent) HasDeparture() bool { return !e.DepartedAt.IsZero() }

// Fix is one instantaneous position sample with accuracy metadata.
type Fix struct {
	Coordinate Coordinate `json:"coordinate"`
	Timestamp  time.Time  `json:"timestamp"`
	Altitude   float64    `json:"altitude,omitempty"`
	Speed      float64    `json:"speed,omitempty"`
	Accuracy   float64    `json:"accuracy"` // horizontal accuracy in meters
}

// SensorEnvelope wraps one sensor event on the wire. Exactly one of the
// payload fields is set, selected by Kind.
type SensorEnvelope struct {
	Kind       string           `json:"kind"`
	Time       time.Time        `json:"time,omitzero"`
	Visit      *VisitEvent      `json:"visit,omitempty"`
	Fixes      []Fix            `json:"fixes,omitempty"`
	Permission PermissionStatus `json:"permission,omitempty"`
}

// SensorMessage is an undecoded message from the source transport, with
// enough position info for logging and a Commit callback for offsets.
type SensorMessage struct {
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
