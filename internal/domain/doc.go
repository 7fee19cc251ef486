// Package domain models the visit-tracker's core data: coordinates, visits,
// location points, sensor events, and resolved places.
//
// # Sensor Event Conventions
//
// The device-side agent publishes three kinds of sensor events to the source
// topic, each wrapped in a [SensorEnvelope]:
//
//	"visit":      one stay record with arrival and departure timestamps
//	"fixes":      a batch of instantaneous position samples
//	"permission": a location-permission status change
//
// Visit events use timestamp sentinels inherited from the device API:
//
//	arrival   zero time → arrival time unknown (event is ignored)
//	departure zero time → still present (the visit is open)
//
// A visit event with a real departure time correlates to the open visit at
// the exact same coordinate. The device is assumed to report a stable
// coordinate for the duration of one physical visit, so begin/end matching
// is exact equality rather than a distance tolerance. This is a documented
// simplification; a device that drifts between arrival and departure will
// produce an unmatched departure, which is a no-op.
//
// # Coordinate Quantization
//
// Reverse-geocoding cache keys round each axis to 4 decimal places, an
// ~11 meter grid cell at the equator. Two raw coordinates inside the same
// cell share one cache entry and therefore one provider lookup. See
// [Coordinate.CellKey].
//
// # Geocoding Outcomes
//
// A resolved [Place] may have an empty name and address: a provider "no
// result" is a terminal, cacheable outcome and is never retried
// automatically. Provider errors, by contrast, are never cached; the visit
// is marked as attempted and only a manual retry resolves it again.
package domain
