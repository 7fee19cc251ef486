package domain

import "context"

// Geocoder converts coordinates to place details via an external provider.
// An empty RawPlace with a nil error means the provider had no result for
// the coordinate, which is a cacheable outcome.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (RawPlace, error)
}
