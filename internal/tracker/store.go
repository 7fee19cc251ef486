package tracker

import (
	"context"
	"errors"

	"github.com/couchcryptid/visit-tracker/internal/domain"
)

// ErrVisitNotFound is returned by stores when no visit matches the query.
var ErrVisitNotFound = errors.New("visit not found")

// ErrGeocodingDisabled is returned by geocoding operations when the tracker
// runs without a resolver.
var ErrGeocodingDisabled = errors.New("geocoding is disabled")

// Settings are the persisted tracking flags, restored at startup.
type Settings struct {
	TrackingEnabled   bool `json:"tracking_enabled"`
	ContinuousEnabled bool `json:"continuous_enabled"`
}

// VisitStore is the injected persistence collaborator. The tracker owns
// visit and location-point lifecycles; the store owns schema and queries.
// A store failure is non-fatal: in-memory state is never rolled back
// because a save failed.
type VisitStore interface {
	UpsertVisit(ctx context.Context, v domain.Visit) error
	GetVisit(ctx context.Context, id string) (domain.Visit, error)
	// OpenVisitAt returns the open visit at the exact coordinate, or
	// ErrVisitNotFound.
	OpenVisitAt(ctx context.Context, c domain.Coordinate) (domain.Visit, error)
	// OpenVisit returns the open visit at any coordinate, or
	// ErrVisitNotFound. Used to close a stale open visit that outlived a
	// restart.
	OpenVisit(ctx context.Context) (domain.Visit, error)
	CreateLocationPoint(ctx context.Context, p domain.LocationPoint) error
	DeleteAll(ctx context.Context) error
	SaveSettings(ctx context.Context, s Settings) error
	LoadSettings(ctx context.Context) (Settings, error)
}

// Update kinds published to the sink stream.
const (
	UpdateCreated  = "created"
	UpdateEnded    = "ended"
	UpdateResolved = "resolved"
)

// VisitUpdate is one visit lifecycle record for downstream consumers.
type VisitUpdate struct {
	Kind  string       `json:"kind"`
	Visit domain.Visit `json:"visit"`
}

// Publisher emits visit lifecycle records. Implementations must be safe for
// concurrent use; publish failures are logged and never block tracking.
type Publisher interface {
	Publish(ctx context.Context, update VisitUpdate) error
}

// PlaceResolver is the geocoding collaborator. Resolve never receives a
// Visit, only a coordinate; the tracker attaches the result itself.
type PlaceResolver interface {
	Resolve(ctx context.Context, c domain.Coordinate) (domain.Place, error)
	ClearCache()
}
