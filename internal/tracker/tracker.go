// Package tracker contains the visit-tracking state machine and the
// permission-gated tracking-mode controller.
package tracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/observability"
)

// ModeSource reports the current tracking mode. Implemented by ModeController.
type ModeSource interface {
	Mode() Mode
}

// VisitTracker consumes visit and fix events and maintains the current-visit
// state. All mutable state is guarded by one mutex; sensor callbacks and
// geocoding completions are serialized through it, so no two state
// mutations interleave. The only suspension point outside the lock is the
// provider lookup itself, which runs in its own goroutine and re-enters
// through resolvePlace.
type VisitTracker struct {
	mu      sync.Mutex
	current *domain.Visit

	store     VisitStore
	resolver  PlaceResolver
	publisher Publisher
	modes     ModeSource
	logger    *slog.Logger
	metrics   *observability.Metrics

	maxAccuracy float64 // meters; fixes above this are discarded
}

// NewVisitTracker creates a tracker. resolver and publisher may be nil, in
// which case visits stay unresolved and no updates are published.
func NewVisitTracker(store VisitStore, resolver PlaceResolver, publisher Publisher, modes ModeSource, maxAccuracy float64, logger *slog.Logger, metrics *observability.Metrics) *VisitTracker {
	return &VisitTracker{
		store:       store,
		resolver:    resolver,
		publisher:   publisher,
		modes:       modes,
		logger:      logger,
		metrics:     metrics,
		maxAccuracy: maxAccuracy,
	}
}

// HandleVisit processes one visit event from the sensor source. Events with
// a departure time close the matching open visit; events without one open a
// new visit and kick off asynchronous geocoding.
func (t *VisitTracker) HandleVisit(ctx context.Context, ev domain.VisitEvent) {
	if ev.HasDeparture() {
		t.endVisit(ctx, ev)
		return
	}
	t.beginVisit(ctx, ev)
}

func (t *VisitTracker) beginVisit(ctx context.Context, ev domain.VisitEvent) {
	// An unknown arrival time is the device's "low confidence" sentinel;
	// such events never create a visit.
	if !ev.HasArrival() {
		t.logger.Debug("ignoring visit event with unknown arrival", "coordinate", ev.Coordinate.Key())
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, err := t.openVisitAtLocked(ctx, ev.Coordinate); err == nil {
		// An open visit at this coordinate already exists (possibly restored
		// from the store after a restart); keep it instead of duplicating.
		t.current = &existing
		return
	}

	// A new arrival implies the previous stay is over; close it at the new
	// arrival time to preserve the single-open-visit invariant. The store is
	// consulted too, so an open visit left behind by a restart is closed the
	// same way.
	if prev, err := t.anyOpenVisitLocked(ctx); err == nil {
		departed := ev.ArrivedAt
		prev.DepartedAt = &departed
		t.persist(ctx, prev)
		t.publish(ctx, VisitUpdate{Kind: UpdateEnded, Visit: prev})
		t.metrics.VisitsEnded.Inc()
	}

	v := domain.NewVisit(ev.Coordinate, ev.ArrivedAt)
	t.current = &v
	t.persist(ctx, v)
	t.publish(ctx, VisitUpdate{Kind: UpdateCreated, Visit: v})
	t.metrics.VisitsStarted.Inc()

	t.logger.Info("visit started", "visit_id", v.ID, "coordinate", v.Coordinate.Key())

	if t.resolver != nil {
		// Resolution is decoupled from visit creation: it may fail or
		// outlive a tracking disable, and the visit stays valid either way.
		go t.resolvePlace(context.WithoutCancel(ctx), v.ID, v.Coordinate)
	}
}

func (t *VisitTracker) endVisit(ctx context.Context, ev domain.VisitEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.openVisitAtLocked(ctx, ev.Coordinate)
	if err != nil {
		// No matching open visit; departures are best-effort, not errors.
		t.logger.Debug("unmatched departure", "coordinate", ev.Coordinate.Key())
		return
	}

	departed := ev.DepartedAt
	v.DepartedAt = &departed
	t.persist(ctx, v)
	t.publish(ctx, VisitUpdate{Kind: UpdateEnded, Visit: v})
	t.metrics.VisitsEnded.Inc()

	if t.current != nil && t.current.ID == v.ID {
		t.current = nil
	}

	t.logger.Info("visit ended",
		"visit_id", v.ID,
		"coordinate", v.Coordinate.Key(),
		"duration", v.Duration(),
	)
}

// openVisitAtLocked finds the open visit at the exact coordinate, checking
// the in-memory current visit before the store. Callers hold t.mu.
func (t *VisitTracker) openVisitAtLocked(ctx context.Context, c domain.Coordinate) (domain.Visit, error) {
	if t.current != nil && t.current.Coordinate == c {
		return *t.current, nil
	}
	return t.store.OpenVisitAt(ctx, c)
}

// anyOpenVisitLocked finds the open visit regardless of coordinate. Callers
// hold t.mu.
func (t *VisitTracker) anyOpenVisitLocked(ctx context.Context) (domain.Visit, error) {
	if t.current != nil {
		return *t.current, nil
	}
	return t.store.OpenVisit(ctx)
}

// HandleFixes records fixes as location points. A fix is accepted only
// while continuous tracking is active and its horizontal accuracy is within
// the configured threshold. Fixes never affect visit state.
func (t *VisitTracker) HandleFixes(ctx context.Context, fixes []domain.Fix) {
	continuous := t.modes != nil && t.modes.Mode() == ModeContinuous

	for _, f := range fixes {
		if !continuous || f.Accuracy > t.maxAccuracy || f.Accuracy < 0 {
			t.metrics.PointsRejected.Inc()
			continue
		}
		p := domain.NewLocationPoint(f)
		if err := t.store.CreateLocationPoint(ctx, p); err != nil {
			t.logger.Warn("create location point failed", "error", err)
			continue
		}
		t.metrics.PointsRecorded.Inc()
	}
}

// resolvePlace resolves the visit's coordinate and attaches the result.
// Success and provider failure both mark geocoding as completed; only a
// manual retry resolves again.
func (t *VisitTracker) resolvePlace(ctx context.Context, visitID string, c domain.Coordinate) {
	place, err := t.resolver.Resolve(ctx, c)

	t.mu.Lock()
	defer t.mu.Unlock()

	v, getErr := t.visitByIDLocked(ctx, visitID)
	if getErr != nil {
		t.logger.Warn("visit gone before geocoding completed", "visit_id", visitID, "error", getErr)
		return
	}

	if err != nil {
		t.logger.Warn("geocoding failed, marking attempted", "visit_id", visitID, "error", err)
	} else {
		v.PlaceName = place.Name
		v.Address = place.Address
	}
	v.GeocodingCompleted = true

	t.persist(ctx, v)
	if t.current != nil && t.current.ID == v.ID {
		t.current = &v
	}
	if err == nil {
		t.publish(ctx, VisitUpdate{Kind: UpdateResolved, Visit: v})
	}
}

// RetryGeocoding clears the completed flag and re-resolves the visit's
// place. This is the only recovery path after a lookup failure.
func (t *VisitTracker) RetryGeocoding(ctx context.Context, visitID string) error {
	if t.resolver == nil {
		return ErrGeocodingDisabled
	}

	t.mu.Lock()
	v, err := t.visitByIDLocked(ctx, visitID)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	v.GeocodingCompleted = false
	t.persist(ctx, v)
	if t.current != nil && t.current.ID == v.ID {
		t.current = &v
	}
	t.mu.Unlock()

	go t.resolvePlace(context.WithoutCancel(ctx), v.ID, v.Coordinate)
	return nil
}

// CurrentVisit returns the open visit, if any.
func (t *VisitTracker) CurrentVisit() (domain.Visit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return domain.Visit{}, false
	}
	return *t.current, true
}

// DeleteAllData purges all persisted visits and points and clears the
// place cache.
func (t *VisitTracker) DeleteAllData(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.DeleteAll(ctx); err != nil {
		return err
	}
	t.current = nil
	if t.resolver != nil {
		t.resolver.ClearCache()
	}
	t.logger.Info("all visit data deleted")
	return nil
}

func (t *VisitTracker) visitByIDLocked(ctx context.Context, id string) (domain.Visit, error) {
	if t.current != nil && t.current.ID == id {
		return *t.current, nil
	}
	return t.store.GetVisit(ctx, id)
}

// persist upserts best-effort: a store failure is logged and the in-memory
// transition stands.
func (t *VisitTracker) persist(ctx context.Context, v domain.Visit) {
	if err := t.store.UpsertVisit(ctx, v); err != nil {
		t.logger.Warn("persist visit failed", "visit_id", v.ID, "error", err)
	}
}

func (t *VisitTracker) publish(ctx context.Context, update VisitUpdate) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(ctx, update); err != nil {
		t.logger.Warn("publish visit update failed", "visit_id", update.Visit.ID, "error", err)
		return
	}
	t.metrics.UpdatesOut.Inc()
}
