// Package geocode implements the reverse-geocoding resolver: an unbounded
// place cache, per-cell singleflight deduplication, and a process-wide rate
// limiter in front of the external provider.
package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/observability"
)

// Resolver turns coordinates into places. Cached cells are served without
// touching the limiter or the provider; concurrent requests for the same
// cell collapse into one provider lookup; lookups for any cell are spaced
// at least minInterval apart.
type Resolver struct {
	geocoder domain.Geocoder
	cache    *placeCache
	limiter  *rate.Limiter
	flight   singleflight.Group
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewResolver creates a Resolver around the given provider. minInterval is
// the minimum spacing between the start of any two provider lookups.
func NewResolver(g domain.Geocoder, minInterval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		geocoder: g,
		cache:    newPlaceCache(),
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
		logger:   logger,
		metrics:  metrics,
	}
}

// Resolve returns the place for the coordinate's grid cell. It fails only
// when the underlying provider fails; failures are not cached, so a later
// call retries. An empty provider result is cached and returned as an
// empty Place with no error.
func (r *Resolver) Resolve(ctx context.Context, coord domain.Coordinate) (domain.Place, error) {
	key := coord.CellKey()

	if place, ok := r.cache.get(key); ok {
		r.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return place, nil
	}
	r.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	// Later callers for the same cell attach to the in-flight lookup and
	// share its result. On error the flight is forgotten automatically, so
	// the next call starts fresh.
	v, err, _ := r.flight.Do(key, func() (any, error) {
		return r.lookup(ctx, key, coord)
	})
	if err != nil {
		return domain.Place{}, err
	}
	return v.(domain.Place), nil
}

// lookup runs as the singleflight leader: it re-checks the cache (a flight
// that completed between our cache miss and Do), waits for the shared rate
// limiter, queries the provider, and caches the outcome.
func (r *Resolver) lookup(ctx context.Context, key string, coord domain.Coordinate) (domain.Place, error) {
	if place, ok := r.cache.get(key); ok {
		return place, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return domain.Place{}, fmt.Errorf("rate limiter wait: %w", err)
	}

	start := time.Now()
	raw, err := r.geocoder.ReverseGeocode(ctx, coord.Lat, coord.Lon)
	r.metrics.GeocodeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		r.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Place{}, fmt.Errorf("reverse geocode %s: %w", key, err)
	}

	place := domain.PlaceFromRaw(raw)
	if place == (domain.Place{}) {
		r.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	} else {
		r.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}

	// "No result" is terminal: cache it so the cell is never re-queried.
	r.cache.put(key, place)

	r.logger.Debug("resolved place",
		"cell", key,
		"name", place.Name,
		"address", place.Address,
	)
	return place, nil
}

// ClearCache drops all cached places. Used by the data purge operation.
func (r *Resolver) ClearCache() {
	r.cache.clear()
	r.logger.Info("place cache cleared")
}

// CacheSize returns the number of cached cells.
func (r *Resolver) CacheSize() int {
	return r.cache.len()
}
