package geocode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/observability"
)

// --- mock provider ---

type mockGeocoder struct {
	mu        sync.Mutex
	result    domain.RawPlace
	err       error
	calls     atomic.Int64
	callTimes []time.Time
	block     chan struct{} // when set, lookups wait here before returning
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.RawPlace, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.callTimes = append(m.callTimes, time.Now())
	block := m.block
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(g domain.Geocoder, interval time.Duration) *Resolver {
	return NewResolver(g, interval, discardLogger(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestResolve_CachesByCell(t *testing.T) {
	geo := &mockGeocoder{result: domain.RawPlace{Name: "Zilker Park", City: "Austin", State: "TX"}}
	r := newResolver(geo, time.Millisecond)

	// Two coordinates inside the same ~11m cell.
	p1, err := r.Resolve(context.Background(), domain.Coordinate{Lat: 30.26721, Lon: -97.74312})
	require.NoError(t, err)
	p2, err := r.Resolve(context.Background(), domain.Coordinate{Lat: 30.26719, Lon: -97.74308})
	require.NoError(t, err)

	assert.Equal(t, "Zilker Park", p1.Name)
	assert.Equal(t, p1, p2)
	assert.Equal(t, int64(1), geo.calls.Load(), "same cell must issue exactly one lookup")
}

func TestResolve_ConcurrentSameKey_SingleLookup(t *testing.T) {
	geo := &mockGeocoder{
		result: domain.RawPlace{Name: "Zilker Park"},
		block:  make(chan struct{}),
	}
	r := newResolver(geo, time.Millisecond)

	const n = 25
	coord := domain.Coordinate{Lat: 30.2672, Lon: -97.7431}

	var wg sync.WaitGroup
	results := make([]domain.Place, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), coord)
		}(i)
	}

	// Let the callers pile onto the in-flight lookup, then release it.
	assert.Eventually(t, func() bool { return geo.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)
	close(geo.block)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Zilker Park", results[i].Name)
	}
	assert.Equal(t, int64(1), geo.calls.Load(), "concurrent same-key callers must share one lookup")
}

func TestResolve_DifferentKeys_RateLimited(t *testing.T) {
	geo := &mockGeocoder{result: domain.RawPlace{Name: "Somewhere"}}
	interval := 50 * time.Millisecond
	r := newResolver(geo, interval)

	_, err := r.Resolve(context.Background(), domain.Coordinate{Lat: 30.0, Lon: -97.0})
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), domain.Coordinate{Lat: 31.0, Lon: -98.0})
	require.NoError(t, err)

	require.Equal(t, int64(2), geo.calls.Load())
	gap := geo.callTimes[1].Sub(geo.callTimes[0])
	// Small tolerance: the first dispatch time is recorded slightly after
	// its limiter grant.
	assert.GreaterOrEqual(t, gap, interval-5*time.Millisecond,
		"lookup dispatches must be spaced by the minimum interval")
}

func TestResolve_CachedKey_NoRateLimitDelay(t *testing.T) {
	geo := &mockGeocoder{result: domain.RawPlace{Name: "Somewhere"}}
	r := newResolver(geo, time.Second)

	coord := domain.Coordinate{Lat: 30.0, Lon: -97.0}
	_, err := r.Resolve(context.Background(), coord)
	require.NoError(t, err)

	start := time.Now()
	_, err = r.Resolve(context.Background(), coord)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 100*time.Millisecond, "cache hits must not wait on the limiter")
	assert.Equal(t, int64(1), geo.calls.Load())
}

func TestResolve_FailureNotCached(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("provider down")}
	r := newResolver(geo, time.Millisecond)

	coord := domain.Coordinate{Lat: 30.0, Lon: -97.0}
	_, err := r.Resolve(context.Background(), coord)
	require.Error(t, err)
	assert.Zero(t, r.CacheSize())

	// Provider recovers; the next call retries instead of replaying the error.
	geo.mu.Lock()
	geo.err = nil
	geo.result = domain.RawPlace{Name: "Recovered"}
	geo.mu.Unlock()

	place, err := r.Resolve(context.Background(), coord)
	require.NoError(t, err)
	assert.Equal(t, "Recovered", place.Name)
	assert.Equal(t, int64(2), geo.calls.Load())
}

func TestResolve_EmptyResultIsTerminal(t *testing.T) {
	geo := &mockGeocoder{} // zero RawPlace, nil error: provider "no result"
	r := newResolver(geo, time.Millisecond)

	coord := domain.Coordinate{Lat: 30.0, Lon: -97.0}
	place, err := r.Resolve(context.Background(), coord)
	require.NoError(t, err)
	assert.Equal(t, domain.Place{}, place)

	_, err = r.Resolve(context.Background(), coord)
	require.NoError(t, err)
	assert.Equal(t, int64(1), geo.calls.Load(), "empty results are cached, never re-queried")
}

func TestResolve_ClearCacheForcesLookup(t *testing.T) {
	geo := &mockGeocoder{result: domain.RawPlace{Name: "Somewhere"}}
	r := newResolver(geo, time.Millisecond)

	coord := domain.Coordinate{Lat: 30.0, Lon: -97.0}
	_, err := r.Resolve(context.Background(), coord)
	require.NoError(t, err)
	require.Equal(t, 1, r.CacheSize())

	r.ClearCache()
	assert.Zero(t, r.CacheSize())

	_, err = r.Resolve(context.Background(), coord)
	require.NoError(t, err)
	assert.Equal(t, int64(2), geo.calls.Load())
}

func TestPlaceCache_Basics(t *testing.T) {
	c := newPlaceCache()

	_, ok := c.get("missing")
	assert.False(t, ok)

	c.put("a", domain.Place{Name: "A"})
	c.put("a", domain.Place{Name: "A2"}) // overwrite is idempotent

	p, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", p.Name)
	assert.Equal(t, 1, c.len())

	c.clear()
	assert.Zero(t, c.len())
}
