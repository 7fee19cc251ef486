package tracker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/visit-tracker/internal/adapter/memstore"
	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/observability"
	"github.com/couchcryptid/visit-tracker/internal/tracker"
)

// --- mock sensor controller ---

type recordingSensors struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingSensors) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingSensors) StartVisitMonitoring()   { r.record("start_visits") }
func (r *recordingSensors) StopVisitMonitoring()    { r.record("stop_visits") }
func (r *recordingSensors) StartContinuousUpdates() { r.record("start_continuous") }
func (r *recordingSensors) StopContinuousUpdates()  { r.record("stop_continuous") }
func (r *recordingSensors) RequestPermission()      { r.record("request_permission") }

func (r *recordingSensors) count(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

func newController(t *testing.T, sensors tracker.SensorController, autoOffHours float64, clock clockwork.Clock) *tracker.ModeController {
	t.Helper()
	return tracker.NewModeController(sensors, memstore.New(), autoOffHours, clock,
		discardLogger(), observability.NewMetricsForTesting())
}

func grant(c *tracker.ModeController) {
	c.HandlePermissionChange(context.Background(), domain.PermissionAlways)
}

// --- tests ---

func TestEnableTracking_WithoutPermission_RequestsAndStaysDisabled(t *testing.T) {
	sensors := &recordingSensors{}
	c := newController(t, sensors, 0, clockwork.NewRealClock())

	c.EnableTracking(context.Background())

	assert.Equal(t, tracker.ModeDisabled, c.Mode())
	assert.Equal(t, 1, sensors.count("request_permission"))
	assert.Zero(t, sensors.count("start_visits"))
}

func TestPermissionGrant_ActivatesPendingTracking(t *testing.T) {
	sensors := &recordingSensors{}
	c := newController(t, sensors, 0, clockwork.NewRealClock())

	c.EnableTracking(context.Background())
	grant(c)

	assert.Equal(t, tracker.ModeVisits, c.Mode())
	assert.Equal(t, 1, sensors.count("start_visits"))
}

func TestPermissionGrant_WithoutRequest_StaysDisabled(t *testing.T) {
	sensors := &recordingSensors{}
	c := newController(t, sensors, 0, clockwork.NewRealClock())

	grant(c)

	assert.Equal(t, tracker.ModeDisabled, c.Mode())
	assert.Zero(t, sensors.count("start_visits"))
}

func TestPermissionRevoked_DeactivatesButKeepsIntent(t *testing.T) {
	sensors := &recordingSensors{}
	c := newController(t, sensors, 0, clockwork.NewRealClock())

	c.EnableTracking(context.Background())
	grant(c)
	require.Equal(t, tracker.ModeVisits, c.Mode())

	c.HandlePermissionChange(context.Background(), domain.PermissionDenied)
	assert.Equal(t, tracker.ModeDisabled, c.Mode())

	// Re-granting restores the user's intent.
	grant(c)
	assert.Equal(t, tracker.ModeVisits, c.Mode())
}

func TestEnableContinuous_RequiresBaseTracking(t *testing.T) {
	sensors := &recordingSensors{}
	c := newController(t, sensors, 8, clockwork.NewRealClock())
	grant(c)

	c.EnableContinuous(context.Background())

	assert.Equal(t, tracker.ModeDisabled, c.Mode())
	assert.Zero(t, sensors.count("start_continuous"))
}

func TestDisableContinuous_FallsBackToVisitTracking(t *testing.T) {
	sensors := &recordingSensors{}
	c := newController(t, sensors, 8, clockwork.NewRealClock())

	c.EnableTracking(context.Background())
	grant(c)
	c.EnableContinuous(context.Background())
	require.Equal(t, tracker.ModeContinuous, c.Mode())

	c.DisableContinuous(context.Background())

	assert.Equal(t, tracker.ModeVisits, c.Mode(), "base tracking stays enabled")
	assert.Equal(t, 1, sensors.count("stop_continuous"))
	assert.Equal(t, 2, sensors.count("start_visits"), "visit monitoring resumes")
}

func TestDisableTracking_ForcesEverythingOff(t *testing.T) {
	sensors := &recordingSensors{}
	c := newController(t, sensors, 8, clockwork.NewRealClock())

	c.EnableTracking(context.Background())
	grant(c)
	c.EnableContinuous(context.Background())

	c.DisableTracking(context.Background())

	assert.Equal(t, tracker.ModeDisabled, c.Mode())
	assert.Equal(t, 1, sensors.count("stop_continuous"))
	assert.Equal(t, 1, sensors.count("stop_visits"))
	// Going fully off must not resume visit monitoring.
	assert.Equal(t, 1, sensors.count("start_visits"))
}

func TestAutoOffTimer_DisablesContinuousOnly(t *testing.T) {
	sensors := &recordingSensors{}
	clock := clockwork.NewFakeClock()
	c := newController(t, sensors, 2, clock)

	c.EnableTracking(context.Background())
	grant(c)
	c.EnableContinuous(context.Background())
	require.Equal(t, tracker.ModeContinuous, c.Mode())

	clock.Advance(2 * time.Hour)

	assert.Eventually(t, func() bool {
		return c.Mode() == tracker.ModeVisits
	}, time.Second, 5*time.Millisecond, "auto-off must fall back to visit tracking")
}

func TestAutoOffTimer_ReplacedOnReenable(t *testing.T) {
	sensors := &recordingSensors{}
	clock := clockwork.NewFakeClock()
	c := newController(t, sensors, 2, clock)

	c.EnableTracking(context.Background())
	grant(c)
	c.EnableContinuous(context.Background())

	// Re-enabling an hour in must re-arm the timer, not inherit the old one.
	clock.Advance(time.Hour)
	c.EnableContinuous(context.Background())
	clock.Advance(90 * time.Minute)

	assert.Equal(t, tracker.ModeContinuous, c.Mode(), "old timer must be invalidated")

	clock.Advance(30 * time.Minute)
	assert.Eventually(t, func() bool {
		return c.Mode() == tracker.ModeVisits
	}, time.Second, 5*time.Millisecond)
}

func TestRemaining_States(t *testing.T) {
	clock := clockwork.NewFakeClock()

	t.Run("not running while continuous is off", func(t *testing.T) {
		c := newController(t, &recordingSensors{}, 2, clock)
		_, status := c.Remaining()
		assert.Equal(t, tracker.RemainingNotRunning, status)
	})

	t.Run("no limit with auto-off disabled", func(t *testing.T) {
		c := newController(t, &recordingSensors{}, 0, clock)
		c.EnableTracking(context.Background())
		grant(c)
		c.EnableContinuous(context.Background())

		_, status := c.Remaining()
		assert.Equal(t, tracker.RemainingNoLimit, status, "zero hours means no limit even while active")
	})

	t.Run("counts down while running", func(t *testing.T) {
		c := newController(t, &recordingSensors{}, 2, clock)
		c.EnableTracking(context.Background())
		grant(c)
		c.EnableContinuous(context.Background())

		clock.Advance(30 * time.Minute)

		remaining, status := c.Remaining()
		require.Equal(t, tracker.RemainingRunning, status)
		assert.Equal(t, 90*time.Minute, remaining)
	})
}

func TestRestore_ReappliesPersistedFlags(t *testing.T) {
	sensors := &recordingSensors{}
	store := memstore.New()
	require.NoError(t, store.SaveSettings(context.Background(), tracker.Settings{
		TrackingEnabled:   true,
		ContinuousEnabled: true,
	}))

	c := tracker.NewModeController(sensors, store, 0, clockwork.NewRealClock(),
		discardLogger(), observability.NewMetricsForTesting())

	// Before any permission event the restore stays pending.
	c.Restore(context.Background())
	assert.Equal(t, tracker.ModeDisabled, c.Mode())

	grant(c)
	assert.Equal(t, tracker.ModeContinuous, c.Mode(), "permission grant applies the full restored intent")
}

func TestRestore_WithPermissionAlreadyKnown(t *testing.T) {
	sensors := &recordingSensors{}
	store := memstore.New()
	require.NoError(t, store.SaveSettings(context.Background(), tracker.Settings{
		TrackingEnabled:   true,
		ContinuousEnabled: true,
	}))

	c := tracker.NewModeController(sensors, store, 0, clockwork.NewRealClock(),
		discardLogger(), observability.NewMetricsForTesting())

	grant(c)
	c.Restore(context.Background())

	assert.Equal(t, tracker.ModeContinuous, c.Mode())
}
