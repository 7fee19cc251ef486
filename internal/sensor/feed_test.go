package sensor_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/visit-tracker/internal/adapter/memstore"
	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/observability"
	"github.com/couchcryptid/visit-tracker/internal/sensor"
	"github.com/couchcryptid/visit-tracker/internal/tracker"
)

// --- mocks ---

// mockSource replays messages, then blocks until the context is cancelled.
type mockSource struct {
	messages []domain.SensorMessage
	index    atomic.Int64
	commits  atomic.Int64
}

func (m *mockSource) Fetch(ctx context.Context) (domain.SensorMessage, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.messages) {
		<-ctx.Done()
		return domain.SensorMessage{}, ctx.Err()
	}
	msg := m.messages[i]
	msg.Commit = func(context.Context) error {
		m.commits.Add(1)
		return nil
	}
	return msg, nil
}

type noopSensors struct{}

func (noopSensors) StartVisitMonitoring()   {}
func (noopSensors) StopVisitMonitoring()    {}
func (noopSensors) StartContinuousUpdates() {}
func (noopSensors) StopContinuousUpdates()  {}
func (noopSensors) RequestPermission()      {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeMessage(t *testing.T, env domain.SensorEnvelope) domain.SensorMessage {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return domain.SensorMessage{Value: data, Topic: "raw-sensor-events"}
}

func newFeed(t *testing.T, source sensor.Source) (*sensor.Feed, *tracker.VisitTracker, *tracker.ModeController, *memstore.Store) {
	t.Helper()
	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	store := memstore.New()
	controller := tracker.NewModeController(noopSensors{}, store, 0, clockwork.NewRealClock(), logger, metrics)
	visits := tracker.NewVisitTracker(store, nil, nil, controller, 100, logger, metrics)
	return sensor.New(source, visits, controller, logger, metrics), visits, controller, store
}

// --- tests ---

func TestFeed_DispatchesVisitEvents(t *testing.T) {
	arrived := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	coord := domain.Coordinate{Lat: 30.2672, Lon: -97.7431}

	src := &mockSource{messages: []domain.SensorMessage{
		makeMessage(t, domain.SensorEnvelope{
			Kind:  domain.KindVisit,
			Visit: &domain.VisitEvent{Coordinate: coord, ArrivedAt: arrived},
		}),
	}}
	feed, visits, _, _ := newFeed(t, src)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, feed.Run(ctx))

	v, ok := visits.CurrentVisit()
	require.True(t, ok)
	assert.Equal(t, coord, v.Coordinate)
	assert.Equal(t, int64(1), src.commits.Load())
	assert.NoError(t, feed.CheckReadiness(context.Background()))
}

func TestFeed_DispatchesPermissionEvents(t *testing.T) {
	src := &mockSource{messages: []domain.SensorMessage{
		makeMessage(t, domain.SensorEnvelope{
			Kind:       domain.KindPermission,
			Permission: domain.PermissionAlways,
		}),
	}}
	feed, _, controller, _ := newFeed(t, src)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, feed.Run(ctx))

	assert.Equal(t, domain.PermissionAlways, controller.Permission())
}

func TestFeed_SkipsMalformedMessages(t *testing.T) {
	src := &mockSource{messages: []domain.SensorMessage{
		{Value: []byte("not json"), Topic: "raw-sensor-events"},
		makeMessage(t, domain.SensorEnvelope{
			Kind:       domain.KindPermission,
			Permission: domain.PermissionDenied,
		}),
	}}
	feed, _, controller, _ := newFeed(t, src)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, feed.Run(ctx))

	// The poison message is committed and skipped; processing continues.
	assert.Equal(t, int64(2), src.commits.Load())
	assert.Equal(t, domain.PermissionDenied, controller.Permission())
}

func TestFeed_NotReadyBeforeFirstEvent(t *testing.T) {
	feed, _, _, _ := newFeed(t, &mockSource{})

	assert.Error(t, feed.CheckReadiness(context.Background()))
}

func TestFeed_ContextCancellation(t *testing.T) {
	feed, _, _, _ := newFeed(t, &mockSource{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, feed.Run(ctx))
}
