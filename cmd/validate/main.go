// Command validate replays a sensor event fixture through the real tracking
// core (in-memory store, real resolver, fake geocoding provider) and checks
// the tracker's invariants end to end: the single-open-visit rule, stay
// durations, geocoding completion and deduplication, and location point
// gating.
//
// Usage:
//
//	go run ./cmd/validate -fixture data/mock/sensor_events.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/visit-tracker/internal/adapter/memstore"
	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/geocode"
	"github.com/couchcryptid/visit-tracker/internal/observability"
	"github.com/couchcryptid/visit-tracker/internal/tracker"
)

const fixAccuracyMax = 100.0

func main() {
	fixture := flag.String("fixture", "", "path to a sensor event fixture produced by genevents")
	flag.Parse()

	if *fixture == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixture); code != 0 {
		os.Exit(code)
	}
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// countingGeocoder returns a deterministic place per cell and counts lookups.
type countingGeocoder struct {
	calls atomic.Int64
}

func (g *countingGeocoder) ReverseGeocode(_ context.Context, lat, lon float64) (domain.RawPlace, error) {
	g.calls.Add(1)
	return domain.RawPlace{
		Name:   fmt.Sprintf("Place %.4f,%.4f", lat, lon),
		Street: "Congress Ave",
		City:   "Austin",
		State:  "TX",
	}, nil
}

type noopSensors struct{}

func (noopSensors) StartVisitMonitoring()   {}
func (noopSensors) StopVisitMonitoring()    {}
func (noopSensors) StartContinuousUpdates() {}
func (noopSensors) StopContinuousUpdates()  {}
func (noopSensors) RequestPermission()      {}

func run(fixturePath string) int {
	envelopes, err := loadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	fmt.Println("=== Visit Tracker Integrity Validation ===")
	fmt.Println()
	fmt.Printf("fixture: %s (%d envelopes)\n\n", fixturePath, len(envelopes))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	store := memstore.New()
	provider := &countingGeocoder{}
	resolver := geocode.NewResolver(provider, time.Millisecond, logger, metrics)

	controller := tracker.NewModeController(noopSensors{}, store, 0, clockwork.NewRealClock(), logger, metrics)
	visits := tracker.NewVisitTracker(store, resolver, nil, controller, fixAccuracyMax, logger, metrics)

	ctx := context.Background()
	controller.EnableTracking(ctx)

	replay(ctx, envelopes, visits, controller)
	waitForGeocoding(store, 5*time.Second)

	phases := []*phase{
		validateVisits(store, envelopes),
		validateGeocoding(store, provider, resolver),
		validatePoints(store, envelopes),
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      - %s\n", e)
		}
	}

	fmt.Println()
	if failed > 0 {
		fmt.Printf("%d of %d phases failed\n", failed, len(phases))
		return 1
	}
	fmt.Printf("all %d phases passed\n", len(phases))
	return 0
}

// replay dispatches envelopes in order the way the sensor feed does, and
// turns continuous tracking on once permission is granted so fix gating is
// exercised.
func replay(ctx context.Context, envelopes []domain.SensorEnvelope, visits *tracker.VisitTracker, controller *tracker.ModeController) {
	for _, env := range envelopes {
		switch env.Kind {
		case domain.KindVisit:
			if env.Visit != nil {
				visits.HandleVisit(ctx, *env.Visit)
			}
		case domain.KindFixes:
			visits.HandleFixes(ctx, env.Fixes)
		case domain.KindPermission:
			controller.HandlePermissionChange(ctx, env.Permission)
			if env.Permission.AllowsTracking() {
				controller.EnableContinuous(ctx)
			}
		}
	}
}

// waitForGeocoding polls until every closed visit has a geocoding outcome,
// since resolution runs asynchronously to visit creation.
func waitForGeocoding(store *memstore.Store, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		done := true
		for _, v := range store.Visits() {
			if !v.GeocodingCompleted {
				done = false
				break
			}
		}
		if done {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func validateVisits(store *memstore.Store, envelopes []domain.SensorEnvelope) *phase {
	p := &phase{name: "visit lifecycle"}

	arrivals := 0
	for _, env := range envelopes {
		if env.Kind == domain.KindVisit && env.Visit != nil && !env.Visit.HasDeparture() {
			arrivals++
		}
	}

	visits := store.Visits()
	if len(visits) != arrivals {
		p.errorf("expected %d visits, got %d", arrivals, len(visits))
	}

	open := 0
	for _, v := range visits {
		if v.Open() {
			open++
			continue
		}
		if !v.DepartedAt.After(v.ArrivedAt) {
			p.errorf("visit %s departed before it arrived", v.ID)
		}
		if v.Duration() != time.Hour {
			p.errorf("visit %s duration %s, fixture stays are 1h", v.ID, v.Duration())
		}
	}
	if open > 1 {
		p.errorf("%d open visits, invariant allows at most one", open)
	}

	return p
}

func validateGeocoding(store *memstore.Store, provider *countingGeocoder, resolver *geocode.Resolver) *phase {
	p := &phase{name: "geocoding"}

	cells := map[string]bool{}
	for _, v := range store.Visits() {
		cells[v.Coordinate.CellKey()] = true
		if !v.GeocodingCompleted {
			p.errorf("visit %s never completed geocoding", v.ID)
		}
		if v.PlaceName == "" {
			p.errorf("visit %s resolved without a place name", v.ID)
		}
		if v.Address == "" {
			p.errorf("visit %s resolved without an address", v.ID)
		}
	}

	if calls := provider.calls.Load(); calls > int64(len(cells)) {
		p.errorf("%d provider lookups for %d distinct cells; cache failed to deduplicate", calls, len(cells))
	}
	if size := resolver.CacheSize(); size > len(cells) {
		p.errorf("cache holds %d cells, expected at most %d", size, len(cells))
	}

	return p
}

func validatePoints(store *memstore.Store, envelopes []domain.SensorEnvelope) *phase {
	p := &phase{name: "location points"}

	acceptable := 0
	for _, env := range envelopes {
		if env.Kind != domain.KindFixes {
			continue
		}
		for _, f := range env.Fixes {
			if f.Accuracy >= 0 && f.Accuracy <= fixAccuracyMax {
				acceptable++
			}
		}
	}

	points := store.Points()
	if len(points) != acceptable {
		p.errorf("expected %d accepted points, got %d", acceptable, len(points))
	}
	for _, pt := range points {
		if pt.Accuracy > fixAccuracyMax {
			p.errorf("point %s exceeds the accuracy threshold (%.0fm)", pt.ID, pt.Accuracy)
		}
	}

	return p
}

func loadFixture(path string) ([]domain.SensorEnvelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var envelopes []domain.SensorEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, err
	}
	return envelopes, nil
}
