// Command genevents generates a deterministic JSON fixture of sensor
// envelopes for the tracker test suites and for the validate tool. It uses
// the actual domain types so the fixture matches real wire behavior.
//
// Usage:
//
//	go run ./cmd/genevents -out data/mock/sensor_events.json -visits 5
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/visit-tracker/internal/domain"
)

// baseTime anchors the fixture so repeated runs produce identical output.
var baseTime = time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

// baseCoord is downtown Austin; visits fan out from here.
var baseCoord = domain.Coordinate{Lat: 30.2672, Lon: -97.7431}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the sensor event fixture")
	visits := flag.Int("visits", 5, "number of visit begin/end pairs to generate")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *visits < 1 {
		return fmt.Errorf("-visits must be at least 1")
	}

	envelopes := generate(*visits)

	if err := writeJSON(*out, envelopes); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d envelopes: %s", len(envelopes), *out)
	return nil
}

// generate builds a permission grant, then visit pairs separated by one
// hour of stay and thirty minutes of travel, with a fix batch during each
// travel leg. The last fix of each batch has poor accuracy so gating paths
// get exercised.
func generate(visits int) []domain.SensorEnvelope {
	envelopes := []domain.SensorEnvelope{
		{
			Kind:       domain.KindPermission,
			Time:       baseTime,
			Permission: domain.PermissionAlways,
		},
	}

	now := baseTime
	for i := 0; i < visits; i++ {
		coord := visitCoord(i)

		arrived := now
		envelopes = append(envelopes, domain.SensorEnvelope{
			Kind:  domain.KindVisit,
			Time:  arrived,
			Visit: &domain.VisitEvent{Coordinate: coord, ArrivedAt: arrived},
		})

		departed := arrived.Add(time.Hour)
		envelopes = append(envelopes, domain.SensorEnvelope{
			Kind: domain.KindVisit,
			Time: departed,
			Visit: &domain.VisitEvent{
				Coordinate: coord,
				ArrivedAt:  arrived,
				DepartedAt: departed,
			},
		})

		envelopes = append(envelopes, domain.SensorEnvelope{
			Kind:  domain.KindFixes,
			Time:  departed.Add(10 * time.Minute),
			Fixes: travelFixes(i, departed),
		})

		now = departed.Add(30 * time.Minute)
	}

	return envelopes
}

// visitCoord spreads visits on a ring roughly 1 to 2 km from the base point.
func visitCoord(i int) domain.Coordinate {
	angle := float64(i) * 2 * math.Pi / 7
	r := 0.01 + 0.005*float64(i%3)
	return domain.Coordinate{
		Lat: round5(baseCoord.Lat + r*math.Cos(angle)),
		Lon: round5(baseCoord.Lon + r*math.Sin(angle)),
	}
}

func travelFixes(i int, start time.Time) []domain.Fix {
	from := visitCoord(i)
	to := visitCoord(i + 1)

	fixes := make([]domain.Fix, 0, 4)
	for step := 1; step <= 3; step++ {
		frac := float64(step) / 4
		fixes = append(fixes, domain.Fix{
			Coordinate: domain.Coordinate{
				Lat: round5(from.Lat + (to.Lat-from.Lat)*frac),
				Lon: round5(from.Lon + (to.Lon-from.Lon)*frac),
			},
			Timestamp: start.Add(time.Duration(step) * 5 * time.Minute),
			Speed:     12.5,
			Accuracy:  float64(5 + 10*step),
		})
	}
	// One low-quality sample per batch; the tracker must discard it.
	fixes = append(fixes, domain.Fix{
		Coordinate: to,
		Timestamp:  start.Add(25 * time.Minute),
		Accuracy:   350,
	})
	return fixes
}

func round5(f float64) float64 {
	return math.Round(f*1e5) / 1e5
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
