package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCellKey_QuantizesToFourDecimals(t *testing.T) {
	a := Coordinate{Lat: 30.26721, Lon: -97.74312}
	b := Coordinate{Lat: 30.26719, Lon: -97.74308}

	assert.Equal(t, "30.2672,-97.7431", a.CellKey())
	assert.Equal(t, a.CellKey(), b.CellKey(), "coordinates in the same ~11m cell share a key")
}

func TestCellKey_DistinguishesNeighboringCells(t *testing.T) {
	a := Coordinate{Lat: 30.2672, Lon: -97.7431}
	b := Coordinate{Lat: 30.2673, Lon: -97.7431}

	assert.NotEqual(t, a.CellKey(), b.CellKey())
}

func TestKey_ExactRoundTrip(t *testing.T) {
	a := Coordinate{Lat: 30.26721, Lon: -97.74312}
	b := Coordinate{Lat: 30.26719, Lon: -97.74308}

	// Exact keys must separate coordinates that quantize together.
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), Coordinate{Lat: 30.26721, Lon: -97.74312}.Key())
}

func TestVisitEvent_Sentinels(t *testing.T) {
	open := VisitEvent{ArrivedAt: time.Now()}
	assert.True(t, open.HasArrival())
	assert.False(t, open.HasDeparture())

	unknown := VisitEvent{DepartedAt: time.Now()}
	assert.False(t, unknown.HasArrival())
	assert.True(t, unknown.HasDeparture())
}

func TestVisit_Duration(t *testing.T) {
	arrived := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	v := NewVisit(Coordinate{Lat: 1, Lon: 2}, arrived)

	assert.True(t, v.Open())
	assert.Zero(t, v.Duration())

	departed := arrived.Add(90 * time.Minute)
	v.DepartedAt = &departed

	assert.False(t, v.Open())
	assert.Equal(t, 90*time.Minute, v.Duration())
}
