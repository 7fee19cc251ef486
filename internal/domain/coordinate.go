package domain

import (
	"fmt"
	"strconv"
)

// Coordinate is a WGS-84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CellKey quantizes the coordinate to 4 decimal places per axis, grouping
// points within the same ~11 m grid cell under one geocoding cache key.
func (c Coordinate) CellKey() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Key is the exact, round-trippable form of the coordinate, used to
// correlate visit begin/end events and to index open visits in storage.
func (c Coordinate) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(c.Lon, 'f', -1, 64)
}
