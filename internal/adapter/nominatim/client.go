// Package nominatim implements domain.Geocoder against the OSM Nominatim
// reverse-geocoding API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/visit-tracker/internal/domain"
)

// Client queries the Nominatim /reverse endpoint. Nominatim's usage policy
// requires a descriptive User-Agent and limits request rates; the caller is
// responsible for rate limiting (see the geocode package).
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Nominatim client for the given base URL.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ReverseGeocode converts coordinates to place details. A coordinate that
// Nominatim cannot geocode returns a zero RawPlace with a nil error.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.RawPlace, error) {
	params := url.Values{
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"format":         {"jsonv2"},
		"zoom":           {"18"},
		"addressdetails": {"1"},
	}

	fullURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.RawPlace{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawPlace{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.RawPlace{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var nr response
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return domain.RawPlace{}, fmt.Errorf("decode response: %w", err)
	}

	// Nominatim reports "no result" as an error field with HTTP 200.
	if nr.Error != "" {
		return domain.RawPlace{}, nil
	}

	return nr.toRawPlace(), nil
}

// Nominatim API response types.

type response struct {
	Name    string  `json:"name"`
	Error   string  `json:"error"`
	Address address `json:"address"`
}

type address struct {
	HouseNumber   string `json:"house_number"`
	Road          string `json:"road"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`

	// Named-feature keys that serve as areas of interest.
	Amenity string `json:"amenity"`
	Tourism string `json:"tourism"`
	Leisure string `json:"leisure"`
}

func (r response) toRawPlace() domain.RawPlace {
	a := r.Address

	city := a.City
	if city == "" {
		city = a.Town
	}
	if city == "" {
		city = a.Village
	}

	neighborhood := a.Neighbourhood
	if neighborhood == "" {
		neighborhood = a.Suburb
	}

	var areas []string
	for _, s := range []string{a.Amenity, a.Tourism, a.Leisure} {
		if s != "" {
			areas = append(areas, s)
		}
	}

	return domain.RawPlace{
		Name:            r.Name,
		HouseNumber:     a.HouseNumber,
		Street:          a.Road,
		Neighborhood:    neighborhood,
		City:            city,
		State:           a.State,
		PostalCode:      a.Postcode,
		AreasOfInterest: areas,
	}
}
