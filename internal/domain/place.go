package domain

import "strings"

// Place is a resolved, human-readable location. Both fields may be empty:
// an empty Place records a provider "no result" and is a terminal outcome.
type Place struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// RawPlace is the provider-shaped reverse-geocoding result before the
// display-name and address policies are applied.
type RawPlace struct {
	Name            string
	HouseNumber     string
	Street          string
	Neighborhood    string
	City            string
	State           string
	PostalCode      string
	AreasOfInterest []string
}

// PlaceFromRaw applies the deterministic display-name and formatted-address
// extraction policies to a provider result. No I/O.
func PlaceFromRaw(raw RawPlace) Place {
	return Place{
		Name:    displayName(raw),
		Address: formattedAddress(raw),
	}
}

// displayName picks the display name by priority: the provider place name
// when it is not just a restatement of the street address, then the first
// area of interest, then the neighborhood. Empty means no usable name.
func displayName(raw RawPlace) string {
	if usableName(raw) {
		return raw.Name
	}
	for _, aoi := range raw.AreasOfInterest {
		if aoi != "" {
			return aoi
		}
	}
	return raw.Neighborhood
}

// usableName rejects provider names that merely echo the street name or
// embed the house number, e.g. name "123 Main St" for street "Main St".
func usableName(raw RawPlace) bool {
	if raw.Name == "" {
		return false
	}
	if raw.Street != "" && raw.Name == raw.Street {
		return false
	}
	if raw.HouseNumber != "" && strings.Contains(raw.Name, raw.HouseNumber) {
		return false
	}
	return true
}

// formattedAddress joins the non-empty address components with ", ":
// "{house number} {street}", "{city}, {state}", and postal code. Missing
// components are omitted rather than left as blank separators.
func formattedAddress(raw RawPlace) string {
	var parts []string

	street := raw.Street
	if street != "" && raw.HouseNumber != "" {
		street = raw.HouseNumber + " " + street
	}
	if street != "" {
		parts = append(parts, street)
	}

	locality := raw.City
	switch {
	case raw.City != "" && raw.State != "":
		locality = raw.City + ", " + raw.State
	case raw.State != "":
		locality = raw.State
	}
	if locality != "" {
		parts = append(parts, locality)
	}

	if raw.PostalCode != "" {
		parts = append(parts, raw.PostalCode)
	}

	return strings.Join(parts, ", ")
}
