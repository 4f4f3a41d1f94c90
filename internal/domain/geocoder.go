package domain

import "context"

// GeocodeQuery is a place-search request.
type GeocodeQuery struct {
	Name     string // free-text place name; queries shorter than 2 runes match nothing
	Language string // response language, e.g. "fr"
	Count    int    // maximum candidates; 0 means the provider default
	Country  string // ISO 3166-1 alpha-2 restriction; empty searches worldwide
}

// Geocoder resolves place names to candidate locations.
// A query that matches nothing returns an empty slice, not an error.
type Geocoder interface {
	Geocode(ctx context.Context, q GeocodeQuery) ([]Location, error)
}
