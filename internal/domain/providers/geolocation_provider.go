package providers

import (
	"context"
	"errors"
)

// ErrNoMatch is returned by a Geocoder when the address resolves to nothing
var ErrNoMatch = errors.New("no geocoding match")

// Geocoder converts free-form address text to coordinates
type Geocoder interface {
	// GeocodeAddress returns the best match for the address, or ErrNoMatch
	GeocodeAddress(ctx context.Context, address string) (*Coordinates, error)
}

// PlacesSearcher finds places around a point
type PlacesSearcher interface {
	// SearchNearby returns at most req.MaxResults places within the radius.
	// An empty slice with a nil error means the lookup succeeded with no results.
	SearchNearby(ctx context.Context, req NearbyRequest) ([]RawPlace, error)
}

// GeolocationProvider is implemented by backends that serve both lookups
type GeolocationProvider interface {
	Geocoder
	PlacesSearcher
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// NearbyRequest is the query sent to a PlacesSearcher
type NearbyRequest struct {
	Center       Coordinates
	RadiusMeters float64
	Type         string
	MaxResults   int
}

// RawPlace is a place as reported by the provider
type RawPlace struct {
	ID               string
	DisplayName      string
	Rating           *float64
	FormattedAddress string
	Location         Coordinates
	Types            []string
	PriceLevel       *int
	WebsiteURI       string
	PhoneNumber      string
	// PhotoReference identifies the first photo at the provider; fetching it
	// goes through PhotoFetcher so provider credentials stay server side
	PhotoReference string
}

// Photo is an image as served by the provider
type Photo struct {
	ContentType string
	Data        []byte
}

// PhotoFetcher downloads place photos by reference
type PhotoFetcher interface {
	// FetchPhoto returns the photo scaled to at most maxWidth pixels, or
	// ErrNoMatch when the reference is unknown
	FetchPhoto(ctx context.Context, reference string, maxWidth int) (*Photo, error)
}
