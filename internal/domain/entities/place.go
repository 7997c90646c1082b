package entities

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	// MinLatitude is the smallest valid latitude
	MinLatitude = -90.0
	// MaxLatitude is the largest valid latitude
	MaxLatitude = 90.0
	// MinLongitude is the smallest valid longitude
	MinLongitude = -180.0
	// MaxLongitude is the largest valid longitude
	MaxLongitude = 180.0

	// MaxRating is the top of the provider rating scale
	MaxRating = 5.0

	cacheKeyPrecision = 5

	// PlacePhotoPath is the API route that proxies provider photos
	PlacePhotoPath = "/api/places/photo"
)

// LatLng represents geographical coordinates in decimal degrees
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates fall within the WGS84 ranges
func (l LatLng) Valid() bool {
	return l.Lat >= MinLatitude && l.Lat <= MaxLatitude &&
		l.Lng >= MinLongitude && l.Lng <= MaxLongitude
}

// Place is a single search result. Values are built once from a provider
// response and not modified afterwards.
type Place struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"displayName"`
	Rating           *float64 `json:"rating,omitempty"`
	FormattedAddress string   `json:"formattedAddress,omitempty"`
	Location         LatLng   `json:"location"`
	Types            []string `json:"types,omitempty"`
	PriceLevel       *int     `json:"priceLevel,omitempty"`
	WebsiteURI       string   `json:"websiteURI,omitempty"`
	PhoneNumber      string   `json:"phoneNumber,omitempty"`
	PhotoURL         string   `json:"photoUrl,omitempty"`
}

// PlacePhotoURL returns the proxied URL of a provider photo reference, or
// "" when there is none
func PlacePhotoURL(reference string) string {
	if reference == "" {
		return ""
	}
	return PlacePhotoPath + "?" + url.Values{"ref": {reference}}.Encode()
}

// MeetsRating reports whether the place is rated at least min.
// Unrated places never meet a positive minimum.
func (p Place) MeetsRating(min float64) bool {
	if min <= 0 {
		return true
	}
	return p.Rating != nil && *p.Rating >= min
}

// SearchRequest is the normalized parameter set of a nearby search
type SearchRequest struct {
	Location  LatLng
	RadiusKm  float64
	PlaceType string
	MinRating float64
}

// CacheKey derives the deterministic key used for caching and in-flight
// deduplication. Coordinates are rounded so that map jitter below roughly a
// metre does not produce a new key.
func (r SearchRequest) CacheKey() string {
	var b strings.Builder
	b.WriteString(formatRounded(r.Location.Lat, cacheKeyPrecision))
	b.WriteByte('|')
	b.WriteString(formatRounded(r.Location.Lng, cacheKeyPrecision))
	b.WriteByte('|')
	b.WriteString(formatRounded(r.RadiusKm, 2))
	b.WriteByte('|')
	b.WriteString(NormalizePlaceType(r.PlaceType))
	b.WriteByte('|')
	b.WriteString(formatRounded(r.MinRating, 1))
	return b.String()
}

// NormalizePlaceType returns the provider form of a place type
func NormalizePlaceType(placeType string) string {
	return strings.ToLower(strings.TrimSpace(placeType))
}

// GeocodeCacheKey normalizes free-form address text into a cache key
func GeocodeCacheKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func formatRounded(v float64, precision int) string {
	scale := math.Pow(10, float64(precision))
	rounded := math.Round(v*scale) / scale
	if rounded == 0 {
		// collapse -0 so that tiny negative values share the key of zero
		rounded = 0
	}
	return strconv.FormatFloat(rounded, 'f', precision, 64)
}

// SearchParams are the user-facing search preferences
type SearchParams struct {
	Region       string  `json:"region" validate:"required,max=200"`
	PlaceType    string  `json:"placeType" validate:"required,max=64"`
	MinStars     float64 `json:"minStars" validate:"gte=0,lte=5"`
	SearchRadius float64 `json:"searchRadius" validate:"gt=0,lte=50"`
}
