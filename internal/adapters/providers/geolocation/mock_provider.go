package geolocation

import (
	"context"
	"fmt"
	"hash/fnv"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/Guram12/starmap/internal/domain/providers"
)

const (
	earthRadiusMeters = 6371000.0
	mockPhotoPrefix   = "mock-photo-"
)

var mockCities = map[string]providers.Coordinates{
	"tbilisi":  {Latitude: 41.7151, Longitude: 44.8271},
	"batumi":   {Latitude: 41.6168, Longitude: 41.6367},
	"kutaisi":  {Latitude: 42.2679, Longitude: 42.6946},
	"london":   {Latitude: 51.5074, Longitude: -0.1278},
	"paris":    {Latitude: 48.8566, Longitude: 2.3522},
	"new york": {Latitude: 40.7128, Longitude: -74.0060},
	"tokyo":    {Latitude: 35.6762, Longitude: 139.6503},
	"lagos":    {Latitude: 6.5244, Longitude: 3.3792},
}

var mockNames = map[string][]string{
	"restaurant":         {"Old Town Kitchen", "Corner Bistro", "Riverside Grill", "Garden Table", "Blue Door Cafe", "Harbor House", "Spice Route", "Hearth & Vine"},
	"lodging":            {"Central Hotel", "Park Inn", "Guesthouse Nino", "Skyline Suites", "Station Hostel", "Boutique Rooms"},
	"tourist_attraction": {"Old Fortress", "City Museum", "Botanical Garden", "Cathedral Square", "Sky Tower", "Riverside Promenade"},
	"shopping_mall":      {"Galleria", "East Point", "City Mall", "Grand Arcade"},
	"hospital":           {"City Hospital", "Medical Centre", "Children's Clinic"},
}

// MockProvider is a deterministic GeolocationProvider for development and
// tests. The same request always yields the same places.
type MockProvider struct{}

// NewMockProvider creates a mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// GeocodeAddress matches the address against a small table of cities
func (m *MockProvider) GeocodeAddress(ctx context.Context, address string) (*providers.Coordinates, error) {
	lower := strings.ToLower(strings.TrimSpace(address))
	for city, coords := range mockCities {
		if strings.Contains(lower, city) {
			c := coords
			return &c, nil
		}
	}
	return nil, providers.ErrNoMatch
}

// SearchNearby places a fixed set of named places around the center,
// inside the requested radius.
func (m *MockProvider) SearchNearby(ctx context.Context, req providers.NearbyRequest) ([]providers.RawPlace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := mockNames[req.Type]
	if len(names) > 0 && req.MaxResults > 0 && len(names) > req.MaxResults {
		names = names[:req.MaxResults]
	}

	places := make([]providers.RawPlace, 0, len(names))
	for i, name := range names {
		seed := seedFor(req.Type, i)
		distance := req.RadiusMeters * (0.15 + 0.8*float64(seed%100)/100)
		bearing := 2 * math.Pi * float64(i) / float64(len(names))

		place := providers.RawPlace{
			ID:               fmt.Sprintf("mock-%s-%d", req.Type, i+1),
			DisplayName:      name,
			FormattedAddress: fmt.Sprintf("%d Mock Street", 10+i*7),
			Location:         offset(req.Center, distance, bearing),
			Types:            []string{req.Type, "point_of_interest"},
			PhotoReference:   fmt.Sprintf("%s%s-%d", mockPhotoPrefix, req.Type, i+1),
		}
		// every fourth place is unrated
		if i%4 != 3 {
			rating := 3.0 + float64(seed%21)/10
			place.Rating = &rating
		}
		places = append(places, place)
	}
	return places, nil
}

// FetchPhoto draws a placeholder card for a mock photo reference
func (m *MockProvider) FetchPhoto(ctx context.Context, reference string, maxWidth int) (*providers.Photo, error) {
	name, ok := mockPhotoName(reference)
	if !ok {
		return nil, providers.ErrNoMatch
	}
	if maxWidth <= 0 || maxWidth > 1600 {
		maxWidth = 200
	}
	height := maxWidth * 3 / 5

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="100%%" height="100%%" fill="#%06x"/><text x="50%%" y="50%%" fill="#fff" font-family="sans-serif" font-size="14" text-anchor="middle">%s</text></svg>`,
		maxWidth, height, seedFor(name, 0)&0x7f7f7f, html.EscapeString(name))
	return &providers.Photo{ContentType: "image/svg+xml", Data: []byte(svg)}, nil
}

// mockPhotoName resolves "mock-photo-<type>-<n>" to the place name
func mockPhotoName(reference string) (string, bool) {
	rest, ok := strings.CutPrefix(reference, mockPhotoPrefix)
	if !ok {
		return "", false
	}
	cut := strings.LastIndexByte(rest, '-')
	if cut < 0 {
		return "", false
	}
	n, err := strconv.Atoi(rest[cut+1:])
	names := mockNames[rest[:cut]]
	if err != nil || n < 1 || n > len(names) {
		return "", false
	}
	return names[n-1], true
}

func seedFor(placeType string, i int) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d", placeType, i)
	return h.Sum32()
}

// offset moves from center by distance meters along bearing radians
func offset(center providers.Coordinates, distance, bearing float64) providers.Coordinates {
	lat1 := center.Latitude * math.Pi / 180
	lng1 := center.Longitude * math.Pi / 180
	d := distance / earthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(bearing))
	lng2 := lng1 + math.Atan2(math.Sin(bearing)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	return providers.Coordinates{Latitude: lat2 * 180 / math.Pi, Longitude: lng2 * 180 / math.Pi}
}
