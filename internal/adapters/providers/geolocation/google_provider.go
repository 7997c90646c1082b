package geolocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Guram12/starmap/internal/domain/providers"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	googleMapsBaseURL      = "https://maps.googleapis.com/maps/api"
	defaultGeocodeCacheTTL = 30 * 24 * time.Hour
	defaultHTTPTimeout     = 8 * time.Second
	photoMaxWidth          = 200
	photoWidthLimit        = 1600
	maxResponseBytes       = 4 << 20
)

// Options tunes the Google provider. Zero values fall back to defaults.
type Options struct {
	BaseURL                 string
	HTTPClient              *http.Client
	RequestsPerSecond       float64
	Burst                   int
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration
}

// GoogleProvider implements GeolocationProvider on the Google Maps
// Geocoding and Places Nearby Search web services.
type GoogleProvider struct {
	apiKey     string
	httpClient *http.Client
	cache      providers.CacheProvider
	baseURL    string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*googleResponse]
}

var _ providers.PhotoFetcher = (*GoogleProvider)(nil)

type googleResponse struct {
	contentType string
	body        []byte
}

// clientStatusError is a 4xx answer. It does not count against the breaker.
type clientStatusError struct {
	code int
}

func (e *clientStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// NewGoogleProvider creates a Google provider with default options
func NewGoogleProvider(apiKey string, cache providers.CacheProvider) *GoogleProvider {
	return NewGoogleProviderWithOptions(apiKey, cache, Options{})
}

// NewGoogleProviderWithOptions allows overriding base URL, HTTP client and
// the rate and breaker settings (used for tests).
func NewGoogleProviderWithOptions(apiKey string, cache providers.CacheProvider, opts Options) *GoogleProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = googleMapsBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}

	threshold := opts.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := opts.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*googleResponse](gobreaker.Settings{
		Name:        "google-maps",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var clientErr *clientStatusError
			return err == nil || errors.As(err, &clientErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &GoogleProvider{
		apiKey:     apiKey,
		httpClient: httpClient,
		cache:      cache,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
	}
}

// GeocodeAddress converts free text to coordinates. Results are shared
// through the cache provider when one is configured.
func (g *GoogleProvider) GeocodeAddress(ctx context.Context, address string) (*providers.Coordinates, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("address is required")
	}

	cacheKey := "geo:v3:geocode:" + hashKey(strings.ToLower(trimmed))
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var coords providers.Coordinates
			if err := json.Unmarshal(cached, &coords); err == nil && (coords.Latitude != 0 || coords.Longitude != 0) {
				return &coords, nil
			}
		}
	}

	var payload googleGeocodeResponse
	if err := g.get(ctx, "/geocode/json", url.Values{"address": []string{trimmed}}, &payload); err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}

	switch payload.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, providers.ErrNoMatch
	default:
		return nil, statusError("geocode", payload.Status, payload.ErrorMessage)
	}
	if len(payload.Results) == 0 {
		return nil, providers.ErrNoMatch
	}

	loc := payload.Results[0].Geometry.Location
	coords := providers.Coordinates{Latitude: loc.Lat, Longitude: loc.Lng}

	if g.cache != nil {
		if data, err := json.Marshal(coords); err == nil {
			if err := g.cache.Set(ctx, cacheKey, data, defaultGeocodeCacheTTL); err != nil {
				log.Debug().Err(err).Msg("Failed to cache geocode result")
			}
		}
	}
	return &coords, nil
}

// SearchNearby runs a Places Nearby Search. ZERO_RESULTS is an empty
// answer, not an error.
func (g *GoogleProvider) SearchNearby(ctx context.Context, req providers.NearbyRequest) ([]providers.RawPlace, error) {
	params := url.Values{}
	params.Set("location", formatLatLng(req.Center.Latitude, req.Center.Longitude))
	params.Set("radius", strconv.Itoa(int(req.RadiusMeters)))
	if req.Type != "" {
		params.Set("type", req.Type)
	}

	var payload googleNearbyResponse
	if err := g.get(ctx, "/place/nearbysearch/json", params, &payload); err != nil {
		return nil, fmt.Errorf("nearby search failed: %w", err)
	}

	switch payload.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []providers.RawPlace{}, nil
	default:
		return nil, statusError("nearby search", payload.Status, payload.ErrorMessage)
	}

	results := payload.Results
	if req.MaxResults > 0 && len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}

	places := make([]providers.RawPlace, 0, len(results))
	for _, r := range results {
		places = append(places, g.toRawPlace(r))
	}
	return places, nil
}

func (g *GoogleProvider) toRawPlace(r googleNearbyResult) providers.RawPlace {
	address := r.FormattedAddress
	if address == "" {
		address = r.Vicinity
	}
	place := providers.RawPlace{
		ID:               r.PlaceID,
		DisplayName:      r.Name,
		Rating:           r.Rating,
		FormattedAddress: address,
		Location: providers.Coordinates{
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
		},
		Types:      r.Types,
		PriceLevel: r.PriceLevel,
	}
	if len(r.Photos) > 0 {
		place.PhotoReference = r.Photos[0].PhotoReference
	}
	return place
}

// FetchPhoto downloads a place photo. The API key is only ever sent to
// Google, never handed out with the reference.
func (g *GoogleProvider) FetchPhoto(ctx context.Context, reference string, maxWidth int) (*providers.Photo, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, providers.ErrNoMatch
	}
	if maxWidth <= 0 {
		maxWidth = photoMaxWidth
	}
	if maxWidth > photoWidthLimit {
		maxWidth = photoWidthLimit
	}

	params := url.Values{}
	params.Set("maxwidth", strconv.Itoa(maxWidth))
	params.Set("photo_reference", reference)

	resp, err := g.do(ctx, "/place/photo", params)
	var clientErr *clientStatusError
	if errors.As(err, &clientErr) {
		return nil, providers.ErrNoMatch
	}
	if err != nil {
		return nil, fmt.Errorf("photo request failed: %w", err)
	}
	if !strings.HasPrefix(resp.contentType, "image/") {
		return nil, fmt.Errorf("photo request failed: unexpected content type %q", resp.contentType)
	}
	return &providers.Photo{ContentType: resp.contentType, Data: resp.body}, nil
}

// get issues the request and decodes the JSON body into out
func (g *GoogleProvider) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	resp, err := g.do(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do waits for the rate limiter, then issues the request through the
// circuit breaker
func (g *GoogleProvider) do(ctx context.Context, path string, params url.Values) (*googleResponse, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("google maps api key is required")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params.Set("key", g.apiKey)
	reqURL := g.baseURL + path + "?" + params.Encode()

	resp, err := g.breaker.Execute(func() (*googleResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		httpResp, err := g.httpClient.Do(httpReq)
		if err != nil {
			// url.Error carries the keyed URL
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				err = urlErr.Err
			}
			return nil, fmt.Errorf("request to %s failed: %w", path, err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
			return nil, &clientStatusError{code: httpResp.StatusCode}
		}
		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d", httpResp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		return &googleResponse{contentType: httpResp.Header.Get("Content-Type"), body: body}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("google maps unavailable: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func statusError(op, status, message string) error {
	if message != "" {
		return fmt.Errorf("%s failed: %s - %s", op, status, message)
	}
	return fmt.Errorf("%s failed: %s", op, status)
}

func formatLatLng(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type googleGeocodeResponse struct {
	Status       string                `json:"status"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Results      []googleGeocodeResult `json:"results"`
}

type googleGeocodeResult struct {
	FormattedAddress string         `json:"formatted_address"`
	Geometry         googleGeometry `json:"geometry"`
}

type googleGeometry struct {
	Location googleLocation `json:"location"`
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googleNearbyResponse struct {
	Status       string               `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Results      []googleNearbyResult `json:"results"`
}

type googleNearbyResult struct {
	PlaceID          string         `json:"place_id"`
	Name             string         `json:"name"`
	Rating           *float64       `json:"rating,omitempty"`
	PriceLevel       *int           `json:"price_level,omitempty"`
	Vicinity         string         `json:"vicinity"`
	FormattedAddress string         `json:"formatted_address"`
	Types            []string       `json:"types"`
	Geometry         googleGeometry `json:"geometry"`
	Photos           []googlePhoto  `json:"photos"`
}

type googlePhoto struct {
	PhotoReference string `json:"photo_reference"`
}
