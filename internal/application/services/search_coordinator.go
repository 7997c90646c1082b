package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/providers"
	"github.com/Guram12/starmap/internal/infrastructure/observability"
	apperrors "github.com/Guram12/starmap/pkg/errors"
	"github.com/Guram12/starmap/pkg/ttlcache"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

var coordinatesPattern = regexp.MustCompile(`^(-?\d+\.?\d*),\s*(-?\d+\.?\d*)$`)

const (
	cacheNameSearch  = "search"
	cacheNameGeocode = "geocode"
)

// CoordinatorConfig tunes a SearchCoordinator
type CoordinatorConfig struct {
	CacheTTL        time.Duration
	DebounceWindow  time.Duration
	MaxRadiusKm     float64
	MaxResults      int
	ProviderTimeout time.Duration

	// Clock drives cache expiry; nil uses time.Now
	Clock ttlcache.Clock
}

// DefaultCoordinatorConfig returns the production tuning
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		CacheTTL:        10 * time.Minute,
		DebounceWindow:  time.Second,
		MaxRadiusKm:     10,
		MaxResults:      15,
		ProviderTimeout: 10 * time.Second,
	}
}

type searchOutcome struct {
	result *entities.SearchResult
	err    error
}

// pendingSearch is the single request waiting out the debounce window
type pendingSearch struct {
	key     string
	req     entities.SearchRequest
	ctx     context.Context
	seq     uint64
	timer   *time.Timer
	waiters []chan searchOutcome
}

type flightResult struct {
	places []entities.Place
	source entities.ResultSource
}

// SearchCoordinator sits between callers and the external places and
// geocoding providers. Cache hits return at once; misses are debounced so
// that only the last request of a burst is issued, and concurrent requests
// for a key already in flight share its result.
type SearchCoordinator struct {
	geocoder providers.Geocoder
	places   providers.PlacesSearcher
	cfg      CoordinatorConfig
	metrics  *observability.Metrics

	geocodes *ttlcache.Cache[entities.LatLng]
	results  *ttlcache.Cache[[]entities.Place]

	searchFlight  singleflight.Group
	geocodeFlight singleflight.Group

	mu      sync.Mutex
	pending *pendingSearch
	seq     uint64
}

// NewSearchCoordinator creates a coordinator with its own caches
func NewSearchCoordinator(geocoder providers.Geocoder, places providers.PlacesSearcher, cfg CoordinatorConfig, metrics *observability.Metrics) *SearchCoordinator {
	defaults := DefaultCoordinatorConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.DebounceWindow < 0 {
		cfg.DebounceWindow = 0
	}
	if cfg.MaxRadiusKm <= 0 {
		cfg.MaxRadiusKm = defaults.MaxRadiusKm
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaults.MaxResults
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaults.ProviderTimeout
	}

	return &SearchCoordinator{
		geocoder: geocoder,
		places:   places,
		cfg:      cfg,
		metrics:  metrics,
		geocodes: ttlcache.New[entities.LatLng](cfg.CacheTTL, cfg.Clock),
		results:  ttlcache.New[[]entities.Place](cfg.CacheTTL, cfg.Clock),
	}
}

// Geocode resolves address text to coordinates. Text that already is a
// "lat,lng" pair is returned as is without touching the cache or provider.
func (c *SearchCoordinator) Geocode(ctx context.Context, address string) (entities.LatLng, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return entities.LatLng{}, apperrors.NewValidationError("address must not be empty")
	}

	if ll, ok := parseCoordinates(trimmed); ok {
		return ll, nil
	}

	key := entities.GeocodeCacheKey(trimmed)
	if ll, ok := c.geocodes.Get(key); ok {
		c.metrics.RecordCacheHit(ctx, cacheNameGeocode)
		return ll, nil
	}
	c.metrics.RecordCacheMiss(ctx, cacheNameGeocode)

	detached := context.WithoutCancel(ctx)
	ch := c.geocodeFlight.DoChan(key, func() (interface{}, error) {
		if ll, ok := c.geocodes.Get(key); ok {
			return ll, nil
		}

		callCtx, cancel := context.WithTimeout(detached, c.cfg.ProviderTimeout)
		defer cancel()

		start := time.Now()
		coords, err := c.geocoder.GeocodeAddress(callCtx, trimmed)
		c.metrics.RecordProviderCall(callCtx, "geocode", time.Since(start), err)

		if errors.Is(err, providers.ErrNoMatch) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("no location found for %q", trimmed))
		}
		if err != nil {
			return nil, apperrors.NewExternalError("geocoding failed", err)
		}
		if coords == nil {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("no location found for %q", trimmed))
		}

		ll := entities.LatLng{Lat: coords.Latitude, Lng: coords.Longitude}
		c.geocodes.Set(key, ll)
		return ll, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return entities.LatLng{}, res.Err
		}
		return res.Val.(entities.LatLng), nil
	case <-ctx.Done():
		return entities.LatLng{}, ctx.Err()
	}
}

// Search returns places matching req. The returned result is tagged
// superseded when a request with a different key replaced this one inside
// the debounce window; no provider call was made for it in that case.
func (c *SearchCoordinator) Search(ctx context.Context, req entities.SearchRequest) (*entities.SearchResult, error) {
	if err := validateSearchRequest(req); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "SearchCoordinator.Search",
		attribute.String("place_type", req.PlaceType),
		attribute.Float64("radius_km", req.RadiusKm),
	)
	defer span.End()

	key := req.CacheKey()
	if places, ok := c.results.Get(key); ok {
		c.metrics.RecordCacheHit(ctx, cacheNameSearch)
		span.SetAttributes(attribute.String("result.source", string(entities.ResultSourceCache)))
		return newSearchResult(key, places, entities.ResultSourceCache), nil
	}
	c.metrics.RecordCacheMiss(ctx, cacheNameSearch)

	wait := c.enqueue(ctx, key, req)

	select {
	case out := <-wait:
		if out.err != nil {
			observability.RecordError(span, out.err)
			return nil, out.err
		}
		span.SetAttributes(attribute.String("result.source", string(out.result.Source)))
		return out.result, nil
	case <-ctx.Done():
		// the pending request still fires and fills the cache
		return nil, ctx.Err()
	}
}

// Cancel drops the pending debounced request, resolving its callers as
// superseded. Calls already dispatched run to completion.
func (c *SearchCoordinator) Cancel() {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	if p != nil {
		p.timer.Stop()
	}
	c.mu.Unlock()

	if p != nil {
		resolveSuperseded(p)
	}
}

// PendingKey returns the key waiting out the debounce window, if any
func (c *SearchCoordinator) PendingKey() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return "", false
	}
	return c.pending.key, true
}

func (c *SearchCoordinator) enqueue(ctx context.Context, key string, req entities.SearchRequest) <-chan searchOutcome {
	wait := make(chan searchOutcome, 1)

	c.mu.Lock()
	var superseded *pendingSearch
	if p := c.pending; p != nil {
		p.timer.Stop()
		if p.key != key {
			superseded = p
			c.pending = nil
		}
	}
	if c.pending == nil {
		c.pending = &pendingSearch{key: key, req: req}
	}

	p := c.pending
	c.seq++
	p.seq = c.seq
	p.ctx = context.WithoutCancel(ctx)
	p.waiters = append(p.waiters, wait)
	seq := p.seq
	p.timer = time.AfterFunc(c.cfg.DebounceWindow, func() { c.fire(seq) })
	c.mu.Unlock()

	if superseded != nil {
		c.metrics.RecordSuperseded(ctx, len(superseded.waiters))
		observability.LoggerFromContext(ctx).Debug().
			Str("superseded_key", superseded.key).
			Str("key", key).
			Msg("Pending search superseded")
		resolveSuperseded(superseded)
	}

	return wait
}

// fire issues the pending request if it is still the one scheduled under seq
func (c *SearchCoordinator) fire(seq uint64) {
	c.mu.Lock()
	p := c.pending
	if p == nil || p.seq != seq {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	out := c.execute(p.ctx, p.key, p.req)
	for _, w := range p.waiters {
		w <- out
	}
}

func (c *SearchCoordinator) execute(ctx context.Context, key string, req entities.SearchRequest) searchOutcome {
	leader := false
	v, err, _ := c.searchFlight.Do(key, func() (interface{}, error) {
		leader = true
		if places, ok := c.results.Get(key); ok {
			return flightResult{places: places, source: entities.ResultSourceCache}, nil
		}

		places, err := c.fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		return flightResult{places: places, source: entities.ResultSourceProvider}, nil
	})
	if err != nil {
		return searchOutcome{err: err}
	}

	res := v.(flightResult)
	source := res.source
	if !leader && source == entities.ResultSourceProvider {
		source = entities.ResultSourceShared
		c.metrics.RecordShared(ctx)
	}
	return searchOutcome{result: newSearchResult(key, res.places, source)}
}

// fetch performs the provider call and caches its filtered result. Raw empty
// responses are not cached.
func (c *SearchCoordinator) fetch(ctx context.Context, req entities.SearchRequest) ([]entities.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProviderTimeout)
	defer cancel()

	key := req.CacheKey()
	logger := observability.LoggerFromContext(ctx)

	start := time.Now()
	raw, err := c.places.SearchNearby(ctx, providers.NearbyRequest{
		Center:       providers.Coordinates{Latitude: req.Location.Lat, Longitude: req.Location.Lng},
		RadiusMeters: math.Min(req.RadiusKm, c.cfg.MaxRadiusKm) * 1000,
		Type:         entities.NormalizePlaceType(req.PlaceType),
		MaxResults:   c.cfg.MaxResults,
	})
	c.metrics.RecordProviderCall(ctx, "nearby_search", time.Since(start), err)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Nearby search failed")
		return nil, apperrors.NewExternalError("places search failed", err)
	}

	if len(raw) > c.cfg.MaxResults {
		raw = raw[:c.cfg.MaxResults]
	}

	places := make([]entities.Place, 0, len(raw))
	for _, rp := range raw {
		place := placeFromRaw(rp)
		if place.MeetsRating(req.MinRating) {
			places = append(places, place)
		}
	}

	if len(raw) > 0 {
		c.results.Set(key, places)
	}

	logger.Debug().
		Str("key", key).
		Int("raw", len(raw)).
		Int("kept", len(places)).
		Dur("took", time.Since(start)).
		Msg("Nearby search completed")

	return places, nil
}

func resolveSuperseded(p *pendingSearch) {
	out := searchOutcome{result: &entities.SearchResult{
		Key:    p.key,
		Places: []entities.Place{},
		Status: entities.SearchStatusSuperseded,
		Source: entities.ResultSourceNone,
	}}
	for _, w := range p.waiters {
		w <- out
	}
}

func newSearchResult(key string, places []entities.Place, source entities.ResultSource) *entities.SearchResult {
	status := entities.SearchStatusOK
	if len(places) == 0 {
		status = entities.SearchStatusNoResults
	}
	out := make([]entities.Place, len(places))
	copy(out, places)
	return &entities.SearchResult{Key: key, Places: out, Status: status, Source: source}
}

func placeFromRaw(rp providers.RawPlace) entities.Place {
	return entities.Place{
		ID:               rp.ID,
		DisplayName:      rp.DisplayName,
		Rating:           rp.Rating,
		FormattedAddress: rp.FormattedAddress,
		Location:         entities.LatLng{Lat: rp.Location.Latitude, Lng: rp.Location.Longitude},
		Types:            append([]string(nil), rp.Types...),
		PriceLevel:       rp.PriceLevel,
		WebsiteURI:       rp.WebsiteURI,
		PhoneNumber:      rp.PhoneNumber,
		PhotoURL:         entities.PlacePhotoURL(rp.PhotoReference),
	}
}

func validateSearchRequest(req entities.SearchRequest) error {
	if math.IsNaN(req.Location.Lat) || math.IsNaN(req.Location.Lng) || !req.Location.Valid() {
		return apperrors.NewValidationError("location is out of range")
	}
	if math.IsNaN(req.RadiusKm) || req.RadiusKm <= 0 {
		return apperrors.NewValidationError("radius must be positive")
	}
	if strings.TrimSpace(req.PlaceType) == "" {
		return apperrors.NewValidationError("place type is required")
	}
	if math.IsNaN(req.MinRating) || req.MinRating < 0 || req.MinRating > entities.MaxRating {
		return apperrors.NewValidationError("minimum rating must be between 0 and 5")
	}
	return nil
}

func parseCoordinates(text string) (entities.LatLng, bool) {
	m := coordinatesPattern.FindStringSubmatch(text)
	if m == nil {
		return entities.LatLng{}, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return entities.LatLng{}, false
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return entities.LatLng{}, false
	}
	ll := entities.LatLng{Lat: lat, Lng: lng}
	if !ll.Valid() {
		return entities.LatLng{}, false
	}
	return ll, true
}
