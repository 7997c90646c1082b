package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/providers"
)

func ptr[T any](v T) *T { return &v }

// stubGeocoder resolves addresses from a fixed table
type stubGeocoder struct {
	mu        sync.Mutex
	locations map[string]providers.Coordinates
	err       error
	calls     []string
}

func newStubGeocoder() *stubGeocoder {
	return &stubGeocoder{locations: map[string]providers.Coordinates{
		"Tbilisi": {Latitude: 41.7151, Longitude: 44.8271},
		"Paris":   {Latitude: 48.8566, Longitude: 2.3522},
	}}
}

func (g *stubGeocoder) GeocodeAddress(ctx context.Context, address string) (*providers.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, address)
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.locations[address]
	if !ok {
		return nil, providers.ErrNoMatch
	}
	return &c, nil
}

func (g *stubGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// stubPlaces answers nearby searches from a per-type table. When gate is set
// every call blocks until it is closed.
type stubPlaces struct {
	mu      sync.Mutex
	byType  map[string][]providers.RawPlace
	err     error
	calls   []providers.NearbyRequest
	gate    chan struct{}
	started chan struct{}
}

func newStubPlaces() *stubPlaces {
	return &stubPlaces{byType: map[string][]providers.RawPlace{
		"restaurant": {
			{ID: "r1", DisplayName: "Barbarestan", Rating: ptr(4.8), FormattedAddress: "132 Aghmashenebeli Ave", Location: providers.Coordinates{Latitude: 41.7101, Longitude: 44.7990}},
			{ID: "r2", DisplayName: "Shavi Lomi", Rating: ptr(3.9), Location: providers.Coordinates{Latitude: 41.7003, Longitude: 44.8020}},
			{ID: "r3", DisplayName: "Unrated Diner", Location: providers.Coordinates{Latitude: 41.7200, Longitude: 44.7900}},
		},
		"lodging": {
			{ID: "l1", DisplayName: "Rooms Hotel", Rating: ptr(4.6), Location: providers.Coordinates{Latitude: 41.7050, Longitude: 44.7880}},
		},
	}}
}

func (p *stubPlaces) SearchNearby(ctx context.Context, req providers.NearbyRequest) ([]providers.RawPlace, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	gate, started := p.gate, p.started
	err := p.err
	places := p.byType[req.Type]
	p.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return places, nil
}

func (p *stubPlaces) set(placeType string, places []providers.RawPlace) {
	p.mu.Lock()
	p.byType[placeType] = places
	p.mu.Unlock()
}

func (p *stubPlaces) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *stubPlaces) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *stubPlaces) lastCall() providers.NearbyRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

// fakeRenderer records every operation and enforces the single open popup rule
type fakeRenderer struct {
	mu      sync.Mutex
	seq     int
	ops     []string
	markers map[providers.MarkerHandle]entities.MarkerContent
	popups  map[providers.PopupHandle]string
	open    map[providers.PopupHandle]bool
	centers []entities.LatLng
	zooms   []int

	failCreateMarkerAt int
	createdMarkers     int
	maxOpen            int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		markers: make(map[providers.MarkerHandle]entities.MarkerContent),
		popups:  make(map[providers.PopupHandle]string),
		open:    make(map[providers.PopupHandle]bool),
	}
}

func (r *fakeRenderer) CreateMarker(ctx context.Context, position entities.LatLng, content entities.MarkerContent) (providers.MarkerHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.createdMarkers++
	if r.failCreateMarkerAt > 0 && r.createdMarkers == r.failCreateMarkerAt {
		return "", errors.New("map unavailable")
	}
	r.seq++
	h := providers.MarkerHandle(fmt.Sprintf("m%d", r.seq))
	r.markers[h] = content
	r.ops = append(r.ops, "create-marker:"+content.Title)
	return h, nil
}

func (r *fakeRenderer) DestroyMarker(ctx context.Context, marker providers.MarkerHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.markers[marker]; !ok {
		return fmt.Errorf("unknown marker %s", marker)
	}
	delete(r.markers, marker)
	r.ops = append(r.ops, "destroy-marker")
	return nil
}

func (r *fakeRenderer) CreatePopup(ctx context.Context, html string) (providers.PopupHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	h := providers.PopupHandle(fmt.Sprintf("p%d", r.seq))
	r.popups[h] = html
	r.ops = append(r.ops, "create-popup")
	return h, nil
}

func (r *fakeRenderer) DestroyPopup(ctx context.Context, popup providers.PopupHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.popups[popup]; !ok {
		return fmt.Errorf("unknown popup %s", popup)
	}
	if r.open[popup] {
		return fmt.Errorf("popup %s destroyed while open", popup)
	}
	delete(r.popups, popup)
	r.ops = append(r.ops, "destroy-popup")
	return nil
}

func (r *fakeRenderer) OpenPopup(ctx context.Context, popup providers.PopupHandle, anchor providers.MarkerHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.popups[popup]; !ok {
		return fmt.Errorf("unknown popup %s", popup)
	}
	if _, ok := r.markers[anchor]; !ok {
		return fmt.Errorf("unknown marker %s", anchor)
	}
	r.open[popup] = true
	if n := r.openCountLocked(); n > r.maxOpen {
		r.maxOpen = n
	}
	r.ops = append(r.ops, "open:"+string(popup))
	return nil
}

func (r *fakeRenderer) ClosePopup(ctx context.Context, popup providers.PopupHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.open, popup)
	r.ops = append(r.ops, "close:"+string(popup))
	return nil
}

func (r *fakeRenderer) CenterMap(ctx context.Context, center entities.LatLng, zoom int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.centers = append(r.centers, center)
	r.zooms = append(r.zooms, zoom)
	r.ops = append(r.ops, "center")
	return nil
}

func (r *fakeRenderer) PanTo(ctx context.Context, center entities.LatLng, zoom int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.centers = append(r.centers, center)
	r.zooms = append(r.zooms, zoom)
	r.ops = append(r.ops, "pan")
	return nil
}

func (r *fakeRenderer) openCountLocked() int {
	n := 0
	for _, isOpen := range r.open {
		if isOpen {
			n++
		}
	}
	return n
}

func (r *fakeRenderer) live() (markers, popups int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers), len(r.popups)
}

func (r *fakeRenderer) opsSince(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops[n:]...)
}

func (r *fakeRenderer) opCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

func (r *fakeRenderer) centerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.centers)
}
