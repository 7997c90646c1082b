package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/providers"
	"github.com/Guram12/starmap/internal/infrastructure/observability"
	apperrors "github.com/Guram12/starmap/pkg/errors"
)

const (
	// ResultZoom is applied when a new result set is centered
	ResultZoom = 12

	// SelectionZoom is applied when a place is picked from the list
	SelectionZoom = 14
)

// SelectionSource tells where a place was picked
type SelectionSource string

const (
	SelectionSourceMarker SelectionSource = "marker"
	SelectionSourceList   SelectionSource = "list"
)

// Valid reports whether s is a known selection source
func (s SelectionSource) Valid() bool {
	return s == SelectionSourceMarker || s == SelectionSourceList
}

// MarkerRecord ties a place to the marker and popup rendered for it
type MarkerRecord struct {
	PlaceID string                 `json:"placeId"`
	Place   entities.Place         `json:"place"`
	Marker  providers.MarkerHandle `json:"marker"`
	Popup   providers.PopupHandle  `json:"popup"`
}

// MapSnapshot is a copy of the synchronizer state
type MapSnapshot struct {
	PlaceType  string                `json:"placeType,omitempty"`
	Records    []MarkerRecord        `json:"records"`
	SelectedID string                `json:"selectedPlaceId,omitempty"`
	OpenPopup  providers.PopupHandle `json:"openPopup,omitempty"`
}

// MarkerSynchronizer keeps the rendered markers in step with the latest
// accepted result set. At most one popup is open at any time.
type MarkerSynchronizer struct {
	renderer providers.MapRenderer

	mu        sync.Mutex
	placeType string
	records   []MarkerRecord
	index     map[string]int
	selected  string
	open      providers.PopupHandle
}

// NewMarkerSynchronizer creates a synchronizer drawing through renderer
func NewMarkerSynchronizer(renderer providers.MapRenderer) *MarkerSynchronizer {
	return &MarkerSynchronizer{
		renderer: renderer,
		index:    make(map[string]int),
	}
}

// Apply replaces every rendered marker with one per place, in order, and
// centers the map on the first place. An empty list leaves the map empty
// and does not move it. When rendering fails midway, whatever was created
// is destroyed again and the map is left empty.
func (s *MarkerSynchronizer) Apply(ctx context.Context, places []entities.Place, placeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardown(ctx)
	if len(places) == 0 {
		return nil
	}

	icon := MarkerIcon(placeType)
	records := make([]MarkerRecord, 0, len(places))
	index := make(map[string]int, len(places))

	for _, place := range places {
		rec, err := s.build(ctx, place, icon)
		if err != nil {
			s.destroy(ctx, records)
			return err
		}
		if _, dup := index[place.ID]; !dup {
			index[place.ID] = len(records)
		}
		records = append(records, rec)
	}

	s.records = records
	s.index = index
	s.placeType = placeType

	if err := s.renderer.CenterMap(ctx, places[0].Location, ResultZoom); err != nil {
		return apperrors.NewInternalError("failed to center map", err)
	}
	return nil
}

// Select opens the popup of placeID, closing any other open popup first.
// Picking from the list also pans the map to the place.
func (s *MarkerSynchronizer) Select(ctx context.Context, placeID string, source SelectionSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[placeID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("place %s is not on the map", placeID))
	}
	rec := s.records[i]

	if s.open != rec.Popup {
		if s.open != "" {
			if err := s.renderer.ClosePopup(ctx, s.open); err != nil {
				return apperrors.NewInternalError("failed to close popup", err)
			}
			s.open = ""
			s.selected = ""
		}
		if err := s.renderer.OpenPopup(ctx, rec.Popup, rec.Marker); err != nil {
			return apperrors.NewInternalError("failed to open popup", err)
		}
		s.open = rec.Popup
	}
	s.selected = placeID

	if source == SelectionSourceList {
		if err := s.renderer.PanTo(ctx, rec.Place.Location, SelectionZoom); err != nil {
			return apperrors.NewInternalError("failed to pan map", err)
		}
	}
	return nil
}

// Clear removes every marker and popup
func (s *MarkerSynchronizer) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown(ctx)
}

// Snapshot returns a copy of the current state
func (s *MarkerSynchronizer) Snapshot() MapSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]MarkerRecord, len(s.records))
	copy(records, s.records)
	return MapSnapshot{
		PlaceType:  s.placeType,
		Records:    records,
		SelectedID: s.selected,
		OpenPopup:  s.open,
	}
}

func (s *MarkerSynchronizer) build(ctx context.Context, place entities.Place, icon string) (MarkerRecord, error) {
	marker, err := s.renderer.CreateMarker(ctx, place.Location, entities.MarkerContent{
		Title: place.DisplayName,
		Icon:  icon,
	})
	if err != nil {
		return MarkerRecord{}, apperrors.NewInternalError("failed to create marker", err)
	}

	html, err := RenderPopupHTML(place)
	if err == nil {
		var popup providers.PopupHandle
		popup, err = s.renderer.CreatePopup(ctx, html)
		if err == nil {
			return MarkerRecord{PlaceID: place.ID, Place: place, Marker: marker, Popup: popup}, nil
		}
	}

	if derr := s.renderer.DestroyMarker(ctx, marker); derr != nil {
		err = errors.Join(err, derr)
	}
	return MarkerRecord{}, apperrors.NewInternalError("failed to create popup", err)
}

// teardown must be called with mu held
func (s *MarkerSynchronizer) teardown(ctx context.Context) {
	if s.open != "" {
		if err := s.renderer.ClosePopup(ctx, s.open); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to close popup during teardown")
		}
	}
	s.destroy(ctx, s.records)

	s.records = nil
	s.index = make(map[string]int)
	s.selected = ""
	s.open = ""
	s.placeType = ""
}

func (s *MarkerSynchronizer) destroy(ctx context.Context, records []MarkerRecord) {
	logger := observability.LoggerFromContext(ctx)
	for _, rec := range records {
		if err := s.renderer.DestroyPopup(ctx, rec.Popup); err != nil {
			logger.Warn().Err(err).Str("place_id", rec.PlaceID).Msg("Failed to destroy popup")
		}
		if err := s.renderer.DestroyMarker(ctx, rec.Marker); err != nil {
			logger.Warn().Err(err).Str("place_id", rec.PlaceID).Msg("Failed to destroy marker")
		}
	}
}
