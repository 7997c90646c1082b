package providers

import (
	"context"

	"github.com/Guram12/starmap/internal/domain/entities"
)

// MarkerHandle identifies a marker created by a MapRenderer
type MarkerHandle string

// PopupHandle identifies a popup created by a MapRenderer
type PopupHandle string

// MapRenderer draws markers and popups onto a map surface
type MapRenderer interface {
	CreateMarker(ctx context.Context, position entities.LatLng, content entities.MarkerContent) (MarkerHandle, error)
	DestroyMarker(ctx context.Context, marker MarkerHandle) error

	CreatePopup(ctx context.Context, html string) (PopupHandle, error)
	DestroyPopup(ctx context.Context, popup PopupHandle) error

	// OpenPopup shows the popup anchored at the given marker
	OpenPopup(ctx context.Context, popup PopupHandle, anchor MarkerHandle) error
	ClosePopup(ctx context.Context, popup PopupHandle) error

	CenterMap(ctx context.Context, center entities.LatLng, zoom int) error
	PanTo(ctx context.Context, center entities.LatLng, zoom int) error
}
