package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Guram12/starmap/internal/application/services"
	"github.com/Guram12/starmap/internal/domain/entities"
	apperrors "github.com/Guram12/starmap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlaces() []entities.Place {
	return []entities.Place{
		{ID: "a", DisplayName: "Alpha", Rating: ptr(4.5), FormattedAddress: "1 First St", Location: entities.LatLng{Lat: 1, Lng: 1}},
		{ID: "b", DisplayName: "Bravo", Location: entities.LatLng{Lat: 2, Lng: 2}},
		{ID: "c", DisplayName: "Charlie", Rating: ptr(3.0), Location: entities.LatLng{Lat: 3, Lng: 3}},
	}
}

func TestMarkerSynchronizer_ApplyRendersInOrderAndCenters(t *testing.T) {
	r := newFakeRenderer()
	s := services.NewMarkerSynchronizer(r)

	require.NoError(t, s.Apply(context.Background(), samplePlaces(), "restaurant"))

	assert.Equal(t, []string{
		"create-marker:Alpha", "create-popup",
		"create-marker:Bravo", "create-popup",
		"create-marker:Charlie", "create-popup",
		"center",
	}, r.opsSince(0))
	assert.Equal(t, entities.LatLng{Lat: 1, Lng: 1}, r.centers[0])
	assert.Equal(t, services.ResultZoom, r.zooms[0])

	for _, content := range r.markers {
		assert.Equal(t, "🍽️", content.Icon)
	}

	snap := s.Snapshot()
	require.Len(t, snap.Records, 3)
	assert.Equal(t, "a", snap.Records[0].PlaceID)
	assert.Equal(t, "c", snap.Records[2].PlaceID)
	assert.Equal(t, "restaurant", snap.PlaceType)
	assert.Empty(t, snap.SelectedID)
}

func TestMarkerSynchronizer_ApplyIconIgnoresTypeCase(t *testing.T) {
	r := newFakeRenderer()
	s := services.NewMarkerSynchronizer(r)

	require.NoError(t, s.Apply(context.Background(), samplePlaces(), " Restaurant"))

	require.NotEmpty(t, r.markers)
	for _, content := range r.markers {
		assert.Equal(t, "🍽️", content.Icon)
	}
}

func TestMarkerSynchronizer_ApplyReplacesPreviousSet(t *testing.T) {
	ctx := context.Background()
	r := newFakeRenderer()
	s := services.NewMarkerSynchronizer(r)

	require.NoError(t, s.Apply(ctx, samplePlaces(), "restaurant"))
	require.NoError(t, s.Select(ctx, "b", services.SelectionSourceMarker))

	next := []entities.Place{{ID: "z", DisplayName: "Zulu", Location: entities.LatLng{Lat: 9, Lng: 9}}}
	require.NoError(t, s.Apply(ctx, next, "lodging"))

	markers, popups := r.live()
	assert.Equal(t, 1, markers)
	assert.Equal(t, 1, popups)
	assert.Equal(t, 1, r.maxOpen)

	snap := s.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "z", snap.Records[0].PlaceID)
	assert.Empty(t, snap.SelectedID)
	assert.Empty(t, snap.OpenPopup)
	assert.Equal(t, entities.LatLng{Lat: 9, Lng: 9}, r.centers[len(r.centers)-1])
}

func TestMarkerSynchronizer_ApplyEmptyClearsWithoutCentering(t *testing.T) {
	ctx := context.Background()
	r := newFakeRenderer()
	s := services.NewMarkerSynchronizer(r)

	require.NoError(t, s.Apply(ctx, samplePlaces(), "restaurant"))
	require.NoError(t, s.Apply(ctx, []entities.Place{}, "restaurant"))

	markers, popups := r.live()
	assert.Zero(t, markers)
	assert.Zero(t, popups)
	assert.Equal(t, 1, r.centerCount())
	assert.Empty(t, s.Snapshot().Records)
}

func TestMarkerSynchronizer_SelectKeepsOnePopupOpen(t *testing.T) {
	ctx := context.Background()
	r := newFakeRenderer()
	s := services.NewMarkerSynchronizer(r)
	require.NoError(t, s.Apply(ctx, samplePlaces(), "restaurant"))

	require.NoError(t, s.Select(ctx, "a", services.SelectionSourceMarker))
	first := s.Snapshot().OpenPopup
	require.NotEmpty(t, first)

	before := r.opCount()
	require.NoError(t, s.Select(ctx, "c", services.SelectionSourceMarker))
	ops := r.opsSince(before)
	require.Len(t, ops, 2)
	assert.Equal(t, "close:"+string(first), ops[0])
	assert.True(t, strings.HasPrefix(ops[1], "open:"))

	snap := s.Snapshot()
	assert.Equal(t, "c", snap.SelectedID)
	assert.Equal(t, snap.Records[2].Popup, snap.OpenPopup)
	assert.Equal(t, 1, r.maxOpen)
}

func TestMarkerSynchronizer_SelectSameIsNoop(t *testing.T) {
	ctx := context.Background()
	r := newFakeRenderer()
	s := services.NewMarkerSynchronizer(r)
	require.NoError(t, s.Apply(ctx, samplePlaces(), "restaurant"))
	require.NoError(t, s.Select(ctx, "a", services.SelectionSourceMarker))

	before := r.opCount()
	require.NoError(t, s.Select(ctx, "a", services.SelectionSourceMarker))
	assert.Equal(t, before, r.opCount())
}

func TestMarkerSynchronizer_SelectFromListPans(t *testing.T) {
	ctx := context.Background()
	r := newFakeRenderer()
	s := services.NewMarkerSynchronizer(r)
	require.NoError(t, s.Apply(ctx, samplePlaces(), "restaurant"))

	require.NoError(t, s.Select(ctx, "b", services.SelectionSourceList))

	ops := r.opsSince(0)
	assert.Equal(t, "pan", ops[len(ops)-1])
	assert.Equal(t, entities.LatLng{Lat: 2, Lng: 2}, r.centers[len(r.centers)-1])
	assert.Equal(t, services.SelectionZoom, r.zooms[len(r.zooms)-1])
}

func TestMarkerSynchronizer_SelectUnknown(t *testing.T) {
	s := services.NewMarkerSynchronizer(newFakeRenderer())
	require.NoError(t, s.Apply(context.Background(), samplePlaces(), "restaurant"))

	err := s.Select(context.Background(), "nope", services.SelectionSourceMarker)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMarkerSynchronizer_RendererFailureLeavesEmpty(t *testing.T) {
	ctx := context.Background()
	r := newFakeRenderer()
	s := services.NewMarkerSynchronizer(r)
	r.failCreateMarkerAt = 2

	err := s.Apply(ctx, samplePlaces(), "restaurant")
	require.Error(t, err)

	markers, popups := r.live()
	assert.Zero(t, markers)
	assert.Zero(t, popups)
	assert.Zero(t, r.centerCount())
	assert.Empty(t, s.Snapshot().Records)
}

func TestMarkerSynchronizer_Clear(t *testing.T) {
	ctx := context.Background()
	r := newFakeRenderer()
	s := services.NewMarkerSynchronizer(r)
	require.NoError(t, s.Apply(ctx, samplePlaces(), "hospital"))
	require.NoError(t, s.Select(ctx, "a", services.SelectionSourceMarker))

	s.Clear(ctx)

	markers, popups := r.live()
	assert.Zero(t, markers)
	assert.Zero(t, popups)
	snap := s.Snapshot()
	assert.Empty(t, snap.Records)
	assert.Empty(t, snap.OpenPopup)
}

func TestMarkerIcon(t *testing.T) {
	tests := map[string]string{
		"restaurant":         "🍽️",
		"lodging":            "🏨",
		"tourist_attraction": "🏛️",
		"shopping_mall":      "🛍️",
		"hospital":           "🏥",
		"Restaurant":         "🍽️",
		" LODGING ":          "🏨",
		"bank":               "📍",
		"":                   "📍",
	}
	for placeType, icon := range tests {
		assert.Equal(t, icon, services.MarkerIcon(placeType), placeType)
	}
}

func TestRenderPopupHTML(t *testing.T) {
	t.Run("full card", func(t *testing.T) {
		html, err := services.RenderPopupHTML(entities.Place{
			ID:               "abc",
			DisplayName:      "Café Lounge",
			Rating:           ptr(4.5),
			FormattedAddress: "1 Main St",
			PhotoURL:         "https://example.com/p.jpg",
			Location:         entities.LatLng{Lat: 41.7, Lng: 44.8},
		})
		require.NoError(t, err)
		assert.Contains(t, html, "Café Lounge")
		assert.Contains(t, html, "4.5")
		assert.Contains(t, html, "1 Main St")
		assert.Contains(t, html, `src="https://example.com/p.jpg"`)
		assert.Contains(t, html, "https://www.google.com/maps/search/?api=1&amp;query=41.7,44.8&amp;query_place_id=abc")
	})

	t.Run("fallbacks", func(t *testing.T) {
		html, err := services.RenderPopupHTML(entities.Place{ID: "x", DisplayName: "Plain"})
		require.NoError(t, err)
		assert.Contains(t, html, "N/A")
		assert.Contains(t, html, "Address not available")
		assert.NotContains(t, html, "<img")
	})

	t.Run("escapes values", func(t *testing.T) {
		html, err := services.RenderPopupHTML(entities.Place{
			ID:          "x",
			DisplayName: `<script>alert("x")</script>`,
		})
		require.NoError(t, err)
		assert.NotContains(t, html, "<script>")
		assert.Contains(t, html, "&lt;script&gt;")
	})
}

func TestGoogleMapsURL(t *testing.T) {
	url := services.GoogleMapsURL(entities.Place{ID: "ChIJ123", Location: entities.LatLng{Lat: -33.8568, Lng: 151.2153}})
	assert.Equal(t, "https://www.google.com/maps/search/?api=1&query=-33.8568,151.2153&query_place_id=ChIJ123", url)
}
