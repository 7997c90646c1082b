package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/Guram12/starmap/internal/domain/entities"
)

// Geocoder resolves address text to coordinates
type Geocoder interface {
	Geocode(ctx context.Context, address string) (entities.LatLng, error)
}

// GeolocationHandler handles geolocation endpoints.
type GeolocationHandler struct {
	geocoder Geocoder
}

// NewGeolocationHandler creates a new geolocation handler.
func NewGeolocationHandler(geocoder Geocoder) *GeolocationHandler {
	return &GeolocationHandler{geocoder: geocoder}
}

// Geocode handles GET /api/geocode?address=...
func (h *GeolocationHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		respondWithError(w, http.StatusBadRequest, "address parameter is required")
		return
	}

	location, err := h.geocoder.Geocode(r.Context(), address)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"lat":     location.Lat,
		"lng":     location.Lng,
	})
}
