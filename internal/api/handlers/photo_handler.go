package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Guram12/starmap/internal/domain/providers"
	apperrors "github.com/Guram12/starmap/pkg/errors"
)

const (
	maxPhotoReferenceLength = 2048
	maxPhotoWidth           = 1600
)

// PhotoHandler serves place photos on behalf of the provider, so clients
// never see provider credentials.
type PhotoHandler struct {
	photos providers.PhotoFetcher
}

// NewPhotoHandler creates a photo handler
func NewPhotoHandler(photos providers.PhotoFetcher) *PhotoHandler {
	return &PhotoHandler{photos: photos}
}

// Get handles GET /api/places/photo?ref=...&maxwidth=...
func (h *PhotoHandler) Get(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ref := strings.TrimSpace(query.Get("ref"))
	if ref == "" || len(ref) > maxPhotoReferenceLength {
		respondWithError(w, http.StatusBadRequest, "ref parameter is required")
		return
	}

	maxWidth := 0
	if raw := query.Get("maxwidth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPhotoWidth {
			respondWithError(w, http.StatusBadRequest, "maxwidth must be between 1 and 1600")
			return
		}
		maxWidth = n
	}

	photo, err := h.photos.FetchPhoto(r.Context(), ref, maxWidth)
	if errors.Is(err, providers.ErrNoMatch) {
		respondWithAppError(w, r, apperrors.NewNotFoundError("photo not found"))
		return
	}
	if err != nil {
		respondWithAppError(w, r, apperrors.NewExternalError("photo request failed", err))
		return
	}

	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(photo.Data)
}
