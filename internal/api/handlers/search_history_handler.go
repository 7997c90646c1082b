package handlers

import (
	"net/http"

	"github.com/Guram12/starmap/internal/application/services"
)

// SearchHistoryHandler handles the signed-in user's search history
type SearchHistoryHandler struct {
	history *services.SearchHistoryService
}

// NewSearchHistoryHandler creates a new search history handler
func NewSearchHistoryHandler(history *services.SearchHistoryService) *SearchHistoryHandler {
	return &SearchHistoryHandler{history: history}
}

// List handles GET /api/search-history
func (h *SearchHistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.List(r.Context(), userIDFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
		"count":   len(entries),
	})
}

// Get handles GET /api/search-history/{historyId}
func (h *SearchHistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.history.Get(r.Context(), userIDFromRequest(r), r.PathValue("historyId"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// Clear handles DELETE /api/search-history
func (h *SearchHistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.history.Clear(r.Context(), userIDFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
