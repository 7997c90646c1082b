package handlers

import (
	"net/http"

	"github.com/Guram12/starmap/internal/application/services"
	"github.com/Guram12/starmap/internal/domain/entities"
)

// SessionHandler exposes search sessions over HTTP. The session id comes
// from the path and the user from the X-User-ID header.
type SessionHandler struct {
	sessions *services.SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type selectRequest struct {
	PlaceID string `json:"placeId" validate:"required"`
	Source  string `json:"source" validate:"required,oneof=marker list"`
}

func (h *SessionHandler) open(w http.ResponseWriter, r *http.Request) (*services.SearchSession, bool) {
	session, err := h.sessions.Open(r.Context(), r.PathValue("id"), userIDFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return nil, false
	}
	return session, true
}

// Search handles POST /api/sessions/{id}/search
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	var params entities.SearchParams
	if err := decodeAndValidate(r, &params); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	session, ok := h.open(w, r)
	if !ok {
		return
	}

	result, err := session.Search(r.Context(), params)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// Select handles POST /api/sessions/{id}/select
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	session, ok := h.open(w, r)
	if !ok {
		return
	}

	if err := session.Select(r.Context(), req.PlaceID, services.SelectionSource(req.Source)); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session.Snapshot())
}

// GetMap handles GET /api/sessions/{id}/map
func (h *SessionHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, session.Snapshot())
}

// GetLastSearch handles GET /api/sessions/{id}/last-search
func (h *SessionHandler) GetLastSearch(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}

	search, err := session.LastSearch(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, search)
}

// Restore handles POST /api/sessions/{id}/restore
func (h *SessionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}

	search, err := session.Restore(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, search)
}

// LoadHistory handles POST /api/sessions/{id}/history/{historyId}/load
func (h *SessionHandler) LoadHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}

	search, err := session.LoadFromHistory(r.Context(), r.PathValue("historyId"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, search)
}

// End handles DELETE /api/sessions/{id}
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
