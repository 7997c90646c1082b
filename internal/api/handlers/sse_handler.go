package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Guram12/starmap/internal/application/services"
	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/providers"
	"github.com/Guram12/starmap/internal/infrastructure/observability"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams a session's map events to the browser
type SSEHandler struct {
	sessions  *services.SessionManager
	eventBus  providers.EventBus
	heartbeat time.Duration

	mu      sync.RWMutex
	clients map[string]int
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(sessions *services.SessionManager, eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		sessions:  sessions,
		eventBus:  eventBus,
		heartbeat: defaultHeartbeatInterval,
		clients:   make(map[string]int),
	}
}

// WithHeartbeat overrides the heartbeat interval
func (h *SSEHandler) WithHeartbeat(interval time.Duration) *SSEHandler {
	h.heartbeat = interval
	return h
}

// StreamMap handles GET /api/sessions/{id}/stream. The client first gets
// the current map snapshot, then every map event as it is published.
func (h *SSEHandler) StreamMap(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Open(r.Context(), r.PathValue("id"), userIDFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	logger := observability.SessionLogger(r.Context(), session.ID())
	channel := providers.GetSessionMapChannel(session.ID())

	// subscribe before the snapshot so nothing published in between is lost
	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("Failed to subscribe to map channel")
		respondWithError(w, http.StatusInternalServerError, "failed to subscribe to map events")
		return
	}

	h.registerClient(channel)
	defer h.unregisterClient(channel)

	// streams outlive the server write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug().Err(err).Msg("Could not clear write deadline")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.sendEvent(w, "connected", map[string]interface{}{
		"session_id": session.ID(),
		"timestamp":  time.Now(),
	})
	h.sendEvent(w, "snapshot", session.Snapshot())
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("Client disconnected from map stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			h.sendMapEvent(w, event)
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) sendMapEvent(w http.ResponseWriter, event *entities.MapEvent) {
	if event == nil {
		return
	}
	h.sendEvent(w, string(event.EventType), event)
}

func (h *SSEHandler) registerClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]++
}

func (h *SSEHandler) unregisterClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[channel]--
	if h.clients[channel] <= 0 {
		delete(h.clients, channel)
	}
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}
