package entities

import (
	"time"

	"github.com/google/uuid"
)

// MapEventType represents the kind of change applied to a session's map
type MapEventType string

const (
	MapEventMarkerCreated   MapEventType = "marker_created"
	MapEventMarkerDestroyed MapEventType = "marker_destroyed"
	MapEventPopupCreated    MapEventType = "popup_created"
	MapEventPopupDestroyed  MapEventType = "popup_destroyed"
	MapEventPopupOpened     MapEventType = "popup_opened"
	MapEventPopupClosed     MapEventType = "popup_closed"
	MapEventMapCentered     MapEventType = "map_centered"
	MapEventMapPanned       MapEventType = "map_panned"
)

// MarkerContent describes what a map pin shows
type MarkerContent struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
}

// MapEvent is a single rendering instruction streamed to a session's map
type MapEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	EventType MapEventType   `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	MarkerID  string         `json:"marker_id,omitempty"`
	PopupID   string         `json:"popup_id,omitempty"`
	Position  *LatLng        `json:"position,omitempty"`
	Zoom      int            `json:"zoom,omitempty"`
	Marker    *MarkerContent `json:"marker,omitempty"`
	HTML      string         `json:"html,omitempty"`
}

// NewMapEvent creates a new map event stamped with an id and the current time
func NewMapEvent(sessionID string, eventType MapEventType) *MapEvent {
	return &MapEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
