// Package mapview renders a session's map as a stream of events. Browsers
// subscribe to the stream and replay the events against their map SDK.
package mapview

import (
	"context"
	"fmt"
	"sync"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/providers"
	"github.com/google/uuid"
)

// EventRenderer implements providers.MapRenderer by publishing MapEvents on
// the session's map channel. It keeps track of live handles so that misuse
// (opening a destroyed popup, double destroy) is reported as an error.
type EventRenderer struct {
	sessionID string
	channel   string
	bus       providers.EventBus

	mu      sync.Mutex
	markers map[providers.MarkerHandle]entities.LatLng
	popups  map[providers.PopupHandle]bool
}

// NewEventRenderer creates a renderer for one session
func NewEventRenderer(sessionID string, bus providers.EventBus) *EventRenderer {
	return &EventRenderer{
		sessionID: sessionID,
		channel:   providers.GetSessionMapChannel(sessionID),
		bus:       bus,
		markers:   make(map[providers.MarkerHandle]entities.LatLng),
		popups:    make(map[providers.PopupHandle]bool),
	}
}

var _ providers.MapRenderer = (*EventRenderer)(nil)

// Channel returns the event bus channel the renderer publishes on
func (r *EventRenderer) Channel() string {
	return r.channel
}

// CreateMarker places a new pin
func (r *EventRenderer) CreateMarker(ctx context.Context, position entities.LatLng, content entities.MarkerContent) (providers.MarkerHandle, error) {
	handle := providers.MarkerHandle("marker-" + uuid.NewString())

	ev := entities.NewMapEvent(r.sessionID, entities.MapEventMarkerCreated)
	ev.MarkerID = string(handle)
	pos := position
	ev.Position = &pos
	ev.Marker = &content
	if err := r.publish(ctx, ev); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.markers[handle] = position
	r.mu.Unlock()
	return handle, nil
}

// DestroyMarker removes a pin
func (r *EventRenderer) DestroyMarker(ctx context.Context, marker providers.MarkerHandle) error {
	r.mu.Lock()
	_, ok := r.markers[marker]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown marker %s", marker)
	}

	ev := entities.NewMapEvent(r.sessionID, entities.MapEventMarkerDestroyed)
	ev.MarkerID = string(marker)
	if err := r.publish(ctx, ev); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.markers, marker)
	r.mu.Unlock()
	return nil
}

// CreatePopup registers a closed popup with the given content
func (r *EventRenderer) CreatePopup(ctx context.Context, html string) (providers.PopupHandle, error) {
	handle := providers.PopupHandle("popup-" + uuid.NewString())

	ev := entities.NewMapEvent(r.sessionID, entities.MapEventPopupCreated)
	ev.PopupID = string(handle)
	ev.HTML = html
	if err := r.publish(ctx, ev); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.popups[handle] = false
	r.mu.Unlock()
	return handle, nil
}

// DestroyPopup removes a popup
func (r *EventRenderer) DestroyPopup(ctx context.Context, popup providers.PopupHandle) error {
	r.mu.Lock()
	_, ok := r.popups[popup]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown popup %s", popup)
	}

	ev := entities.NewMapEvent(r.sessionID, entities.MapEventPopupDestroyed)
	ev.PopupID = string(popup)
	if err := r.publish(ctx, ev); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.popups, popup)
	r.mu.Unlock()
	return nil
}

// OpenPopup shows a popup anchored at a marker
func (r *EventRenderer) OpenPopup(ctx context.Context, popup providers.PopupHandle, anchor providers.MarkerHandle) error {
	r.mu.Lock()
	_, popupOK := r.popups[popup]
	pos, markerOK := r.markers[anchor]
	r.mu.Unlock()
	if !popupOK {
		return fmt.Errorf("unknown popup %s", popup)
	}
	if !markerOK {
		return fmt.Errorf("unknown marker %s", anchor)
	}

	ev := entities.NewMapEvent(r.sessionID, entities.MapEventPopupOpened)
	ev.PopupID = string(popup)
	ev.MarkerID = string(anchor)
	ev.Position = &pos
	if err := r.publish(ctx, ev); err != nil {
		return err
	}

	r.setOpen(popup, true)
	return nil
}

// ClosePopup hides a popup
func (r *EventRenderer) ClosePopup(ctx context.Context, popup providers.PopupHandle) error {
	r.mu.Lock()
	_, ok := r.popups[popup]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown popup %s", popup)
	}

	ev := entities.NewMapEvent(r.sessionID, entities.MapEventPopupClosed)
	ev.PopupID = string(popup)
	if err := r.publish(ctx, ev); err != nil {
		return err
	}

	r.setOpen(popup, false)
	return nil
}

// setOpen updates a popup that may have been destroyed meanwhile
func (r *EventRenderer) setOpen(popup providers.PopupHandle, open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.popups[popup]; ok {
		r.popups[popup] = open
	}
}

// CenterMap moves the viewport without animation
func (r *EventRenderer) CenterMap(ctx context.Context, center entities.LatLng, zoom int) error {
	ev := entities.NewMapEvent(r.sessionID, entities.MapEventMapCentered)
	ev.Position = &center
	ev.Zoom = zoom
	return r.publish(ctx, ev)
}

// PanTo moves the viewport with animation
func (r *EventRenderer) PanTo(ctx context.Context, center entities.LatLng, zoom int) error {
	ev := entities.NewMapEvent(r.sessionID, entities.MapEventMapPanned)
	ev.Position = &center
	ev.Zoom = zoom
	return r.publish(ctx, ev)
}

// Live returns the number of markers, popups and open popups currently alive
func (r *EventRenderer) Live() (markers, popups, open int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, isOpen := range r.popups {
		if isOpen {
			open++
		}
	}
	return len(r.markers), len(r.popups), open
}

func (r *EventRenderer) publish(ctx context.Context, ev *entities.MapEvent) error {
	if err := r.bus.Publish(ctx, r.channel, ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventType, err)
	}
	return nil
}
