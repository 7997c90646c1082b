package events

import (
	"sync"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 100

// hub fans events out to local subscriber channels, grouped by bus channel
type hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *entities.MapEvent]struct{}
}

func newHub() *hub {
	return &hub{subscribers: make(map[string]map[chan *entities.MapEvent]struct{})}
}

// add registers a new subscriber and reports whether it is the first on the channel
func (h *hub) add(channel string) (chan *entities.MapEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	first := len(h.subscribers[channel]) == 0
	if h.subscribers[channel] == nil {
		h.subscribers[channel] = make(map[chan *entities.MapEvent]struct{})
	}
	ch := make(chan *entities.MapEvent, subscriberBuffer)
	h.subscribers[channel][ch] = struct{}{}
	return ch, first
}

// remove closes one subscriber and reports whether the channel has none left
func (h *hub) remove(channel string, ch chan *entities.MapEvent) (removed, last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[channel]
	if !ok {
		return false, false
	}
	if _, ok := subs[ch]; !ok {
		return false, false
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(h.subscribers, channel)
		return true, true
	}
	return true, false
}

// broadcast delivers without blocking; full subscribers miss the event
func (h *hub) broadcast(channel string, event *entities.MapEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[channel] {
		select {
		case sub <- event:
		default:
			log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("Subscriber channel full, skipping event")
		}
	}
}

// closeChannel closes every subscriber of the channel
func (h *hub) closeChannel(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers[channel] {
		close(sub)
	}
	delete(h.subscribers, channel)
}

func (h *hub) channels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.subscribers))
	for ch := range h.subscribers {
		out = append(out, ch)
	}
	return out
}

func (h *hub) count(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}
