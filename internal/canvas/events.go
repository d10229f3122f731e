package canvas

import (
	"sync"
	"time"
)

// EventType names a change to a frame.
type EventType string

const (
	EventMovementFlushed   EventType = "movement.flushed"
	EventEdgesChanged      EventType = "edges.changed"
	EventPlacementsChanged EventType = "placements.changed"
	EventFrameChanged      EventType = "frame.changed"
	EventFrameDeleted      EventType = "frame.deleted"
)

// Event is published after a frame mutation commits.
type Event struct {
	Type    EventType `json:"type"`
	FrameID string    `json:"frame_id"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Broadcaster receives committed frame events.
type Broadcaster interface {
	Publish(ev Event)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(Event) {}

// Hub fans frame events out to per-frame subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewHub creates a Hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{buffer: buffer, subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel of events for frameID and a func that
// unsubscribes and closes it.
func (h *Hub) Subscribe(frameID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.subs[frameID] == nil {
		h.subs[frameID] = make(map[chan Event]struct{})
	}
	h.subs[frameID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[frameID], ch)
			if len(h.subs[frameID]) == 0 {
				delete(h.subs, frameID)
			}
			close(ch)
		})
	}
}

// Publish delivers ev to the frame's subscribers.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.FrameID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of subscribers on frameID.
func (h *Hub) Subscribers(frameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[frameID])
}
