package events

import (
	"sync"
	"time"
)

const (
	TypeReady        = "events.ready"
	TypeBoardChanged = "board.changed"
)

// Event is one message on the board event stream. EventID increases for
// every publish so clients can tell stale events from new ones.
type Event struct {
	EventID   int64          `json:"eventId"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func NewEvent(eventType string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

type Hub struct {
	mu          sync.RWMutex
	nextSubID   int64
	lastEventID int64
	subscribers map[int64]chan Event
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[int64]chan Event)}
}

// Subscribe registers a buffered listener. The returned func unsubscribes
// and closes the channel; calling it twice is harmless.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if h == nil {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.nextSubID++
	id := h.nextSubID
	h.subscribers[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		current, ok := h.subscribers[id]
		delete(h.subscribers, id)
		h.mu.Unlock()
		if ok {
			close(current)
		}
	}
}

// Publish fans event out to every subscriber. A subscriber whose buffer is
// full misses the event.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEventID++
	event.EventID = h.lastEventID
	for _, sub := range h.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// subscriberCount reports how many listeners are attached.
func (h *Hub) subscriberCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
