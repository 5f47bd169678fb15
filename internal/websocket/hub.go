package websocket

import (
	"log/slog"
	"sync"
)

const subscriberBufferSize = 16

// Hub fans decoded events out to in-process subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		logger: logger,
	}
}

// Subscribe returns a buffered channel receiving every published event.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBufferSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it. Safe to call twice.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish delivers ev to all subscribers without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber, drop.
			h.logger.Warn("dropping event for slow subscriber", "type", ev.Type)
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
