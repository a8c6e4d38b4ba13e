// Package rest provides the HTTP and WebSocket API consumed by the
// browser presentation layer.
package rest

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/wavehop/wavehop/internal/app/player"
)

// Hub fans player state snapshots out to WebSocket subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan player.State
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]chan player.State),
	}
}

// Subscribe registers a subscriber and returns its id and state channel.
func (h *Hub) Subscribe() (string, <-chan player.State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan player.State, 8)
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}

// Broadcast delivers a snapshot to every subscriber without blocking.
// A slow subscriber misses intermediate snapshots, never the stream.
func (h *Hub) Broadcast(s player.State) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- s:
		default:
			zlog.Debug().Msgf("hub: dropping snapshot for slow subscriber: id=%s", id)
		}
	}
}

// Run pumps controller snapshots into the hub until the source closes.
func (h *Hub) Run(states <-chan player.State) {
	for s := range states {
		h.Broadcast(s)
	}
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
