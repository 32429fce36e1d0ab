// Package feed fans executed trades out to live subscribers. Slow
// consumers are dropped-from, never blocked-on: a full subscriber
// buffer loses messages rather than stalling the matching path.
package feed

import (
	"sync"

	"github.com/mlopes/matchbook/internal/domain"
)

// Subscription is a single consumer's view of the feed.
type Subscription struct {
	ch chan domain.Trade
}

// C returns the channel trades are delivered on. It is closed when the
// subscription is cancelled.
func (s *Subscription) C() <-chan domain.Trade {
	return s.ch
}

// Hub broadcasts trades to all current subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new consumer with the given channel buffer.
func (h *Hub) Subscribe(buffer int) *Subscription {
	sub := &Subscription{ch: make(chan domain.Trade, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes the consumer and closes its channel. Calling it
// twice for the same subscription is not allowed.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	h.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Broadcast delivers the trade to every subscriber whose buffer has
// room.
func (h *Hub) Broadcast(t domain.Trade) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- t:
		default:
		}
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
