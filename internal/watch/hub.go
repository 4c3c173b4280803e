// ABOUTME: In-memory fan-out of readiness status to connected watch links
// ABOUTME: Subscribers receive every published Status; slow subscribers drop updates

package watch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const subscriberBufferSize = 16

// Hub provides pub/sub for readiness updates. Once closed, new
// subscriptions receive an already closed channel.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Status
	closed      bool
	logger      *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]chan Status),
		logger:      logger.With("component", "watch_hub"),
	}
}

// Subscribe registers a subscriber and returns its channel and ID.
// The subscription is removed when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Status, string) {
	subID := uuid.New().String()
	ch := make(chan Status, subscriberBufferSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, subID
	}
	h.subscribers[subID] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		h.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends status to all subscribers without blocking.
func (h *Hub) Publish(status Status) {
	h.mu.Lock()
	targets := make([]chan Status, 0, len(h.subscribers))
	for _, ch := range h.subscribers {
		targets = append(targets, ch)
	}
	// Sends happen under the lock so Unsubscribe cannot close a channel mid-send.
	for _, ch := range targets {
		select {
		case ch <- status:
		default:
			h.logger.Debug("dropped status for slow subscriber")
		}
	}
	h.mu.Unlock()
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subscribers[subID]
	if !ok {
		return
	}
	delete(h.subscribers, subID)
	close(ch)

	h.logger.Debug("subscriber removed", "sub_id", subID)
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close removes every subscriber, ending their channels. It is safe to
// call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	h.logger.Debug("hub closed")
}
