package location

import (
	"context"
	"sync"

	"classattendance/internal/attendance"
)

const subscriberBuffer = 16

// Hub fans fixes out to every current observer. A slow observer misses fixes
// instead of blocking the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan *attendance.PositionFix]struct{}
}

// NewHub creates a hub with no observers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan *attendance.PositionFix]struct{})}
}

// Observe subscribes until ctx is done. Only fixes published after the call
// are delivered.
func (h *Hub) Observe(ctx context.Context) (<-chan *attendance.PositionFix, error) {
	ch := make(chan *attendance.PositionFix, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch, nil
}

// Publish delivers fix to every observer. It never blocks.
func (h *Hub) Publish(_ context.Context, fix *attendance.PositionFix) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- fix:
		default:
		}
	}
	return nil
}

// Observers returns the number of live subscriptions.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
