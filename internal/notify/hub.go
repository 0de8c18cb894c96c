// Package notify is the publish/subscribe seam on top of the event store.
// Real-time dashboard feeds register here instead of polling; the hub is
// deliberately decoupled from aggregation so the core stays testable
// without a live transport.
package notify

import (
	"log/slog"
	"sync"

	v1 "github.com/inkwell-labs/storypulse/internal/api/v1"
)

// Subscriber receives every successfully appended choice event.
// Subscribers run on the publishing goroutine and must return quickly;
// anything slow should hand off to its own channel or goroutine.
type Subscriber func(event *v1.ChoiceEvent)

// Hub fans appended events out to registered subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers fn for all future events. There is no unsubscribe:
// subscriber lifecycle matches the process, wired at the composition root.
func (h *Hub) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}

// Publish delivers event to every subscriber. A panicking subscriber is
// isolated and logged; it never takes down the request that appended the event.
func (h *Hub) Publish(event *v1.ChoiceEvent) {
	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("[Notify] Subscriber panicked", "panic", r, "event_id", event.ID)
				}
			}()
			fn(event)
		}()
	}
}
