package pubsub

import (
	"sync"

	"github.com/Billy-Davies-2/mitzi/internal/logger"
)

// Event represents a sheet change notification
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Upstream is a cross-instance broadcaster (e.g., NATS)
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// hub fans events out to buffered subscriber channels. Slow subscribers miss events
// rather than block the publisher.
type hub struct {
	mu          sync.RWMutex
	subscribers []chan Event
	buffer      int
}

func (h *hub) subscribe() chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	h.subscribers = append(h.subscribers, ch)
	logger.Debug("PubSub: New subscriber added", "totalSubscribers", len(h.subscribers))
	return ch
}

func (h *hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			close(ch)
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			return
		}
	}
}

func (h *hub) broadcast(event Event) {
	// Sends never block, so holding the read lock keeps closeAll from racing them.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			logger.Debug("PubSub: Dropping event for slow subscriber", "type", event.Type)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// PubSub is the in-process event bus the store publishes to and SSE clients read from
type PubSub struct {
	hub
	upstream Upstream // Optional upstream publisher (e.g., NATS)
}

// New creates a local-only bus
func New() *PubSub {
	return &PubSub{hub: hub{buffer: 10}}
}

// NewWithUpstream creates a bus bridged to upstream. Publish goes to the upstream,
// which broadcasts to every instance (including this one); events coming back are
// forwarded to local subscribers.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{hub: hub{buffer: 10}, upstream: upstream}

	ch := upstream.Subscribe()
	go func() {
		for event := range ch {
			logger.Debug("PubSub: Received event from upstream", "type", event.Type)
			ps.broadcast(event)
		}
		logger.Debug("PubSub: Upstream channel closed")
	}()

	return ps
}

// Subscribe returns a channel receiving every published event
func (ps *PubSub) Subscribe() chan Event {
	return ps.subscribe()
}

// Unsubscribe removes and closes ch
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.unsubscribe(ch)
}

// SubscriberCount returns the number of local subscribers
func (ps *PubSub) SubscriberCount() int {
	return ps.count()
}

// Publish sends an event to all subscribers
func (ps *PubSub) Publish(event Event) {
	if ps.upstream != nil {
		ps.upstream.Publish(event)
		return
	}
	ps.broadcast(event)
}
