// Package realtime fans out document change events to live subscribers.
// Delivery order is preserved per topic within one process; nothing is
// guaranteed across topics.
package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event notifies subscribers that a document under Topic changed. Subscribers
// re-read the document; events carry no payload beyond the identifier.
type Event struct {
	Topic string    `json:"topic"`
	Type  string    `json:"type"`
	ID    string    `json:"id,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Subscriber registers callbacks per topic. The returned cancel func detaches
// the callback and is safe to call more than once.
type Subscriber interface {
	Subscribe(topic string, fn func(Event)) (cancel func())
}

// Hub is the in-process event router.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]func(Event)
	nextID uint64
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{topics: make(map[string]map[uint64]func(Event)), logger: logger}
}

// Subscribe attaches fn to topic.
func (h *Hub) Subscribe(topic string, fn func(Event)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[uint64]func(Event))
	}
	h.topics[topic][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if subs := h.topics[topic]; subs != nil {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.topics, topic)
				}
			}
			h.mu.Unlock()
		})
	}
}

// Publish delivers evt to local subscribers.
func (h *Hub) Publish(_ context.Context, evt Event) error {
	h.Dispatch(evt)
	return nil
}

// Dispatch invokes every callback registered for the event topic. Callbacks
// run synchronously and must not block.
func (h *Hub) Dispatch(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	h.mu.RLock()
	subs := make([]func(Event), 0, len(h.topics[evt.Topic]))
	for _, fn := range h.topics[evt.Topic] {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()

	for _, fn := range subs {
		h.safeCall(fn, evt)
	}
}

// Subscribers returns the number of callbacks attached to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) safeCall(fn func(Event), evt Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("realtime subscriber panicked", zap.String("topic", evt.Topic), zap.Any("panic", r))
		}
	}()
	fn(evt)
}
