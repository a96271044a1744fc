// Package events provides the in-process event bus feeding the SSE stream.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types.
type EventType string

const (
	RunStarted         EventType = "RUN_STARTED"
	IterationCompleted EventType = "ITERATION_COMPLETED"
	RunCompleted       EventType = "RUN_COMPLETED"
	RunFailed          EventType = "RUN_FAILED"
	ScanCompleted      EventType = "SCAN_COMPLETED"
)

// Event is one bus message. Data carries event-specific payload fields.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(*Event)

// subscription pairs a handler with the token handed back to the subscriber.
type subscription struct {
	id      int
	handler Handler
}

// Bus fans events out to per-type subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   int
	log      zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for one event type and returns a token for
// Unsubscribe. Long-lived consumers such as stream connections must
// deregister on teardown or their handlers keep receiving forever.
func (b *Bus) Subscribe(t EventType, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[t] = append(b.handlers[t], subscription{id: b.nextID, handler: h})
	return b.nextID
}

// Unsubscribe removes a previously registered handler. Unknown tokens are
// ignored, so teardown paths may call it unconditionally.
func (b *Bus) Unsubscribe(t EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[t]
	for i, s := range subs {
		if s.id == id {
			b.handlers[t] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to every subscriber of its type.
func (b *Bus) Publish(t EventType, runID string, data map[string]interface{}) {
	event := &Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Data:      data,
	}

	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[t]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}

	b.log.Debug().
		Str("type", string(t)).
		Str("run_id", runID).
		Int("subscribers", len(subs)).
		Msg("Event published")
}
