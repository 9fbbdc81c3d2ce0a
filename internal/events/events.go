package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Event types published by the booking flow.
const (
	BookingCreated    = "booking.created"
	BookingRejected   = "booking.rejected"
	BookingFailed     = "booking.failed"
	BookingCancelled  = "booking.cancelled"
	SnapshotRefreshed = "snapshot.refreshed"
)

// Event is a lightweight domain event.
type Event struct {
	Type      string
	UserID    string
	Payload   []byte
	CreatedAt time.Time
}

// New builds an event with a JSON payload.
func New(eventType, userID string, payload any) (Event, error) {
	ev := Event{Type: eventType, UserID: userID, CreatedAt: time.Now()}
	if payload == nil {
		return ev, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	ev.Payload = data
	return ev, nil
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, out)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the subscribers of the event type synchronously and returns
// their joined errors. A failing handler does not stop the others.
func (b *EventBus) Publish(event Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
