package resolution

import (
	"sync"
	"time"
)

// EventType identifies which transition an event describes
type EventType string

// Predefined EventType values
const (
	EventItemCreated   EventType = "item_created"
	EventItemUpdated   EventType = "item_updated"
	EventClaimCreated  EventType = "claim_created"
	EventClaimDecided  EventType = "claim_decided"
	EventThreadCreated EventType = "thread_created"
	EventThreadMessage EventType = "thread_message"
	EventThreadClosed  EventType = "thread_closed"
)

// Event is a change notification published by the engine after a transition
// commits. Consumers receive it after the stores reflect the new state.
type Event struct {
	Type     EventType
	ItemID   string
	ClaimID  string
	ThreadID string
	UserID   string
	At       time.Time
}

// EventFilter selects which events a subscriber receives. A nil filter
// receives everything.
type EventFilter func(Event) bool

type subscriber struct {
	ch     chan Event
	filter EventFilter
}

// Bus is a small in-process publish/subscribe fan-out keyed by subscription.
// Delivery is best-effort: a subscriber that falls behind drops events and
// re-syncs through reads.
type Bus struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a listener and returns its channel plus an unsubscribe
// function. The channel is closed on unsubscribe.
func (b *Bus) Subscribe(filter EventFilter) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	sub := &subscriber{ch: make(chan Event, 16), filter: filter}
	b.subs[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, unsubscribe
}

// Publish fans the event out to matching subscribers without blocking
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}
