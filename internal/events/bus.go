// Package events provides best-effort, in-process notification between
// the sync components and their consumers. Delivery is synchronous and
// at-least-once from the publisher's perspective; no ordering is
// guaranteed across distinct event types.
package events

import "sync"

// Event names published by the core.
const (
	ConnectivityRestored = "connectivity-restored"
	ConnectivityLost     = "connectivity-lost"
	SyncCompleted        = "sync-completed"
	SyncAbandoned        = "sync-abandoned"
)

// SyncSummary is the payload of a sync-completed event.
type SyncSummary struct {
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
}

// AbandonedItem is the payload of a sync-abandoned event.
type AbandonedItem struct {
	ItemID    string `json:"item_id"`
	LastError string `json:"last_error"`
}

// Handler receives an event payload.
type Handler func(payload any)

// Bus is a mutex-guarded observer registry.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Handler
	nextID int
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]map[int]Handler),
	}
}

// Subscribe registers a handler for an event name and returns an
// unsubscribe function.
func (b *Bus) Subscribe(event string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, ok := b.subs[event]
	if !ok {
		handlers = make(map[int]Handler)
		b.subs[event] = handlers
	}

	id := b.nextID
	b.nextID++
	handlers[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[event], id)
	}
}

// Publish invokes every handler registered for the event. Handlers
// run synchronously on the publisher's goroutine.
func (b *Bus) Publish(event string, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event]))
	for _, fn := range b.subs[event] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(payload)
	}
}
