// Package feed holds the bounded list of events shown on the dashboard.
package feed

import (
	"sync"

	"github.com/rpattn/streamgate/internal/domain"
)

// DefaultCapacity is the number of most recent events kept.
const DefaultCapacity = 50

// Feed is a most-recent-first list of events capped at a fixed capacity.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	events   []domain.Event
}

// New returns an empty feed. A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{capacity: capacity, events: make([]domain.Event, 0, capacity)}
}

// Prepend puts events at the front one by one, so the last argument ends up first.
// Entries beyond capacity are dropped from the tail.
func (f *Feed) Prepend(events ...domain.Event) {
	if len(events) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make([]domain.Event, 0, f.capacity)
	for i := len(events) - 1; i >= 0 && len(next) < f.capacity; i-- {
		next = append(next, events[i])
	}
	for _, e := range f.events {
		if len(next) >= f.capacity {
			break
		}
		next = append(next, e)
	}
	f.events = next
}

// Latest returns the newest event, the dashboard indicator.
func (f *Feed) Latest() (domain.Event, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.events) == 0 {
		return domain.Event{}, false
	}
	return f.events[0], true
}

// Snapshot returns a copy of the list, newest first.
func (f *Feed) Snapshot() []domain.Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]domain.Event(nil), f.events...)
}

// Find returns the event with the given id.
func (f *Feed) Find(id string) (domain.Event, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, e := range f.events {
		if e.ID.String() == id {
			return e, true
		}
	}
	return domain.Event{}, false
}

// Len returns the number of events held.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.events)
}

// Capacity returns the maximum number of events held.
func (f *Feed) Capacity() int {
	return f.capacity
}

// Clear empties the list.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = make([]domain.Event, 0, f.capacity)
}
