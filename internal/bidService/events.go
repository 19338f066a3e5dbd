package bid

import (
	"sort"

	"bidio/internal/models"
)

// EventName names a lifecycle event emitted by Bid
type EventName string

const (
	EventFetch    EventName = "fetch"
	EventLock     EventName = "lock"
	EventUnlock   EventName = "unlock"
	EventPending  EventName = "pending"
	EventComplete EventName = "complete"
	EventUpdate   EventName = "update"
	EventError    EventName = "error"
)

// Event is delivered to observers after an operation settles. Err is set
// only for EventError.
type Event struct {
	Name EventName
	ID   int64
	Bid  models.Bid
	Err  error
}

// OnEvent registers fn for every event and returns a function removing it.
// Observers run synchronously on the goroutine that completed the operation.
func (b *Bid) OnEvent(fn func(Event)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	key := b.next
	b.observers[key] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers, key)
	}
}

func (b *Bid) emit(ev Event) {
	b.mu.RLock()
	keys := make([]int, 0, len(b.observers))
	for k := range b.observers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, b.observers[k])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
