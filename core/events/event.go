package events

import (
	"sync"

	"swapescrow/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// TypedEvent is implemented by events that carry a ledger event payload.
type TypedEvent interface {
	Event
	Event() *types.Event
}

// Buffer holds events until the enclosing transaction commits. It is not safe
// for concurrent use; each transaction owns its buffer.
type Buffer struct {
	events []Event
}

// Emit appends the event.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Flush forwards every buffered event to target and empties the buffer.
func (b *Buffer) Flush(target Emitter) {
	if target != nil {
		for _, evt := range b.events {
			target.Emit(evt)
		}
	}
	b.events = nil
}

// Reset drops the buffered events.
func (b *Buffer) Reset() { b.events = nil }

// Fanout delivers every event to each registered subscriber.
type Fanout struct {
	mu   sync.RWMutex
	subs []Emitter
}

// NewFanout returns a fanout with the supplied subscribers.
func NewFanout(subs ...Emitter) *Fanout {
	f := &Fanout{}
	for _, sub := range subs {
		f.Subscribe(sub)
	}
	return f
}

// Subscribe registers an additional subscriber. Nil subscribers are ignored.
func (f *Fanout) Subscribe(sub Emitter) {
	if sub == nil {
		return
	}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
}

// Emit implements the Emitter interface.
func (f *Fanout) Emit(evt Event) {
	f.mu.RLock()
	subs := f.subs
	f.mu.RUnlock()
	for _, sub := range subs {
		sub.Emit(evt)
	}
}
