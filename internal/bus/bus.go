// Package bus provides the string-keyed publish/subscribe facility the bridge
// routes pushes, responses and form events through.
//
// Embeddings that already have a compatible event facility can supply it as
// a Bus; Select falls back to the built-in Memory implementation otherwise.
package bus

import (
	"sync"
)

// Event is one delivery to a listener.
type Event struct {
	Name string
	Data any
}

// Listener receives events for the name it was registered under.
type Listener func(Event)

// ListenerID identifies a registration for Off.
type ListenerID uint64

// Bus is a publish/subscribe facility keyed by event name.
type Bus interface {
	// On registers a persistent listener.
	On(name string, fn Listener) ListenerID

	// Once registers a listener that is removed before its first invocation.
	Once(name string, fn Listener) ListenerID

	// Off removes a listener. It reports whether the listener was registered.
	Off(name string, id ListenerID) bool

	// Emit invokes every listener registered under name and returns how many
	// were invoked.
	Emit(name string, data any) int
}

// Select returns b when the embedding supplies one, otherwise a new Memory bus.
func Select(b Bus) Bus {
	if b != nil {
		return b
	}

	return New()
}

type registration struct {
	id   ListenerID
	fn   Listener
	once bool
}

// Memory is the built-in Bus. It is safe for concurrent use. Listeners run
// on the emitting goroutine, in registration order, and may register or
// remove listeners (including themselves) while running.
type Memory struct {
	mu        sync.Mutex
	listeners map[string][]registration
	nextID    ListenerID
}

// Compile-time verification that Memory implements Bus.
var _ Bus = (*Memory)(nil)

// New creates an empty Memory bus.
func New() *Memory {
	return &Memory{listeners: make(map[string][]registration, 16)}
}

// On registers a persistent listener.
func (b *Memory) On(name string, fn Listener) ListenerID {
	return b.add(name, fn, false)
}

// Once registers a one-shot listener.
func (b *Memory) Once(name string, fn Listener) ListenerID {
	return b.add(name, fn, true)
}

func (b *Memory) add(name string, fn Listener, once bool) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[name] = append(b.listeners[name], registration{id: id, fn: fn, once: once})

	return id
}

// Off removes a listener.
func (b *Memory) Off(name string, id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.removeLocked(name, id)
}

func (b *Memory) removeLocked(name string, id ListenerID) bool {
	stack := b.listeners[name]

	for i, reg := range stack {
		if reg.id != id {
			continue
		}

		stack = append(stack[:i:i], stack[i+1:]...)
		if len(stack) == 0 {
			delete(b.listeners, name)
		} else {
			b.listeners[name] = stack
		}

		return true
	}

	return false
}

// Emit invokes a snapshot of the listeners registered under name.
// One-shot listeners are removed before any listener runs.
func (b *Memory) Emit(name string, data any) int {
	b.mu.Lock()

	stack := b.listeners[name]
	snapshot := make([]registration, len(stack))
	copy(snapshot, stack)

	for _, reg := range snapshot {
		if reg.once {
			b.removeLocked(name, reg.id)
		}
	}

	b.mu.Unlock()

	event := Event{Name: name, Data: data}

	for _, reg := range snapshot {
		reg.fn(event)
	}

	return len(snapshot)
}

// Count returns the number of listeners registered under name.
func (b *Memory) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.listeners[name])
}
