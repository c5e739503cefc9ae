package event

import "sync"

// Listener is a callback invoked for every emitted event.
type Listener func(Event)

// Bus fans events out to registered listeners. A panicking listener is
// recovered and skipped so it cannot take down the originating call.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener. Listeners cannot be removed; create a
// new bus when the listener set changes.
func (b *Bus) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Emit delivers ev to every listener in subscription order.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, fn := range listeners {
		deliver(fn, ev)
	}
}

// deliver invokes a single listener, recovering any panic.
func deliver(fn Listener, ev Event) {
	defer func() {
		_ = recover()
	}()
	fn(ev)
}
