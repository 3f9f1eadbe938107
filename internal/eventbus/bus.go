package eventbus

import (
	"sync"
)

// Handler receives every published event. Handlers must not block for long
// periods — the bus calls them synchronously from the publisher's
// goroutine — and any panic or be isolated by Publish so it never reaches
// other handlers or the caller.
type Handler func(AgentEvent)

// Unsubscribe removes a previously subscribed handler.
type Unsubscribe func()

// Bus is a synchronous publish/subscribe fan-out with per-handler error
// isolation. Delivery order equals subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers []*subscription
	nextID   int
}

type subscription struct {
	id      int
	handler Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers handler and returns a func to remove it.
func (b *Bus) Subscribe(handler Handler) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, &subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.handlers {
			if s.id == id {
				b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every subscribed handler in subscription order. A
// handler that panics is recovered and swallowed so it never interrupts
// delivery to the remaining handlers or to the caller; no error is ever
// returned to the publisher per the bus's error taxonomy.
func (b *Bus) Publish(ev AgentEvent) {
	b.mu.RLock()
	handlers := make([]*subscription, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, s := range handlers {
		b.deliver(s.handler, ev)
	}
}

func (b *Bus) deliver(h Handler, ev AgentEvent) {
	defer func() {
		recover()
	}()
	h(ev)
}
