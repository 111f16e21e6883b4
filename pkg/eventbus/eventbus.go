package eventbus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler receives the payload passed to Emit.
type Handler func(payload any)

// Bus is a process-local named-event publish/subscribe. Handlers run
// synchronously in registration order; a panicking handler does not stop
// the others. There is no delivery guarantee, persistence or backpressure.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*entry
}

type entry struct {
	fn Handler
}

func New() *Bus {
	return &Bus{handlers: make(map[string][]*entry)}
}

// On registers handler for event and returns a token used by Off.
func (b *Bus) On(event string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := &entry{fn: handler}
	b.handlers[event] = append(b.handlers[event], e)
	return &Subscription{bus: b, event: event, entry: e}
}

// Emit invokes every handler registered for event, in registration order.
func (b *Bus) Emit(event string, payload any) {
	b.mu.Lock()
	list := make([]*entry, len(b.handlers[event]))
	copy(list, b.handlers[event])
	b.mu.Unlock()

	for _, e := range list {
		invoke(event, e.fn, payload)
	}
}

func invoke(event string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[BUS] Handler panic on %q: %v", event, r)
		}
	}()
	fn(payload)
}

func (b *Bus) off(event string, e *entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[event]
	for i, cur := range list {
		if cur == e {
			b.handlers[event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Subscription identifies a single On registration.
type Subscription struct {
	bus   *Bus
	event string
	entry *entry
}

// Off removes the registration. Safe to call more than once.
func (s *Subscription) Off() {
	s.bus.off(s.event, s.entry)
}
