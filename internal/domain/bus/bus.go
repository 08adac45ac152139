// Package bus is the process-wide event bus every mounted widget listens
// on, plus the ticker that drives time-based widgets.
package bus

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// Callback receives published events
type Callback func(event types.Event)

type subscription struct {
	id      uint64
	cb      Callback
	removed atomic.Bool
}

// Bus is a synchronous, in-order, in-process publish/subscribe hub.
//
// Publish invokes every registered callback in registration order before
// returning. Events published while a delivery is in progress (from a
// callback or another goroutine) are queued and delivered afterwards, so
// every subscriber observes one global publish order.
type Bus struct {
	mu          sync.Mutex
	subs        []*subscription
	pending     []types.Event
	dispatching bool
	disposed    bool
	nextID      uint64
	logger      *logging.Logger
}

// New creates an event bus
func New(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers cb and returns a function that removes it.
// Unsubscribing twice is harmless. After Dispose, Subscribe registers
// nothing and returns a no-op.
func (b *Bus) Subscribe(cb Callback) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disposed {
		return func() {}
	}

	b.nextID++
	sub := &subscription{id: b.nextID, cb: cb}

	// Copy-on-write so in-flight snapshots are never mutated.
	subs := make([]*subscription, len(b.subs), len(b.subs)+1)
	copy(subs, b.subs)
	b.subs = append(subs, sub)

	return func() { b.remove(sub) }
}

func (b *Bus) remove(sub *subscription) {
	if sub.removed.Swap(true) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s != sub {
			subs = append(subs, s)
		}
	}
	b.subs = subs
}

// Publish delivers event to every current subscriber. A panicking
// callback is logged and does not stop delivery to the rest.
func (b *Bus) Publish(event types.Event) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.pending = append(b.pending, event)
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true

	for len(b.pending) > 0 && !b.disposed {
		ev := b.pending[0]
		b.pending = b.pending[1:]
		subs := b.subs
		b.mu.Unlock()

		for _, sub := range subs {
			if sub.removed.Load() {
				continue
			}
			b.deliver(sub, ev)
		}

		b.mu.Lock()
	}

	b.pending = nil
	b.dispatching = false
	b.mu.Unlock()
}

func (b *Bus) deliver(sub *subscription, event types.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				zap.String("event", event.Type),
				zap.Uint64("subscriber", sub.id),
				zap.Any("panic", r),
			)
		}
	}()
	sub.cb(event)
}

// Dispose drops every subscriber and makes the bus inert. Idempotent.
func (b *Bus) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		s.removed.Store(true)
	}
	b.subs = nil
	b.pending = nil
	b.disposed = true
}

// Len returns the number of live subscribers
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
