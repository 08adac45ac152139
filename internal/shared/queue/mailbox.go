// Package queue provides an unbounded FIFO mailbox for passing messages
// between goroutines without blocking the sender.
package queue

import (
	"context"
	"sync"
)

// Mailbox is an unbounded, ordered, multi-producer queue.
// Put never blocks. Get blocks until an item arrives, the mailbox is
// closed or the context is cancelled.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	done   chan struct{}
	closed bool
}

// New creates an empty mailbox
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Put appends v. It reports false if the mailbox is closed.
func (m *Mailbox[T]) Put(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, v)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Get removes and returns the oldest item. ok is false once the mailbox
// is closed or ctx is done; pending items are dropped on close.
func (m *Mailbox[T]) Get(ctx context.Context) (v T, ok bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return v, false
		}
		if len(m.items) > 0 {
			v = m.items[0]
			var zero T
			m.items[0] = zero
			m.items = m.items[1:]
			m.mu.Unlock()
			return v, true
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-m.done:
		case <-ctx.Done():
			return v, false
		}
	}
}

// Close discards pending items and wakes every waiting Get.
// Calling Close more than once is a no-op.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.items = nil
	close(m.done)
}

// Done is closed when the mailbox closes
func (m *Mailbox[T]) Done() <-chan struct{} {
	return m.done
}

// Len returns the number of pending items
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
