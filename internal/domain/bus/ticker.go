package bus

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// DefaultTickInterval is how often TICK is published
const DefaultTickInterval = 100 * time.Millisecond

// Ticker publishes TICK on a bus at a fixed interval until stopped.
type Ticker struct {
	bus      *Bus
	interval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewTicker creates a stopped ticker. A non-positive interval falls back
// to DefaultTickInterval.
func NewTicker(b *Bus, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{bus: b, interval: interval}
}

// Start begins ticking. Starting a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go t.run(t.stop, t.done)
}

func (t *Ticker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.bus.Publish(types.TickEvent())
		}
	}
}

// Stop halts ticking and waits for the ticking goroutine to exit.
// Stopping a stopped ticker is a no-op.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	stop, done := t.stop, t.done
	t.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the ticker is active
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
