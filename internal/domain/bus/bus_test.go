package bus

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

func event(n int) types.Event {
	return types.Event{ID: strconv.Itoa(n), Type: "test"}
}

func TestPublishRegistrationOrder(t *testing.T) {
	b := New(nil)

	var calls []string
	b.Subscribe(func(types.Event) { calls = append(calls, "a") })
	b.Subscribe(func(types.Event) { calls = append(calls, "b") })
	b.Subscribe(func(types.Event) { calls = append(calls, "c") })

	b.Publish(event(1))
	assert.Equal(t, []string{"a", "b", "c"}, calls)
}

func TestPublishOrderPerSubscriber(t *testing.T) {
	b := New(nil)

	var got []string
	b.Subscribe(func(e types.Event) { got = append(got, e.ID) })

	for i := 0; i < 50; i++ {
		b.Publish(event(i))
	}

	require.Len(t, got, 50)
	for i, id := range got {
		assert.Equal(t, strconv.Itoa(i), id)
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	b := New(logging.Wrap(zap.New(core)))

	var reached bool
	b.Subscribe(func(types.Event) { panic("boom") })
	b.Subscribe(func(types.Event) { reached = true })

	assert.NotPanics(t, func() { b.Publish(event(1)) })
	assert.True(t, reached)
	assert.Equal(t, 1, logs.FilterMessage("event subscriber panicked").Len())
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)

	count := 0
	unsub := b.Subscribe(func(types.Event) { count++ })
	b.Publish(event(1))
	unsub()
	unsub()
	b.Publish(event(2))

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, b.Len())
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	b := New(nil)

	var calls []string
	var unsubB func()
	b.Subscribe(func(types.Event) {
		calls = append(calls, "a")
		unsubB()
	})
	unsubB = b.Subscribe(func(types.Event) { calls = append(calls, "b") })
	b.Subscribe(func(types.Event) { calls = append(calls, "c") })

	b.Publish(event(1))
	assert.Equal(t, []string{"a", "c"}, calls)

	calls = nil
	b.Publish(event(2))
	assert.Equal(t, []string{"a", "c"}, calls)
}

func TestSubscribeDuringPublishSeesNextEvent(t *testing.T) {
	b := New(nil)

	var late []string
	subscribed := false
	b.Subscribe(func(types.Event) {
		if !subscribed {
			subscribed = true
			b.Subscribe(func(e types.Event) { late = append(late, e.ID) })
		}
	})

	b.Publish(event(1))
	assert.Empty(t, late)

	b.Publish(event(2))
	assert.Equal(t, []string{"2"}, late)
}

func TestNestedPublishIsDeliveredAfterCurrentEvent(t *testing.T) {
	b := New(nil)

	var got []string
	b.Subscribe(func(e types.Event) {
		got = append(got, "a"+e.ID)
		if e.ID == "1" {
			b.Publish(event(2))
		}
	})
	b.Subscribe(func(e types.Event) { got = append(got, "b"+e.ID) })

	b.Publish(event(1))
	assert.Equal(t, []string{"a1", "b1", "a2", "b2"}, got)
}

func TestDispose(t *testing.T) {
	b := New(nil)

	count := 0
	b.Subscribe(func(types.Event) { count++ })
	b.Dispose()
	b.Dispose()

	b.Publish(event(1))
	unsub := b.Subscribe(func(types.Event) { count++ })
	unsub()
	b.Publish(event(2))

	assert.Equal(t, 0, count)
	assert.Equal(t, 0, b.Len())
}

func TestConcurrentPublishersTotalOrder(t *testing.T) {
	b := New(nil)

	var mu sync.Mutex
	var first, second []string
	b.Subscribe(func(e types.Event) { mu.Lock(); first = append(first, e.ID); mu.Unlock() })
	b.Subscribe(func(e types.Event) { mu.Lock(); second = append(second, e.ID); mu.Unlock() })

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Publish(event(p*1000 + i))
			}
		}(p)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, first, 400)
	assert.Equal(t, first, second)
}

func TestTicker(t *testing.T) {
	b := New(nil)

	ticks := make(chan types.Event, 100)
	b.Subscribe(func(e types.Event) { ticks <- e })

	tk := NewTicker(b, 5*time.Millisecond)
	tk.Start()
	tk.Start()
	assert.True(t, tk.Running())

	select {
	case e := <-ticks:
		assert.True(t, e.IsTick())
		assert.Empty(t, e.ID)
	case <-time.After(time.Second):
		t.Fatal("no tick published")
	}

	tk.Stop()
	tk.Stop()
	assert.False(t, tk.Running())

	for len(ticks) > 0 {
		<-ticks
	}
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, ticks, 0)
}

func TestTickerDefaultInterval(t *testing.T) {
	tk := NewTicker(New(nil), 0)
	assert.Equal(t, DefaultTickInterval, tk.interval)
}

func TestPublishDuringDispatchIsQueued(t *testing.T) {
	b := New(nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var got []string
	b.Subscribe(func(e types.Event) {
		if e.ID == "1" {
			close(entered)
			<-release
		}
		mu.Lock()
		got = append(got, e.ID)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		b.Publish(event(1))
		close(done)
	}()
	<-entered

	// returns at once; the goroutine already dispatching delivers it
	b.Publish(event(2))
	mu.Lock()
	assert.Empty(t, got)
	mu.Unlock()

	close(release)
	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "2"}, got)
}
