package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxFIFO(t *testing.T) {
	m := New[int]()
	for i := 0; i < 100; i++ {
		require.True(t, m.Put(i))
	}
	assert.Equal(t, 100, m.Len())

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		v, ok := m.Get(ctx)
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, m.Len())
}

func TestMailboxGetBlocksUntilPut(t *testing.T) {
	m := New[string]()
	got := make(chan string, 1)

	go func() {
		v, _ := m.Get(context.Background())
		got <- v
	}()

	select {
	case <-got:
		t.Fatal("Get returned before Put")
	case <-time.After(20 * time.Millisecond):
	}

	m.Put("hello")
	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up")
	}
}

func TestMailboxClose(t *testing.T) {
	m := New[int]()
	m.Put(1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-m.Done()
	}()

	m.Close()
	m.Close()
	wg.Wait()

	assert.False(t, m.Put(2))
	_, ok := m.Get(context.Background())
	assert.False(t, ok)
}

func TestMailboxContextCancel(t *testing.T) {
	m := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok := m.Get(ctx)
	assert.False(t, ok)
}

func TestMailboxConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	m := New[[2]int]()
	const producers, perProducer = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.Put([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for i := 0; i < producers*perProducer; i++ {
		v, ok := m.Get(context.Background())
		require.True(t, ok)
		assert.Greater(t, v[1], last[v[0]])
		last[v[0]] = v[1]
	}
}
