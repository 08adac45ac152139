package storage

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrEmptyKey = errors.New("storage key required")
	ErrClosed   = errors.New("store is closed")
)

// Store keeps one JSON blob per widget key
type Store interface {
	// Load returns the blob for key; ok is false when nothing is stored
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Memory is a process-local Store
type Memory struct {
	cache  sync.Map
	mu     sync.RWMutex
	closed bool
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, bool, error) {
	if err := m.check(key); err != nil {
		return nil, false, err
	}
	v, ok := m.cache.Load(key)
	if !ok {
		return nil, false, nil
	}
	return clone(v.([]byte)), true, nil
}

func (m *Memory) Save(_ context.Context, key string, data []byte) error {
	if err := m.check(key); err != nil {
		return err
	}
	m.cache.Store(key, clone(data))
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	if err := m.check(key); err != nil {
		return err
	}
	m.cache.Delete(key)
	return nil
}

func (m *Memory) Keys(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var keys []string
	m.cache.Range(func(k, _ interface{}) bool {
		keys = append(keys, k.(string))
		return true
	})
	return keys, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) check(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
