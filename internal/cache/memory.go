package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// Memory is an in-process Cache used by tests and local development.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	counts  map[string]int64
	now     func() time.Time
}

// NewMemory constructs an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		counts:  make(map[string]int64),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if ttlSeconds > 0 {
		exp = m.now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	m.entries[key] = entry{value: value, expires: exp}
	return nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) DelPrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

var _ Cache = (*Memory)(nil)
