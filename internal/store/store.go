// Package store provides the in-memory key-value stores used to hand
// analysis results and uploaded workbooks between goroutines.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is a concurrency safe string keyed store.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Keys() []string
	Len() int
	Clear()
}

// Memory is an unbounded store guarded by a read-write mutex.
type Memory[V any] struct {
	items map[string]V
	mu    sync.RWMutex
}

// NewMemory creates an empty unbounded store.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{
		items: make(map[string]V),
	}
}

// Get retrieves the value stored under key
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// Set stores value under key, replacing any previous value
func (m *Memory[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
}

func (m *Memory[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// Keys returns the stored keys in sorted order
func (m *Memory[V]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]V)
}

// LRU is a bounded store that evicts the least recently used entry.
type LRU[V any] struct {
	cache *lru.Cache[string, V]
}

// NewLRU creates a store holding at most size entries.
func NewLRU[V any](size int) (*LRU[V], error) {
	cache, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru store: %w", err)
	}
	return &LRU[V]{cache: cache}, nil
}

func (l *LRU[V]) Get(key string) (V, bool) {
	return l.cache.Get(key)
}

func (l *LRU[V]) Set(key string, value V) {
	l.cache.Add(key, value)
}

func (l *LRU[V]) Delete(key string) {
	l.cache.Remove(key)
}

// Keys returns the keys from oldest to newest
func (l *LRU[V]) Keys() []string {
	return l.cache.Keys()
}

func (l *LRU[V]) Len() int {
	return l.cache.Len()
}

func (l *LRU[V]) Clear() {
	l.cache.Purge()
}

// New returns an LRU store when size is positive and an unbounded store
// otherwise.
func New[V any](size int) (Store[V], error) {
	if size <= 0 {
		return NewMemory[V](), nil
	}
	return NewLRU[V](size)
}

// Wait polls s every interval until key is present or ctx is done.
func Wait[V any](ctx context.Context, s Store[V], key string, interval time.Duration) (V, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		case <-ticker.C:
			if v, ok := s.Get(key); ok {
				return v, nil
			}
		}
	}
}
