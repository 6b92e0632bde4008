package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryLayer is an in-process LRU cache with a fixed time to live.
type MemoryLayer struct {
	lru *expirable.LRU[string, *Entry]
}

// NewMemoryLayer creates a memory layer holding at most size entries.
func NewMemoryLayer(size int, ttl time.Duration) *MemoryLayer {
	if size <= 0 {
		size = 1024
	}
	return &MemoryLayer{
		lru: expirable.NewLRU[string, *Entry](size, nil, ttl),
	}
}

// Name returns the layer label used in metrics.
func (m *MemoryLayer) Name() string { return "memory" }

// Get retrieves a cache entry by key.
func (m *MemoryLayer) Get(_ context.Context, key Key) (*Entry, error) {
	entry, ok := m.lru.Get(key.String())
	if !ok || entry.IsExpired() {
		return nil, ErrCacheMiss
	}
	return entry, nil
}

// Set stores a cache entry.
func (m *MemoryLayer) Set(_ context.Context, key Key, entry *Entry) error {
	if entry == nil || entry.Result == nil {
		return ErrInvalidEntry
	}
	if entry.IsExpired() {
		return nil
	}
	m.lru.Add(key.String(), entry)
	return nil
}

// Delete removes a cache entry.
func (m *MemoryLayer) Delete(_ context.Context, key Key) error {
	m.lru.Remove(key.String())
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryLayer) Len() int {
	return m.lru.Len()
}
