// Package cache stores rendered artefacts, such as BOM spreadsheet exports,
// keyed by tenant and document.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache: miss")

// Store is a byte cache with per-entry expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// BOMExportKey names the cached spreadsheet export of a bill of materials.
func BOMExportKey(ownerID, bomID uint) string {
	return fmt.Sprintf("platecost:bom:%d:%d:xlsx", ownerID, bomID)
}

// Noop never stores anything. It is used when no redis URL is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) {
	return nil, ErrMiss
}

func (Noop) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (Noop) Delete(context.Context, ...string) error {
	return nil
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store for tests and single-instance development.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, ErrMiss
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}
