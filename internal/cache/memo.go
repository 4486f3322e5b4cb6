// Package cache memoizes the results of zero-argument loaders for a fixed TTL.
package cache

import (
	"context"
	"sync"
	"time"

	"presence/internal/metrics"
)

// DefaultTTL is used when a non-positive TTL is configured.
const DefaultTTL = 600 * time.Second

// LoadFunc produces a fresh value for a cache key.
type LoadFunc func(ctx context.Context) (any, error)

// ReloadHook is called after every load attempt with its duration and result.
type ReloadHook func(key string, took time.Duration, err error)

// Entry is a memoized value and the time it was loaded.
type Entry struct {
	Timestamp time.Time
	Value     any
}

type slot struct {
	mu    sync.Mutex
	entry *Entry
}

// Memo serves a cached value per key until it is TTL old, then reloads it.
// Every key has its own lock held across the check, the reload and the store,
// so one key is never reloaded twice concurrently and keys do not block each
// other.
type Memo struct {
	ttl      time.Duration
	now      func() time.Time
	onReload ReloadHook

	mu    sync.Mutex
	slots map[string]*slot
}

// Option configures a Memo.
type Option func(*Memo)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Memo) {
		if now != nil {
			m.now = now
		}
	}
}

// WithReloadHook registers a callback invoked after each load.
func WithReloadHook(hook ReloadHook) Option {
	return func(m *Memo) {
		m.onReload = hook
	}
}

// New creates an empty cache.
func New(ttl time.Duration, opts ...Option) *Memo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memo{
		ttl:   ttl,
		now:   time.Now,
		slots: make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured time-to-live.
func (m *Memo) TTL() time.Duration {
	return m.ttl
}

// Get returns the cached value for key, calling load when there is no entry
// or the entry is at least TTL old. A failed load leaves the previous entry in
// place and returns the error.
func (m *Memo) Get(ctx context.Context, key string, load LoadFunc) (any, error) {
	entry, err := m.get(ctx, key, load)
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

func (m *Memo) get(ctx context.Context, key string, load LoadFunc) (Entry, error) {
	s := m.slot(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.now()
	if s.entry != nil && now.Sub(s.entry.Timestamp) < m.ttl {
		metrics.IncCacheHit(key)
		return *s.entry, nil
	}

	metrics.IncCacheMiss(key)
	value, err := load(ctx)
	took := m.now().Sub(now)
	metrics.ObserveReload(key, took)
	if m.onReload != nil {
		m.onReload(key, took, err)
	}
	if err != nil {
		metrics.IncCacheError(key)
		return Entry{}, err
	}

	s.entry = &Entry{Timestamp: now, Value: value}
	return *s.entry, nil
}

// Entry returns the stored entry for key, if any, without loading.
func (m *Memo) Entry(key string) (Entry, bool) {
	m.mu.Lock()
	s, ok := m.slots[key]
	m.mu.Unlock()
	if !ok {
		return Entry{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return Entry{}, false
	}
	return *s.entry, true
}

// Reset drops every entry. Intended for tests.
func (m *Memo) Reset() {
	m.mu.Lock()
	m.slots = make(map[string]*slot)
	m.mu.Unlock()
}

func (m *Memo) slot(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{}
		m.slots[key] = s
	}
	return s
}
