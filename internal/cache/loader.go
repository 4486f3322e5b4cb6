package cache

import (
	"context"
	"fmt"
	"time"
)

// Loader is a typed view of one Memo key.
type Loader[T any] struct {
	memo *Memo
	key  string
	load func(ctx context.Context) (T, error)
}

// NewLoader binds load to key in memo.
func NewLoader[T any](memo *Memo, key string, load func(ctx context.Context) (T, error)) *Loader[T] {
	return &Loader[T]{memo: memo, key: key, load: load}
}

// Key returns the memo key of the loader.
func (l *Loader[T]) Key() string {
	return l.key
}

// Get returns the memoized value.
func (l *Loader[T]) Get(ctx context.Context) (T, error) {
	value, _, err := l.Snapshot(ctx)
	return value, err
}

// Snapshot returns the memoized value together with the time it was loaded.
func (l *Loader[T]) Snapshot(ctx context.Context) (T, time.Time, error) {
	var zero T
	entry, err := l.memo.get(ctx, l.key, func(ctx context.Context) (any, error) {
		v, err := l.load(ctx)
		return v, err
	})
	if err != nil {
		return zero, time.Time{}, err
	}
	value, ok := entry.Value.(T)
	if !ok {
		return zero, time.Time{}, fmt.Errorf("cache key %q holds %T", l.key, entry.Value)
	}
	return value, entry.Timestamp, nil
}
