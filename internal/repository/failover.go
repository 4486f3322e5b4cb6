package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"presence/internal/metrics"
)

const recoveryInterval = time.Minute

// FailoverReportCache uses the primary cache while it is healthy and switches
// to the fallback when the primary errors. The primary is retried once per
// recoveryInterval while it is marked down.
type FailoverReportCache struct {
	primary  ReportCache
	fallback ReportCache
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

// NewFailoverReportCache combines a primary and a fallback cache.
func NewFailoverReportCache(primary, fallback ReportCache, logger *zerolog.Logger) *FailoverReportCache {
	return &FailoverReportCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverReportCache) Get(ctx context.Context, key string, out any) error {
	if !r.usePrimary() {
		return r.observe("fallback", r.fallback.Get(ctx, key, out))
	}

	err := r.primary.Get(ctx, key, out)
	if err == nil || errors.Is(err, ErrCacheMiss) {
		r.markUp()
		return r.observe("primary", err)
	}

	r.markDown(err)
	return r.observe("fallback", r.fallback.Get(ctx, key, out))
}

func (r *FailoverReportCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	if !r.usePrimary() {
		return r.fallback.Set(ctx, key, val, ttl)
	}

	err := r.primary.Set(ctx, key, val, ttl)
	if err == nil {
		r.markUp()
		return nil
	}

	r.markDown(err)
	return r.fallback.Set(ctx, key, val, ttl)
}

func (r *FailoverReportCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) < recoveryInterval {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverReportCache) markDown(err error) {
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()

	if !r.isDown.Swap(true) && r.logger != nil {
		r.logger.Warn().Err(err).Msg("report cache primary unavailable, using fallback")
	}
}

func (r *FailoverReportCache) markUp() {
	if r.isDown.Swap(false) && r.logger != nil {
		r.logger.Info().Msg("report cache primary recovered")
	}
}

func (r *FailoverReportCache) observe(backend string, err error) error {
	switch {
	case err == nil:
		metrics.IncReportCache(backend, "hit")
	case errors.Is(err, ErrCacheMiss):
		metrics.IncReportCache(backend, "miss")
	default:
		metrics.IncReportCache(backend, "error")
	}
	return err
}
