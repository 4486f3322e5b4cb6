package repository

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by a ReportCache when the key is absent or expired.
var ErrCacheMiss = errors.New("report cache miss")

// ReportCache stores serialized report results keyed by string.
type ReportCache interface {
	// Get decodes the value stored under key into out. It returns ErrCacheMiss
	// when there is nothing to decode.
	Get(ctx context.Context, key string, out any) error
	// Set stores val under key for ttl.
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
}
