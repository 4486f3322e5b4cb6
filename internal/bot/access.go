package bot

import (
	"sync"

	"golang.org/x/time/rate"
)

type accessStatus string

const (
	accessOK      accessStatus = "ok"
	accessDenied  accessStatus = "denied"
	accessLimited accessStatus = "limited"
)

func (s accessStatus) message() string {
	switch s {
	case accessDenied:
		return "Access denied."
	case accessLimited:
		return "Too many requests, please slow down."
	default:
		return ""
	}
}

// accessControl serves only allowed users, each through its own limiter.
// An empty allow list serves everyone.
type accessControl struct {
	allowed map[int64]struct{}
	limit   rate.Limit
	burst   int

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

func newAccessControl(allowed []int64, perSecond float64, burst int) *accessControl {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	a := &accessControl{
		allowed:  make(map[int64]struct{}, len(allowed)),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[int64]*rate.Limiter),
	}
	for _, id := range allowed {
		a.allowed[id] = struct{}{}
	}
	return a
}

func (a *accessControl) check(userID int64) accessStatus {
	if len(a.allowed) > 0 {
		if _, ok := a.allowed[userID]; !ok {
			return accessDenied
		}
	}
	if !a.limiter(userID).Allow() {
		return accessLimited
	}
	return accessOK
}

func (a *accessControl) limiter(userID int64) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[userID]
	if !ok {
		l = rate.NewLimiter(a.limit, a.burst)
		a.limiters[userID] = l
	}
	return l
}
