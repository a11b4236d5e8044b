package outbound

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// EndpointLimiter throttles outbound calls per endpoint so one chatty
// tenant cannot starve its own receiver. Unknown endpoints get a fresh
// limiter on first use.
type EndpointLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewEndpointLimiter allows perSecond calls per endpoint with the given
// burst. A zero or negative rate disables limiting.
func NewEndpointLimiter(perSecond float64, burst int) *EndpointLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &EndpointLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *EndpointLimiter) Wait(ctx context.Context, endpointID string) error {
	if l == nil {
		return nil
	}
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return fmt.Errorf("outbound: endpoint id is required")
	}

	l.mu.Lock()
	limiter, ok := l.limiters[endpointID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[endpointID] = limiter
	}
	l.mu.Unlock()

	return limiter.Wait(ctx)
}

// Allow reports whether a call may proceed right now without waiting.
func (l *EndpointLimiter) Allow(endpointID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.limiters[strings.TrimSpace(endpointID)]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[strings.TrimSpace(endpointID)] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
