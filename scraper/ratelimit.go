package scraper

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterRegistry hands out one token-bucket limiter per source so that
// concurrent runs against different sources never share a budget.
type RateLimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiterRegistry creates an empty registry.
func NewRateLimiterRegistry() *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
	}
}

// Limiter returns the limiter for sourceID, creating it at the given
// requests-per-minute rate on first use. A later call with a different rate
// retunes the existing limiter.
func (r *RateLimiterRegistry) Limiter(sourceID string, requestsPerMinute int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit := rate.Limit(float64(requestsPerMinute) / 60.0)

	lim, ok := r.limiters[sourceID]
	if !ok {
		// Burst of 1 keeps request spacing even instead of front-loading.
		lim = rate.NewLimiter(limit, 1)
		r.limiters[sourceID] = lim
		return lim
	}

	if lim.Limit() != limit {
		lim.SetLimit(limit)
	}
	return lim
}

// Wait blocks until the source's limiter grants a token or ctx is done.
func (r *RateLimiterRegistry) Wait(ctx context.Context, sourceID string, requestsPerMinute int) error {
	return r.Limiter(sourceID, requestsPerMinute).Wait(ctx)
}
