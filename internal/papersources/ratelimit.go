// Package papersources provides clients for external bibliographic metadata providers.
package papersources

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum interval between calls to one external source.
//
// The underlying token bucket has a burst of one, so consecutive acquisitions
// are spaced by at least 1/callsPerSecond. Callers are serialized through a
// mutex: only one goroutine waits on the bucket at a time, and the next caller
// starts its own wait only after the previous one has been granted. This keeps
// a queue of concurrent callers from bursting once the interval elapses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing callsPerSecond acquisitions per
// second. A non-positive rate disables limiting.
//
// Example configurations:
//   - arXiv: NewRateLimiter(0.33) for one call every ~3 seconds
//   - PubMed: NewRateLimiter(3) for the NCBI guideline without an API key
func NewRateLimiter(callsPerSecond float64) *RateLimiter {
	limit := rate.Inf
	if callsPerSecond > 0 {
		limit = rate.Limit(callsPerSecond)
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Wait blocks until the caller may issue a request or ctx is done.
// It returns an error if the context is canceled or its deadline would be
// exceeded before the slot opens.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limiter.Wait(ctx)
}

// Interval returns the minimum spacing between acquisitions.
func (r *RateLimiter) Interval() time.Duration {
	limit := r.limiter.Limit()
	if limit == rate.Inf || limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}

// SetRate updates the rate. This can be used to slow down after the provider
// signals throttling.
func (r *RateLimiter) SetRate(callsPerSecond float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if callsPerSecond <= 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(callsPerSecond))
}
