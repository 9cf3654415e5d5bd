package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by the HTTP providers.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows capacity calls in a burst and adds one token every
// interval. A non-positive interval disables limiting.
func NewRateLimiter(capacity int, every time.Duration) *RateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, capacity)}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Available reports the whole tokens left without consuming one.
func (r *RateLimiter) Available() int {
	return int(r.limiter.Tokens())
}
