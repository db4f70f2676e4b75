package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces out requests to an inner Generator so a shared API key
// stays inside its per-minute quota. It does not retry.
type RateLimited struct {
	inner   Generator
	limiter *rate.Limiter
}

var _ Generator = (*RateLimited)(nil)

// NewRateLimited allows requestsPerMinute calls per minute with a burst of one.
func NewRateLimited(inner Generator, requestsPerMinute int) *RateLimited {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
	}
}

// Generate waits for a token, then delegates.
func (r *RateLimited) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %v", ErrTransport, err)
	}
	return r.inner.Generate(ctx, prompt, opts)
}

// ModelName implements Generator.
func (r *RateLimited) ModelName() string {
	return r.inner.ModelName()
}
