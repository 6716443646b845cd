// Package ratelimit paces media fetches so a large profile does not hammer
// the platform CDN. One limiter is shared by every download worker in a run.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
	"profilegrab/pkg/config"
)

// Limiter blocks callers until they may issue another request
type Limiter interface {
	Allow() bool
	Wait(ctx context.Context) error
}

// TokenBucket is a Limiter backed by x/time/rate
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows perSecond requests on average with bursts of burst
func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// FromConfig builds the download limiter. A non-positive rate disables limiting.
func FromConfig(cfg config.RateLimitConfig) Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(cfg.RequestsPerSecond, cfg.Burst)
}

func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
