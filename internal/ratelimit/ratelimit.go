// Package ratelimit throttles outbound JSON-RPC calls.
package ratelimit

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/fd1az/dexswap/internal/apperror"
)

// Limiter wraps rate.Limiter. A nil *Limiter never throttles.
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute, with a burst of a
// tenth of that. A non-positive rate returns nil (unlimited).
func New(name string, requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}

	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

// Wait blocks until a call may proceed. If ctx ends first, or would end
// before a token frees up, it returns a rate-limit app error wrapping the
// context error.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithContext("limiter", l.name),
			apperror.WithCause(err),
		)
	}
	return nil
}

// Allow reports whether a call may happen now.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
