// Package ratelimit throttles how fast stream bytes are handed to a parser.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type Limiter struct {
	limiter *rate.Limiter
}

// New limits throughput to bytesPerSecond, letting up to burst bytes through
// at once. Use 0 or a negative rate for no limit.
func New(bytesPerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	if bytesPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

// WaitN blocks until n bytes may pass. Requests larger than the burst are
// split so a single oversized chunk cannot fail the wait.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	burst := l.limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := l.limiter.WaitN(ctx, step); err != nil {
			return fmt.Errorf("waiting for %d bytes: %w", step, err)
		}
		n -= step
	}
	return nil
}

// Limit returns the configured rate, 0 when unlimited.
func (l *Limiter) Limit() float64 {
	limit := l.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	return float64(limit)
}
