package handshake

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces handshakes with a token bucket. A rate of 0 disables it.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a Limiter allowing r handshakes per second with the
// given burst. A burst below 1 is treated as 1.
func NewLimiter(r float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(r)
	if r <= 0 {
		limit = rate.Inf
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Allow reports whether a handshake may start now, consuming a token if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Wait blocks until a handshake may start or ctx ends. It returns how long
// it waited.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := l.limiter.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return time.Since(start), err
}
