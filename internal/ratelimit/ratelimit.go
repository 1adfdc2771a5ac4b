// Package ratelimit guards each peer's inbound command stream with its own
// token bucket, so one noisy connection can't starve the others or flood
// ServerState.Apply.
package ratelimit

import (
	"golang.org/x/time/rate"
)

// Limiter wraps a per-peer token bucket. The zero value is not usable; use
// New.
type Limiter struct {
	l *rate.Limiter
}

// New returns a limiter that permits ratePerSec commands/second on
// average, with bursts up to burst frames absorbed immediately.
func New(ratePerSec float64, burst int) *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow reports whether the next inbound frame may proceed to
// ServerState.Apply. A false result means the frame should be dropped and
// logged, not queued or retried — spec.md's flood-control addition is
// silent-drop, not backpressure.
func (l *Limiter) Allow() bool {
	return l.l.Allow()
}
