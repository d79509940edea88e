package nobitex

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces one endpoint's (MI, RL, RP) tuple for one owner.
//
// Two gates, both must pass before Acquire returns:
//   - window: at most RL acquisitions inside any sliding RP window, tracked
//     in a fixed ring of the last RL acquisition instants;
//   - spacing: consecutive acquisitions at least MI apart, delegated to a
//     golang.org/x/time/rate limiter with burst 1.
//
// State is private to the owning stream; there is no cross-process
// coordination.
type Limiter struct {
	ep      Endpoint
	spacing *rate.Limiter

	mu    sync.Mutex
	ring  []time.Time // last RL acquisition instants
	head  int         // next write position
	count int
}

// NewLimiter builds a limiter for an endpoint row.
func NewLimiter(ep Endpoint) *Limiter {
	rl := ep.RateLimit
	if rl < 1 {
		rl = 1
	}
	var spacing *rate.Limiter
	if ep.MinInterval > 0 {
		spacing = rate.NewLimiter(rate.Every(ep.MinInterval), 1)
	}
	return &Limiter{
		ep:   ep,
		ring: make([]time.Time, rl),

		spacing: spacing,
	}
}

// Acquire blocks until both gates open or ctx is cancelled. The acquisition
// is recorded at the instant both gates have passed.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.spacing != nil {
		if err := l.spacing.Wait(ctx); err != nil {
			return err
		}
	}
	for {
		wait := l.tryReserve()
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryReserve records an acquisition if the window has room, otherwise
// returns how long until the oldest recorded instant leaves the window.
func (l *Limiter) tryReserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.count == len(l.ring) {
		oldest := l.ring[l.head] // head points at the oldest once full
		if age := now.Sub(oldest); age < l.ep.RatePeriod {
			return l.ep.RatePeriod - age
		}
		l.count-- // oldest fell out of the window
	}
	l.ring[l.head] = now
	l.head = (l.head + 1) % len(l.ring)
	l.count++
	return 0
}

// InWindow returns how many recorded acquisitions are still inside the
// sliding RP window. Exposed for tests and metrics.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	n := 0
	for i := 0; i < l.count; i++ {
		pos := (l.head - 1 - i + len(l.ring)) % len(l.ring)
		if now.Sub(l.ring[pos]) < l.ep.RatePeriod {
			n++
		}
	}
	return n
}
