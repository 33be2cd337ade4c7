package client

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces outbound requests to one host. A single Throttle is shared by every
// goroutine that talks to that host.
type Throttle struct {
	limiter *rate.Limiter
	jitter  time.Duration
}

// NewThrottle allows one request per minDelay, each preceded by a random pause of up to jitter
func NewThrottle(minDelay, jitter time.Duration) *Throttle {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}
	return &Throttle{
		limiter: rate.NewLimiter(limit, 1),
		jitter:  jitter,
	}
}

func (t *Throttle) Wait(ctx context.Context) error {
	if t.jitter > 0 {
		timer := time.NewTimer(rand.N(t.jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return t.limiter.Wait(ctx)
}
