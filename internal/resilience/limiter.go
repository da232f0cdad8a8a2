package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter delays callers; it never rejects them.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewMinInterval spaces successive Wait returns at least interval apart
// across all callers. A non-positive interval disables spacing.
func NewMinInterval(interval time.Duration) Limiter {
	if interval <= 0 {
		return Unlimited{}
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
