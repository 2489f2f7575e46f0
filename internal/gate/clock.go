package gate

import (
	"context"
	"time"
)

// clock abstracts wall-clock reads so bucket, breaker, and cache transition
// logic can be unit tested without sleeping.
type clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// sleepCtx sleeps for d or until ctx is done. Returns false if the context
// ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
