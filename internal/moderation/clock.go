package moderation

import (
	"context"
	"time"
)

// Clock abstracts time for the scheduler and the rate limiter so interval
// firing and pauses are testable without wall-clock sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type systemClock struct{}

func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct{ ticker *time.Ticker }

func (t systemTicker) Chan() <-chan time.Time { return t.ticker.C }
func (t systemTicker) Stop()                  { t.ticker.Stop() }
