package moderation

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock drives the scheduler and the rate limiter in tests. Sleep returns
// immediately and records the request; tickers fire only when told to.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	tickers []*fakeTicker
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) SleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{interval: d, ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// FireTicker fires the most recently created ticker with the given interval.
func (c *fakeClock) FireTicker(d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.tickers) - 1; i >= 0; i-- {
		if c.tickers[i].interval == d {
			c.tickers[i].ch <- c.now
			return true
		}
	}
	return false
}

func (c *fakeClock) TickerCount(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if t.interval == d {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	interval time.Duration
	ch       chan time.Time
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()                  {}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
