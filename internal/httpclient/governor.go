package httpclient

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// hostGovernor enforces a minimum interval between requests to the same
// host. Callers sharing a host are serialized; distinct hosts do not block
// each other.
type hostGovernor struct {
	mu          sync.Mutex
	minInterval time.Duration
	maxInterval time.Duration
	lastByHost  map[string]time.Time
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

func newHostGovernor(minInterval, maxInterval time.Duration) *hostGovernor {
	if minInterval < 0 {
		minInterval = 0
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &hostGovernor{
		minInterval: minInterval,
		maxInterval: maxInterval,
		lastByHost:  make(map[string]time.Time),
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Wait blocks until the host's interval has elapsed, then reserves the slot.
// The interval is jittered between min and max to avoid lock-step request
// patterns against the vendor.
func (g *hostGovernor) Wait(ctx context.Context, host string) error {
	if g == nil || g.minInterval <= 0 || host == "" {
		return ctx.Err()
	}

	for {
		g.mu.Lock()
		now := g.now()
		last, seen := g.lastByHost[host]
		if !seen || !now.Before(last.Add(g.minInterval)) {
			g.lastByHost[host] = now
			g.mu.Unlock()
			return nil
		}
		wait := last.Add(g.jitteredInterval()).Sub(now)
		g.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (g *hostGovernor) jitteredInterval() time.Duration {
	if g.maxInterval <= g.minInterval {
		return g.minInterval
	}
	spread := g.maxInterval - g.minInterval
	return g.minInterval + time.Duration(rand.Int63n(int64(spread)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
