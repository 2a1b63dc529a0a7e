package fetcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	crerr "github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"

	"github.com/hoopsync/hoopsync/internal/progress"
)

// BatchOptions tunes one resumable batch run. Zero fields take defaults.
type BatchOptions struct {
	TaskName     string
	BatchSize    int
	SaveInterval int
	WindowLimit  int
	WindowPeriod time.Duration
	Workers      int
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.SaveInterval <= 0 {
		o.SaveInterval = 10
	}
	if o.WindowLimit <= 0 {
		o.WindowLimit = 60
	}
	if o.WindowPeriod <= 0 {
		o.WindowPeriod = time.Minute
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// BatchFetch runs fetchOne over ids with resume support. Ids completed in a
// previous run are served again through fetchOne (expected to hit the cache)
// so the returned mapping is complete; only pending ids consume rate-window
// slots. On cancellation the in-flight items finish, progress is flushed and
// the partial mapping is returned with the context error.
func (b *Base) BatchFetch(ctx context.Context, ids []ID, fetchOne func(ctx context.Context, id ID) (any, error), opts BatchOptions) (map[string]any, error) {
	opts = opts.withDefaults()
	if opts.TaskName == "" {
		return nil, crerr.New("batch task name is required")
	}

	tracker, err := progress.NewTracker(b.progressRoot, opts.TaskName, b.logger)
	if err != nil {
		return nil, fmt.Errorf("load progress for %s: %w", opts.TaskName, err)
	}

	results := make(map[string]any, len(ids))
	var resultsMu sync.Mutex

	pending := make([]ID, 0, len(ids))
	for _, id := range ids {
		if !tracker.IsCompleted(id.String()) {
			pending = append(pending, id)
			continue
		}
		payload, err := fetchOne(ctx, id)
		if err != nil {
			b.logger.WarnContext(ctx, "completed item unreadable on resume",
				"task", opts.TaskName, "id", id.String(), "error", err)
			continue
		}
		results[id.String()] = payload
	}

	limiter := newWindowLimiter(opts.WindowLimit, opts.WindowPeriod)

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("create batch pool for %s: %w", opts.TaskName, err)
	}
	defer pool.Release()

	saveProgress := func() {
		if err := tracker.Save(); err != nil {
			b.logger.WarnContext(ctx, "progress save failed", "task", opts.TaskName, "error", err)
		}
	}

	var processed atomic.Int64
	for start := 0; start < len(pending); start += opts.BatchSize {
		if ctx.Err() != nil {
			break
		}
		chunk := pending[start:min(start+opts.BatchSize, len(pending))]

		var wg sync.WaitGroup
		for _, id := range chunk {
			id := id
			wg.Add(1)
			task := func() {
				defer wg.Done()
				if ctx.Err() != nil {
					return
				}
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				key := id.String()
				payload, err := fetchOne(ctx, id)
				switch {
				case err != nil:
					tracker.MarkFailed(key, err)
					b.logger.WarnContext(ctx, "batch item failed",
						"task", opts.TaskName, "id", key, "error", err)
				case payload == nil:
					tracker.MarkFailed(key, crerr.New("empty payload"))
					b.logger.WarnContext(ctx, "batch item returned no payload",
						"task", opts.TaskName, "id", key)
				default:
					tracker.MarkCompleted(key)
					resultsMu.Lock()
					results[key] = payload
					resultsMu.Unlock()
				}

				if n := processed.Add(1); n%int64(opts.SaveInterval) == 0 {
					saveProgress()
				}
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				tracker.MarkFailed(id.String(), err)
			}
		}
		wg.Wait()
		saveProgress()
	}

	if err := tracker.Save(); err != nil {
		return results, fmt.Errorf("flush progress for %s: %w", opts.TaskName, err)
	}
	if ctx.Err() != nil {
		stats := tracker.Stats()
		b.logger.WarnContext(ctx, "batch cancelled",
			"task", opts.TaskName, "completed", stats.Completed, "failed", stats.Failed)
		return results, fmt.Errorf("batch %s cancelled: %w", opts.TaskName, ctx.Err())
	}
	return results, nil
}

// windowLimiter caps requests to limit per sliding period.
type windowLimiter struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	stamps []time.Time
	now    func() time.Time
}

func newWindowLimiter(limit int, period time.Duration) *windowLimiter {
	return &windowLimiter{limit: limit, period: period, now: time.Now}
}

// Wait blocks until a slot opens in the window, then claims it.
func (w *windowLimiter) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.now()
		cutoff := now.Add(-w.period)
		kept := w.stamps[:0]
		for _, s := range w.stamps {
			if s.After(cutoff) {
				kept = append(kept, s)
			}
		}
		w.stamps = kept

		if len(w.stamps) < w.limit {
			w.stamps = append(w.stamps, now)
			w.mu.Unlock()
			return nil
		}
		wait := w.stamps[0].Add(w.period).Sub(now)
		w.mu.Unlock()

		if err := sleepFor(ctx, wait); err != nil {
			return err
		}
	}
}
