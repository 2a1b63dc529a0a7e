package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	crerr "github.com/cockroachdb/errors"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

func newBatchBase(t *testing.T) *Base {
	t.Helper()
	b := NewBase("batchfetcher", "", nil, nil, t.TempDir(), logging.NewNop())
	b.sleep = func(context.Context, time.Duration) error { return nil }
	return b
}

func fastBatch(task string) BatchOptions {
	return BatchOptions{
		TaskName:     task,
		BatchSize:    2,
		SaveInterval: 2,
		WindowLimit:  1000,
		WindowPeriod: time.Second,
		Workers:      2,
	}
}

// cachingStub mimics a real fetch function backed by a cache: repeats for
// an id are hits and do not count as upstream calls.
type cachingStub struct {
	mu       sync.Mutex
	cached   map[string]any
	upstream int
	failing  map[string]bool
}

func (s *cachingStub) fetch(_ context.Context, id ID) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.String()
	if v, ok := s.cached[key]; ok {
		return v, nil
	}
	if s.failing[key] {
		return nil, crerr.Newf("upstream refused id %s", key)
	}
	s.upstream++
	v := "ok-" + key
	s.cached[key] = v
	return v, nil
}

func TestBatchFetch_CompleteMapping(t *testing.T) {
	t.Parallel()

	b := newBatchBase(t)
	stub := &cachingStub{cached: map[string]any{}, failing: map[string]bool{}}

	results, err := b.BatchFetch(context.Background(), IntIDs([]int{1, 2, 3, 4, 5}), stub.fetch, fastBatch("complete"))
	if err != nil {
		t.Fatalf("BatchFetch: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("results = %d entries, want 5", len(results))
	}
	for _, key := range []string{"1", "2", "3", "4", "5"} {
		if results[key] != "ok-"+key {
			t.Errorf("results[%s] = %v", key, results[key])
		}
	}
}

func TestBatchFetch_ResumeAfterFailure(t *testing.T) {
	t.Parallel()

	b := newBatchBase(t)
	ids := IntIDs([]int{1, 2, 3, 4, 5})
	stub := &cachingStub{
		cached:  map[string]any{},
		failing: map[string]bool{"4": true, "5": true},
	}

	first, err := b.BatchFetch(context.Background(), ids, stub.fetch, fastBatch("resume"))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first run results = %d entries, want 3", len(first))
	}
	if stub.upstream != 3 {
		t.Fatalf("first run upstream calls = %d, want 3", stub.upstream)
	}

	// Upstream recovers; the second run only pays for the two missing ids.
	stub.failing = map[string]bool{}
	second, err := b.BatchFetch(context.Background(), ids, stub.fetch, fastBatch("resume"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second) != 5 {
		t.Fatalf("second run results = %d entries, want 5", len(second))
	}
	if stub.upstream != 5 {
		t.Fatalf("total upstream calls = %d, want 5", stub.upstream)
	}
}

func TestBatchFetch_PersistsProgressFile(t *testing.T) {
	t.Parallel()

	b := newBatchBase(t)
	stub := &cachingStub{cached: map[string]any{}, failing: map[string]bool{"2": true}}

	if _, err := b.BatchFetch(context.Background(), IntIDs([]int{1, 2}), stub.fetch, fastBatch("persist")); err != nil {
		t.Fatalf("BatchFetch: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(b.progressRoot, "batch_persist_progress.json"))
	if err != nil {
		t.Fatalf("progress file: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, `"1"`) {
		t.Errorf("progress missing completed id: %s", body)
	}
	if !strings.Contains(body, `"2"`) {
		t.Errorf("progress missing failed id: %s", body)
	}
}

func TestBatchFetch_PreservesIDTypes(t *testing.T) {
	t.Parallel()

	b := newBatchBase(t)
	seen := make(map[string]any)
	var mu sync.Mutex

	ids := []ID{IntID(1610612747), StringID("0022400408")}
	fetch := func(_ context.Context, id ID) (any, error) {
		mu.Lock()
		seen[id.String()] = id.Value()
		mu.Unlock()
		return "ok", nil
	}

	if _, err := b.BatchFetch(context.Background(), ids, fetch, fastBatch("types")); err != nil {
		t.Fatalf("BatchFetch: %v", err)
	}

	if v, ok := seen["1610612747"].(int); !ok || v != 1610612747 {
		t.Errorf("numeric id arrived as %T %v", seen["1610612747"], seen["1610612747"])
	}
	if v, ok := seen["0022400408"].(string); !ok || v != "0022400408" {
		t.Errorf("string id arrived as %T %v, leading zeros must survive", seen["0022400408"], seen["0022400408"])
	}
}

func TestBatchFetch_CancellationFlushesProgress(t *testing.T) {
	t.Parallel()

	b := newBatchBase(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := fastBatch("cancelled")
	opts.Workers = 1

	fetch := func(_ context.Context, id ID) (any, error) {
		if id.String() == "3" {
			cancel()
		}
		return "ok-" + id.String(), nil
	}

	results, err := b.BatchFetch(ctx, IntIDs([]int{1, 2, 3, 4, 5, 6}), fetch, opts)
	if err == nil {
		t.Fatal("want cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(results) == 0 || len(results) >= 6 {
		t.Fatalf("results = %d entries, want partial", len(results))
	}
	if _, err := os.Stat(filepath.Join(b.progressRoot, "batch_cancelled_progress.json")); err != nil {
		t.Fatalf("progress not flushed: %v", err)
	}
}

func TestBatchFetch_EmptyPayloadIsFailure(t *testing.T) {
	t.Parallel()

	b := newBatchBase(t)
	fetch := func(context.Context, ID) (any, error) { return nil, nil }

	results, err := b.BatchFetch(context.Background(), IntIDs([]int{7}), fetch, fastBatch("empty"))
	if err != nil {
		t.Fatalf("BatchFetch: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %v, want none", results)
	}
}

func TestWindowLimiter_CapsRate(t *testing.T) {
	t.Parallel()

	const period = 60 * time.Millisecond
	w := newWindowLimiter(2, period)

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := w.Wait(context.Background()); err != nil {
			t.Fatalf("Wait #%d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < period {
		t.Fatalf("4 slots with cap 2/%s took %s, want >= %s", period, elapsed, period)
	}
}

func TestWindowLimiter_CancelWhileWaiting(t *testing.T) {
	t.Parallel()

	w := newWindowLimiter(1, time.Hour)
	if err := w.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
