package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoopsync/hoopsync/internal/cachestore"
	"github.com/hoopsync/hoopsync/internal/httpclient"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

func newHTTPClient(t *testing.T) *httpclient.Client {
	t.Helper()
	return httpclient.New(httpclient.Config{
		Logger: logging.NewNop(),
		Retry: httpclient.RetryPolicy{
			MaxRetries:    1,
			BaseDelay:     time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
	})
}

func newTestBase(t *testing.T, baseURL string) *Base {
	t.Helper()
	cache, err := cachestore.New(t.TempDir(), cachestore.TTLPolicy{Default: time.Hour}, logging.NewNop())
	if err != nil {
		t.Fatalf("cachestore.New: %v", err)
	}
	b := NewBase("testfetcher", baseURL, newHTTPClient(t), cache, t.TempDir(), logging.NewNop())
	b.sleep = func(context.Context, time.Duration) error { return nil }
	return b
}

func TestFetchData_CacheMissThenHit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	b := newTestBase(t, srv.URL)
	req := FetchRequest{Endpoint: "thing", CacheKey: "thing_1"}

	payload, source, err := b.FetchData(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if source != SourceCacheMiss {
		t.Errorf("first source = %s, want %s", source, SourceCacheMiss)
	}
	obj, _ := payload.(map[string]any)
	if obj["value"] != float64(42) {
		t.Errorf("payload = %v", payload)
	}

	// Second fetch is served entirely from cache.
	_, source, err = b.FetchData(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchData warm: %v", err)
	}
	if source != SourceCacheHit {
		t.Errorf("second source = %s, want %s", source, SourceCacheHit)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("http calls = %d, want 1", got)
	}
}

func TestFetchData_ForceRefreshBypassesCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	b := newTestBase(t, srv.URL)
	req := FetchRequest{Endpoint: "thing", CacheKey: "thing_1"}

	if _, _, err := b.FetchData(context.Background(), req); err != nil {
		t.Fatalf("FetchData: %v", err)
	}

	req.ForceRefresh = true
	_, source, err := b.FetchData(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchData force: %v", err)
	}
	if source != SourceForceRefresh {
		t.Errorf("source = %s, want %s", source, SourceForceRefresh)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("http calls = %d, want 2", got)
	}
}

func TestFetchData_NoCacheKeyAlwaysFetches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	b := newTestBase(t, srv.URL)
	req := FetchRequest{Endpoint: "roster"}

	for i := 0; i < 2; i++ {
		_, source, err := b.FetchData(context.Background(), req)
		if err != nil {
			t.Fatalf("FetchData #%d: %v", i, err)
		}
		if source != SourceNoCache {
			t.Errorf("source = %s, want %s", source, SourceNoCache)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("http calls = %d, want 2", got)
	}
}

func TestFetchData_RequiresURLOrEndpoint(t *testing.T) {
	t.Parallel()

	b := newTestBase(t, "https://example.invalid")
	if _, _, err := b.FetchData(context.Background(), FetchRequest{}); err == nil {
		t.Fatal("want error for empty request")
	}
}

func TestFetchData_VerbatimURLWins(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/static/blob.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	b := newTestBase(t, "https://unused.invalid")
	if _, _, err := b.FetchData(context.Background(), FetchRequest{URL: srv.URL + "/static/blob.json"}); err != nil {
		t.Fatalf("FetchData: %v", err)
	}
}
