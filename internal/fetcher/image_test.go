package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hoopsync/hoopsync/internal/cachestore"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

func TestPlayerImageFetcher_GetHeadshotCaches(t *testing.T) {
	t.Parallel()

	blob := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/headshots/nba/latest/1040x760/2544.png" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write(blob)
	}))
	defer srv.Close()

	f, err := NewPlayerImageFetcher(newHTTPClient(t), t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewPlayerImageFetcher: %v", err)
	}
	f.urlFormat = srv.URL + "/headshots/nba/latest/1040x760/%d.png"
	ctx := context.Background()

	got, err := f.GetHeadshot(ctx, 2544)
	if err != nil {
		t.Fatalf("GetHeadshot: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("blob = %v", got)
	}

	// Warm read decodes the cached base64 payload, no second download.
	got, err = f.GetHeadshot(ctx, 2544)
	if err != nil {
		t.Fatalf("GetHeadshot warm: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("warm blob = %v", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("http calls = %d, want 1", calls.Load())
	}
}

func TestPlayerImageFetcher_ProcessedRoundTrip(t *testing.T) {
	t.Parallel()

	f, err := NewPlayerImageFetcher(newHTTPClient(t), t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewPlayerImageFetcher: %v", err)
	}

	blob := []byte("resized-bytes")
	if err := f.SetProcessed(2544, "256x256", blob); err != nil {
		t.Fatalf("SetProcessed: %v", err)
	}
	got, err := f.GetProcessed(2544, "256x256")
	if err != nil {
		t.Fatalf("GetProcessed: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("blob = %v", got)
	}

	if _, err := f.GetProcessed(2544, "64x64"); !errors.Is(err, cachestore.ErrMiss) {
		t.Fatalf("err = %v, want cache miss", err)
	}
}

func TestDecodeImagePayload_RejectsNonString(t *testing.T) {
	t.Parallel()

	if _, err := decodeImagePayload(map[string]any{"nope": true}); err == nil {
		t.Fatal("want shape error")
	}
}
