package cachestore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

func newTestStore(t *testing.T, policy TTLPolicy) *Store {
	t.Helper()
	s, err := New(t.TempDir(), policy, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{Default: time.Hour})
	payload := map[string]any{"leagueSchedule": map[string]any{"seasonYear": "2024-25"}}

	if err := s.Set("schedulefetcher", "schedule_2024-25", payload, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get("schedulefetcher", "schedule_2024-25", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	obj, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("payload type %T", got)
	}
	if _, ok := obj["leagueSchedule"]; !ok {
		t.Fatal("payload lost leagueSchedule key")
	}
}

func TestStore_FileIsWrappedEntry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{Default: time.Hour})
	if err := s.Set("schedulefetcher", "schedule_2024-25", map[string]any{"a": 1}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	path := filepath.Join(s.root, "schedulefetcher_schedule_2024-25.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	body := string(raw)
	for _, key := range []string{`"timestamp"`, `"last_updated"`, `"data"`} {
		if !strings.Contains(body, key) {
			t.Errorf("cache file missing %s", key)
		}
	}
}

func TestStore_MissOnAbsent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{Default: time.Hour})
	if _, err := s.Get("p", "nope", ""); !errors.Is(err, ErrMiss) {
		t.Fatalf("got %v, want ErrMiss", err)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{Default: time.Hour})
	if err := s.Set("p", "k", "v", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Get("p", "k", ""); !errors.Is(err, ErrMiss) {
		t.Fatalf("got %v, want ErrMiss after ttl", err)
	}
}

func TestStore_TTLClasses(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{
		Default: time.Hour,
		Classes: map[string]time.Duration{
			"active":     0,
			"historical": 10 * 365 * 24 * time.Hour,
		},
	})
	if err := s.Set("playerfetcher", "player_info_2544", "payload", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Zero TTL is always stale.
	if _, err := s.Get("playerfetcher", "player_info_2544", "active"); !errors.Is(err, ErrMiss) {
		t.Fatalf("active class: got %v, want ErrMiss", err)
	}
	if _, err := s.Get("playerfetcher", "player_info_2544", "historical"); err != nil {
		t.Fatalf("historical class: %v", err)
	}
	if _, err := s.Get("playerfetcher", "player_info_2544", "unknown-class"); err != nil {
		t.Fatalf("unknown class should use default ttl: %v", err)
	}
}

func TestStore_GetClassified(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{
		Default: time.Hour,
		Classes: map[string]time.Duration{"active": 0, "historical": -1},
	})

	classify := func(data any) string {
		m, _ := data.(map[string]any)
		if m["status"] == "Inactive" {
			return "historical"
		}
		return "active"
	}

	if err := s.Set("p", "retired", map[string]any{"status": "Inactive"}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("p", "rookie", map[string]any{"status": "Active"}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := s.GetClassified("p", "retired", classify); err != nil {
		t.Fatalf("historical entry should hit: %v", err)
	}
	if _, err := s.GetClassified("p", "rookie", classify); !errors.Is(err, ErrMiss) {
		t.Fatalf("active entry: got %v, want ErrMiss", err)
	}
}

func TestStore_CorruptFileIsMiss(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{Default: time.Hour})
	path := filepath.Join(s.root, "p_k.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	if _, err := s.Get("p", "k", ""); !errors.Is(err, ErrMiss) {
		t.Fatalf("got %v, want ErrMiss", err)
	}

	// Next Set overwrites the corrupt file.
	if err := s.Set("p", "k", "fresh", nil); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	got, err := s.Get("p", "k", "")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if got != "fresh" {
		t.Fatalf("got %v, want fresh", got)
	}
}

func TestStore_NoTempFilesLeftAfterSet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{Default: time.Hour})
	for i := 0; i < 5; i++ {
		if err := s.Set("p", "k", i, nil); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStore_ClearSingleEntry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{Default: time.Hour})
	if err := s.Set("p", "a", 1, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("p", "b", 2, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	removed, err := s.Clear("p", "a", 0)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := s.Get("p", "a", ""); !errors.Is(err, ErrMiss) {
		t.Fatal("entry a still readable")
	}
	if _, err := s.Get("p", "b", ""); err != nil {
		t.Fatalf("entry b gone: %v", err)
	}
}

func TestStore_ClearPrefixWithAgePredicate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, TTLPolicy{Default: 24 * time.Hour})
	base := time.Now()

	s.now = func() time.Time { return base.Add(-2 * time.Hour) }
	if err := s.Set("p", "old", 1, nil); err != nil {
		t.Fatalf("Set old: %v", err)
	}
	s.now = func() time.Time { return base }
	if err := s.Set("p", "new", 2, nil); err != nil {
		t.Fatalf("Set new: %v", err)
	}
	if err := s.Set("other", "keep", 3, nil); err != nil {
		t.Fatalf("Set other: %v", err)
	}

	removed, err := s.Clear("p", "", time.Hour)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := s.Get("p", "new", ""); err != nil {
		t.Fatalf("fresh entry removed: %v", err)
	}
	if _, err := s.Get("other", "keep", ""); err != nil {
		t.Fatalf("other prefix touched: %v", err)
	}
}
