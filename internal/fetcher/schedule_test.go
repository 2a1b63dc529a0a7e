package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

func newScheduleFetcher(t *testing.T, srvURL, cacheRoot string) *ScheduleFetcher {
	t.Helper()
	f, err := NewScheduleFetcher(newHTTPClient(t), cacheRoot, "2022-23", "2024-25", logging.NewNop())
	if err != nil {
		t.Fatalf("NewScheduleFetcher: %v", err)
	}
	f.baseURL = srvURL
	f.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

func TestScheduleFetcher_ColdFetch(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotQuery.Store(r.URL.Query().Encode())
		w.Write([]byte(`{"leagueSchedule":{"seasonYear":"2024-25","gameDates":[]}}`))
	}))
	defer srv.Close()

	cacheRoot := t.TempDir()
	f := newScheduleFetcher(t, srv.URL, cacheRoot)

	payload, err := f.GetBySeason(context.Background(), "2024-25", false)
	if err != nil {
		t.Fatalf("GetBySeason: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("http calls = %d, want 1", got)
	}
	if q, _ := gotQuery.Load().(string); q != "LeagueID=00&Season=2024-25" {
		t.Errorf("query = %q", q)
	}

	obj, _ := payload.(map[string]any)
	if _, ok := obj["leagueSchedule"]; !ok {
		t.Fatal("payload missing leagueSchedule")
	}

	raw, err := os.ReadFile(filepath.Join(cacheRoot, "schedule", "schedulefetcher_schedule_2024-25.json"))
	if err != nil {
		t.Fatalf("cache file: %v", err)
	}
	for _, key := range []string{`"timestamp"`, `"last_updated"`, `"data"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("cache file missing %s", key)
		}
	}
}

func TestScheduleFetcher_WarmFetchSkipsHTTP(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"leagueSchedule":{"seasonYear":"2024-25"}}`))
	}))
	defer srv.Close()

	f := newScheduleFetcher(t, srv.URL, t.TempDir())

	cold, err := f.GetBySeason(context.Background(), "2024-25", false)
	if err != nil {
		t.Fatalf("cold: %v", err)
	}
	warm, err := f.GetBySeason(context.Background(), "2024-25", false)
	if err != nil {
		t.Fatalf("warm: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("http calls = %d, want 1", got)
	}
	coldSchedule := cold.(map[string]any)["leagueSchedule"].(map[string]any)
	warmSchedule := warm.(map[string]any)["leagueSchedule"].(map[string]any)
	if coldSchedule["seasonYear"] != warmSchedule["seasonYear"] {
		t.Fatal("warm payload diverged from cold payload")
	}
}

func TestScheduleFetcher_RejectsBadShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	f := newScheduleFetcher(t, srv.URL, t.TempDir())
	if _, err := f.GetBySeason(context.Background(), "2024-25", false); !errors.Is(err, ErrBadShape) {
		t.Fatalf("err = %v, want ErrBadShape", err)
	}
}

func TestScheduleFetcher_Seasons(t *testing.T) {
	t.Parallel()

	f := newScheduleFetcher(t, "https://unused.invalid", t.TempDir())
	seasons, err := f.Seasons()
	if err != nil {
		t.Fatalf("Seasons: %v", err)
	}
	want := []string{"2022-23", "2023-24", "2024-25"}
	if len(seasons) != len(want) {
		t.Fatalf("seasons = %v, want %v", seasons, want)
	}
	for i := range want {
		if seasons[i] != want[i] {
			t.Fatalf("seasons = %v, want %v", seasons, want)
		}
	}
}

func TestSeasonLabel_CenturyRollover(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		1970: "1970-71",
		1999: "1999-00",
		2009: "2009-10",
		2024: "2024-25",
	}
	for year, want := range cases {
		if got := SeasonLabel(year); got != want {
			t.Errorf("SeasonLabel(%d) = %s, want %s", year, got, want)
		}
	}
}
