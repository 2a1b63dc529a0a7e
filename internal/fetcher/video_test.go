package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

func newVideoFetcher(t *testing.T, srvURL string) *VideoFetcher {
	t.Helper()
	f, err := NewVideoFetcher(newHTTPClient(t), t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewVideoFetcher: %v", err)
	}
	f.baseURL = srvURL
	f.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

func TestBuildVideoParams_FullKeySet(t *testing.T) {
	t.Parallel()

	params := buildVideoParams(VideoQuery{GameID: "0022400408", Season: "2024-25"})

	required := []string{
		"AheadBehind", "CFID", "CFPARAMS", "ClutchTime", "Conference",
		"ContextFilter", "ContextMeasure", "DateFrom", "DateTo", "Division",
		"EndPeriod", "EndRange", "GameID", "GameSegment", "GroupQuantity",
		"LastNGames", "LeagueID", "Location", "Month", "OpponentTeamID",
		"Outcome", "PORound", "Period", "PlayerID", "PlayerPosition",
		"PointDiff", "Position", "RangeType", "RookieYear", "Season",
		"SeasonSegment", "SeasonType", "ShotClockRange", "StartPeriod",
		"StartRange", "TeamID", "VsConference", "VsDivision",
	}
	for _, key := range required {
		if _, ok := params[key]; !ok {
			t.Errorf("missing parameter %s", key)
		}
	}
	if len(params) != len(required) {
		t.Errorf("params has %d keys, want %d", len(params), len(required))
	}

	// Absent optional inputs become sentinel values, not omissions.
	if got := params.Get("ContextMeasure"); got != MeasureFGM {
		t.Errorf("ContextMeasure = %q, want default %q", got, MeasureFGM)
	}
	if got := params.Get("PlayerID"); got != "0" {
		t.Errorf("PlayerID = %q, want 0", got)
	}
	if got := params.Get("SeasonType"); got != "Regular Season" {
		t.Errorf("SeasonType = %q", got)
	}
}

func TestVideoFetcher_ValidatesShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resource":"videodetailsasset"}`))
	}))
	defer srv.Close()

	f := newVideoFetcher(t, srv.URL)
	_, err := f.GetVideoDetails(context.Background(), VideoQuery{GameID: "001", Season: "2024-25"}, false)
	if !errors.Is(err, ErrBadShape) {
		t.Fatalf("err = %v, want ErrBadShape", err)
	}
}

func TestVideoFetcher_RequiresGameID(t *testing.T) {
	t.Parallel()

	f := newVideoFetcher(t, "https://unused.invalid")
	if _, err := f.GetVideoDetails(context.Background(), VideoQuery{}, false); err == nil {
		t.Fatal("want error for missing game id")
	}
}

func TestVideoURLs_ExtractsManifest(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"resource":   "videodetailsasset",
		"parameters": map[string]any{},
		"resultSets": map[string]any{
			"Meta": map[string]any{
				"videoUrls": []any{
					map[string]any{"uuid": "a", "lurl": "https://videos.example/a.mp4"},
					map[string]any{"uuid": "b", "lurl": "https://videos.example/b.mp4"},
				},
			},
		},
	}

	urls, err := VideoURLs(payload)
	if err != nil {
		t.Fatalf("VideoURLs: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("urls = %d entries, want 2", len(urls))
	}
	if urls[0]["uuid"] != "a" {
		t.Errorf("urls[0] = %v", urls[0])
	}
}

func TestVideoURLs_EmptyManifestIsNotAnError(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"resource":   "videodetailsasset",
		"parameters": map[string]any{},
		"resultSets": map[string]any{
			"Meta": map[string]any{"videoUrls": []any{}},
		},
	}

	urls, err := VideoURLs(payload)
	if err != nil {
		t.Fatalf("VideoURLs: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("urls = %v, want empty", urls)
	}
}
