package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hoopsync/hoopsync/internal/cachestore"
	"github.com/hoopsync/hoopsync/internal/httpclient"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

const (
	statsBaseURL = "https://stats.nba.com/stats"
	leagueID     = "00"
)

// ScheduleFetcher pulls full-season schedules from the schedule-v2 stats
// endpoint, one cached payload per season.
type ScheduleFetcher struct {
	*Base
	startSeason   string
	currentSeason string
}

func NewScheduleFetcher(client *httpclient.Client, cacheRoot, startSeason, currentSeason string, logger *logging.Logger) (*ScheduleFetcher, error) {
	cache, err := cachestore.New(
		filepath.Join(cacheRoot, "schedule"),
		cachestore.TTLPolicy{Default: 24 * time.Hour},
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &ScheduleFetcher{
		Base:          NewBase("schedulefetcher", statsBaseURL, client, cache, cacheRoot, logger),
		startSeason:   startSeason,
		currentSeason: currentSeason,
	}, nil
}

// GetBySeason fetches one season's schedule. The payload must carry a
// leagueSchedule object; anything else is a vendor-shape error. Network
// fetches are followed by a 3-10s jitter so season sweeps stay spread out.
func (f *ScheduleFetcher) GetBySeason(ctx context.Context, season string, force bool) (any, error) {
	params := url.Values{}
	params.Set("Season", season)
	params.Set("LeagueID", leagueID)

	payload, source, err := f.FetchData(ctx, FetchRequest{
		Endpoint:     "scheduleleaguev2",
		Params:       params,
		CacheKey:     "schedule_" + season,
		ForceRefresh: force,
		Metadata:     map[string]any{"season": season},
	})
	if err != nil {
		return nil, err
	}

	root, ok := asMap(payload)
	if !ok {
		return nil, fmt.Errorf("%w: schedule payload is %T", ErrBadShape, payload)
	}
	if _, ok := root["leagueSchedule"]; !ok {
		return nil, fmt.Errorf("%w: schedule for %s missing leagueSchedule", ErrBadShape, season)
	}

	if source != SourceCacheHit {
		f.jitterSleep(ctx, 3*time.Second, 10*time.Second)
	}
	return payload, nil
}

// GetAllSeasons sweeps every season from the configured start to the current
// one. Per-season failures are logged and skipped.
func (f *ScheduleFetcher) GetAllSeasons(ctx context.Context, force bool) (map[string]any, error) {
	seasons, err := f.Seasons()
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(seasons))
	for _, season := range seasons {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		payload, err := f.GetBySeason(ctx, season, force)
		if err != nil {
			f.logger.WarnContext(ctx, "season schedule fetch failed", "season", season, "error", err)
			continue
		}
		out[season] = payload
	}
	return out, nil
}

// Seasons lists every season label from start to current inclusive.
func (f *ScheduleFetcher) Seasons() ([]string, error) {
	start, err := seasonStartYear(f.startSeason)
	if err != nil {
		return nil, err
	}
	end, err := seasonStartYear(f.currentSeason)
	if err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("current season %s precedes start season %s", f.currentSeason, f.startSeason)
	}

	out := make([]string, 0, end-start+1)
	for y := start; y <= end; y++ {
		out = append(out, SeasonLabel(y))
	}
	return out, nil
}

// SeasonLabel renders a start year as the YYYY-YY season form.
func SeasonLabel(startYear int) string {
	return fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100)
}

func seasonStartYear(season string) (int, error) {
	first, _, ok := strings.Cut(season, "-")
	if !ok {
		return 0, fmt.Errorf("malformed season %q", season)
	}
	year, err := strconv.Atoi(first)
	if err != nil {
		return 0, fmt.Errorf("malformed season %q: %w", season, err)
	}
	return year, nil
}
