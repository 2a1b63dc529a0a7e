package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hoopsync/hoopsync/internal/cachestore"
	"github.com/hoopsync/hoopsync/internal/httpclient"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

// ContextMeasure values accepted by the video asset endpoint.
const (
	MeasureFGM  = "FGM"
	MeasureFGA  = "FGA"
	MeasureAST  = "AST"
	MeasureBLK  = "BLOCK"
	MeasureSTL  = "STL"
	MeasureREB  = "REB"
	MeasureTOV  = "TOV"
	MeasurePF   = "PF"
	MeasurePTS  = "PTS"
	MeasureFG3M = "FG3M"
	MeasureFG3A = "FG3A"
	MeasureFTM  = "FTM"
	MeasureFTA  = "FTA"
	MeasureOREB = "OREB"
	MeasureDREB = "DREB"
)

// VideoQuery is the small input set expanded into the endpoint's full
// parameter map. Zero-valued optional fields map to the sentinel empties the
// endpoint expects.
type VideoQuery struct {
	GameID         string
	PlayerID       int
	TeamID         int
	ContextMeasure string
	Season         string
	SeasonType     string
}

// VideoFetcher pulls event video manifests from videodetailsasset. The
// endpoint bans aggressive callers, so pacing here is deliberately slow:
// the supplied client should hold an 8-15s interval, and each call adds
// 1-3s jitter before and 2-4s after.
type VideoFetcher struct {
	*Base
}

func NewVideoFetcher(client *httpclient.Client, cacheRoot string, logger *logging.Logger) (*VideoFetcher, error) {
	cache, err := cachestore.New(
		filepath.Join(cacheRoot, "videourls"),
		cachestore.TTLPolicy{Default: 24 * time.Hour},
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &VideoFetcher{
		Base: NewBase("videofetcher", statsBaseURL, client, cache, cacheRoot, logger),
	}, nil
}

// GetVideoDetails fetches the manifest for one query. An empty videoUrls
// list is a valid answer, not an error: some measures return nothing
// without extra parameters.
func (f *VideoFetcher) GetVideoDetails(ctx context.Context, q VideoQuery, force bool) (any, error) {
	if q.GameID == "" {
		return nil, fmt.Errorf("videofetcher: game id is required")
	}

	f.jitterSleep(ctx, time.Second, 3*time.Second)

	payload, source, err := f.FetchData(ctx, FetchRequest{
		Endpoint:     "videodetailsasset",
		Params:       buildVideoParams(q),
		CacheKey:     videoCacheKey(q),
		ForceRefresh: force,
	})
	if err != nil {
		return nil, err
	}
	if err := validateVideoPayload(payload); err != nil {
		return nil, err
	}

	if source != SourceCacheHit {
		f.jitterSleep(ctx, 2*time.Second, 4*time.Second)
	}
	return payload, nil
}

// BatchGetVideoDetails runs queries under the video_details task, five per
// chunk with an 8-12s pause after every item.
func (f *VideoFetcher) BatchGetVideoDetails(ctx context.Context, queries []VideoQuery, force bool, opts BatchOptions) (map[string]any, error) {
	if opts.TaskName == "" {
		opts.TaskName = "video_details"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	byKey := make(map[string]VideoQuery, len(queries))
	ids := make([]ID, 0, len(queries))
	for _, q := range queries {
		key := videoCacheKey(q)
		if _, dup := byKey[key]; dup {
			continue
		}
		byKey[key] = q
		ids = append(ids, StringID(key))
	}

	return f.BatchFetch(ctx, ids, func(ctx context.Context, id ID) (any, error) {
		payload, err := f.GetVideoDetails(ctx, byKey[id.String()], force)
		if err != nil {
			return nil, err
		}
		f.jitterSleep(ctx, 8*time.Second, 12*time.Second)
		return payload, nil
	}, opts)
}

// VideoURLs extracts the manifest list at resultSets.Meta.videoUrls.
func VideoURLs(payload any) ([]map[string]any, error) {
	root, ok := asMap(payload)
	if !ok {
		return nil, fmt.Errorf("%w: video payload is %T", ErrBadShape, payload)
	}
	sets, ok := asMap(root["resultSets"])
	if !ok {
		return nil, fmt.Errorf("%w: video payload missing resultSets", ErrBadShape)
	}
	meta, ok := asMap(sets["Meta"])
	if !ok {
		return nil, fmt.Errorf("%w: video resultSets missing Meta", ErrBadShape)
	}
	rawURLs, ok := meta["videoUrls"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: video Meta missing videoUrls", ErrBadShape)
	}

	out := make([]map[string]any, 0, len(rawURLs))
	for _, raw := range rawURLs {
		if entry, ok := asMap(raw); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func validateVideoPayload(payload any) error {
	root, ok := asMap(payload)
	if !ok {
		return fmt.Errorf("%w: video payload is %T", ErrBadShape, payload)
	}
	for _, key := range []string{"resource", "parameters", "resultSets"} {
		if _, ok := root[key]; !ok {
			return fmt.Errorf("%w: video payload missing %s", ErrBadShape, key)
		}
	}
	return nil
}

func videoCacheKey(q VideoQuery) string {
	measure := q.ContextMeasure
	if measure == "" {
		measure = MeasureFGM
	}
	return fmt.Sprintf("video_%s_%d_%d_%s", q.GameID, q.PlayerID, q.TeamID, measure)
}

// buildVideoParams expands a query into the full parameter map the endpoint
// requires. Every key must be present; the vendor 400s on omissions.
func buildVideoParams(q VideoQuery) url.Values {
	measure := q.ContextMeasure
	if measure == "" {
		measure = MeasureFGM
	}
	seasonType := q.SeasonType
	if seasonType == "" {
		seasonType = "Regular Season"
	}

	params := url.Values{}
	params.Set("AheadBehind", "")
	params.Set("CFID", "")
	params.Set("CFPARAMS", "")
	params.Set("ClutchTime", "")
	params.Set("Conference", "")
	params.Set("ContextFilter", "")
	params.Set("ContextMeasure", measure)
	params.Set("DateFrom", "")
	params.Set("DateTo", "")
	params.Set("Division", "")
	params.Set("EndPeriod", "10")
	params.Set("EndRange", "28800")
	params.Set("GameID", q.GameID)
	params.Set("GameSegment", "")
	params.Set("GroupQuantity", "5")
	params.Set("LastNGames", "0")
	params.Set("LeagueID", leagueID)
	params.Set("Location", "")
	params.Set("Month", "0")
	params.Set("OpponentTeamID", "0")
	params.Set("Outcome", "")
	params.Set("PORound", "0")
	params.Set("Period", "0")
	params.Set("PlayerID", strconv.Itoa(q.PlayerID))
	params.Set("PlayerPosition", "")
	params.Set("PointDiff", "")
	params.Set("Position", "")
	params.Set("RangeType", "0")
	params.Set("RookieYear", "")
	params.Set("Season", q.Season)
	params.Set("SeasonSegment", "")
	params.Set("SeasonType", seasonType)
	params.Set("ShotClockRange", "")
	params.Set("StartPeriod", "1")
	params.Set("StartRange", "0")
	params.Set("TeamID", strconv.Itoa(q.TeamID))
	params.Set("VsConference", "")
	params.Set("VsDivision", "")
	return params
}
