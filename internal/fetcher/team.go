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

// The franchise id block is stable: 30 consecutive ids starting at the
// Atlanta Hawks.
const (
	firstTeamID = 1610612737
	teamCount   = 30
)

// TeamFetcher pulls per-franchise detail from the teamdetails endpoint.
type TeamFetcher struct {
	*Base
}

func NewTeamFetcher(client *httpclient.Client, cacheRoot string, logger *logging.Logger) (*TeamFetcher, error) {
	cache, err := cachestore.New(
		filepath.Join(cacheRoot, "teams"),
		cachestore.TTLPolicy{Default: 7 * 24 * time.Hour},
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &TeamFetcher{
		Base: NewBase("teamfetcher", statsBaseURL, client, cache, cacheRoot, logger),
	}, nil
}

func KnownTeamIDs() []int {
	ids := make([]int, teamCount)
	for i := range ids {
		ids[i] = firstTeamID + i
	}
	return ids
}

func (f *TeamFetcher) GetDetails(ctx context.Context, teamID int, force bool) (any, error) {
	params := url.Values{}
	params.Set("TeamID", strconv.Itoa(teamID))

	payload, _, err := f.FetchData(ctx, FetchRequest{
		Endpoint:     "teamdetails",
		Params:       params,
		CacheKey:     fmt.Sprintf("details_%d", teamID),
		ForceRefresh: force,
	})
	return payload, err
}

// BatchGetDetails fetches details for every given team id with resume
// support under the team_details task.
func (f *TeamFetcher) BatchGetDetails(ctx context.Context, teamIDs []int, force bool, opts BatchOptions) (map[string]any, error) {
	if opts.TaskName == "" {
		opts.TaskName = "team_details"
	}
	return f.BatchFetch(ctx, IntIDs(teamIDs), func(ctx context.Context, id ID) (any, error) {
		teamID, ok := id.Value().(int)
		if !ok {
			return nil, fmt.Errorf("team id %q is not numeric", id.String())
		}
		return f.GetDetails(ctx, teamID, force)
	}, opts)
}
