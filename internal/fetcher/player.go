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

// Player detail expiry splits on roster status: entries for retired players
// hold for ten years, entries for active players are refreshed on every read.
const (
	playerClassActive     = "active"
	playerClassHistorical = "historical"
)

// PlayerFetcher serves the league-wide roster (never cached) and per-player
// detail (cached with status-dependent expiry).
type PlayerFetcher struct {
	*Base
}

func NewPlayerFetcher(client *httpclient.Client, cacheRoot string, logger *logging.Logger) (*PlayerFetcher, error) {
	cache, err := cachestore.New(
		filepath.Join(cacheRoot, "players"),
		cachestore.TTLPolicy{
			Default: 0,
			Classes: map[string]time.Duration{
				playerClassActive:     0,
				playerClassHistorical: 10 * 365 * 24 * time.Hour,
			},
		},
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &PlayerFetcher{
		Base: NewBase("playerfetcher", statsBaseURL, client, cache, cacheRoot, logger),
	}, nil
}

// GetAllPlayers returns the commonallplayers roster for a season. The roster
// is the freshness anchor for player sync, so it is never cached.
func (f *PlayerFetcher) GetAllPlayers(ctx context.Context, season string) (any, error) {
	params := url.Values{}
	params.Set("LeagueID", leagueID)
	params.Set("Season", season)
	params.Set("IsOnlyCurrentSeason", "0")

	payload, _, err := f.FetchData(ctx, FetchRequest{
		Endpoint: "commonallplayers",
		Params:   params,
	})
	return payload, err
}

func (f *PlayerFetcher) GetPlayerInfo(ctx context.Context, playerID int, force bool) (any, error) {
	params := url.Values{}
	params.Set("PlayerID", strconv.Itoa(playerID))
	params.Set("LeagueID", leagueID)

	payload, _, err := f.FetchData(ctx, FetchRequest{
		Endpoint:     "commonplayerinfo",
		Params:       params,
		CacheKey:     fmt.Sprintf("player_info_%d", playerID),
		Classify:     classifyPlayerInfo,
		ForceRefresh: force,
	})
	return payload, err
}

// BatchGetPlayerInfo walks player detail for the given ids under the
// player_details task, twenty per chunk.
func (f *PlayerFetcher) BatchGetPlayerInfo(ctx context.Context, playerIDs []int, force bool, opts BatchOptions) (map[string]any, error) {
	if opts.TaskName == "" {
		opts.TaskName = "player_details"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	return f.BatchFetch(ctx, IntIDs(playerIDs), func(ctx context.Context, id ID) (any, error) {
		playerID, ok := id.Value().(int)
		if !ok {
			return nil, fmt.Errorf("player id %q is not numeric", id.String())
		}
		return f.GetPlayerInfo(ctx, playerID, force)
	}, opts)
}

// classifyPlayerInfo maps a cached commonplayerinfo payload to its expiry
// class. ROSTERSTATUS arrives as the string "Inactive" in some vintages and
// the number 0 in others; both mean historical.
func classifyPlayerInfo(data any) string {
	rows, err := ResultSetRows(data, "CommonPlayerInfo")
	if err != nil || len(rows) == 0 {
		return playerClassActive
	}
	switch status := rows[0]["ROSTERSTATUS"].(type) {
	case string:
		if status == "Inactive" {
			return playerClassHistorical
		}
	case float64:
		if status == 0 {
			return playerClassHistorical
		}
	}
	return playerClassActive
}
