package fetcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/hoopsync/hoopsync/internal/cachestore"
	"github.com/hoopsync/hoopsync/internal/httpclient"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

const liveDataBaseURL = "https://cdn.nba.com/static/json/liveData"

// GameStatusFinal is the vendor's terminal game status (1 scheduled,
// 2 live, 3 final).
const GameStatusFinal = 3

const (
	gameClassLive  = "live"
	gameClassFinal = "final"
)

// GameFetcher pulls boxscore and play-by-play payloads from the live-data
// CDN. Payloads for games still in progress expire in minutes; finished
// games hold for a day.
type GameFetcher struct {
	*Base
}

func NewGameFetcher(client *httpclient.Client, cacheRoot string, logger *logging.Logger) (*GameFetcher, error) {
	cache, err := cachestore.New(
		filepath.Join(cacheRoot, "games"),
		cachestore.TTLPolicy{
			Default: 2 * time.Minute,
			Classes: map[string]time.Duration{
				gameClassLive:  2 * time.Minute,
				gameClassFinal: 24 * time.Hour,
			},
		},
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &GameFetcher{
		Base: NewBase("gamefetcher", liveDataBaseURL, client, cache, cacheRoot, logger),
	}, nil
}

func (f *GameFetcher) GetBoxscore(ctx context.Context, gameID string, force bool) (any, error) {
	payload, _, err := f.FetchData(ctx, FetchRequest{
		Endpoint:     fmt.Sprintf("boxscore/boxscore_%s.json", gameID),
		CacheKey:     "boxscore_" + gameID,
		Classify:     classifyGamePayload,
		ForceRefresh: force,
	})
	return payload, err
}

func (f *GameFetcher) GetPlayByPlay(ctx context.Context, gameID string, force bool) (any, error) {
	payload, _, err := f.FetchData(ctx, FetchRequest{
		Endpoint:     fmt.Sprintf("playbyplay/playbyplay_%s.json", gameID),
		CacheKey:     "playbyplay_" + gameID,
		Classify:     classifyGamePayload,
		ForceRefresh: force,
	})
	return payload, err
}

// GetGameData fetches both halves of a game concurrently and merges them
// into {game, meta, playByPlay}. The play-by-play payload is carried whole;
// event typing is the consumer's concern.
func (f *GameFetcher) GetGameData(ctx context.Context, gameID string, force bool) (map[string]any, error) {
	var (
		box, pbp       any
		boxErr, pbpErr error
	)

	var wg conc.WaitGroup
	wg.Go(func() {
		box, boxErr = f.GetBoxscore(ctx, gameID, force)
	})
	wg.Go(func() {
		pbp, pbpErr = f.GetPlayByPlay(ctx, gameID, force)
	})
	wg.Wait()

	if boxErr != nil {
		return nil, fmt.Errorf("boxscore for game %s: %w", gameID, boxErr)
	}
	if pbpErr != nil {
		return nil, fmt.Errorf("playbyplay for game %s: %w", gameID, pbpErr)
	}

	boxRoot, ok := asMap(box)
	if !ok {
		return nil, fmt.Errorf("%w: boxscore for game %s is %T", ErrBadShape, gameID, box)
	}
	return map[string]any{
		"game":       boxRoot["game"],
		"meta":       boxRoot["meta"],
		"playByPlay": pbp,
	}, nil
}

// classifyGamePayload inspects game.gameStatus inside a cached live-data
// payload. Anything that cannot prove the game is over stays in the short
// live class.
func classifyGamePayload(data any) string {
	root, ok := asMap(data)
	if !ok {
		return gameClassLive
	}
	game, ok := asMap(root["game"])
	if !ok {
		return gameClassLive
	}
	if status, ok := asInt(game["gameStatus"]); ok && status == GameStatusFinal {
		return gameClassFinal
	}
	return gameClassLive
}
