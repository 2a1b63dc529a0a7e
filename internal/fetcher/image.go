package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hoopsync/hoopsync/internal/cachestore"
	"github.com/hoopsync/hoopsync/internal/httpclient"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

const headshotURLFormat = "https://cdn.nba.com/headshots/nba/latest/1040x760/%d.png"

const (
	imageClassRaw       = "raw"
	imageClassProcessed = "processed"
)

// PlayerImageFetcher downloads player headshots. Bytes are cached base64
// encoded inside the usual JSON wrapper, raw downloads for ninety days and
// processed variants for thirty.
type PlayerImageFetcher struct {
	*Base

	urlFormat string
}

func NewPlayerImageFetcher(client *httpclient.Client, cacheRoot string, logger *logging.Logger) (*PlayerImageFetcher, error) {
	cache, err := cachestore.New(
		filepath.Join(cacheRoot, "players"),
		cachestore.TTLPolicy{
			Default: 90 * 24 * time.Hour,
			Classes: map[string]time.Duration{
				imageClassRaw:       90 * 24 * time.Hour,
				imageClassProcessed: 30 * 24 * time.Hour,
			},
		},
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &PlayerImageFetcher{
		Base:      NewBase("playerimagefetcher", "", client, cache, cacheRoot, logger),
		urlFormat: headshotURLFormat,
	}, nil
}

// GetHeadshot returns the raw headshot bytes for a player, downloading on a
// cache miss.
func (f *PlayerImageFetcher) GetHeadshot(ctx context.Context, playerID int) ([]byte, error) {
	key := fmt.Sprintf("headshot_%d", playerID)

	if cached, err := f.cache.Get(f.name, key, imageClassRaw); err == nil {
		if blob, decodeErr := decodeImagePayload(cached); decodeErr == nil {
			return blob, nil
		}
		f.logger.Warn("cached headshot undecodable, refetching", "player_id", playerID)
	}

	rawURL := fmt.Sprintf(f.urlFormat, playerID)
	blob, err := f.client.GetBinary(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch headshot for player %d: %w", f.name, playerID, err)
	}

	encoded := base64.StdEncoding.EncodeToString(blob)
	if err := f.cache.Set(f.name, key, encoded, map[string]any{"class": imageClassRaw}); err != nil {
		f.logger.Warn("headshot cache write failed", "player_id", playerID, "error", err)
	}
	return blob, nil
}

// SetProcessed stores a post-processed image variant under the shorter
// processed-class expiry. Processing itself happens downstream.
func (f *PlayerImageFetcher) SetProcessed(playerID int, variant string, blob []byte) error {
	key := fmt.Sprintf("headshot_%d_%s", playerID, variant)
	encoded := base64.StdEncoding.EncodeToString(blob)
	return f.cache.Set(f.name, key, encoded, map[string]any{"class": imageClassProcessed})
}

func (f *PlayerImageFetcher) GetProcessed(playerID int, variant string) ([]byte, error) {
	key := fmt.Sprintf("headshot_%d_%s", playerID, variant)
	cached, err := f.cache.Get(f.name, key, imageClassProcessed)
	if err != nil {
		return nil, err
	}
	return decodeImagePayload(cached)
}

func decodeImagePayload(cached any) ([]byte, error) {
	encoded, ok := cached.(string)
	if !ok {
		return nil, fmt.Errorf("%w: cached image is %T, want base64 string", ErrBadShape, cached)
	}
	return base64.StdEncoding.DecodeString(encoded)
}
