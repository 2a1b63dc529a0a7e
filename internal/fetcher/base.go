package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/hoopsync/hoopsync/internal/cachestore"
	"github.com/hoopsync/hoopsync/internal/httpclient"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

// Source records where a fetch was served from.
type Source string

const (
	SourceCacheHit     Source = "cache-hit"
	SourceCacheMiss    Source = "cache-miss"
	SourceForceRefresh Source = "force-refresh"
	SourceNoCache      Source = "no-cache"
)

// FetchRequest describes one upstream fetch. Either URL (used verbatim) or
// Endpoint (joined to the fetcher's base URL) must be set. An empty CacheKey
// disables caching for the request.
type FetchRequest struct {
	URL          string
	Endpoint     string
	Params       url.Values
	CacheKey     string
	CacheClass   string
	Classify     func(data any) string
	ForceRefresh bool
	Metadata     map[string]any
}

// Base composes the HTTP client, the payload cache and batch progress
// tracking. Endpoint fetchers embed it and add their endpoint knowledge.
type Base struct {
	name         string
	baseURL      string
	client       *httpclient.Client
	cache        *cachestore.Store
	progressRoot string
	logger       *logging.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewBase(name, baseURL string, client *httpclient.Client, cache *cachestore.Store, progressRoot string, logger *logging.Logger) *Base {
	if logger == nil {
		logger = logging.Default()
	}
	return &Base{
		name:         name,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		cache:        cache,
		progressRoot: progressRoot,
		logger:       logger,
		sleep:        sleepFor,
	}
}

func (b *Base) Name() string { return b.name }

// FetchData serves one request, preferring the cache when a key is set and
// force-refresh is off. A failed cache write is logged and the payload is
// still returned.
func (b *Base) FetchData(ctx context.Context, req FetchRequest) (any, Source, error) {
	source := SourceNoCache
	if req.CacheKey != "" && b.cache != nil {
		source = SourceCacheMiss
		if req.ForceRefresh {
			source = SourceForceRefresh
		} else {
			payload, err := b.cacheGet(req)
			if err == nil {
				b.logger.DebugContext(ctx, "fetch served",
					"fetcher", b.name, "source", SourceCacheHit, "cache_key", req.CacheKey)
				return payload, SourceCacheHit, nil
			}
			if !errors.Is(err, cachestore.ErrMiss) {
				b.logger.WarnContext(ctx, "cache read failed",
					"fetcher", b.name, "cache_key", req.CacheKey, "error", err)
			}
		}
	}

	fullURL, err := b.requestURL(req)
	if err != nil {
		return nil, source, err
	}

	payload, err := b.client.GetJSON(ctx, fullURL, req.Params)
	if err != nil {
		return nil, source, fmt.Errorf("%s: fetch %s: %w", b.name, fullURL, err)
	}

	if req.CacheKey != "" && b.cache != nil {
		if err := b.cache.Set(b.name, req.CacheKey, payload, req.Metadata); err != nil {
			b.logger.WarnContext(ctx, "cache write failed",
				"fetcher", b.name, "cache_key", req.CacheKey, "error", err)
		}
	}

	b.logger.InfoContext(ctx, "fetch served",
		"fetcher", b.name, "source", source, "url", fullURL, "cache_key", req.CacheKey)
	return payload, source, nil
}

func (b *Base) cacheGet(req FetchRequest) (any, error) {
	if req.Classify != nil {
		return b.cache.GetClassified(b.name, req.CacheKey, req.Classify)
	}
	return b.cache.Get(b.name, req.CacheKey, req.CacheClass)
}

func (b *Base) requestURL(req FetchRequest) (string, error) {
	if req.URL != "" {
		return req.URL, nil
	}
	if req.Endpoint == "" {
		return "", fmt.Errorf("%s: request needs a url or an endpoint", b.name)
	}
	if b.baseURL == "" {
		return "", fmt.Errorf("%s: endpoint %s requires a base url", b.name, req.Endpoint)
	}
	return b.baseURL + "/" + strings.TrimLeft(req.Endpoint, "/"), nil
}

// jitterSleep pauses for a random duration in [min, max]. Cancellation cuts
// the pause short; the caller's next ctx check reports it.
func (b *Base) jitterSleep(ctx context.Context, min, max time.Duration) {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	if d <= 0 {
		return
	}
	_ = b.sleep(ctx, d)
}

func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
