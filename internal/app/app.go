package app

import (
	"fmt"

	"github.com/hoopsync/hoopsync/internal/config"
	"github.com/hoopsync/hoopsync/internal/fetcher"
	"github.com/hoopsync/hoopsync/internal/httpclient"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/resilience"
	"github.com/hoopsync/hoopsync/internal/store"
	"github.com/hoopsync/hoopsync/internal/syncer"
)

// App wires clients, fetchers, the store and the sync manager from one
// configuration. Three HTTP clients exist because the endpoint families
// tolerate very different pacing: stats, the slow video endpoint, and the
// liberal CDN.
type App struct {
	Config config.Config
	Logger *logging.Logger
	Store  *store.Store

	Schedule *fetcher.ScheduleFetcher
	Teams    *fetcher.TeamFetcher
	Players  *fetcher.PlayerFetcher
	Games    *fetcher.GameFetcher
	Videos   *fetcher.VideoFetcher
	Images   *fetcher.PlayerImageFetcher

	Manager *syncer.Manager
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	retry := httpclient.DefaultRetryPolicy()
	retry.MaxRetries = cfg.MaxRetries

	statsClient := httpclient.New(httpclient.Config{
		Timeout:        cfg.RequestTimeout,
		Retry:          retry,
		MinInterval:    cfg.RateLimitMin,
		MaxInterval:    cfg.RateLimitMax,
		FallbackHosts:  cfg.FallbackURLs,
		Logger:         logger,
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
	})
	scheduleClient := httpclient.New(httpclient.Config{
		Timeout:        cfg.ScheduleTimeout,
		Retry:          retry,
		MinInterval:    cfg.RateLimitMin,
		MaxInterval:    cfg.RateLimitMax,
		FallbackHosts:  cfg.FallbackURLs,
		Logger:         logger,
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
	})
	videoClient := httpclient.New(httpclient.Config{
		Timeout:        cfg.VideoTimeout,
		Retry:          retry,
		MinInterval:    cfg.VideoRateLimitMin,
		MaxInterval:    cfg.VideoRateLimitMax,
		FallbackHosts:  cfg.FallbackURLs,
		Logger:         logger,
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
	})
	cdnClient := httpclient.New(httpclient.Config{
		Timeout:     cfg.RequestTimeout,
		Retry:       retry,
		MinInterval: cfg.RateLimitMin,
		MaxInterval: cfg.RateLimitMax,
		Logger:      logger,
	})

	schedule, err := fetcher.NewScheduleFetcher(scheduleClient, cfg.CacheRoot, cfg.StartSeason, cfg.CurrentSeason, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	teams, err := fetcher.NewTeamFetcher(statsClient, cfg.CacheRoot, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	players, err := fetcher.NewPlayerFetcher(statsClient, cfg.CacheRoot, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	games, err := fetcher.NewGameFetcher(cdnClient, cfg.CacheRoot, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	videos, err := fetcher.NewVideoFetcher(videoClient, cfg.CacheRoot, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	images, err := fetcher.NewPlayerImageFetcher(cdnClient, cfg.CacheRoot, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	manager := syncer.NewManager(
		syncer.NewTeamSyncer(teams, cdnClient, st, logger),
		syncer.NewPlayerSyncer(players, st, logger),
		syncer.NewScheduleSyncer(schedule, st, logger),
		st, cfg.CurrentSeason, logger,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Schedule: schedule,
		Teams:    teams,
		Players:  players,
		Games:    games,
		Videos:   videos,
		Images:   images,
		Manager:  manager,
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
