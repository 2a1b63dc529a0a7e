package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"

	"github.com/hoopsync/hoopsync/internal/app"
	"github.com/hoopsync/hoopsync/internal/config"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/progress"
	"github.com/hoopsync/hoopsync/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	defer logger.Sync()
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, os.Args[1:]); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, args []string) error {
	cmd := "sync"
	if len(args) > 0 {
		cmd = strings.ToLower(strings.TrimSpace(args[0]))
		args = args[1:]
	}

	force := a.Config.ForceRefresh
	rest := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "--force" || arg == "-f" {
			force = true
			continue
		}
		rest = append(rest, arg)
	}

	switch cmd {
	case "init":
		first, err := a.Manager.IsFirstRun(ctx)
		if err != nil {
			return err
		}
		if !first && !force {
			a.Logger.Info("store already populated, nothing to do")
			return nil
		}
		return printReport(a.Manager.InitialDataSync(ctx))

	case "sync":
		kind := syncer.KindAll
		if len(rest) > 0 {
			kind = rest[0]
		}
		return printReport(a.Manager.Sync(ctx, kind, force))

	case "new-season":
		season := ""
		if len(rest) > 0 {
			season = rest[0]
		}
		return printReport(a.Manager.NewSeasonSync(ctx, season))

	case "current-season":
		return printReport(a.Manager.SyncCurrentSeason(ctx))

	case "stats":
		return printStats(ctx, a)

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printReport(report *syncer.SyncReport) error {
	out, err := sonic.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if report.Status != syncer.StatusSuccess {
		return fmt.Errorf("sync finished with %d error(s)", len(report.Errors))
	}
	return nil
}

func printStats(ctx context.Context, a *app.App) error {
	teams, err := a.Store.CountTeams(ctx)
	if err != nil {
		return err
	}
	players, err := a.Store.CountPlayers(ctx)
	if err != nil {
		return err
	}
	games, err := a.Store.CountGames(ctx)
	if err != nil {
		return err
	}
	first, err := a.Manager.IsFirstRun(ctx)
	if err != nil {
		return err
	}

	batches := map[string]progress.Stats{}
	for _, task := range []string{"team_details", "player_details", "video_details"} {
		tracker, err := progress.NewTracker(a.Config.CacheRoot, task, a.Logger)
		if err != nil {
			return err
		}
		if stats := tracker.Stats(); stats.Completed > 0 || stats.Failed > 0 {
			batches[task] = stats
		}
	}

	out, err := sonic.MarshalIndent(map[string]any{
		"teams":     teams,
		"players":   players,
		"games":     games,
		"first_run": first,
		"batches":   batches,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: nbasync <command> [args]

commands:
  init                     full first-run sync (teams, players, schedule)
  sync [teams|players|schedule|all] [--force]
  new-season [season]      force-sync everything for a season (e.g. 2025-26)
  current-season           force-refresh the configured season's schedule
  stats                    print table counts`)
}
