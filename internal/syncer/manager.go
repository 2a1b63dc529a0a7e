package syncer

import (
	"context"
	"fmt"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/store"
)

// Sync kinds accepted by Manager.Sync.
const (
	KindTeams    = "teams"
	KindPlayers  = "players"
	KindSchedule = "schedule"
	KindAll      = "all"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SyncReport is the outcome of one manager operation: per-resource row
// counts plus any errors encountered along the way.
type SyncReport struct {
	Status string                        `json:"status"`
	Counts map[string]store.UpsertCounts `json:"counts"`
	Errors []string                      `json:"errors,omitempty"`
}

func newReport() *SyncReport {
	return &SyncReport{Status: StatusSuccess, Counts: make(map[string]store.UpsertCounts)}
}

func (r *SyncReport) record(kind string, counts store.UpsertCounts, err error) {
	r.Counts[kind] = counts
	if err != nil {
		r.Status = StatusError
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", kind, err))
	}
}

// Manager is the top-level sync façade, ordering resource syncs so that
// referenced rows land first.
type Manager struct {
	teams         *TeamSyncer
	players       *PlayerSyncer
	schedule      *ScheduleSyncer
	store         *store.Store
	currentSeason string
	logger        *logging.Logger
}

func NewManager(teams *TeamSyncer, players *PlayerSyncer, schedule *ScheduleSyncer, st *store.Store, currentSeason string, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		teams:         teams,
		players:       players,
		schedule:      schedule,
		store:         st,
		currentSeason: currentSeason,
		logger:        logger,
	}
}

// IsFirstRun reports whether any of the three tables is still empty.
func (m *Manager) IsFirstRun(ctx context.Context) (bool, error) {
	for _, count := range []func(context.Context) (int, error){
		m.store.CountTeams,
		m.store.CountPlayers,
		m.store.CountGames,
	} {
		n, err := count(ctx)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return true, nil
		}
	}
	return false, nil
}

// InitialDataSync bootstraps an empty store: teams, then players, then the
// current season's schedule.
func (m *Manager) InitialDataSync(ctx context.Context) *SyncReport {
	m.logger.InfoContext(ctx, "initial data sync started", "season", m.currentSeason)
	return m.syncAll(ctx, m.currentSeason, false)
}

// NewSeasonSync force-refreshes everything for a new season. An empty
// season argument means the configured current season.
func (m *Manager) NewSeasonSync(ctx context.Context, season string) *SyncReport {
	if season == "" {
		season = m.currentSeason
	}
	m.logger.InfoContext(ctx, "new season sync started", "season", season)
	return m.syncAll(ctx, season, true)
}

// SyncCurrentSeason force-refreshes only the current season's schedule.
func (m *Manager) SyncCurrentSeason(ctx context.Context) *SyncReport {
	report := newReport()
	counts, err := m.schedule.Sync(ctx, m.currentSeason, true)
	report.record(KindSchedule, counts, err)
	return report
}

// Sync runs one resource kind, or everything in dependency order.
func (m *Manager) Sync(ctx context.Context, kind string, force bool) *SyncReport {
	report := newReport()
	switch kind {
	case KindTeams:
		counts, err := m.teams.Sync(ctx, force)
		report.record(KindTeams, counts, err)
	case KindPlayers:
		counts, err := m.players.Sync(ctx, m.currentSeason, force)
		report.record(KindPlayers, counts, err)
	case KindSchedule:
		counts, err := m.schedule.Sync(ctx, m.currentSeason, force)
		report.record(KindSchedule, counts, err)
	case KindAll:
		return m.syncAll(ctx, m.currentSeason, force)
	default:
		report.Status = StatusError
		report.Errors = append(report.Errors, fmt.Sprintf("unknown sync kind %q", kind))
	}
	return report
}

func (m *Manager) syncAll(ctx context.Context, season string, force bool) *SyncReport {
	report := newReport()

	counts, err := m.teams.Sync(ctx, force)
	report.record(KindTeams, counts, err)

	counts, err = m.players.Sync(ctx, season, force)
	report.record(KindPlayers, counts, err)

	counts, err = m.schedule.Sync(ctx, season, force)
	report.record(KindSchedule, counts, err)

	m.logger.InfoContext(ctx, "sync finished", "season", season, "status", report.Status)
	return report
}
