package syncer

import (
	"context"
	"fmt"

	"github.com/hoopsync/hoopsync/internal/fetcher"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/store"
)

// RosterSource yields the league-wide commonallplayers payload.
type RosterSource interface {
	GetAllPlayers(ctx context.Context, season string) (any, error)
}

// PlayerSyncer maintains the players table from the league roster.
type PlayerSyncer struct {
	source RosterSource
	store  *store.Store
	logger *logging.Logger
}

func NewPlayerSyncer(source RosterSource, st *store.Store, logger *logging.Logger) *PlayerSyncer {
	if logger == nil {
		logger = logging.Default()
	}
	return &PlayerSyncer{source: source, store: st, logger: logger}
}

// Sync upserts every roster row. Without force, a non-empty players table
// short-circuits.
func (s *PlayerSyncer) Sync(ctx context.Context, season string, force bool) (store.UpsertCounts, error) {
	if !force {
		n, err := s.store.CountPlayers(ctx)
		if err != nil {
			return store.UpsertCounts{}, err
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "players already synced", "count", n)
			return store.UpsertCounts{}, nil
		}
	}

	payload, err := s.source.GetAllPlayers(ctx, season)
	if err != nil {
		return store.UpsertCounts{}, err
	}

	players, err := ParseRoster(payload)
	if err != nil {
		return store.UpsertCounts{}, err
	}
	if len(players) == 0 {
		s.logger.WarnContext(ctx, "roster payload held no players", "season", season)
		return store.UpsertCounts{}, nil
	}

	counts, err := s.store.UpsertPlayers(ctx, players)
	if err != nil {
		return counts, fmt.Errorf("upsert players: %w", err)
	}
	s.logger.InfoContext(ctx, "players synced",
		"inserted", counts.Inserted, "updated", counts.Updated, "skipped", counts.Skipped)
	return counts, nil
}

// ParseRoster maps CommonAllPlayers rows to player records. A zero TEAM_ID
// means no current franchise and is stored as null.
func ParseRoster(payload any) ([]store.Player, error) {
	rows, err := fetcher.ResultSetRows(payload, "CommonAllPlayers")
	if err != nil {
		return nil, err
	}

	out := make([]store.Player, 0, len(rows))
	for _, row := range rows {
		personID := num(row["PERSON_ID"])
		name := str(row["DISPLAY_FIRST_LAST"])
		if personID == 0 || name == "" {
			continue
		}

		player := store.Player{
			PersonID:              personID,
			DisplayLastCommaFirst: optStr(row["DISPLAY_LAST_COMMA_FIRST"]),
			DisplayFirstLast:      name,
			RosterStatus:          optNum(row["ROSTERSTATUS"]),
			FromYear:              optStr(yearText(row["FROM_YEAR"])),
			ToYear:                optStr(yearText(row["TO_YEAR"])),
			PlayerSlug:            optStr(row["PLAYER_SLUG"]),
			GamesPlayedFlag:       optStr(row["GAMES_PLAYED_FLAG"]),
		}
		if teamID := num(row["TEAM_ID"]); teamID != 0 {
			player.TeamID = &teamID
		}
		out = append(out, player)
	}
	return out, nil
}

// yearText renders FROM_YEAR/TO_YEAR cells, which arrive as strings in some
// vintages and numbers in others.
func yearText(v any) any {
	if n, ok := v.(float64); ok {
		return fmt.Sprintf("%d", int(n))
	}
	return v
}
