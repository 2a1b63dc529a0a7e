package syncer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hoopsync/hoopsync/internal/fetcher"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/store"
)

const (
	teamLogoSVGFormat = "https://cdn.nba.com/logos/nba/%d/primary/L/logo.svg"
	teamLogoPNGFormat = "https://cdn.nba.com/logos/nba/%d/primary/L/logo.png"
)

// TeamSource yields per-team detail payloads keyed by team id string.
type TeamSource interface {
	BatchGetDetails(ctx context.Context, teamIDs []int, force bool, opts fetcher.BatchOptions) (map[string]any, error)
}

// BinaryGetter downloads raw bytes, used here for logo files.
type BinaryGetter interface {
	GetBinary(ctx context.Context, rawURL string) ([]byte, error)
}

// TeamSyncer maintains the teams table from teamdetails payloads and keeps
// logo blobs alongside.
type TeamSyncer struct {
	source TeamSource
	images BinaryGetter
	store  *store.Store
	logger *logging.Logger
}

func NewTeamSyncer(source TeamSource, images BinaryGetter, st *store.Store, logger *logging.Logger) *TeamSyncer {
	if logger == nil {
		logger = logging.Default()
	}
	return &TeamSyncer{source: source, images: images, store: st, logger: logger}
}

// Sync fetches detail for the known franchises and upserts team rows.
// Without force, a non-empty teams table short-circuits.
func (s *TeamSyncer) Sync(ctx context.Context, force bool) (store.UpsertCounts, error) {
	if !force {
		n, err := s.store.CountTeams(ctx)
		if err != nil {
			return store.UpsertCounts{}, err
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "teams already synced", "count", n)
			return store.UpsertCounts{}, nil
		}
	}

	ids := fetcher.KnownTeamIDs()
	details, err := s.source.BatchGetDetails(ctx, ids, force, fetcher.BatchOptions{})
	if err != nil {
		return store.UpsertCounts{}, err
	}

	teams := s.teamsFromDetails(ctx, ids, details)
	if len(teams) == 0 {
		return store.UpsertCounts{}, fmt.Errorf("no usable team details out of %d payloads", len(details))
	}

	counts, err := s.store.UpsertTeams(ctx, teams)
	if err != nil {
		return counts, fmt.Errorf("upsert teams: %w", err)
	}
	s.logger.InfoContext(ctx, "teams synced",
		"inserted", counts.Inserted, "updated", counts.Updated, "skipped", counts.Skipped)
	return counts, nil
}

// teamsFromDetails maps payloads into team rows in franchise-id order, so
// upserts run in the same order on every pass. Unusable payloads are logged
// and skipped.
func (s *TeamSyncer) teamsFromDetails(ctx context.Context, ids []int, details map[string]any) []store.Team {
	teams := make([]store.Team, 0, len(details))
	for _, id := range ids {
		idText := strconv.Itoa(id)
		payload, ok := details[idText]
		if !ok {
			continue
		}
		team, err := teamFromDetails(idText, payload)
		if err != nil {
			s.logger.WarnContext(ctx, "team detail unusable", "team_id", idText, "error", err)
			continue
		}
		teams = append(teams, team)
	}
	return teams
}

// SyncLogos downloads each team's logo, preferring SVG and falling back to
// PNG. Failures are logged per team and do not abort the pass.
func (s *TeamSyncer) SyncLogos(ctx context.Context) (int, error) {
	synced := 0
	for _, teamID := range fetcher.KnownTeamIDs() {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}

		blob, err := s.images.GetBinary(ctx, fmt.Sprintf(teamLogoSVGFormat, teamID))
		if err != nil {
			blob, err = s.images.GetBinary(ctx, fmt.Sprintf(teamLogoPNGFormat, teamID))
		}
		if err != nil {
			s.logger.WarnContext(ctx, "logo download failed", "team_id", teamID, "error", err)
			continue
		}
		if err := s.store.UpdateTeamLogo(ctx, teamID, blob); err != nil {
			s.logger.WarnContext(ctx, "logo store failed", "team_id", teamID, "error", err)
			continue
		}
		synced++
	}
	s.logger.InfoContext(ctx, "logos synced", "count", synced)
	return synced, nil
}

// teamFromDetails maps the first TeamBackground row into a team record. A
// missing slug is generated from the nickname.
func teamFromDetails(idText string, payload any) (store.Team, error) {
	rows, err := fetcher.ResultSetRows(payload, "TeamBackground")
	if err != nil {
		return store.Team{}, err
	}
	if len(rows) == 0 {
		return store.Team{}, fmt.Errorf("empty TeamBackground")
	}
	row := rows[0]

	teamID := num(row["TEAM_ID"])
	if teamID == 0 {
		parsed, err := strconv.Atoi(idText)
		if err != nil {
			return store.Team{}, fmt.Errorf("no team id in row or key %q", idText)
		}
		teamID = parsed
	}

	team := store.Team{
		TeamID:             teamID,
		Abbreviation:       str(row["ABBREVIATION"]),
		Nickname:           str(row["NICKNAME"]),
		YearFounded:        optNum(row["YEARFOUNDED"]),
		City:               str(row["CITY"]),
		Arena:              optStr(row["ARENA"]),
		ArenaCapacity:      optStr(stringify(row["ARENACAPACITY"])),
		Owner:              optStr(row["OWNER"]),
		GeneralManager:     optStr(row["GENERALMANAGER"]),
		HeadCoach:          optStr(row["HEADCOACH"]),
		DLeagueAffiliation: optStr(row["DLEAGUEAFFILIATION"]),
	}
	if slug := Slugify(team.Nickname); slug != "" {
		team.TeamSlug = &slug
	}
	return team, nil
}

// Slugify lowercases a name and joins its words with hyphens.
func Slugify(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, "-")
}

// stringify renders scalar cells as strings; arena capacity arrives as
// either a string or a number depending on the franchise.
func stringify(v any) any {
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10)
	default:
		return v
	}
}
