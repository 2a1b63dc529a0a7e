package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hoopsync/hoopsync/internal/fetcher"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/store"
)

// Derived game_type values, checked in order against series_text.
const (
	GameTypePreseason     = "Preseason"
	GameTypePlayIn        = "Play-In"
	GameTypeAllStar       = "All-Star"
	GameTypePlayoffs      = "Playoffs"
	GameTypeRegularSeason = "Regular Season"
)

// ScheduleSource yields one season's schedule payload.
type ScheduleSource interface {
	GetBySeason(ctx context.Context, season string, force bool) (any, error)
}

// ScheduleSyncer walks a season schedule payload into game rows.
type ScheduleSyncer struct {
	source ScheduleSource
	store  *store.Store
	logger *logging.Logger
}

func NewScheduleSyncer(source ScheduleSource, st *store.Store, logger *logging.Logger) *ScheduleSyncer {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScheduleSyncer{source: source, store: st, logger: logger}
}

// Sync upserts every game of a season. Without force, a season that already
// has rows is left alone.
func (s *ScheduleSyncer) Sync(ctx context.Context, season string, force bool) (store.UpsertCounts, error) {
	if !force {
		has, err := s.store.HasSeason(ctx, season)
		if err != nil {
			return store.UpsertCounts{}, err
		}
		if has {
			s.logger.InfoContext(ctx, "schedule already synced", "season", season)
			return store.UpsertCounts{}, nil
		}
	}

	payload, err := s.source.GetBySeason(ctx, season, force)
	if err != nil {
		return store.UpsertCounts{}, err
	}

	games, err := ParseLeagueSchedule(payload)
	if err != nil {
		return store.UpsertCounts{}, err
	}
	if len(games) == 0 {
		s.logger.WarnContext(ctx, "schedule payload held no games", "season", season)
		return store.UpsertCounts{}, nil
	}

	counts, err := s.store.UpsertGames(ctx, games)
	if err != nil {
		return counts, fmt.Errorf("upsert games for season %s: %w", season, err)
	}
	s.logger.InfoContext(ctx, "schedule synced",
		"season", season, "inserted", counts.Inserted, "updated", counts.Updated, "skipped", counts.Skipped)
	return counts, nil
}

// ParseLeagueSchedule flattens leagueSchedule.gameDates[].games[] into game
// rows, preserving payload order. Individual malformed games are dropped.
func ParseLeagueSchedule(payload any) ([]store.Game, error) {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: schedule payload is %T", fetcher.ErrBadShape, payload)
	}
	league, ok := root["leagueSchedule"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload missing leagueSchedule", fetcher.ErrBadShape)
	}
	seasonYear, _ := league["seasonYear"].(string)
	gameDates, ok := league["gameDates"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: leagueSchedule missing gameDates", fetcher.ErrBadShape)
	}

	var out []store.Game
	for _, rawDate := range gameDates {
		dateEntry, ok := rawDate.(map[string]any)
		if !ok {
			continue
		}
		gameDate, _ := dateEntry["gameDate"].(string)
		games, ok := dateEntry["games"].([]any)
		if !ok {
			continue
		}
		for _, rawGame := range games {
			gameObj, ok := rawGame.(map[string]any)
			if !ok {
				continue
			}
			game, err := gameFromPayload(gameObj, seasonYear, gameDate)
			if err != nil {
				continue
			}
			out = append(out, game)
		}
	}
	return out, nil
}

func gameFromPayload(m map[string]any, seasonYear, gameDate string) (store.Game, error) {
	gameID := str(m["gameId"])
	if gameID == "" {
		return store.Game{}, fmt.Errorf("game without gameId")
	}

	g := store.Game{
		GameID:          gameID,
		GameCode:        str(m["gameCode"]),
		GameStatus:      num(m["gameStatus"]),
		GameStatusText:  str(m["gameStatusText"]),
		GameDateEST:     str(m["gameDateEst"]),
		GameTimeEST:     str(m["gameTimeEst"]),
		GameDateTimeEST: str(m["gameDateTimeEst"]),
		GameDateUTC:     str(m["gameDateUTC"]),
		GameTimeUTC:     str(m["gameTimeUTC"]),
		GameDateTimeUTC: str(m["gameDateTimeUTC"]),
		GameDate:        firstNonEmpty(normalizeDate(gameDate), str(m["gameDateUTC"])),
		SeasonYear:      seasonYear,
		WeekNumber:      num(m["weekNumber"]),
		WeekName:        str(m["weekName"]),

		SeriesGameNumber: str(m["seriesGameNumber"]),
		IfNecessary:      str(m["ifNecessary"]),
		SeriesText:       str(m["seriesText"]),

		ArenaName:      str(m["arenaName"]),
		ArenaCity:      str(m["arenaCity"]),
		ArenaState:     str(m["arenaState"]),
		ArenaIsNeutral: boolean(m["arenaIsNeutral"]),

		GameType:        ClassifyGameType(str(m["seriesText"])),
		GameSubType:     str(m["gameSubtype"]),
		GameLabel:       str(m["gameLabel"]),
		GameSubLabel:    str(m["gameSubLabel"]),
		PostponedStatus: str(m["postponedStatus"]),
	}

	if home, ok := m["homeTeam"].(map[string]any); ok {
		g.HomeTeamID = num(home["teamId"])
		g.HomeTeamName = str(home["teamName"])
		g.HomeTeamCity = str(home["teamCity"])
		g.HomeTeamTricode = str(home["teamTricode"])
		g.HomeTeamSlug = str(home["teamSlug"])
		g.HomeTeamWins = num(home["wins"])
		g.HomeTeamLosses = num(home["losses"])
		g.HomeTeamScore = num(home["score"])
		g.HomeTeamSeed = optNum(home["seed"])
	}
	if away, ok := m["awayTeam"].(map[string]any); ok {
		g.AwayTeamID = num(away["teamId"])
		g.AwayTeamName = str(away["teamName"])
		g.AwayTeamCity = str(away["teamCity"])
		g.AwayTeamTricode = str(away["teamTricode"])
		g.AwayTeamSlug = str(away["teamSlug"])
		g.AwayTeamWins = num(away["wins"])
		g.AwayTeamLosses = num(away["losses"])
		g.AwayTeamScore = num(away["score"])
		g.AwayTeamSeed = optNum(away["seed"])
	}
	if leaders, ok := m["pointsLeaders"].([]any); ok && len(leaders) > 0 {
		if leader, ok := leaders[0].(map[string]any); ok {
			g.PointsLeaderID = optNum(leader["personId"])
			g.PointsLeaderFirstName = optStr(leader["firstName"])
			g.PointsLeaderLastName = optStr(leader["lastName"])
			g.PointsLeaderTeamID = optNum(leader["teamId"])
			g.PointsLeaderPoints = optFloat(leader["points"])
		}
	}

	if dateTime, date, clock, err := DeriveBeijingTime(g.GameDateTimeUTC); err == nil {
		g.GameDateTimeBJS = dateTime
		g.GameDateBJS = date
		g.GameTimeBJS = clock
	}
	return g, nil
}

// ClassifyGameType maps a schedule series_text to a game type. Rules are
// ordered; the first containment wins and an empty string is a regular
// season game.
func ClassifyGameType(seriesText string) string {
	switch {
	case strings.Contains(seriesText, "Preseason"):
		return GameTypePreseason
	case strings.Contains(seriesText, "Play-In"):
		return GameTypePlayIn
	case strings.Contains(seriesText, "All-Star"):
		return GameTypeAllStar
	case strings.Contains(seriesText, "Playoffs"),
		strings.Contains(seriesText, "leads"),
		strings.Contains(seriesText, "tied"),
		strings.Contains(seriesText, "won"):
		return GameTypePlayoffs
	default:
		return GameTypeRegularSeason
	}
}

// DeriveBeijingTime renders a UTC game time in Asia/Shanghai, returning the
// combined RFC3339 stamp plus its date and clock parts.
func DeriveBeijingTime(utcStamp string) (dateTime, date, clock string, err error) {
	if utcStamp == "" {
		return "", "", "", fmt.Errorf("empty utc timestamp")
	}
	t, err := time.Parse(time.RFC3339, utcStamp)
	if err != nil {
		return "", "", "", fmt.Errorf("parse %q: %w", utcStamp, err)
	}
	bjs := t.In(store.BeijingLocation())
	return bjs.Format(time.RFC3339), bjs.Format("2006-01-02"), bjs.Format("15:04:05"), nil
}

// normalizeDate trims schedule gameDate strings like "12/25/2024 00:00:00"
// down to a date, converting to ISO when the vendor form parses.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if t, err := time.Parse("1/2/2006 15:04:05", raw); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.Format("2006-01-02")
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func optStr(v any) *string {
	if s, ok := v.(string); ok && s != "" {
		return &s
	}
	return nil
}

func num(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func optNum(v any) *int {
	switch n := v.(type) {
	case float64:
		out := int(n)
		return &out
	case int:
		return &n
	default:
		return nil
	}
}

func optFloat(v any) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}
