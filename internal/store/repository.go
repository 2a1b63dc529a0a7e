package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Fuzzy-match floors carried over from long-running operation: partial
// token-sort for team names, token-sort for player names.
const (
	teamMatchThreshold   = 70
	playerMatchThreshold = 50
)

// Name forms for TeamNameByID and PlayerNameByID.
const (
	TeamNameFull     = "full"
	TeamNameNickname = "nickname"
	TeamNameCity     = "city"
	TeamNameAbbr     = "abbr"

	PlayerNameFull      = "full"
	PlayerNameLastFirst = "last_first"
	PlayerNameFirst     = "first"
	PlayerNameLast      = "last"
)

// Date queries for GameIDForTeam beyond literal YYYY-MM-DD dates.
const (
	GameQueryToday = "today"
	GameQueryNext  = "next"
	GameQueryLast  = "last"
)

// TeamIDByName resolves a free-form team name. Exact matches on
// abbreviation, nickname, "{city} {nickname}" and slug are tried in that
// order before falling back to fuzzy scoring.
func (s *Store) TeamIDByName(ctx context.Context, name string) (int, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, nil
	}

	var teams []Team
	if err := s.db.SelectContext(ctx, &teams,
		"SELECT team_id, abbreviation, nickname, city, team_slug, updated_at FROM teams"); err != nil {
		return 0, false, fmt.Errorf("select teams: %w", err)
	}

	lower := strings.ToLower(name)
	for _, pick := range []func(Team) string{
		func(t Team) string { return t.Abbreviation },
		func(t Team) string { return t.Nickname },
		func(t Team) string { return t.FullName() },
		func(t Team) string {
			if t.TeamSlug != nil {
				return *t.TeamSlug
			}
			return ""
		},
	} {
		for _, t := range teams {
			if candidate := strings.ToLower(pick(t)); candidate != "" && candidate == lower {
				return t.TeamID, true, nil
			}
		}
	}

	bestID, bestScore := 0, 0
	for _, t := range teams {
		score := fuzzy.PartialTokenSortRatio(lower, strings.ToLower(t.FullName()))
		if score > bestScore {
			bestID, bestScore = t.TeamID, score
		}
	}
	if bestScore >= teamMatchThreshold {
		return bestID, true, nil
	}
	return 0, false, nil
}

func (s *Store) TeamNameByID(ctx context.Context, teamID int, form string) (string, bool, error) {
	var t Team
	err := s.db.GetContext(ctx, &t,
		"SELECT team_id, abbreviation, nickname, city, updated_at FROM teams WHERE team_id = ?", teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select team %d: %w", teamID, err)
	}

	switch form {
	case TeamNameNickname:
		return t.Nickname, true, nil
	case TeamNameCity:
		return t.City, true, nil
	case TeamNameAbbr:
		return t.Abbreviation, true, nil
	case TeamNameFull, "":
		return t.FullName(), true, nil
	default:
		return "", false, fmt.Errorf("unknown team name form %q", form)
	}
}

// PlayerIDByName resolves a free-form player name. A unique substring match
// wins; several matches that agree on the id also win; otherwise the best
// fuzzy score above the floor decides.
func (s *Store) PlayerIDByName(ctx context.Context, name string) (int, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, nil
	}

	type candidate struct {
		PersonID         int    `db:"person_id"`
		DisplayFirstLast string `db:"display_first_last"`
	}

	var matches []candidate
	if err := s.db.SelectContext(ctx, &matches,
		"SELECT person_id, display_first_last FROM players WHERE display_first_last LIKE ? COLLATE NOCASE",
		"%"+name+"%"); err != nil {
		return 0, false, fmt.Errorf("select players by name: %w", err)
	}

	if len(matches) == 1 {
		return matches[0].PersonID, true, nil
	}
	if len(matches) > 1 {
		sameID := true
		for _, m := range matches[1:] {
			if m.PersonID != matches[0].PersonID {
				sameID = false
				break
			}
		}
		if sameID {
			return matches[0].PersonID, true, nil
		}
	}

	pool := matches
	if len(pool) == 0 {
		if err := s.db.SelectContext(ctx, &pool,
			"SELECT person_id, display_first_last FROM players"); err != nil {
			return 0, false, fmt.Errorf("select players: %w", err)
		}
	}

	lower := strings.ToLower(name)
	bestID, bestScore := 0, 0
	for _, p := range pool {
		score := fuzzy.TokenSortRatio(lower, strings.ToLower(p.DisplayFirstLast))
		if score > bestScore {
			bestID, bestScore = p.PersonID, score
		}
	}
	if bestScore >= playerMatchThreshold {
		return bestID, true, nil
	}
	return 0, false, nil
}

func (s *Store) PlayerNameByID(ctx context.Context, personID int, form string) (string, bool, error) {
	var p Player
	err := s.db.GetContext(ctx, &p,
		"SELECT person_id, display_first_last, display_last_comma_first, updated_at FROM players WHERE person_id = ?",
		personID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select player %d: %w", personID, err)
	}

	switch form {
	case PlayerNameLastFirst:
		if p.DisplayLastCommaFirst != nil {
			return *p.DisplayLastCommaFirst, true, nil
		}
		return "", false, nil
	case PlayerNameFirst:
		first, _, _ := strings.Cut(p.DisplayFirstLast, " ")
		return first, true, nil
	case PlayerNameLast:
		_, last, ok := strings.Cut(p.DisplayFirstLast, " ")
		if !ok {
			return p.DisplayFirstLast, true, nil
		}
		return last, true, nil
	case PlayerNameFull, "":
		return p.DisplayFirstLast, true, nil
	default:
		return "", false, fmt.Errorf("unknown player name form %q", form)
	}
}

// GameIDForTeam resolves at most one game for a team: today's game, the
// next or most recent one relative to now, or the game on a literal
// YYYY-MM-DD date (interpreted as a Beijing-time date).
func (s *Store) GameIDForTeam(ctx context.Context, teamID int, query string) (string, bool, error) {
	var (
		gameID string
		err    error
	)

	switch query {
	case GameQueryToday, "":
		today := s.now().In(BeijingLocation()).Format("2006-01-02")
		err = s.db.GetContext(ctx, &gameID,
			`SELECT game_id FROM games
			 WHERE (home_team_id = ? OR away_team_id = ?) AND game_date_bjs = ?
			 ORDER BY game_date_time_utc LIMIT 1`,
			teamID, teamID, today)
	case GameQueryNext:
		now := s.now().UTC().Format(time.RFC3339)
		err = s.db.GetContext(ctx, &gameID,
			`SELECT game_id FROM games
			 WHERE (home_team_id = ? OR away_team_id = ?) AND game_date_time_utc > ?
			 ORDER BY game_date_time_utc ASC LIMIT 1`,
			teamID, teamID, now)
	case GameQueryLast:
		now := s.now().UTC().Format(time.RFC3339)
		err = s.db.GetContext(ctx, &gameID,
			`SELECT game_id FROM games
			 WHERE (home_team_id = ? OR away_team_id = ?) AND game_date_time_utc < ?
			 ORDER BY game_date_time_utc DESC LIMIT 1`,
			teamID, teamID, now)
	default:
		if _, parseErr := time.Parse("2006-01-02", query); parseErr != nil {
			return "", false, fmt.Errorf("unknown game query %q", query)
		}
		err = s.db.GetContext(ctx, &gameID,
			`SELECT game_id FROM games
			 WHERE (home_team_id = ? OR away_team_id = ?) AND game_date_bjs = ?
			 ORDER BY game_date_time_utc LIMIT 1`,
			teamID, teamID, query)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select game for team %d (%s): %w", teamID, query, err)
	}
	return gameID, true, nil
}

// GamesByDate lists games on a Beijing-time date, in tip-off order.
func (s *Store) GamesByDate(ctx context.Context, date string) ([]Game, error) {
	var games []Game
	if err := s.db.SelectContext(ctx, &games,
		"SELECT * FROM games WHERE game_date_bjs = ? ORDER BY game_date_time_utc", date); err != nil {
		return nil, fmt.Errorf("select games on %s: %w", date, err)
	}
	return games, nil
}

// GamesByTeam lists a team's games, most recent first.
func (s *Store) GamesByTeam(ctx context.Context, teamID, limit int) ([]Game, error) {
	if limit <= 0 {
		limit = 10
	}
	var games []Game
	if err := s.db.SelectContext(ctx, &games,
		`SELECT * FROM games WHERE home_team_id = ? OR away_team_id = ?
		 ORDER BY game_date_time_utc DESC LIMIT ?`,
		teamID, teamID, limit); err != nil {
		return nil, fmt.Errorf("select games for team %d: %w", teamID, err)
	}
	return games, nil
}

// BeijingLocation returns Asia/Shanghai, falling back to a fixed +08:00
// zone when the tzdata is unavailable.
func BeijingLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}
