package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// UpsertCounts summarizes one upsert batch.
type UpsertCounts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

func (c UpsertCounts) Total() int {
	return c.Inserted + c.Updated + c.Skipped
}

const teamInsertSQL = `
INSERT INTO teams (
    team_id, abbreviation, nickname, year_founded, city, arena,
    arena_capacity, owner, general_manager, head_coach,
    dleague_affiliation, team_slug, logo, updated_at
) VALUES (
    :team_id, :abbreviation, :nickname, :year_founded, :city, :arena,
    :arena_capacity, :owner, :general_manager, :head_coach,
    :dleague_affiliation, :team_slug, :logo, :updated_at
)`

// Logo is deliberately absent from the update set; it is maintained by the
// separate logo sync.
const teamUpdateSQL = `
UPDATE teams SET
    abbreviation = :abbreviation,
    nickname = :nickname,
    year_founded = :year_founded,
    city = :city,
    arena = :arena,
    arena_capacity = :arena_capacity,
    owner = :owner,
    general_manager = :general_manager,
    head_coach = :head_coach,
    dleague_affiliation = :dleague_affiliation,
    team_slug = :team_slug,
    updated_at = :updated_at
WHERE team_id = :team_id`

// UpsertTeams writes team rows in one transaction. A failing row is logged
// and skipped; the rest of the batch proceeds.
func (s *Store) UpsertTeams(ctx context.Context, teams []Team) (UpsertCounts, error) {
	var counts UpsertCounts
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for i := range teams {
			row := teams[i]
			row.UpdatedAt = s.now().UTC()

			exists, err := rowExists(ctx, tx, "SELECT COUNT(*) FROM teams WHERE team_id = ?", row.TeamID)
			if err != nil {
				return err
			}

			stmt := teamInsertSQL
			if exists {
				stmt = teamUpdateSQL
			}
			if _, err := tx.NamedExecContext(ctx, stmt, row); err != nil {
				counts.Skipped++
				s.logger.WarnContext(ctx, "team row skipped", "team_id", row.TeamID, "error", err)
				continue
			}
			if exists {
				counts.Updated++
			} else {
				counts.Inserted++
			}
		}
		return nil
	})
	return counts, err
}

const playerInsertSQL = `
INSERT INTO players (
    person_id, display_last_comma_first, display_first_last, roster_status,
    from_year, to_year, player_slug, team_id, games_played_flag, updated_at
) VALUES (
    :person_id, :display_last_comma_first, :display_first_last, :roster_status,
    :from_year, :to_year, :player_slug, :team_id, :games_played_flag, :updated_at
)`

const playerUpdateSQL = `
UPDATE players SET
    display_last_comma_first = :display_last_comma_first,
    display_first_last = :display_first_last,
    roster_status = :roster_status,
    from_year = :from_year,
    to_year = :to_year,
    player_slug = :player_slug,
    team_id = :team_id,
    games_played_flag = :games_played_flag,
    updated_at = :updated_at
WHERE person_id = :person_id`

func (s *Store) UpsertPlayers(ctx context.Context, players []Player) (UpsertCounts, error) {
	var counts UpsertCounts
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for i := range players {
			row := players[i]
			row.UpdatedAt = s.now().UTC()

			exists, err := rowExists(ctx, tx, "SELECT COUNT(*) FROM players WHERE person_id = ?", row.PersonID)
			if err != nil {
				return err
			}

			stmt := playerInsertSQL
			if exists {
				stmt = playerUpdateSQL
			}
			if _, err := tx.NamedExecContext(ctx, stmt, row); err != nil {
				counts.Skipped++
				s.logger.WarnContext(ctx, "player row skipped", "person_id", row.PersonID, "error", err)
				continue
			}
			if exists {
				counts.Updated++
			} else {
				counts.Inserted++
			}
		}
		return nil
	})
	return counts, err
}

const gameInsertSQL = `
INSERT INTO games (
    game_id, game_code, game_status, game_status_text,
    game_date_est, game_time_est, game_date_time_est,
    game_date_utc, game_time_utc, game_date_time_utc, game_date,
    season_year, week_number, week_name, series_game_number, if_necessary, series_text,
    arena_name, arena_city, arena_state, arena_is_neutral,
    home_team_id, home_team_name, home_team_city, home_team_tricode, home_team_slug,
    home_team_wins, home_team_losses, home_team_score, home_team_seed,
    away_team_id, away_team_name, away_team_city, away_team_tricode, away_team_slug,
    away_team_wins, away_team_losses, away_team_score, away_team_seed,
    points_leader_id, points_leader_first_name, points_leader_last_name,
    points_leader_team_id, points_leader_points,
    game_type, game_sub_type, game_label, game_sub_label, postponed_status,
    game_date_bjs, game_time_bjs, game_date_time_bjs, updated_at
) VALUES (
    :game_id, :game_code, :game_status, :game_status_text,
    :game_date_est, :game_time_est, :game_date_time_est,
    :game_date_utc, :game_time_utc, :game_date_time_utc, :game_date,
    :season_year, :week_number, :week_name, :series_game_number, :if_necessary, :series_text,
    :arena_name, :arena_city, :arena_state, :arena_is_neutral,
    :home_team_id, :home_team_name, :home_team_city, :home_team_tricode, :home_team_slug,
    :home_team_wins, :home_team_losses, :home_team_score, :home_team_seed,
    :away_team_id, :away_team_name, :away_team_city, :away_team_tricode, :away_team_slug,
    :away_team_wins, :away_team_losses, :away_team_score, :away_team_seed,
    :points_leader_id, :points_leader_first_name, :points_leader_last_name,
    :points_leader_team_id, :points_leader_points,
    :game_type, :game_sub_type, :game_label, :game_sub_label, :postponed_status,
    :game_date_bjs, :game_time_bjs, :game_date_time_bjs, :updated_at
)`

const gameUpdateSQL = `
UPDATE games SET
    game_code = :game_code,
    game_status = :game_status,
    game_status_text = :game_status_text,
    game_date_est = :game_date_est,
    game_time_est = :game_time_est,
    game_date_time_est = :game_date_time_est,
    game_date_utc = :game_date_utc,
    game_time_utc = :game_time_utc,
    game_date_time_utc = :game_date_time_utc,
    game_date = :game_date,
    season_year = :season_year,
    week_number = :week_number,
    week_name = :week_name,
    series_game_number = :series_game_number,
    if_necessary = :if_necessary,
    series_text = :series_text,
    arena_name = :arena_name,
    arena_city = :arena_city,
    arena_state = :arena_state,
    arena_is_neutral = :arena_is_neutral,
    home_team_id = :home_team_id,
    home_team_name = :home_team_name,
    home_team_city = :home_team_city,
    home_team_tricode = :home_team_tricode,
    home_team_slug = :home_team_slug,
    home_team_wins = :home_team_wins,
    home_team_losses = :home_team_losses,
    home_team_score = :home_team_score,
    home_team_seed = :home_team_seed,
    away_team_id = :away_team_id,
    away_team_name = :away_team_name,
    away_team_city = :away_team_city,
    away_team_tricode = :away_team_tricode,
    away_team_slug = :away_team_slug,
    away_team_wins = :away_team_wins,
    away_team_losses = :away_team_losses,
    away_team_score = :away_team_score,
    away_team_seed = :away_team_seed,
    points_leader_id = :points_leader_id,
    points_leader_first_name = :points_leader_first_name,
    points_leader_last_name = :points_leader_last_name,
    points_leader_team_id = :points_leader_team_id,
    points_leader_points = :points_leader_points,
    game_type = :game_type,
    game_sub_type = :game_sub_type,
    game_label = :game_label,
    game_sub_label = :game_sub_label,
    postponed_status = :postponed_status,
    game_date_bjs = :game_date_bjs,
    game_time_bjs = :game_time_bjs,
    game_date_time_bjs = :game_date_time_bjs,
    updated_at = :updated_at
WHERE game_id = :game_id`

func (s *Store) UpsertGames(ctx context.Context, games []Game) (UpsertCounts, error) {
	var counts UpsertCounts
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for i := range games {
			row := games[i]
			row.UpdatedAt = s.now().UTC()

			exists, err := rowExists(ctx, tx, "SELECT COUNT(*) FROM games WHERE game_id = ?", row.GameID)
			if err != nil {
				return err
			}

			stmt := gameInsertSQL
			if exists {
				stmt = gameUpdateSQL
			}
			if _, err := tx.NamedExecContext(ctx, stmt, row); err != nil {
				counts.Skipped++
				s.logger.WarnContext(ctx, "game row skipped", "game_id", row.GameID, "error", err)
				continue
			}
			if exists {
				counts.Updated++
			} else {
				counts.Inserted++
			}
		}
		return nil
	})
	return counts, err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rowExists(ctx context.Context, tx *sqlx.Tx, query string, arg any) (bool, error) {
	var n int
	if err := tx.GetContext(ctx, &n, query, arg); err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return n > 0, nil
}
