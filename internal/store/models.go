package store

import "time"

// Team mirrors one row of the teams table.
type Team struct {
	TeamID             int       `db:"team_id"`
	Abbreviation       string    `db:"abbreviation"`
	Nickname           string    `db:"nickname"`
	YearFounded        *int      `db:"year_founded"`
	City               string    `db:"city"`
	Arena              *string   `db:"arena"`
	ArenaCapacity      *string   `db:"arena_capacity"`
	Owner              *string   `db:"owner"`
	GeneralManager     *string   `db:"general_manager"`
	HeadCoach          *string   `db:"head_coach"`
	DLeagueAffiliation *string   `db:"dleague_affiliation"`
	TeamSlug           *string   `db:"team_slug"`
	Logo               []byte    `db:"logo"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// FullName is "{city} {nickname}".
func (t Team) FullName() string {
	if t.City == "" {
		return t.Nickname
	}
	return t.City + " " + t.Nickname
}

// Player mirrors one row of the players table. TeamID is nil for players
// without a current franchise.
type Player struct {
	PersonID              int       `db:"person_id"`
	DisplayLastCommaFirst *string   `db:"display_last_comma_first"`
	DisplayFirstLast      string    `db:"display_first_last"`
	RosterStatus          *int      `db:"roster_status"`
	FromYear              *string   `db:"from_year"`
	ToYear                *string   `db:"to_year"`
	PlayerSlug            *string   `db:"player_slug"`
	TeamID                *int      `db:"team_id"`
	GamesPlayedFlag       *string   `db:"games_played_flag"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// Game mirrors one row of the games table. Team snapshots are embedded by
// value; the schedule is fetched before team rows necessarily exist.
type Game struct {
	GameID         string `db:"game_id"`
	GameCode       string `db:"game_code"`
	GameStatus     int    `db:"game_status"`
	GameStatusText string `db:"game_status_text"`

	GameDateEST     string `db:"game_date_est"`
	GameTimeEST     string `db:"game_time_est"`
	GameDateTimeEST string `db:"game_date_time_est"`
	GameDateUTC     string `db:"game_date_utc"`
	GameTimeUTC     string `db:"game_time_utc"`
	GameDateTimeUTC string `db:"game_date_time_utc"`
	GameDate        string `db:"game_date"`

	SeasonYear       string `db:"season_year"`
	WeekNumber       int    `db:"week_number"`
	WeekName         string `db:"week_name"`
	SeriesGameNumber string `db:"series_game_number"`
	IfNecessary      string `db:"if_necessary"`
	SeriesText       string `db:"series_text"`

	ArenaName      string `db:"arena_name"`
	ArenaCity      string `db:"arena_city"`
	ArenaState     string `db:"arena_state"`
	ArenaIsNeutral bool   `db:"arena_is_neutral"`

	HomeTeamID      int    `db:"home_team_id"`
	HomeTeamName    string `db:"home_team_name"`
	HomeTeamCity    string `db:"home_team_city"`
	HomeTeamTricode string `db:"home_team_tricode"`
	HomeTeamSlug    string `db:"home_team_slug"`
	HomeTeamWins    int    `db:"home_team_wins"`
	HomeTeamLosses  int    `db:"home_team_losses"`
	HomeTeamScore   int    `db:"home_team_score"`
	HomeTeamSeed    *int   `db:"home_team_seed"`

	AwayTeamID      int    `db:"away_team_id"`
	AwayTeamName    string `db:"away_team_name"`
	AwayTeamCity    string `db:"away_team_city"`
	AwayTeamTricode string `db:"away_team_tricode"`
	AwayTeamSlug    string `db:"away_team_slug"`
	AwayTeamWins    int    `db:"away_team_wins"`
	AwayTeamLosses  int    `db:"away_team_losses"`
	AwayTeamScore   int    `db:"away_team_score"`
	AwayTeamSeed    *int   `db:"away_team_seed"`

	PointsLeaderID        *int     `db:"points_leader_id"`
	PointsLeaderFirstName *string  `db:"points_leader_first_name"`
	PointsLeaderLastName  *string  `db:"points_leader_last_name"`
	PointsLeaderTeamID    *int     `db:"points_leader_team_id"`
	PointsLeaderPoints    *float64 `db:"points_leader_points"`

	GameType        string `db:"game_type"`
	GameSubType     string `db:"game_sub_type"`
	GameLabel       string `db:"game_label"`
	GameSubLabel    string `db:"game_sub_label"`
	PostponedStatus string `db:"postponed_status"`

	GameDateBJS     string `db:"game_date_bjs"`
	GameTimeBJS     string `db:"game_time_bjs"`
	GameDateTimeBJS string `db:"game_date_time_bjs"`

	UpdatedAt time.Time `db:"updated_at"`
}
