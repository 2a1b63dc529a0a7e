package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

func sampleTeams() []Team {
	return []Team{
		{
			TeamID:       1610612747,
			Abbreviation: "LAL",
			Nickname:     "Lakers",
			City:         "Los Angeles",
			YearFounded:  intptr(1948),
			Arena:        strptr("Crypto.com Arena"),
			TeamSlug:     strptr("lakers"),
		},
		{
			TeamID:       1610612738,
			Abbreviation: "BOS",
			Nickname:     "Celtics",
			City:         "Boston",
			YearFounded:  intptr(1946),
			TeamSlug:     strptr("celtics"),
		},
	}
}

func TestUpsertTeams_InsertThenUpdate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	counts, err := s.UpsertTeams(ctx, sampleTeams())
	if err != nil {
		t.Fatalf("UpsertTeams: %v", err)
	}
	if counts.Inserted != 2 || counts.Updated != 0 || counts.Skipped != 0 {
		t.Fatalf("first run counts = %+v", counts)
	}

	// Re-running the same batch updates in place, no duplicates.
	counts, err = s.UpsertTeams(ctx, sampleTeams())
	if err != nil {
		t.Fatalf("UpsertTeams again: %v", err)
	}
	if counts.Inserted != 0 || counts.Updated != 2 {
		t.Fatalf("second run counts = %+v", counts)
	}

	n, err := s.CountTeams(ctx)
	if err != nil {
		t.Fatalf("CountTeams: %v", err)
	}
	if n != 2 {
		t.Fatalf("teams = %d, want 2", n)
	}
}

func TestUpsertTeams_UpdateKeepsLogo(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertTeams(ctx, sampleTeams()); err != nil {
		t.Fatalf("UpsertTeams: %v", err)
	}
	logo := []byte("<svg/>")
	if err := s.UpdateTeamLogo(ctx, 1610612747, logo); err != nil {
		t.Fatalf("UpdateTeamLogo: %v", err)
	}
	if _, err := s.UpsertTeams(ctx, sampleTeams()); err != nil {
		t.Fatalf("UpsertTeams again: %v", err)
	}

	var got []byte
	if err := s.db.GetContext(ctx, &got, "SELECT logo FROM teams WHERE team_id = ?", 1610612747); err != nil {
		t.Fatalf("select logo: %v", err)
	}
	if string(got) != string(logo) {
		t.Fatal("detail update wiped the stored logo")
	}
}

func TestUpdateTeamLogo_UnknownTeam(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if err := s.UpdateTeamLogo(context.Background(), 42, []byte("x")); err == nil {
		t.Fatal("want error for unknown team")
	}
}

func TestUpsertPlayers_NullableTeam(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	players := []Player{
		{
			PersonID:              2544,
			DisplayFirstLast:      "LeBron James",
			DisplayLastCommaFirst: strptr("James, LeBron"),
			RosterStatus:          intptr(1),
			TeamID:                intptr(1610612747),
		},
		{
			PersonID:         893,
			DisplayFirstLast: "Michael Jordan",
			RosterStatus:     intptr(0),
			TeamID:           nil,
		},
	}

	// The referenced team must exist for the FK to hold.
	if _, err := s.UpsertTeams(ctx, sampleTeams()); err != nil {
		t.Fatalf("UpsertTeams: %v", err)
	}
	counts, err := s.UpsertPlayers(ctx, players)
	if err != nil {
		t.Fatalf("UpsertPlayers: %v", err)
	}
	if counts.Inserted != 2 {
		t.Fatalf("counts = %+v", counts)
	}

	var teamID *int
	if err := s.db.GetContext(ctx, &teamID, "SELECT team_id FROM players WHERE person_id = ?", 893); err != nil {
		t.Fatalf("select team_id: %v", err)
	}
	if teamID != nil {
		t.Fatalf("retired player team_id = %v, want NULL", *teamID)
	}
}

func TestUpsertGames_AndSeasonLookup(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	games := []Game{
		sampleGame("0022400408", "2024-25", time.Date(2024, 12, 25, 20, 0, 0, 0, time.UTC)),
		sampleGame("0022400409", "2024-25", time.Date(2024, 12, 26, 1, 0, 0, 0, time.UTC)),
	}
	counts, err := s.UpsertGames(ctx, games)
	if err != nil {
		t.Fatalf("UpsertGames: %v", err)
	}
	if counts.Inserted != 2 {
		t.Fatalf("counts = %+v", counts)
	}

	has, err := s.HasSeason(ctx, "2024-25")
	if err != nil {
		t.Fatalf("HasSeason: %v", err)
	}
	if !has {
		t.Fatal("season 2024-25 not found")
	}
	has, err = s.HasSeason(ctx, "1999-00")
	if err != nil {
		t.Fatalf("HasSeason: %v", err)
	}
	if has {
		t.Fatal("phantom season reported")
	}
}

func sampleGame(id, season string, tipoff time.Time) Game {
	bjs := tipoff.In(BeijingLocation())
	return Game{
		GameID:          id,
		GameCode:        "20241225/NYKLAL",
		GameStatus:      3,
		GameStatusText:  "Final",
		GameDateTimeUTC: tipoff.Format(time.RFC3339),
		GameDateUTC:     tipoff.Format("2006-01-02"),
		GameTimeUTC:     tipoff.Format("15:04:05"),
		GameDate:        tipoff.Format("2006-01-02"),
		SeasonYear:      season,
		GameType:        "Regular Season",
		HomeTeamID:      1610612747,
		HomeTeamName:    "Lakers",
		HomeTeamCity:    "Los Angeles",
		HomeTeamTricode: "LAL",
		HomeTeamScore:   115,
		AwayTeamID:      1610612752,
		AwayTeamName:    "Knicks",
		AwayTeamCity:    "New York",
		AwayTeamTricode: "NYK",
		AwayTeamScore:   113,
		GameDateBJS:     bjs.Format("2006-01-02"),
		GameTimeBJS:     bjs.Format("15:04:05"),
		GameDateTimeBJS: bjs.Format(time.RFC3339),
	}
}
