package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the embedded relational database holding teams, players and
// games. Writes are serialized through a single connection; sqlite has one
// writer anyway and the busy handler covers stray contention.
type Store struct {
	db     *sqlx.DB
	logger *logging.Logger
	now    func() time.Time
}

func Open(dbPath string, logger *logging.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir %s: %w", dir, err)
		}
	}
	if logger == nil {
		logger = logging.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrator builds a migrate instance over the embedded schema files. The
// migration command uses it directly for down, force and version.
func (s *Store) Migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	m, err := s.Migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) CountTeams(ctx context.Context) (int, error) {
	return s.count(ctx, "teams")
}

func (s *Store) CountPlayers(ctx context.Context) (int, error) {
	return s.count(ctx, "players")
}

func (s *Store) CountGames(ctx context.Context) (int, error) {
	return s.count(ctx, "games")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// HasSeason reports whether any games are stored for the given season.
func (s *Store) HasSeason(ctx context.Context, season string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM games WHERE season_year = ?", season); err != nil {
		return false, fmt.Errorf("count games for season %s: %w", season, err)
	}
	return n > 0, nil
}

// UpdateTeamLogo stores logo bytes for one team without touching the rest
// of the row.
func (s *Store) UpdateTeamLogo(ctx context.Context, teamID int, logo []byte) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE teams SET logo = ?, updated_at = ? WHERE team_id = ?",
		logo, s.now().UTC(), teamID)
	if err != nil {
		return fmt.Errorf("update logo for team %d: %w", teamID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update logo: team %d not found", teamID)
	}
	return nil
}
