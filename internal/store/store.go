package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/utakatalp/volley-simulator/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

var ErrNotFound = errors.New("not found")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store persists fixtures, scenario overrides and predictions. Queries are
// written once with $N placeholders, numbered in order of first use, which
// both lib/pq and go-sqlite3 accept.
type Store struct {
	DB     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the database and applies the embedded migrations of the
// driver's dialect.
func Open(driver, dsn string) (*Store, error) {
	var sqlName string
	switch driver {
	case DriverPostgres:
		sqlName = "postgres"
	case DriverSQLite:
		sqlName = "sqlite3"
		dsn = ensureForeignKeysEnabledDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(sqlName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time; avoids "database is locked" under load
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{DB: db, driver: driver, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}
	return s, nil
}

// NewFromConfig opens the database described by cfg.
func NewFromConfig(cfg *config.Config) (*Store, error) {
	switch cfg.Database.Driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Filename), 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
		return Open(DriverSQLite, cfg.Database.Filename)
	case DriverPostgres:
		return Open(DriverPostgres, cfg.Database.URL)
	}
	return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) Driver() string { return s.driver }

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) migrate() error {
	var (
		driver migratedb.Driver
		err    error
	)
	switch s.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(s.DB, &postgres.Config{})
	default:
		driver, err = sqlite3.WithInstance(s.DB, &sqlite3.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+s.driver)
	if err != nil {
		return fmt.Errorf("could not create source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, s.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction and commits when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) unixNow() int64 {
	return s.now().UTC().Unix()
}

func ensureForeignKeysEnabledDSN(dataSourceName string) string {
	if strings.Contains(dataSourceName, "_fk=") {
		return dataSourceName
	}
	if strings.Contains(dataSourceName, "?") {
		return dataSourceName + "&_fk=1"
	}
	return dataSourceName + "?_fk=1"
}
