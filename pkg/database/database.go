package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ncruces/go-sqlite3"
	sqlitedriver "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// A postgres database must carry the Chinook tables under their SQLite names
// (customers, invoice_items, ...) with case-preserved column names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver       string        `envconfig:"DRIVER" default:"sqlite"`
	DSN          string        `envconfig:"DSN" default:"chinook.db"`
	MaxOpenConns int           `split_words:"true" default:"10"`
	PingTimeout  time.Duration `split_words:"true" default:"5s"`
	AutoMigrate  bool          `split_words:"true" default:"true"`
	LogQueries   bool          `split_words:"true" default:"false"`
}

// Open connects to the Chinook database and applies the service's own migrations
// (checkpoints, approvals) when AutoMigrate is set.
func Open(ctx context.Context, cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}

	var (
		db  *bun.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "sqlite3":
		db, err = openSQLite(dsn)
	case DriverPostgres, "pg":
		db = openPostgres(dsn, cfg.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.LogQueries {
		db.AddQueryHook(queryLogger{})
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func openSQLite(dsn string) (*bun.DB, error) {
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	if dsn != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL;")
	}

	sqldb, err := sqlitedriver.Open(dsn, func(c *sqlite3.Conn) error {
		for _, pragma := range pragmas {
			if err := c.Exec(pragma); err != nil {
				return fmt.Errorf("failed to set pragma `%s`: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and avoids writer contention.
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func openPostgres(dsn string, maxOpen int) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if maxOpen > 0 {
		sqldb.SetMaxOpenConns(maxOpen)
	}
	return bun.NewDB(sqldb, pgdialect.New())
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *bun.DB) error {
	gd, err := gooseDialect(db)
	if err != nil {
		return err
	}

	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	provider, err := goose.NewProvider(gd, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to apply migrations")
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		log.Debug().
			Str("migration", r.Source.Path).
			Dur("duration", r.Duration).
			Msg("migration applied")
	}
	return nil
}

func gooseDialect(db *bun.DB) (goose.Dialect, error) {
	switch db.Dialect().Name() {
	case dialect.SQLite:
		return goose.DialectSQLite3, nil
	case dialect.PG:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("no migration dialect for %s", db.Dialect().Name())
	}
}

type queryLogger struct{}

func (queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (queryLogger) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	evt := log.Debug()
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		evt = log.Warn().Err(event.Err)
	}
	evt.Str("query", event.Query).
		Dur("duration", time.Since(event.StartTime)).
		Msg("sql")
}
