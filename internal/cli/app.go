package cli

import (
	"context"
	"database/sql"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/filterspec/internal/config"
	"github.com/matthewbaird/filterspec/internal/executor"
	"github.com/matthewbaird/filterspec/internal/logging"
	"github.com/matthewbaird/filterspec/internal/schema"
)

// app is what every command works with: configuration, a logger and an
// executor over the configured database and schema.
type app struct {
	cfg  *config.Config
	log  zerolog.Logger
	db   *sql.DB
	exec *executor.Executor
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Logging())

	registry, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}

	// Functions must be registered before the first connection opens.
	if err := executor.RegisterFunctions(); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", cfg.Database.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	x := executor.New(entsql.OpenDB(dialect.SQLite, db), registry,
		executor.WithDefaultLimit(cfg.Query.DefaultLimit),
		executor.WithLogger(log.With().Str("component", "executor").Logger()),
	)
	log.Debug().
		Str("schema", cfg.Schema.Path).
		Int("entities", len(registry.EntityNames())).
		Msg("schema loaded")
	return &app{cfg: cfg, log: log, db: db, exec: x}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
