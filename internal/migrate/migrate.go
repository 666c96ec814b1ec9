// Package migrate applies the SQL schema under db/migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Up applies every pending migration found in dir and logs each one.
func Up(ctx context.Context, dbURL, dir string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	return withProvider(dbURL, dir, log, func(p *goose.Provider) error {
		results, err := p.Up(ctx)
		for _, r := range results {
			log.Info("migration applied",
				"version", r.Source.Version,
				"path", r.Source.Path,
				"took", r.Duration,
			)
		}
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}

		version, err := p.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("migrate: read version: %w", err)
		}
		log.Info("schema up to date", "version", version, "applied", len(results))
		return nil
	})
}

// Status logs every known migration and whether it has been applied. It
// returns the number still pending.
func Status(ctx context.Context, dbURL, dir string, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}
	pending := 0
	err := withProvider(dbURL, dir, log, func(p *goose.Provider) error {
		statuses, err := p.Status(ctx)
		if err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		for _, s := range statuses {
			if s.State == goose.StatePending {
				pending++
				log.Info("migration pending", "version", s.Source.Version, "path", s.Source.Path)
				continue
			}
			log.Info("migration applied", "version", s.Source.Version, "path", s.Source.Path, "at", s.AppliedAt)
		}
		return nil
	})
	return pending, err
}

func withProvider(dbURL, dir string, log *slog.Logger, fn func(*goose.Provider) error) error {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("migrate: open db: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("migrate: close db", "err", err)
		}
	}()

	p, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return fmt.Errorf("migrate: load %s: %w", dir, err)
	}
	return fn(p)
}
