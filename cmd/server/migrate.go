package main

import (
	"context"
	"fmt"
	"log/slog"

	"example.com/grimoire/internal/config"
	"example.com/grimoire/internal/migrate"
)

// runMigrations backs the "migrate" subcommand. "migrate status" only reports.
func runMigrations(ctx context.Context, cfg config.Config, log *slog.Logger, args []string) error {
	if len(args) > 0 && args[0] == "status" {
		pending, err := migrate.Status(ctx, cfg.Postgres.URL, cfg.Postgres.MigrationsDir, log)
		if err != nil {
			return err
		}
		log.Info("migration status", "pending", pending)
		return nil
	}
	if len(args) > 0 {
		return fmt.Errorf("unknown migrate command %q", args[0])
	}
	return migrate.Up(ctx, cfg.Postgres.URL, cfg.Postgres.MigrationsDir, log)
}
