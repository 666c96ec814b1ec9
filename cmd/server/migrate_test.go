package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/grimoire/internal/config"
)

func TestRunMigrations_UnknownCommand(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runMigrations(context.Background(), config.Config{}, log, []string{"down"})
	require.ErrorContains(t, err, `unknown migrate command "down"`)
}
