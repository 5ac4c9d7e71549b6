package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conorfennell/spacedrep/internal/config"
	"github.com/conorfennell/spacedrep/internal/deck"
	"github.com/conorfennell/spacedrep/internal/fsrs"
	"github.com/conorfennell/spacedrep/internal/storage"
	"github.com/conorfennell/spacedrep/internal/sync"
)

// app bundles the dependencies every command needs.
type app struct {
	cfg    *config.Config
	db     *storage.DB
	cards  *deck.Service
	syncer *sync.Syncer
}

// openApp loads configuration from the command's flags, installs the
// logger and opens the database.
func openApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cmd.Flags(), configPath)
	if err != nil {
		return nil, err
	}

	// stdout carries the MCP protocol, so logs always go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	slog.Debug("Database opened", "path", cfg.DB)

	sched, err := fsrs.NewScheduler(cfg.FSRS())
	if err != nil {
		db.Close()
		return nil, err
	}
	cards := deck.New(db, sched)
	return &app{
		cfg:    cfg,
		db:     db,
		cards:  cards,
		syncer: sync.New(db, cards, cfg.ReposDir),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}
