// Command galaxysim serves the Galaxy of Consequence campaign backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/api"
	"github.com/talgya/galaxy-of-consequence/internal/config"
	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/entropy"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/persistence"
	"github.com/talgya/galaxy-of-consequence/internal/persistence/postgres"
	"github.com/talgya/galaxy-of-consequence/internal/quest"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Galaxy of Consequence starting", "driver", cfg.DBDriver, "narration", cfg.LLM.Backend())

	// ── Record store ──────────────────────────────────────────────────
	store, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	catalog := faction.DefaultCatalog()
	if err := store.SeedSystemStandings(ctx, catalog.SystemDefaults(time.Now())); err != nil {
		slog.Error("failed to seed system standings", "error", err)
		os.Exit(1)
	}

	// ── Randomness ────────────────────────────────────────────────────
	seed := cfg.Seed
	if seed == 0 {
		if seed, err = entropy.NewSeed(); err != nil {
			slog.Error("failed to draw seed", "error", err)
			os.Exit(1)
		}
	}
	var src entropy.Source = entropy.NewSeeded(seed)
	if client := entropy.NewClient(cfg.RandomOrgAPIKey); client != nil {
		if err := client.Refill(ctx); err != nil {
			slog.Warn("random.org prefetch failed, drawing from crypto/rand until it recovers", "error", err)
		}
		src = client
		slog.Info("random.org entropy enabled")
	}
	slog.Info("entropy ready", "seed", seed)

	// ── Engines ───────────────────────────────────────────────────────
	narrator := cfg.LLM.Narrator()
	if !narrator.Enabled() {
		slog.Warn("no LLM key set — narration will use fallback text")
	}
	turns := engine.NewTurnEngine(catalog, src, narrator)
	sessions := engine.NewSessionManager(src, turns, narrator, seed)

	restored, err := persistence.RestoreSessions(ctx, store, sessions)
	if err != nil {
		slog.Error("failed to restore sessions", "error", err)
		os.Exit(1)
	}
	slog.Info("sessions restored", "count", restored)

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("GALAXY_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}
	if cfg.JWTSecret == "" {
		slog.Warn("GALAXY_JWT_SECRET not set — player tokens will be rejected")
	}

	apiServer := &api.Server{
		Store:       store,
		Catalog:     catalog,
		Reputation:  faction.NewEngine(),
		Turns:       turns,
		Sessions:    sessions,
		Choices:     force.NewProcessor(src),
		Quests:      quest.NewGenerator(src, narrator),
		Narrator:    narrator,
		Src:         src,
		Port:        cfg.Port,
		AdminKey:    cfg.AdminKey,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	}
	apiServer.Start()

	fmt.Printf("\nThe galaxy is open: %d factions, %d sessions restored.\n", len(catalog.Factions), restored)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)

	// ── Autosave until signalled ──────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.AutosaveInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			if err := persistence.SaveSessions(ctx, store, sessions); err != nil {
				slog.Error("autosave failed", "error", err)
			}
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := persistence.SaveSessions(ctx, store, sessions); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Server stopped. Sessions saved.")
}

func openStore(cfg config.Server) (persistence.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pg, err := postgres.Open(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		slog.Info("postgres store opened")
		return pg, nil
	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := persistence.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		slog.Info("database opened", "path", cfg.DBPath)
		return db, nil
	}
}
