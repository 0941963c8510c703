// Command gamemaster runs the autonomous campaign steward for one session.
// It observes the galaxy, decides whether to pass time or give a faction a
// turn, and acts through the admin API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/config"
	"github.com/talgya/galaxy-of-consequence/internal/gamemaster"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadGamemaster()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Gamemaster starting",
		"api_url", cfg.APIURL,
		"session", cfg.SessionID,
		"interval", cfg.Interval,
		"narration", cfg.LLM.Backend(),
	)

	observer := gamemaster.NewObserver(cfg.APIURL)
	actor := gamemaster.NewActor(cfg.APIURL, cfg.AdminKey)
	narrator := cfg.LLM.Narrator()
	mem := gamemaster.LoadMemory(cfg.MemoryPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("waiting for galaxy API...")
	if err := waitForAPI(ctx, cfg.APIURL); err != nil {
		slog.Error("galaxy API unavailable", "error", err)
		os.Exit(1)
	}

	// Run first cycle immediately.
	runCycle(ctx, cfg, observer, actor, narrator, mem)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, cfg, observer, actor, narrator, mem)
		case <-ctx.Done():
			slog.Info("received signal, shutting down")
			fmt.Println("Gamemaster stopped.")
			return
		}
	}
}

// runCycle executes one observe → triage → decide → act cycle.
func runCycle(ctx context.Context, cfg config.Gamemaster, observer *gamemaster.Observer, actor *gamemaster.Actor, narrator *llm.Narrator, mem *gamemaster.CycleMemory) {
	slog.Info("gamemaster cycle starting")

	snap, err := observer.Observe(ctx, cfg.SessionID)
	if err != nil {
		slog.Error("observation failed", "error", err)
		return
	}

	now := time.Now()
	health := gamemaster.Triage(snap, now)
	slog.Info("observation complete",
		"players", health.Players,
		"tension", health.Tension,
		"dominant", health.Dominant,
		"dominant_share", fmt.Sprintf("%.2f", health.DominantShare),
		"peak_conflict", fmt.Sprintf("%.2f", health.PeakConflict),
	)

	decision, err := gamemaster.Decide(ctx, narrator, snap, health, mem, cfg.MaxAdvance)
	if err != nil {
		slog.Error("decision failed", "error", err)
		return
	}
	slog.Info("decision made",
		"action", decision.Action,
		"rationale", decision.Rationale,
	)

	rec := gamemaster.CycleRecord{
		At:            now,
		GalaxyDate:    snap.Session.World.GalaxyTimestamp,
		Action:        decision.Action,
		Tension:       health.Tension,
		Players:       health.Players,
		DominantShare: health.DominantShare,
		Faction:       decision.Faction,
		Increment:     decision.Increment,
		Rationale:     decision.Rationale,
	}
	defer func() {
		mem.Record(rec)
		mem.Save()
	}()

	if decision.Action == gamemaster.ActionNone {
		slog.Info("gamemaster cycle complete — no action")
		return
	}

	result, err := actor.Act(ctx, cfg.SessionID, decision)
	if err != nil {
		slog.Error("action failed", "error", err)
		rec.Action = gamemaster.ActionNone
		return
	}
	if result.Date != "" {
		rec.GalaxyDate = result.Date
	}

	slog.Info("action executed",
		"action", decision.Action,
		"faction", decision.Faction,
		"increment", decision.Increment,
		"summary", result.Summary,
	)
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Gives up after 5 minutes.
func waitForAPI(ctx context.Context, apiURL string) error {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)
	client := &http.Client{Timeout: 10 * time.Second}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/status", nil)
		if err != nil {
			return fmt.Errorf("build status request: %w", err)
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("galaxy API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not ready within 5 minutes")
		}
		slog.Info("galaxy API not ready, retrying...", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
