// Package api provides the HTTP API for the galaxy simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token: a player JWT or the admin key.
// Endpoints that steer the shared galaxy are admin-only.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/canvas"
	"github.com/talgya/galaxy-of-consequence/internal/character"
	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/entropy"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
	"github.com/talgya/galaxy-of-consequence/internal/persistence"
	"github.com/talgya/galaxy-of-consequence/internal/quest"
)

const (
	questHistoryWindow = 20
	npcHistoryLimit    = 50
	npcOverviewLimit   = 100
	defaultEventWindow = 10
)

// Server serves the simulation over HTTP.
type Server struct {
	Store      persistence.Store
	Catalog    *faction.Catalog
	Reputation *faction.Engine
	Turns      *engine.TurnEngine
	Sessions   *engine.SessionManager
	Choices    *force.Processor
	Quests     *quest.Generator
	Narrator   *llm.Narrator
	// Src seeds lazily created Force profiles.
	Src entropy.Source

	Port        int
	AdminKey    string // Bearer token for admin endpoints. Empty = admin endpoints disabled.
	JWTSecret   string // HMAC key for player tokens. Empty = only the admin key is accepted.
	CORSOrigins []string
	Now         func() time.Time

	// mu serializes read-modify-write cycles against the record store.
	mu sync.Mutex

	httpServer *http.Server
}

func (s *Server) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	// Rate limiter for LLM-consuming endpoints.
	dialogueLimiter := NewRateLimiter(60, time.Hour)
	visionLimiter := NewRateLimiter(20, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/galaxy", s.handleGalaxy)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/factions", s.handleFactions)
	mux.HandleFunc("GET /api/v1/factions/relationships", s.handleRelationships)
	mux.HandleFunc("GET /api/v1/factions/momentum", s.handleMomentum)
	mux.HandleFunc("GET /api/v1/force/alignment", s.handleAlignment)
	mux.HandleFunc("GET /api/v1/quests/active", s.handleActiveQuests)
	mux.HandleFunc("GET /api/v1/quests/history", s.handleQuestHistory)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleSyncSession)
	mux.HandleFunc("GET /api/v1/npc/history", s.handleNPCHistory)
	mux.HandleFunc("GET /api/v1/npc/interactions", s.handleNPCInteractions)
	mux.HandleFunc("GET /api/v1/canvas/latest", s.handleLatestCanvas)
	mux.HandleFunc("GET /api/v1/canvas/log", s.handleCanvasLog)
	mux.HandleFunc("GET /api/v1/canvas/history", s.handleCanvasHistory)
	mux.HandleFunc("GET /api/v1/canvas/{id}", s.handleGetCanvas)
	mux.HandleFunc("GET /api/v1/characters", s.handleGetCharacter)

	// Player endpoints (POST, player JWT or admin key).
	mux.HandleFunc("POST /api/v1/factions/tick", s.authenticated(s.handleFactionTick))
	mux.HandleFunc("POST /api/v1/factions/reputation", s.authenticated(s.handleReputation))
	mux.HandleFunc("POST /api/v1/force/choice", s.authenticated(s.handleMoralChoice))
	mux.HandleFunc("POST /api/v1/force/vision", s.authenticated(RateLimitMiddleware(visionLimiter, s.handleVision)))
	mux.HandleFunc("POST /api/v1/force/corruption", s.authenticated(s.handleCorruption))
	mux.HandleFunc("POST /api/v1/force/destiny", s.authenticated(s.handleDestiny))
	mux.HandleFunc("POST /api/v1/quests", s.authenticated(s.handleGenerateQuest))
	mux.HandleFunc("POST /api/v1/quests/adaptive", s.authenticated(s.handleAdaptiveQuest))
	mux.HandleFunc("POST /api/v1/quests/{id}/status", s.authenticated(s.handleQuestStatus))
	mux.HandleFunc("POST /api/v1/quests/{id}/objectives", s.authenticated(s.handleQuestObjective))
	mux.HandleFunc("POST /api/v1/sessions", s.authenticated(s.handleCreateSession))
	mux.HandleFunc("POST /api/v1/sessions/{id}/join", s.authenticated(s.handleJoinSession))
	mux.HandleFunc("POST /api/v1/sessions/{id}/advance", s.authenticated(s.handleAdvanceSession))
	mux.HandleFunc("POST /api/v1/sessions/leave", s.authenticated(s.handleLeaveSession))
	mux.HandleFunc("POST /api/v1/sessions/action", s.authenticated(s.handlePlayerAction))
	mux.HandleFunc("POST /api/v1/canvas", s.authenticated(s.handleSaveCanvas))
	mux.HandleFunc("POST /api/v1/characters", s.authenticated(s.handleSaveCharacter))
	mux.HandleFunc("POST /api/v1/npc/dialogue", s.authenticated(RateLimitMiddleware(dialogueLimiter, s.handleDialogue)))

	// Admin endpoints (POST, admin key).
	mux.HandleFunc("POST /api/v1/factions/turn", s.adminOnly(s.handleFactionTurn))
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("POST /api/v1/tokens", s.adminOnly(s.handleIssueToken))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "player_auth", s.JWTSecret != "")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	galaxy := s.Sessions.Galaxy()
	writeJSON(w, map[string]any{
		"name":                  "Galaxy of Consequence",
		"sessions":              len(s.Sessions.SessionIDs()),
		"factions":              len(s.Catalog.Factions),
		"galactic_threat_level": galaxy.ThreatLevel,
		"major_events":          len(galaxy.MajorEvents),
		"narration":             s.Narrator.Enabled(),
	})
}

func (s *Server) handleGalaxy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sessions.Galaxy())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventWindow
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}
	events, err := s.Store.RecentEvents(r.Context(), limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "events": events})
}

// handleSnapshot flushes every live session and the galaxy state to the store.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := persistence.SaveSessions(r.Context(), s.Store, s.Sessions); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "sessions": s.Sessions.SessionIDs()})
}

// decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// httpError maps domain errors to status codes.
func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, persistence.ErrNotFound),
		errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, faction.ErrUnknownFaction):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrSessionExists):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrPlayerNotInSession),
		errors.Is(err, engine.ErrInvalidSessionID),
		errors.Is(err, quest.ErrInvalidStatus),
		errors.Is(err, canvas.ErrInvalid),
		errors.Is(err, character.ErrInvalid):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		http.Error(w, "server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
