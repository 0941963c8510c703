package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/persistence"
)

// persistSession writes one session through to the store. Live state stays
// authoritative, so failures are logged and the autosave loop retries.
func (s *Server) persistSession(ctx context.Context, id string) {
	snap, err := s.Sessions.Snapshot(id)
	if err != nil {
		slog.Warn("session snapshot failed", "session", id, "error", err)
		return
	}
	if err := s.Store.SaveSession(ctx, snap); err != nil {
		slog.Warn("session save failed", "session", id, "error", err)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Master    string `json:"session_master"`
		engine.SessionConfig
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	master, err := actingUser(r, req.Master)
	if err != nil {
		writeUserError(w, err)
		return
	}
	world, err := s.Sessions.CreateSession(req.SessionID, master, req.SessionConfig)
	if err != nil {
		httpError(w, err)
		return
	}
	s.persistSession(r.Context(), world.SessionID)
	writeJSON(w, map[string]any{"status": "success", "world_state": world})
}

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User      string               `json:"user"`
		Character engine.CharacterData `json:"character_data"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := actingUser(r, req.User)
	if err != nil {
		writeUserError(w, err)
		return
	}
	id := r.PathValue("id")
	player, err := s.Sessions.JoinSession(id, user, req.Character)
	if err != nil {
		httpError(w, err)
		return
	}
	s.persistSession(r.Context(), id)
	writeJSON(w, map[string]any{"status": "success", "player_state": player})
}

// handleAdvanceSession passes galactic time. Only the admin or the session
// master may do it.
func (s *Server) handleAdvanceSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Increment string `json:"time_increment"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	snap, err := s.Sessions.Snapshot(id)
	if err != nil {
		httpError(w, err)
		return
	}
	if p := principalFrom(r.Context()); !p.Admin && p.User != snap.World.Master {
		http.Error(w, "only the session master can advance time", http.StatusForbidden)
		return
	}
	if req.Increment == "" {
		req.Increment = "1 day"
	}
	result, err := s.Sessions.AdvanceSessionTime(r.Context(), id, req.Increment)
	if err != nil {
		httpError(w, err)
		return
	}
	if err := persistence.SaveSessions(r.Context(), s.Store, s.Sessions); err != nil {
		slog.Warn("session save failed", "session", id, "error", err)
	}
	slog.Info("session time advanced", "session", id, "increment", req.Increment, "date", result.NewTimestamp)
	writeJSON(w, map[string]any{"status": "success", "advance": result})
}

func (s *Server) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := actingUser(r, req.User)
	if err != nil {
		writeUserError(w, err)
		return
	}
	if err := s.Sessions.LeaveSession(user); err != nil {
		httpError(w, err)
		return
	}
	if err := persistence.SaveSessions(r.Context(), s.Store, s.Sessions); err != nil {
		slog.Warn("session save failed", "user", user, "error", err)
	}
	writeJSON(w, map[string]any{"status": "success", "user": user})
}

func (s *Server) handlePlayerAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User   string              `json:"user"`
		Action engine.PlayerAction `json:"action"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := actingUser(r, req.User)
	if err != nil {
		writeUserError(w, err)
		return
	}
	outcome, err := s.Sessions.ProcessPlayerAction(r.Context(), user, req.Action)
	if err != nil {
		httpError(w, err)
		return
	}
	s.persistSession(r.Context(), outcome.World.SessionID)
	writeJSON(w, map[string]any{"status": "success", "outcome": outcome})
}

func (s *Server) handleSyncSession(w http.ResponseWriter, r *http.Request) {
	result, err := s.Sessions.SyncSessionState(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "sync": result})
}
