package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/talgya/galaxy-of-consequence/internal/canvas"
	"github.com/talgya/galaxy-of-consequence/internal/character"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/persistence"
)

// handleSaveCanvas stores a client canvas under the acting user.
func (s *Server) handleSaveCanvas(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User   string          `json:"user"`
		Canvas string          `json:"canvas"`
		Data   json.RawMessage `json:"data"`
		Meta   json.RawMessage `json:"meta"`
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
	if len(req.Meta) == 0 {
		req.Meta = json.RawMessage(`{}`)
	}
	entry, err := canvas.New(req.Canvas, user, req.Data, req.Meta, s.now())
	if err != nil {
		httpError(w, err)
		return
	}
	if err := s.Store.SaveCanvas(r.Context(), entry); err != nil {
		httpError(w, err)
		return
	}
	slog.Info("canvas saved", "user", user, "canvas", entry.Canvas, "id", entry.ID)
	writeJSON(w, map[string]any{"status": "success", "id": entry.ID})
}

func (s *Server) handleLatestCanvas(w http.ResponseWriter, r *http.Request) {
	e, err := s.Store.LatestCanvas(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "canvas": e})
}

func (s *Server) handleGetCanvas(w http.ResponseWriter, r *http.Request) {
	e, err := s.Store.GetCanvas(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "canvas": e})
}

// handleCanvasLog lists canvases by kind, user and Force alignment.
func (s *Server) handleCanvasLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.Store.ListCanvases(r.Context(), canvas.Filter{
		Canvas: q.Get("canvas"),
		Owner:  q.Get("user"),
		Meta:   map[string]string{canvas.MetaAlignment: q.Get("align")},
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "log": entries})
}

// handleCanvasHistory lists one user's canvases, optionally within a campaign.
func (s *Server) handleCanvasHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := q.Get("user")
	if user == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}
	entries, err := s.Store.ListCanvases(r.Context(), canvas.Filter{
		Canvas: q.Get("canvas"),
		Owner:  user,
		Meta:   map[string]string{canvas.MetaCampaign: q.Get("campaign")},
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "history": entries})
}

// recordVision keeps a generated vision as a Force_Vision canvas. Failure is
// logged; the caller already has its vision.
func (s *Server) recordVision(ctx context.Context, p *force.Profile, v force.VisionResult) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("encode vision canvas", "user", p.Owner, "error", err)
		return
	}
	meta, _ := json.Marshal(map[string]string{canvas.MetaAlignment: string(p.Alignment)})
	entry, err := canvas.New(canvas.ForceVision, p.Owner, data, meta, s.now())
	if err == nil {
		err = s.Store.SaveCanvas(ctx, entry)
	}
	if err != nil {
		slog.Warn("vision canvas not saved", "user", p.Owner, "error", err)
	}
}

// handleSaveCharacter creates or replaces the acting user's character sheet.
func (s *Server) handleSaveCharacter(w http.ResponseWriter, r *http.Request) {
	var req character.Character
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := actingUser(r, req.Owner)
	if err != nil {
		writeUserError(w, err)
		return
	}
	req.Owner = user
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *character.Character
	stored, err := s.Store.GetCharacter(ctx, user)
	switch {
	case err == nil:
		existing = &stored
	case !errors.Is(err, persistence.ErrNotFound):
		httpError(w, err)
		return
	}
	c, err := character.Upsert(existing, req, s.now())
	if err != nil {
		httpError(w, err)
		return
	}
	if err := s.Store.SaveCharacter(ctx, c); err != nil {
		httpError(w, err)
		return
	}
	slog.Info("character saved", "user", user, "name", c.Name, "created", existing == nil)
	writeJSON(w, map[string]any{"status": "success", "character": c, "created": existing == nil})
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}
	c, err := s.Store.GetCharacter(r.Context(), user)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "character": c})
}

// syncCharacterAlignment copies a new alignment onto the user's sheet, if
// they have one. Callers hold s.mu.
func (s *Server) syncCharacterAlignment(ctx context.Context, user string, a force.Alignment) {
	c, err := s.Store.GetCharacter(ctx, user)
	if errors.Is(err, persistence.ErrNotFound) {
		return
	}
	if err == nil && c.ForceAlignment == a {
		return
	}
	if err == nil {
		err = s.Store.SaveCharacter(ctx, character.SyncAlignment(c, a, s.now()))
	}
	if err != nil {
		slog.Warn("character alignment not synced", "user", user, "error", err)
	}
}
