package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/persistence"
)

type alignmentView struct {
	Category    force.Alignment `json:"category"`
	Points      force.Points    `json:"points"`
	Score       int             `json:"score"`
	Meter       string          `json:"meter"`
	Description string          `json:"description"`
}

func viewAlignment(p *force.Profile) alignmentView {
	score := p.Points.Score()
	return alignmentView{
		Category:    p.Alignment,
		Points:      p.Points,
		Score:       score,
		Meter:       force.Meter(score),
		Description: force.Describe(score),
	}
}

// loadOrCreateProfile returns the stored profile or a fresh one. The second
// result reports creation.
func (s *Server) loadOrCreateProfile(ctx context.Context, user string, initial force.Alignment) (*force.Profile, bool, error) {
	p, err := s.Store.GetProfile(ctx, user)
	if err == nil {
		return &p, false, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, false, err
	}
	return force.NewProfile(user, initial, s.Src), true, nil
}

func (s *Server) handleAlignment(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}
	p, err := s.Store.GetProfile(r.Context(), user)
	if errors.Is(err, persistence.ErrNotFound) {
		fresh := force.Profile{Owner: user, Points: force.DefaultPoints, Alignment: force.Balance}
		writeJSON(w, map[string]any{"status": "success", "initialized": false, "alignment": viewAlignment(&fresh)})
		return
	}
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"status":            "success",
		"initialized":       true,
		"alignment":         viewAlignment(&p),
		"force_sensitivity": p.Sensitivity,
		"moral_choices":     len(p.MoralHistory),
		"destiny_threads":   p.DestinyThreads,
	})
}

// handleMoralChoice records a choice, moves the profile's points and folds the
// choice's faction impacts into the user's standings.
func (s *Server) handleMoralChoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User             string              `json:"user"`
		Context          force.ChoiceContext `json:"choice_context"`
		Selection        string              `json:"selected_choice"`
		InitialAlignment string              `json:"initial_alignment"`
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
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, created, err := s.loadOrCreateProfile(ctx, user, force.Alignment(req.InitialAlignment))
	if err != nil {
		httpError(w, err)
		return
	}
	result := s.Choices.ApplyMoralChoice(profile, req.Context, req.Selection)
	if err := s.Store.SaveProfile(ctx, *profile); err != nil {
		httpError(w, err)
		return
	}

	var standings []faction.Standing
	for name, impact := range req.Context.FactionImpacts {
		def, ok := s.Catalog.Lookup(name)
		if !ok {
			slog.Warn("moral choice names unknown faction", "user", user, "faction", name)
			continue
		}
		st, _, err := s.adjustStanding(ctx, user, def.Name, impact, 0)
		if err != nil {
			httpError(w, err)
			return
		}
		standings = append(standings, st)
	}
	s.syncCharacterAlignment(ctx, user, profile.Alignment)

	slog.Info("moral choice", "user", user, "type", req.Context.Type, "selection", req.Selection, "alignment", profile.Alignment)
	writeJSON(w, map[string]any{
		"status":          "success",
		"profile_created": created,
		"result":          result,
		"alignment":       viewAlignment(profile),
		"faction_updates": standings,
	})
}

func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User    string `json:"user"`
		Trigger string `json:"trigger"`
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
	p, err := s.Store.GetProfile(r.Context(), user)
	if err != nil {
		httpError(w, err)
		return
	}
	vision := force.Vision(r.Context(), s.Narrator, &p, force.VisionContext{Trigger: req.Trigger})
	s.recordVision(r.Context(), &p, vision)
	writeJSON(w, map[string]any{"status": "success", "vision": vision})
}

func (s *Server) handleCorruption(w http.ResponseWriter, r *http.Request) {
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
	p, err := s.Store.GetProfile(r.Context(), user)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "corruption": force.Corruption(&p)})
}

func (s *Server) handleDestiny(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User       string `json:"user"`
		ActionType string `json:"action_type"`
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
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, _, err := s.loadOrCreateProfile(ctx, user, force.Balance)
	if err != nil {
		httpError(w, err)
		return
	}
	report := force.TrackDestiny(profile, req.ActionType)
	if err := s.Store.SaveProfile(ctx, *profile); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "destiny": report})
}
