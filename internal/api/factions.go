package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/persistence"
)

// effectiveStandings keeps one standing per faction, the owner's row winning
// over the system default. Order follows first appearance.
func effectiveStandings(standings []faction.Standing) []faction.Standing {
	index := make(map[string]int, len(standings))
	out := make([]faction.Standing, 0, len(standings))
	for _, s := range standings {
		if i, ok := index[s.Faction]; ok {
			out[i] = s
			continue
		}
		index[s.Faction] = len(out)
		out = append(out, s)
	}
	return out
}

func queryUser(r *http.Request) string {
	if u := r.URL.Query().Get("user"); u != "" {
		return u
	}
	return faction.SystemOwner
}

func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	user := queryUser(r)
	if name := r.URL.Query().Get("faction"); name != "" {
		def, ok := s.Catalog.Lookup(name)
		if !ok {
			http.Error(w, "unknown faction", http.StatusNotFound)
			return
		}
		st, err := s.standingFor(r.Context(), user, def.Name)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"status":              "success",
			"faction":             st,
			"relationship_status": faction.Relationship(st.Reputation),
			"threat_level":        faction.ThreatLevel(st.Awareness),
			"personality":         def.Personality,
		})
		return
	}

	standings, err := s.Store.ListStandings(r.Context(), user)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "user": user, "factions": effectiveStandings(standings)})
}

// standingFor returns the user's own standing, or the system default when the
// user has not met the faction yet.
func (s *Server) standingFor(ctx context.Context, user, factionName string) (faction.Standing, error) {
	st, err := s.Store.GetStanding(ctx, user, factionName)
	if errors.Is(err, persistence.ErrNotFound) && user != faction.SystemOwner {
		st, err = s.Store.GetStanding(ctx, faction.SystemOwner, factionName)
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return st, fmt.Errorf("%w: %s", faction.ErrUnknownFaction, factionName)
	}
	return st, err
}

func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	standings, err := s.Store.ListStandings(r.Context(), queryUser(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "relationships": faction.Relationships(standings)})
}

func (s *Server) handleMomentum(w http.ResponseWriter, r *http.Request) {
	standings, err := s.Store.ListStandings(r.Context(), queryUser(r))
	if err != nil {
		httpError(w, err)
		return
	}
	effective := effectiveStandings(standings)
	writeJSON(w, map[string]any{
		"status":          "success",
		"galaxy_momentum": faction.GalaxyMomentum(effective),
		"factions":        len(effective),
	})
}

// handleFactionTick applies one player action to every standing the user can
// see and saves each row back to its owner.
func (s *Server) handleFactionTick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User          string `json:"user"`
		Action        string `json:"action"`
		TargetFaction string `json:"target_faction"`
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
	if req.Action == "" {
		req.Action = string(faction.ActionPassiveTick)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	standings, err := s.Store.ListStandings(r.Context(), user)
	if err != nil {
		httpError(w, err)
		return
	}
	updates, momentum := s.Reputation.Tick(standings, faction.Action(req.Action), req.TargetFaction)
	for _, u := range updates {
		if err := s.Store.SaveStanding(r.Context(), u.New); err != nil {
			httpError(w, err)
			return
		}
	}
	slog.Info("faction tick", "user", user, "action", req.Action, "standings", len(updates), "momentum", momentum)
	writeJSON(w, map[string]any{
		"status":          "success",
		"action":          req.Action,
		"faction_updates": updates,
		"galaxy_momentum": momentum,
	})
}

// handleReputation nudges one user standing, creating it from the system
// default on first contact.
func (s *Server) handleReputation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User            string `json:"user"`
		Faction         string `json:"faction_name"`
		ReputationDelta int    `json:"reputation_change"`
		AwarenessDelta  int    `json:"awareness_change"`
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
	name := req.Faction
	if def, ok := s.Catalog.Lookup(name); ok {
		name = def.Name
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, created, err := s.adjustStanding(r.Context(), user, name, req.ReputationDelta, req.AwarenessDelta)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"status":              "success",
		"created":             created,
		"standing":            st,
		"relationship_status": faction.Relationship(st.Reputation),
		"threat_level":        faction.ThreatLevel(st.Awareness),
	})
}

// adjustStanding applies deltas to a user standing and saves it. Callers hold s.mu.
func (s *Server) adjustStanding(ctx context.Context, user, name string, repDelta, awarenessDelta int) (faction.Standing, bool, error) {
	var existing, systemDefault *faction.Standing
	if st, err := s.Store.GetStanding(ctx, user, name); err == nil {
		existing = &st
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return faction.Standing{}, false, err
	}
	if existing == nil {
		if st, err := s.Store.GetStanding(ctx, faction.SystemOwner, name); err == nil {
			systemDefault = &st
		} else if !errors.Is(err, persistence.ErrNotFound) {
			return faction.Standing{}, false, err
		}
	}
	st, created, err := faction.EnsureUserStanding(existing, systemDefault, user, name, repDelta, awarenessDelta, s.now())
	if err != nil {
		return st, false, err
	}
	if err := s.Store.SaveStanding(ctx, st); err != nil {
		return st, false, err
	}
	return st, created, nil
}

// handleFactionTurn runs one AI turn for a faction against its system standing.
func (s *Server) handleFactionTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Faction      string         `json:"faction"`
		GalaxyEvents []engine.Event `json:"galaxy_events"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	def, ok := s.Catalog.Lookup(req.Faction)
	if !ok {
		http.Error(w, "unknown faction", http.StatusNotFound)
		return
	}
	ctx := r.Context()

	events := req.GalaxyEvents
	if events == nil {
		recent, err := s.Store.RecentEvents(ctx, defaultEventWindow)
		if err != nil {
			httpError(w, err)
			return
		}
		events = recent
	}

	before, err := s.Store.GetStanding(ctx, faction.SystemOwner, def.Name)
	if err != nil {
		httpError(w, err)
		return
	}
	// The narrator may be slow; plan outside the lock, then apply to a fresh read.
	result := s.Turns.ProcessTurn(ctx, def.Name, engine.SnapshotOf(before), events)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Store.GetStanding(ctx, faction.SystemOwner, def.Name)
	if err != nil {
		httpError(w, err)
		return
	}
	updated := result.Apply(current, s.now())
	if err := s.Store.SaveStanding(ctx, updated); err != nil {
		httpError(w, err)
		return
	}
	summary := fmt.Sprintf("%s took %d actions (resources %+d)", def.Name, len(result.Actions), result.ResourceDelta)
	if len(result.Consequences) > 0 {
		summary = result.Consequences[0]
	}
	if err := s.Store.AppendEvents(ctx, []engine.Event{{Type: "faction_turn", Source: def.Name, Description: summary}}); err != nil {
		slog.Warn("failed to log faction turn", "faction", def.Name, "error", err)
	}

	slog.Info("faction turn", "faction", def.Name, "actions", len(result.Actions), "threat", result.ThreatLevel)
	writeJSON(w, map[string]any{"status": "success", "turn": result, "standing": updated})
}
