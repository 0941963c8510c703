package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/talgya/galaxy-of-consequence/internal/persistence"
	"github.com/talgya/galaxy-of-consequence/internal/quest"
)

func (s *Server) handleGenerateQuest(w http.ResponseWriter, r *http.Request) {
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
	ctx := r.Context()
	standings, err := s.Store.ListStandings(ctx, user)
	if err != nil {
		httpError(w, err)
		return
	}
	q := s.Quests.Basic(user, effectiveStandings(standings))
	if err := s.Store.CreateQuest(ctx, q); err != nil {
		httpError(w, err)
		return
	}
	slog.Info("quest generated", "user", user, "quest", q.ID, "type", q.Type)
	writeJSON(w, map[string]any{"status": "success", "quest": q})
}

// alignmentInput prefers the caller's numbers, then the stored Force profile.
func (s *Server) alignmentInput(ctx context.Context, user string, requested *quest.AlignmentInput) (quest.AlignmentInput, error) {
	if requested != nil {
		return *requested, nil
	}
	p, err := s.Store.GetProfile(ctx, user)
	if errors.Is(err, persistence.ErrNotFound) {
		return quest.AlignmentInput{Balance: 100}, nil
	}
	if err != nil {
		return quest.AlignmentInput{}, err
	}
	return quest.AlignmentInput{
		Light:       p.Points.Light,
		Dark:        p.Points.Dark,
		Balance:     p.Points.Balance,
		Sensitivity: p.QuestSensitivity(),
	}, nil
}

func (s *Server) handleAdaptiveQuest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User      string                `json:"user"`
		Alignment *quest.AlignmentInput `json:"force_alignment"`
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

	standings, err := s.Store.ListStandings(ctx, user)
	if err != nil {
		httpError(w, err)
		return
	}
	history, err := s.Store.ListQuests(ctx, user)
	if err != nil {
		httpError(w, err)
		return
	}
	if len(history) > questHistoryWindow {
		history = history[len(history)-questHistoryWindow:]
	}
	alignment, err := s.alignmentInput(ctx, user, req.Alignment)
	if err != nil {
		httpError(w, err)
		return
	}

	q := s.Quests.Adaptive(ctx, user, standings, history, alignment)
	if err := s.Store.CreateQuest(ctx, q); err != nil {
		httpError(w, err)
		return
	}
	slog.Info("adaptive quest generated", "user", user, "quest", q.ID, "type", q.Type, "difficulty", q.Difficulty)
	writeJSON(w, map[string]any{"status": "success", "quest": q})
}

func (s *Server) handleActiveQuests(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}
	quests, err := s.Store.ListQuests(r.Context(), user)
	if err != nil {
		httpError(w, err)
		return
	}
	active := quest.GroupByStatus(quests)[quest.Active]
	if active == nil {
		active = []quest.Quest{}
	}
	writeJSON(w, map[string]any{"status": "success", "quests": active})
}

func (s *Server) handleQuestHistory(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}
	quests, err := s.Store.ListQuests(r.Context(), user)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "total": len(quests), "quests": quest.GroupByStatus(quests)})
}

// loadOwnedQuest fetches a quest the request is allowed to modify.
func (s *Server) loadOwnedQuest(w http.ResponseWriter, r *http.Request) (quest.Quest, bool) {
	q, err := s.Store.GetQuest(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return q, false
	}
	if _, err := actingUser(r, q.Owner); err != nil {
		writeUserError(w, err)
		return q, false
	}
	return q, true
}

func (s *Server) handleQuestStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status  string         `json:"status"`
		Outcome *quest.Outcome `json:"outcome"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.loadOwnedQuest(w, r)
	if !ok {
		return
	}
	if err := quest.SetStatus(&q, req.Status, s.now()); err != nil {
		httpError(w, err)
		return
	}
	if req.Outcome != nil {
		q.Outcome = req.Outcome
	}
	if err := s.Store.UpdateQuest(r.Context(), q); err != nil {
		httpError(w, err)
		return
	}
	slog.Info("quest status", "quest", q.ID, "user", q.Owner, "status", q.Status)
	writeJSON(w, map[string]any{"status": "success", "quest": q})
}

func (s *Server) handleQuestObjective(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Description == "" {
		http.Error(w, "missing description field", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.loadOwnedQuest(w, r)
	if !ok {
		return
	}
	quest.AddObjective(&q, req.Description, s.now())
	if err := s.Store.UpdateQuest(r.Context(), q); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "quest": q})
}
