package api

import (
	"log/slog"
	"net/http"

	"github.com/talgya/galaxy-of-consequence/internal/llm"
)

func (s *Server) handleDialogue(w http.ResponseWriter, r *http.Request) {
	var req llm.DialogueRequest
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
	if req.NPCName == "" || req.Message == "" {
		http.Error(w, "npc_name and message are required", http.StatusBadRequest)
		return
	}

	interaction := s.Narrator.Speak(r.Context(), req, s.now())
	if err := s.Store.AppendInteraction(r.Context(), interaction); err != nil {
		slog.Warn("failed to log npc interaction", "user", user, "npc", req.NPCName, "error", err)
	}
	writeJSON(w, map[string]any{
		"status":      "success",
		"npc_name":    interaction.NPCName,
		"response":    interaction.Response,
		"generated":   s.Narrator.Enabled(),
		"interaction": interaction,
	})
}

func (s *Server) handleNPCHistory(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}
	npc := r.URL.Query().Get("npc_name")

	all, err := s.Store.ListInteractions(r.Context(), user, 0)
	if err != nil {
		httpError(w, err)
		return
	}
	history := make([]llm.Interaction, 0, len(all))
	for _, in := range all {
		if npc == "" || in.NPCName == npc {
			history = append(history, in)
		}
	}
	if len(history) > npcHistoryLimit {
		history = history[len(history)-npcHistoryLimit:]
	}
	writeJSON(w, map[string]any{"status": "success", "history": history})
}

func (s *Server) handleNPCInteractions(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}
	recent, err := s.Store.ListInteractions(r.Context(), user, npcOverviewLimit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "total": len(recent), "by_npc": llm.GroupByNPC(recent)})
}
