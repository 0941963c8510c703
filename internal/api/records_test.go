package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/talgya/galaxy-of-consequence/internal/canvas"
	"github.com/talgya/galaxy-of-consequence/internal/character"
	"github.com/talgya/galaxy-of-consequence/internal/force"
)

func TestCanvasEndpoints(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	leia := playerToken(t, s, "leia")
	han := playerToken(t, s, "han")

	expectStatus(t, do(t, h, http.MethodGet, "/api/v1/canvas/latest", "", nil), http.StatusNotFound)
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/canvas", "", map[string]any{"canvas": "Note", "data": "x"}), http.StatusUnauthorized)

	tests := []struct {
		name  string
		token string
		body  map[string]any
		want  int
	}{
		{"missing canvas", leia, map[string]any{"data": map[string]any{}}, http.StatusBadRequest},
		{"missing data", leia, map[string]any{"canvas": "Note"}, http.StatusBadRequest},
		{"meta not object", leia, map[string]any{"canvas": "Note", "data": 1, "meta": []int{1}}, http.StatusBadRequest},
		{"other user", leia, map[string]any{"user": "han", "canvas": "Note", "data": 1}, http.StatusForbidden},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodPost, "/api/v1/canvas", tt.token, tt.body)
		if rec.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d (body %q)", tt.name, rec.Code, tt.want, rec.Body.String())
		}
	}

	save := func(token string, body map[string]any) string {
		t.Helper()
		rec := do(t, h, http.MethodPost, "/api/v1/canvas", token, body)
		expectStatus(t, rec, http.StatusOK)
		return decode[struct {
			ID string `json:"id"`
		}](t, rec).ID
	}
	hud := save(leia, map[string]any{"canvas": "Force_HUD", "data": map[string]int{"hp": 12}, "meta": map[string]string{"campaign": "hoth"}})
	save(han, map[string]any{"canvas": "Force_HUD", "data": map[string]int{"hp": 9}, "meta": map[string]string{"force_alignment": "gray"}})
	note := save(leia, map[string]any{"canvas": "Note", "data": "escape plan"})

	rec := do(t, h, http.MethodGet, "/api/v1/canvas/"+hud, "", nil)
	expectStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Canvas canvas.Entry `json:"canvas"`
	}](t, rec).Canvas
	if got.Owner != "leia" || got.Canvas != "Force_HUD" {
		t.Fatalf("canvas = %+v", got)
	}
	var data map[string]int
	if err := json.Unmarshal(got.Data, &data); err != nil || data["hp"] != 12 {
		t.Fatalf("data = %s, %v", got.Data, err)
	}
	expectStatus(t, do(t, h, http.MethodGet, "/api/v1/canvas/nope", "", nil), http.StatusNotFound)

	rec = do(t, h, http.MethodGet, "/api/v1/canvas/latest", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if latest := decode[struct {
		Canvas canvas.Entry `json:"canvas"`
	}](t, rec).Canvas; latest.ID != note {
		t.Fatalf("latest = %s, want %s", latest.ID, note)
	}

	logs := []struct {
		query string
		key   string
		want  int
	}{
		{"/api/v1/canvas/log", "log", 3},
		{"/api/v1/canvas/log?canvas=Force_HUD", "log", 2},
		{"/api/v1/canvas/log?align=gray", "log", 1},
		{"/api/v1/canvas/log?user=leia&canvas=Force_HUD", "log", 1},
		{"/api/v1/canvas/history?user=leia", "history", 2},
		{"/api/v1/canvas/history?user=leia&campaign=hoth", "history", 1},
		{"/api/v1/canvas/history?user=han&campaign=hoth", "history", 0},
	}
	for _, tt := range logs {
		rec := do(t, h, http.MethodGet, tt.query, "", nil)
		expectStatus(t, rec, http.StatusOK)
		list := decode[map[string][]canvas.Entry](t, rec)[tt.key]
		if len(list) != tt.want {
			t.Fatalf("%s: %d entries, want %d", tt.query, len(list), tt.want)
		}
	}
	expectStatus(t, do(t, h, http.MethodGet, "/api/v1/canvas/history", "", nil), http.StatusBadRequest)
}

func TestVisionIsKeptAsCanvas(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	token := playerToken(t, s, "ezra")

	choice := map[string]any{"choice_context": map[string]any{"type": "mercy_vs_justice"}, "selected_choice": "dark"}
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/force/choice", token, choice), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/force/vision", token, map[string]any{"trigger": "meditation"}), http.StatusOK)

	p, err := s.Store.GetProfile(context.Background(), "ezra")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	list, err := s.Store.ListCanvases(context.Background(), canvas.Filter{Canvas: canvas.ForceVision, Owner: "ezra"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("vision canvases = %d, want 1", len(list))
	}
	if v, _ := list[0].MetaValue(canvas.MetaAlignment); v != string(p.Alignment) {
		t.Fatalf("vision alignment meta = %q, want %q", v, p.Alignment)
	}
	var vision force.VisionResult
	if err := json.Unmarshal(list[0].Data, &vision); err != nil || vision.Type == "" {
		t.Fatalf("vision data = %s, %v", list[0].Data, err)
	}
}

func TestCharacterEndpoints(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	token := playerToken(t, s, "cal")

	expectStatus(t, do(t, h, http.MethodGet, "/api/v1/characters", "", nil), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodGet, "/api/v1/characters?user=cal", "", nil), http.StatusNotFound)
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/characters", token, map[string]any{"species": "Human"}), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/characters", token, map[string]any{"user": "merrin", "name": "Merrin"}), http.StatusForbidden)

	type saved struct {
		Character character.Character `json:"character"`
		Created   bool                `json:"created"`
	}
	rec := do(t, h, http.MethodPost, "/api/v1/characters", token, map[string]any{
		"name": "Cal", "species": "Human", "force_sensitive": true, "skills": []string{"climbing"},
	})
	expectStatus(t, rec, http.StatusOK)
	first := decode[saved](t, rec)
	if !first.Created || first.Character.Owner != "cal" || first.Character.ForceAlignment != force.Balance {
		t.Fatalf("first save = %+v", first)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/characters", token, map[string]any{"name": "Cal Kestis", "homeworld": "Bracca"})
	expectStatus(t, rec, http.StatusOK)
	second := decode[saved](t, rec)
	if second.Created || second.Character.ID != first.Character.ID || second.Character.Homeworld != "Bracca" {
		t.Fatalf("second save = %+v", second)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/characters?user=cal", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[saved](t, rec).Character; got.Name != "Cal Kestis" {
		t.Fatalf("get = %+v", got)
	}
}

func TestMoralChoiceSyncsCharacterAlignment(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	token := playerToken(t, s, "kanan")
	ctx := context.Background()

	choice := map[string]any{"choice_context": map[string]any{"type": "mercy_vs_justice"}, "selected_choice": "light"}
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/force/choice", token, choice), http.StatusOK)
	p, err := s.Store.GetProfile(ctx, "kanan")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}

	stale := force.Conflicted
	if p.Alignment == stale {
		stale = force.Dark
	}
	body := map[string]any{"name": "Kanan", "force_alignment": stale}
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/characters", token, body), http.StatusOK)

	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/force/choice", token, choice), http.StatusOK)
	p, err = s.Store.GetProfile(ctx, "kanan")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	c, err := s.Store.GetCharacter(ctx, "kanan")
	if err != nil {
		t.Fatalf("character: %v", err)
	}
	if c.ForceAlignment != p.Alignment {
		t.Fatalf("character alignment = %q, profile = %q", c.ForceAlignment, p.Alignment)
	}
}
