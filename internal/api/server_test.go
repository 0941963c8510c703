package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/entropy"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/persistence"
	"github.com/talgya/galaxy-of-consequence/internal/quest"
)

const (
	testAdminKey  = "admin-key"
	testJWTSecret = "jwt-secret"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	catalog := faction.DefaultCatalog()
	if err := db.SeedSystemStandings(context.Background(), catalog.SystemDefaults(testNow)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	src := entropy.NewSeeded(11)
	clock := func() time.Time { return testNow }
	reputation := &faction.Engine{Now: clock}
	turns := engine.NewTurnEngine(catalog, src, nil)
	sessions := engine.NewSessionManager(src, turns, nil, 11)
	choices := force.NewProcessor(src)
	choices.Now = clock

	return &Server{
		Store:      db,
		Catalog:    catalog,
		Reputation: reputation,
		Turns:      turns,
		Sessions:   sessions,
		Choices:    choices,
		Quests:     quest.NewGenerator(src, nil),
		Src:        src,
		AdminKey:   testAdminKey,
		JWTSecret:  testJWTSecret,
		Now:        clock,
	}
}

func playerToken(t *testing.T, s *Server, user string) string {
	t.Helper()
	token, _, err := s.IssueToken(user, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, want, rec.Body.String())
	}
}

func TestStatusIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/status", "", nil)
	expectStatus(t, rec, http.StatusOK)
	got := decode[map[string]any](t, rec)
	if got["factions"].(float64) != float64(len(s.Catalog.Factions)) {
		t.Fatalf("factions = %v", got["factions"])
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	player := playerToken(t, s, "luke")

	expired := func() string {
		s.Now = func() time.Time { return testNow.Add(-2 * time.Hour) }
		defer func() { s.Now = func() time.Time { return testNow } }()
		return playerToken(t, s, "luke")
	}()

	other := &Server{JWTSecret: "another-secret", Now: s.Now}
	forged, _, err := other.IssueToken("luke", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"player route without token", "/api/v1/factions/tick", "", http.StatusUnauthorized},
		{"player route with garbage", "/api/v1/factions/tick", "not-a-token", http.StatusUnauthorized},
		{"player route with expired token", "/api/v1/factions/tick", expired, http.StatusUnauthorized},
		{"player route with foreign signature", "/api/v1/factions/tick", forged, http.StatusUnauthorized},
		{"player route with player token", "/api/v1/factions/tick", player, http.StatusOK},
		{"admin route with player token", "/api/v1/snapshot", player, http.StatusUnauthorized},
		{"admin route with admin key", "/api/v1/snapshot", testAdminKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.token, map[string]any{})
			expectStatus(t, rec, tt.want)
		})
	}
}

func TestWriteEndpointsDisabledWithoutKeys(t *testing.T) {
	s := newTestServer(t)
	s.AdminKey = ""
	s.JWTSecret = ""
	h := s.Handler()

	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/factions/tick", "anything", nil), http.StatusForbidden)
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/snapshot", "anything", nil), http.StatusForbidden)
	expectStatus(t, do(t, h, http.MethodGet, "/api/v1/factions", "", nil), http.StatusOK)
}

func TestIssueTokenEndpoint(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/tokens", testAdminKey, map[string]any{"user": "leia", "ttl_hours": 2})
	expectStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Token string `json:"token"`
	}](t, rec)
	user, err := s.verifyToken(got.Token)
	if err != nil || user != "leia" {
		t.Fatalf("verify issued token = %q, %v", user, err)
	}

	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/tokens", testAdminKey, map[string]any{}), http.StatusBadRequest)
}

func TestPlayerCannotActForOthers(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	token := playerToken(t, s, "luke")

	body := map[string]any{"user": "vader", "faction_name": faction.RebelAlliance, "reputation_change": 10}
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/factions/reputation", token, body), http.StatusForbidden)

	delete(body, "user")
	rec := do(t, h, http.MethodPost, "/api/v1/factions/reputation", token, body)
	expectStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Standing faction.Standing `json:"standing"`
	}](t, rec)
	if got.Standing.Owner != "luke" {
		t.Fatalf("owner = %q, want luke", got.Standing.Owner)
	}
}

func TestReputationCreatesThenAdjusts(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	type resp struct {
		Created  bool             `json:"created"`
		Standing faction.Standing `json:"standing"`
	}
	body := map[string]any{"user": "han", "faction_name": faction.RebelAlliance, "reputation_change": 20, "awareness_change": 5}

	first := decode[resp](t, do(t, h, http.MethodPost, "/api/v1/factions/reputation", testAdminKey, body))
	if !first.Created || first.Standing.Reputation != 20 || first.Standing.Awareness != 5 {
		t.Fatalf("first = %+v", first)
	}
	body["reputation_change"] = 5
	second := decode[resp](t, do(t, h, http.MethodPost, "/api/v1/factions/reputation", testAdminKey, body))
	if second.Created || second.Standing.Reputation != 25 {
		t.Fatalf("second = %+v", second)
	}
	if second.Standing.ID != first.Standing.ID {
		t.Fatalf("standing id changed: %s -> %s", first.Standing.ID, second.Standing.ID)
	}

	body["faction_name"] = "Hutt Cartel"
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/factions/reputation", testAdminKey, body), http.StatusNotFound)
}

func TestFactionTickUpdatesSystemDefaults(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/factions/tick", testAdminKey, map[string]any{"user": "luke", "action": "help_empire"})
	expectStatus(t, rec, http.StatusOK)

	st, err := s.Store.GetStanding(context.Background(), faction.SystemOwner, faction.GalacticEmpire)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.Reputation != 10 || st.Awareness != 5 {
		t.Fatalf("empire = rep %d aware %d, want 10/5", st.Reputation, st.Awareness)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/factions/relationships", "", nil)
	expectStatus(t, rec, http.StatusOK)
	rel := decode[struct {
		Relationships map[string]faction.RelationshipView `json:"relationships"`
	}](t, rec)
	if rel.Relationships[faction.GalacticEmpire].Reputation != 10 {
		t.Fatalf("relationships = %+v", rel.Relationships)
	}
}

func TestFactionsLookupFallsBackToSystem(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/factions?user=nobody&faction="+url.QueryEscape(faction.CorporateSector), "", nil)
	expectStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Faction faction.Standing `json:"faction"`
	}](t, rec)
	if got.Faction.Owner != faction.SystemOwner {
		t.Fatalf("owner = %q, want system", got.Faction.Owner)
	}

	expectStatus(t, do(t, h, http.MethodGet, "/api/v1/factions?faction=Nobody", "", nil), http.StatusNotFound)
}

func TestFactionTurnAppliesAndLogs(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	ctx := context.Background()

	before, err := s.Store.GetStanding(ctx, faction.SystemOwner, faction.GalacticEmpire)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	events := []engine.Event{{Type: engine.EventHostileAction, Source: faction.RebelAlliance}}
	rec := do(t, h, http.MethodPost, "/api/v1/factions/turn", testAdminKey, map[string]any{"faction": faction.GalacticEmpire, "galaxy_events": events})
	expectStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Turn     engine.TurnResult `json:"turn"`
		Standing faction.Standing  `json:"standing"`
	}](t, rec)

	want := faction.Clamp(before.Resources+got.Turn.ResourceDelta, faction.MinResources, faction.MaxResources)
	if got.Standing.Resources != want {
		t.Fatalf("resources = %d, want %d", got.Standing.Resources, want)
	}
	logged, err := s.Store.RecentEvents(ctx, 5)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(logged) != 1 || logged[0].Type != "faction_turn" || logged[0].Source != faction.GalacticEmpire {
		t.Fatalf("logged = %+v", logged)
	}

	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/factions/turn", testAdminKey, map[string]any{"faction": "Nobody"}), http.StatusNotFound)
}

func TestForceLifecycle(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	token := playerToken(t, s, "ahsoka")

	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/force/vision", token, map[string]any{}), http.StatusNotFound)

	rec := do(t, h, http.MethodGet, "/api/v1/force/alignment?user=ahsoka", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]any](t, rec); got["initialized"] != false {
		t.Fatalf("initialized = %v, want false", got["initialized"])
	}

	choice := map[string]any{
		"choice_context": map[string]any{
			"type":            "mercy_vs_justice",
			"faction_impacts": map[string]int{faction.RebelAlliance: 7},
		},
		"selected_choice": "light",
	}
	rec = do(t, h, http.MethodPost, "/api/v1/force/choice", token, choice)
	expectStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Created        bool               `json:"profile_created"`
		FactionUpdates []faction.Standing `json:"faction_updates"`
	}](t, rec)
	if !got.Created || len(got.FactionUpdates) != 1 || got.FactionUpdates[0].Reputation != 7 {
		t.Fatalf("choice = %+v", got)
	}

	p, err := s.Store.GetProfile(context.Background(), "ahsoka")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if len(p.MoralHistory) != 1 || p.Points.Light == 0 {
		t.Fatalf("profile = %+v", p)
	}

	for _, path := range []string{"/api/v1/force/vision", "/api/v1/force/corruption", "/api/v1/force/destiny"} {
		expectStatus(t, do(t, h, http.MethodPost, path, token, map[string]any{"action_type": "major_decision"}), http.StatusOK)
	}
	p, err = s.Store.GetProfile(context.Background(), "ahsoka")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if len(p.DestinyThreads) == 0 {
		t.Fatal("destiny threads were not saved")
	}
}

func TestQuestLifecycle(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	token := playerToken(t, s, "rey")

	rec := do(t, h, http.MethodPost, "/api/v1/quests", token, nil)
	expectStatus(t, rec, http.StatusOK)
	created := decode[struct {
		Quest quest.Quest `json:"quest"`
	}](t, rec).Quest
	if created.Owner != "rey" || created.Status != quest.Active {
		t.Fatalf("quest = %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/quests/active?user=rey", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if active := decode[struct {
		Quests []quest.Quest `json:"quests"`
	}](t, rec).Quests; len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}

	path := "/api/v1/quests/" + created.ID
	intruder := playerToken(t, s, "kylo")
	expectStatus(t, do(t, h, http.MethodPost, path+"/status", intruder, map[string]any{"status": "failed"}), http.StatusForbidden)
	expectStatus(t, do(t, h, http.MethodPost, path+"/status", token, map[string]any{"status": "bogus"}), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodPost, path+"/objectives", token, map[string]any{"description": "Find the compass"}), http.StatusOK)

	outcome := map[string]any{"faction_chosen": faction.RebelAlliance, "moral_choice": "light", "approach": "diplomatic"}
	rec = do(t, h, http.MethodPost, path+"/status", token, map[string]any{"status": "completed", "outcome": outcome})
	expectStatus(t, rec, http.StatusOK)

	stored, err := s.Store.GetQuest(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get quest: %v", err)
	}
	if stored.Status != quest.Completed || stored.CompletedAt == nil || stored.Outcome == nil {
		t.Fatalf("stored = %+v", stored)
	}
	if len(stored.Objectives) != len(created.Objectives)+1 {
		t.Fatalf("objectives = %d, want %d", len(stored.Objectives), len(created.Objectives)+1)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/quests/adaptive", token, map[string]any{})
	expectStatus(t, rec, http.StatusOK)
	rec = do(t, h, http.MethodGet, "/api/v1/quests/history?user=rey", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if total := decode[map[string]any](t, rec)["total"]; total != float64(2) {
		t.Fatalf("history total = %v, want 2", total)
	}

	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/quests/missing/status", token, map[string]any{"status": "failed"}), http.StatusNotFound)
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	master := playerToken(t, s, "obiwan")
	player := playerToken(t, s, "anakin")

	rec := do(t, h, http.MethodPost, "/api/v1/sessions", master, map[string]any{"session_id": "mustafar", "year": -19})
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/sessions", master, map[string]any{"session_id": "mustafar"}), http.StatusConflict)

	for _, token := range []string{master, player} {
		expectStatus(t, do(t, h, http.MethodPost, "/api/v1/sessions/mustafar/join", token, map[string]any{}), http.StatusOK)
	}

	action := map[string]any{"action": map[string]any{"type": engine.ActionExploration, "destination": "Mustafar"}}
	rec = do(t, h, http.MethodPost, "/api/v1/sessions/action", player, action)
	expectStatus(t, rec, http.StatusOK)
	outcome := decode[struct {
		Outcome engine.ActionOutcome `json:"outcome"`
	}](t, rec).Outcome
	if outcome.Player.Location != "Mustafar" {
		t.Fatalf("location = %q, want Mustafar", outcome.Player.Location)
	}

	forceAction := map[string]any{"action": map[string]any{"type": engine.ActionForce, "alignment": "dark"}}
	rec = do(t, h, http.MethodPost, "/api/v1/sessions/action", player, forceAction)
	expectStatus(t, rec, http.StatusOK)
	outcome = decode[struct {
		Outcome engine.ActionOutcome `json:"outcome"`
	}](t, rec).Outcome
	if len(outcome.Ripples) != 1 || outcome.Ripples[0].AffectedPlayer != "obiwan" {
		t.Fatalf("ripples = %+v", outcome.Ripples)
	}

	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/sessions/mustafar/advance", player, map[string]any{"time_increment": "1 week"}), http.StatusForbidden)
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/sessions/mustafar/advance", master, map[string]any{"time_increment": "1 week"}), http.StatusOK)

	rec = do(t, h, http.MethodGet, "/api/v1/sessions/mustafar", "", nil)
	expectStatus(t, rec, http.StatusOK)
	sync := decode[struct {
		Sync engine.SyncResult `json:"sync"`
	}](t, rec).Sync
	if len(sync.ActivePlayers) != 2 {
		t.Fatalf("active players = %v", sync.ActivePlayers)
	}

	stored, err := s.Store.LoadSession(context.Background(), "mustafar")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.World.GalaxyTimestamp != sync.World.GalaxyTimestamp {
		t.Fatalf("stored date %q, live %q", stored.World.GalaxyTimestamp, sync.World.GalaxyTimestamp)
	}

	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/sessions/leave", player, nil), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/sessions/action", player, action), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodGet, "/api/v1/sessions/kamino", "", nil), http.StatusNotFound)
}

func TestDialogueIsLogged(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	token := playerToken(t, s, "din")

	for _, npc := range []string{"Greef Karga", "Kuiil", "Greef Karga"} {
		body := map[string]any{"npc_name": npc, "npc_type": "civilian", "message": "Any work?"}
		rec := do(t, h, http.MethodPost, "/api/v1/npc/dialogue", token, body)
		expectStatus(t, rec, http.StatusOK)
		if decode[map[string]any](t, rec)["response"] == "" {
			t.Fatal("empty npc response")
		}
	}
	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/npc/dialogue", token, map[string]any{"npc_name": "Kuiil"}), http.StatusBadRequest)

	rec := do(t, h, http.MethodGet, "/api/v1/npc/history?user=din&npc_name=Greef+Karga", "", nil)
	expectStatus(t, rec, http.StatusOK)
	history := decode[struct {
		History []map[string]any `json:"history"`
	}](t, rec).History
	if len(history) != 2 {
		t.Fatalf("history = %d, want 2", len(history))
	}

	rec = do(t, h, http.MethodGet, "/api/v1/npc/interactions?user=din", "", nil)
	expectStatus(t, rec, http.StatusOK)
	byNPC := decode[struct {
		ByNPC map[string][]map[string]any `json:"by_npc"`
	}](t, rec).ByNPC
	if len(byNPC) != 2 || len(byNPC["Kuiil"]) != 1 {
		t.Fatalf("by npc = %v", byNPC)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	s.CORSOrigins = []string{"https://galaxy.example"}
	h := s.Handler()

	tests := []struct {
		origin string
		want   string
	}{
		{"https://galaxy.example", "https://galaxy.example"},
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s: status = %d", tt.origin, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Fatalf("%s: allow origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}
