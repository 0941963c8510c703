package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/entropy"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
	"github.com/talgya/galaxy-of-consequence/internal/quest"
)

var storeNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "galaxy.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSeedAndListStandings(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	defaults := faction.DefaultCatalog().SystemDefaults(storeNow)

	if err := db.SeedSystemStandings(ctx, defaults); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// a second seed must not duplicate or overwrite
	changed := defaults[0]
	changed.Owner = faction.SystemOwner
	changed.Reputation = 42
	if err := db.SaveStanding(ctx, changed); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SeedSystemStandings(ctx, defaults); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	own := faction.Standing{ID: "u1", Faction: faction.GalacticEmpire, Owner: "luke", Reputation: -30, Resources: 400, LastInteraction: storeNow}
	if err := db.SaveStanding(ctx, own); err != nil {
		t.Fatalf("save own: %v", err)
	}

	all, err := db.ListStandings(ctx, "luke")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != len(defaults)+1 {
		t.Fatalf("got %d standings, want %d", len(all), len(defaults)+1)
	}
	for _, s := range all[:len(defaults)] {
		if s.Owner != faction.SystemOwner {
			t.Fatalf("system standings must come first, got owner %q", s.Owner)
		}
	}
	if last := all[len(all)-1]; last.Owner != "luke" || last.Reputation != -30 {
		t.Fatalf("last standing = %+v", last)
	}

	got, err := db.GetStanding(ctx, faction.SystemOwner, changed.Faction)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reputation != 42 {
		t.Fatalf("reseed overwrote reputation: %d", got.Reputation)
	}
	if got.Goals == nil || got.ActiveOperations == nil {
		t.Fatalf("lists should decode non-nil: %+v", got)
	}
}

func TestGetStandingNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetStanding(context.Background(), "nobody", "Hutt Cartel")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := force.NewProfile("rey", force.Light, entropy.NewSequence(0.5))
	p.Points = force.Points{Light: 60, Dark: 10, Balance: 30}
	p.MoralHistory = append(p.MoralHistory, force.MoralChoice{
		ID:             "c1",
		Description:    "Spare the stormtrooper",
		FactionImpacts: map[string]int{"Rebel Alliance": 5},
		Timestamp:      storeNow,
	})
	p.DestinyThreads = []string{"The Last Jedi"}
	if err := db.SaveProfile(ctx, *p); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.GetProfile(ctx, "rey")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Points != p.Points || got.Alignment != p.Alignment {
		t.Fatalf("got %+v, want %+v", got, *p)
	}
	if len(got.MoralHistory) != 1 || got.MoralHistory[0].FactionImpacts["Rebel Alliance"] != 5 {
		t.Fatalf("history = %+v", got.MoralHistory)
	}
	if !got.MoralHistory[0].Timestamp.Equal(storeNow) {
		t.Fatalf("timestamp = %v", got.MoralHistory[0].Timestamp)
	}
	if !slices.Equal(got.DestinyThreads, p.DestinyThreads) {
		t.Fatalf("threads = %v", got.DestinyThreads)
	}

	if _, err := db.GetProfile(ctx, "finn"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestQuestLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	q := quest.RoutineMission("han", storeNow)
	q.ID = "q1"
	if err := db.CreateQuest(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := quest.RoutineMission("han", storeNow.Add(time.Hour))
	second.ID = "q2"
	if err := db.CreateQuest(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	quest.AddObjective(&q, "Lose the Imperial tail", storeNow)
	if err := quest.SetStatus(&q, "completed", storeNow.Add(2*time.Hour)); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := db.UpdateQuest(ctx, q); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := db.GetQuest(ctx, "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != quest.Completed || got.CompletedAt == nil {
		t.Fatalf("status not persisted: %+v", got)
	}
	if len(got.Objectives) != len(q.Objectives) {
		t.Fatalf("objectives = %d, want %d", len(got.Objectives), len(q.Objectives))
	}

	list, err := db.ListQuests(ctx, "han")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "q1" || list[1].ID != "q2" {
		t.Fatalf("list order = %+v", list)
	}

	missing := quest.RoutineMission("han", storeNow)
	missing.ID = "nope"
	if err := db.UpdateQuest(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing err = %v", err)
	}
}

func TestInteractionsNewestWindow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i, msg := range []string{"hello", "how much", "deal"} {
		in := llm.Interaction{
			ID:        msg,
			Owner:     "lando",
			NPCName:   "Watto",
			Message:   msg,
			Response:  "...",
			Timestamp: storeNow.Add(time.Duration(i) * time.Minute),
		}
		if err := db.AppendInteraction(ctx, in); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := db.ListInteractions(ctx, "lando", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Message != "how much" || got[1].Message != "deal" {
		t.Fatalf("window = %+v", got)
	}

	all, err := db.ListInteractions(ctx, "lando", 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d, want 3", len(all))
	}
}

func TestEventsAndMeta(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	events := []engine.Event{
		{Type: engine.EventHostileAction, Source: "Rebel Alliance"},
		{Type: engine.EventEconomicSabotage, Source: "Hutt Cartel"},
		{Type: engine.EventDiplomaticInsult, Source: "Mandalorian Clans"},
	}
	if err := db.AppendEvents(ctx, events); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := db.RecentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if !slices.Equal(got, events[1:]) {
		t.Fatalf("recent = %+v", got)
	}

	if _, err := db.GetMeta(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("meta err = %v", err)
	}
	if err := db.SaveMeta(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetMeta(ctx, "k"); v != "v2" {
		t.Fatalf("meta = %q", v)
	}
}

func TestSessionsSurviveRestart(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	year := 0

	m := engine.NewSessionManager(entropy.NewSeeded(3), nil, nil, 7)
	if _, err := m.CreateSession("yavin", "gm", engine.SessionConfig{Year: &year}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.JoinSession("yavin", "luke", engine.CharacterData{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := m.AdvanceSessionTime(ctx, "yavin", "1 week"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := SaveSessions(ctx, db, m); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := engine.NewSessionManager(entropy.NewSeeded(4), nil, nil, 7)
	n, err := RestoreSessions(ctx, db, restored)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("restored %d sessions, want 1", n)
	}

	want, _ := m.Snapshot("yavin")
	got, err := restored.Snapshot("yavin")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.World.GalaxyTimestamp != want.World.GalaxyTimestamp {
		t.Fatalf("timestamp = %q, want %q", got.World.GalaxyTimestamp, want.World.GalaxyTimestamp)
	}
	if len(got.Players) != 1 || got.Players[0].Owner != "luke" {
		t.Fatalf("players = %+v", got.Players)
	}
	if len(got.Events) != len(want.Events) {
		t.Fatalf("events = %d, want %d", len(got.Events), len(want.Events))
	}
	if g := restored.Galaxy(); len(g.MajorEvents) != len(m.Galaxy().MajorEvents) {
		t.Fatalf("galaxy major events = %d", len(g.MajorEvents))
	}
}
