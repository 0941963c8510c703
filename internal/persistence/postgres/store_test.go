package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/force"
	"github.com/talgya/galaxy-of-consequence/internal/persistence"
	"github.com/talgya/galaxy-of-consequence/internal/quest"
)

func requireDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("GALAXY_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("GALAXY_TEST_PG_DSN is required for integration test")
	}
	return dsn
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(requireDSN(t))
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStandingUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	st := faction.Standing{ID: uuid.NewString(), Faction: faction.RebelAlliance, Owner: owner, Reputation: 10, Resources: 500, LastInteraction: now}
	if err := s.SaveStanding(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	st.Reputation = 25
	st.ActiveOperations = []string{"Recruit pilots"}
	if err := s.SaveStanding(ctx, st); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := s.GetStanding(ctx, owner, faction.RebelAlliance)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reputation != 25 || len(got.ActiveOperations) != 1 {
		t.Fatalf("got %+v", got)
	}
	if !got.LastInteraction.Equal(now) {
		t.Fatalf("last interaction = %v, want %v", got.LastInteraction, now)
	}
	if _, err := s.GetStanding(ctx, owner, "Hutt Cartel"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestProfileAndQuest(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()

	p := force.Profile{Owner: owner, Points: force.Points{Light: 5, Dark: 80, Balance: 15}, Alignment: force.Dark}
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	gotP, err := s.GetProfile(ctx, owner)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if gotP.Points != p.Points || gotP.MoralHistory == nil {
		t.Fatalf("profile = %+v", gotP)
	}

	q := quest.RoutineMission(owner, time.Now().UTC())
	if err := s.CreateQuest(ctx, q); err != nil {
		t.Fatalf("create quest: %v", err)
	}
	if err := quest.SetStatus(&q, "failed", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateQuest(ctx, q); err != nil {
		t.Fatalf("update quest: %v", err)
	}
	list, err := s.ListQuests(ctx, owner)
	if err != nil {
		t.Fatalf("list quests: %v", err)
	}
	if len(list) != 1 || list[0].Status != quest.Failed {
		t.Fatalf("quests = %+v", list)
	}
}

func TestSessionAndMeta(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id := "it-" + uuid.NewString()

	snap := engine.SessionSnapshot{World: engine.WorldState{SessionID: id, Master: "gm", GalaxyTimestamp: "0 BBY"}}
	if err := s.SaveSession(ctx, snap); err != nil {
		t.Fatalf("save session: %v", err)
	}
	got, err := s.LoadSession(ctx, id)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if got.World.Master != "gm" {
		t.Fatalf("session = %+v", got.World)
	}

	if err := s.SaveMeta(ctx, id, "one"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMeta(ctx, id, "two"); err != nil {
		t.Fatal(err)
	}
	if v, err := s.GetMeta(ctx, id); err != nil || v != "two" {
		t.Fatalf("meta = %q, %v", v, err)
	}
}
