package character

import (
	"errors"
	"testing"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/force"
)

func TestUpsertValidates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   Character
		ok   bool
	}{
		{"valid", Character{Owner: "leia", Name: "Leia"}, true},
		{"missing owner", Character{Name: "Leia"}, false},
		{"missing name", Character{Owner: "leia"}, false},
		{"unknown alignment", Character{Owner: "leia", Name: "Leia", ForceAlignment: "purple"}, false},
		{"explicit alignment", Character{Owner: "leia", Name: "Leia", ForceAlignment: force.Dark}, true},
	}
	for _, tt := range tests {
		_, err := Upsert(nil, tt.in, now)
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: err = %v, want ErrInvalid", tt.name, err)
		}
	}
}

func TestUpsertCreatesWithDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, err := Upsert(nil, Character{Owner: "leia", Name: "Leia"}, now)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected generated ID")
	}
	if c.ForceAlignment != force.Balance {
		t.Fatalf("alignment = %q, want balance", c.ForceAlignment)
	}
	if c.Equipment == nil || c.Skills == nil || c.FactionReputation == nil {
		t.Fatalf("collections left nil: %+v", c)
	}
	if !c.CreatedAt.Equal(now) || !c.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v / %v", c.CreatedAt, c.UpdatedAt)
	}
}

func TestUpsertKeepsIdentity(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	first, err := Upsert(nil, Character{Owner: "leia", Name: "Leia", Species: "Human"}, created)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := Upsert(&first, Character{Owner: "leia", Name: "Leia Organa", Skills: []string{"diplomacy"}}, later)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if second.ID != first.ID || !second.CreatedAt.Equal(created) {
		t.Fatalf("identity lost: %+v", second)
	}
	if !second.UpdatedAt.Equal(later) {
		t.Fatalf("UpdatedAt = %v, want %v", second.UpdatedAt, later)
	}
	if second.Name != "Leia Organa" || second.Species != "" || len(second.Skills) != 1 {
		t.Fatalf("fields not replaced: %+v", second)
	}
}

func TestUpsertCopiesReputation(t *testing.T) {
	rep := map[string]int{"Rebel Alliance": 40}
	c, err := Upsert(nil, Character{Owner: "leia", Name: "Leia", FactionReputation: rep}, time.Now())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rep["Rebel Alliance"] = 0
	if c.FactionReputation["Rebel Alliance"] != 40 {
		t.Fatalf("reputation aliased caller map: %v", c.FactionReputation)
	}
}

func TestSyncAlignment(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	c := SyncAlignment(Character{Owner: "leia", ForceAlignment: force.Balance}, force.Light, now)
	if c.ForceAlignment != force.Light || !c.UpdatedAt.Equal(now) {
		t.Fatalf("SyncAlignment = %+v", c)
	}
}
