package engine

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/entropy"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
)

var turnNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type fixedGenerator struct{ text string }

func (g fixedGenerator) Generate(context.Context, string, string, string) (string, error) {
	return g.text, nil
}

func testTurns(src entropy.Source, narrator *llm.Narrator) *TurnEngine {
	return &TurnEngine{Catalog: faction.DefaultCatalog(), Src: src, Narrator: narrator, Now: func() time.Time { return turnNow }}
}

func hostile(n int) []Event {
	out := make([]Event, n)
	for i := range out {
		out[i] = Event{Type: EventHostileAction}
	}
	return out
}

func TestAssessThreats(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   Threats
	}{
		{"none", nil, Threats{}},
		{"mixed", []Event{{Type: EventHostileAction}, {Type: EventEconomicSabotage}, {Type: EventDiplomaticInsult}, {Type: "parade"}},
			Threats{Military: 0.2, Economic: 0.3, Political: 0.1, Overall: 0.2}},
		{"only last ten count", append([]Event{{Type: EventEconomicSabotage}}, hostile(10)...),
			Threats{Military: 2.0, Overall: 2.0 / 3}},
		{"mixed window", append(hostile(5), slices.Repeat([]Event{{Type: EventEconomicSabotage}}, 5)...),
			Threats{Military: 1.0, Economic: 1.5, Overall: 2.5 / 3}},
		{"saturated", slices.Repeat([]Event{{Type: EventEconomicSabotage}}, 12),
			Threats{Economic: 3.0, Overall: 1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssessThreats(tt.events)
			if !near(got.Military, tt.want.Military) || !near(got.Economic, tt.want.Economic) ||
				!near(got.Political, tt.want.Political) || !near(got.Overall, tt.want.Overall) {
				t.Fatalf("AssessThreats = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestEmpireMobilizesUnderThreat(t *testing.T) {
	// opportunities: 0.1, 0.74, 0.1, 0.0; mobilization 0.75; two routines at 0.4
	src := entropy.NewSequence(0, 0.9, 0, 0, 0.5, 0, 0)
	r := testTurns(src, nil).ProcessTurn(context.Background(), faction.GalacticEmpire,
		Snapshot{Resources: 1000, Reputation: 100}, hostile(10))

	types := make([]string, len(r.Actions))
	for i, a := range r.Actions {
		types[i] = a.Type
	}
	want := []string{"military_mobilization", "exploit_resource_acquisition", "routine_military_expansion", "routine_rebellion_suppression"}
	if !slices.Equal(types, want) {
		t.Fatalf("actions = %v, want %v", types, want)
	}
	if r.ThreatLevel <= 0.6 {
		t.Fatalf("threat level = %v", r.ThreatLevel)
	}
	if r.TerritoryDelta != 7 {
		t.Fatalf("territory = %d, want 7", r.TerritoryDelta)
	}
	exploit := r.Actions[1]
	if exploit.Effectiveness < 0.73 || exploit.Effectiveness > 0.75 {
		t.Fatalf("exploit effectiveness = %v", exploit.Effectiveness)
	}
	if wantRes := -400 + int(exploit.Effectiveness*150); r.ResourceDelta != wantRes {
		t.Fatalf("resources = %d, want %d", r.ResourceDelta, wantRes)
	}
	wantLines := []string{
		"Galactic Empire military presence increases across contested systems",
		"Galactic Empire expands influence through strategic opportunities",
	}
	if !slices.Equal(r.Consequences, wantLines) {
		t.Fatalf("consequences = %v", r.Consequences)
	}
	if r.Dialogue != "Strategic operations continue as planned." {
		t.Fatalf("dialogue = %q", r.Dialogue)
	}
	if src.Drawn() != 7 {
		t.Fatalf("drew %d values, want 7", src.Drawn())
	}
	if !r.Timestamp.Equal(turnNow) {
		t.Fatalf("timestamp = %v", r.Timestamp)
	}
}

func TestRebelsDigInUnderThreat(t *testing.T) {
	r := testTurns(entropy.NewSequence(), nil).Plan(faction.RebelAlliance, Snapshot{Resources: 500}, hostile(10))
	if r.Actions[0].Type != "defensive_positioning" || r.Actions[0].ResourceCost != 150 {
		t.Fatalf("first action = %+v", r.Actions[0])
	}
	if r.TerritoryDelta != 0 || r.ResourceDelta != -250 {
		t.Fatalf("deltas = %d territory, %d resources", r.TerritoryDelta, r.ResourceDelta)
	}
	if r.Consequences[0] != "Rebel Alliance fortifies existing positions" {
		t.Fatalf("consequences = %v", r.Consequences)
	}
}

func TestUnknownFactionTurn(t *testing.T) {
	r := testTurns(entropy.NewSequence(), nil).Plan("Hutt Cartel", Snapshot{}, hostile(10))
	// default aggression only defends; no priorities; opportunities stay small
	if len(r.Actions) != 1 || r.Actions[0].Type != "defensive_positioning" {
		t.Fatalf("actions = %+v", r.Actions)
	}
	if r.Consequences == nil {
		t.Fatal("consequences must be an empty list, not nil")
	}
}

func TestOpportunityModifiers(t *testing.T) {
	src := entropy.NewSequence(0.5)
	opps := testTurns(src, nil).scoreOpportunities(Snapshot{Reputation: 0})
	// zero resources read as 500: modifiers 0.5 * 0.5
	want := []float64{0.4 * 0.25, 0.5 * 0.25, 0.3 * 0.25, 0.3 * 0.25}
	for i, o := range opps {
		if !near(o.Score, want[i]) {
			t.Fatalf("%s = %v, want %v", o.Name, o.Score, want[i])
		}
	}
}

func TestTurnDialogueFromGenerator(t *testing.T) {
	narrator := llm.NewNarrator(fixedGenerator{text: "We endure."}, "")
	r := testTurns(entropy.NewSequence(), narrator).ProcessTurn(context.Background(), faction.RebelAlliance, Snapshot{}, nil)
	if r.Dialogue != "We endure." {
		t.Fatalf("dialogue = %q", r.Dialogue)
	}
}

func TestTurnApply(t *testing.T) {
	s := faction.Standing{Faction: faction.GalacticEmpire, Reputation: 20, Awareness: 40, Resources: 300}
	r := TurnResult{ResourceDelta: -400}
	got := r.Apply(s, turnNow)
	if got.Resources != faction.MinResources || got.Reputation != 20 || got.Awareness != 40 {
		t.Fatalf("applied = %+v", got)
	}
	if s.Resources != 300 {
		t.Fatal("Apply mutated its input")
	}
	if !got.LastInteraction.Equal(turnNow) {
		t.Fatalf("last interaction = %v", got.LastInteraction)
	}
}
