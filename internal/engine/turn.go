// Package engine runs the heavier simulation steps: faction AI turns, the galactic
// calendar, and the multiplayer session registry.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/entropy"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
)

// Event types the threat assessment reacts to.
const (
	EventHostileAction    = "hostile_action"
	EventEconomicSabotage = "economic_sabotage"
	EventDiplomaticInsult = "diplomatic_insult"
)

const (
	threatWindow           = 10
	defaultSnapshotFunds   = 500
	defaultTurnAggression  = 0.5
	turnDialogueFallback   = "Strategic operations continue as planned."
	bestOpportunityCutoff  = 0.5
	threatResponseCutoff   = 0.6
	aggressiveMobilization = 0.7
)

// Event is one entry of the recent galaxy event log fed into a turn.
type Event struct {
	Type        string `json:"type"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

// Snapshot is the slice of a faction's standing a turn reads.
// Zero resources are read as the default treasury of 500.
type Snapshot struct {
	Resources  int `json:"resources"`
	Reputation int `json:"reputation"`
}

// SnapshotOf reads a durable standing.
func SnapshotOf(s faction.Standing) Snapshot {
	return Snapshot{Resources: s.Resources, Reputation: s.Reputation}
}

// Threats is the per-category threat assessment.
type Threats struct {
	Military  float64 `json:"military"`
	Economic  float64 `json:"economic"`
	Political float64 `json:"political"`
	Overall   float64 `json:"overall_threat"`
}

// Opportunity is one scored strategic opening.
type Opportunity struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// TurnAction is one thing a faction does during its turn.
type TurnAction struct {
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	ResourceCost  int     `json:"resource_cost"`
	Effectiveness float64 `json:"effectiveness"`
}

// TurnResult is the outcome of one faction turn. It does not touch the
// standing it was computed from; Apply folds it into one.
type TurnResult struct {
	Faction         string        `json:"faction"`
	Timestamp       time.Time     `json:"turn_timestamp"`
	Threats         Threats       `json:"threats"`
	ThreatLevel     float64       `json:"threat_level"`
	Opportunities   []Opportunity `json:"opportunities"`
	Actions         []TurnAction  `json:"actions_taken"`
	Consequences    []string      `json:"narrative_consequences"`
	ResourceDelta   int           `json:"resource_changes"`
	TerritoryDelta  int           `json:"territory_changes"`
	ReputationDelta int           `json:"reputation_changes"`
	AwarenessDelta  int           `json:"awareness_changes"`
	Dialogue        string        `json:"ai_dialogue"`
}

// Apply folds the turn's deltas into a durable standing.
func (r TurnResult) Apply(s faction.Standing, now time.Time) faction.Standing {
	return faction.ApplyDeltas(s, r.ResourceDelta, r.ReputationDelta, r.AwarenessDelta, now)
}

// opportunityRanges are the uniform draw ranges, in draw order.
var opportunityRanges = []struct {
	name   string
	lo, hi float64
}{
	{"territorial_expansion", 0.1, 0.7},
	{"resource_acquisition", 0.2, 0.8},
	{"alliance_formation", 0.1, 0.5},
	{"enemy_weakness", 0.0, 0.6},
}

// TurnEngine runs faction AI turns.
type TurnEngine struct {
	Catalog  *faction.Catalog
	Src      entropy.Source
	Narrator *llm.Narrator
	Now      func() time.Time
}

// NewTurnEngine returns a TurnEngine on the wall clock.
func NewTurnEngine(catalog *faction.Catalog, src entropy.Source, narrator *llm.Narrator) *TurnEngine {
	return &TurnEngine{Catalog: catalog, Src: src, Narrator: narrator, Now: time.Now}
}

func (t *TurnEngine) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

// ProcessTurn plans a faction's turn and has its leadership comment on it.
// Unknown factions run with an empty personality.
func (t *TurnEngine) ProcessTurn(ctx context.Context, factionName string, snap Snapshot, events []Event) TurnResult {
	r := t.Plan(factionName, snap, events)

	descriptions := make([]string, len(r.Actions))
	for i, a := range r.Actions {
		descriptions[i] = a.Description
	}
	summary := strings.Join(descriptions, "; ")
	r.Dialogue = t.Narrator.Text(ctx,
		fmt.Sprintf("You are %s leadership in Star Wars", factionName),
		fmt.Sprintf("Our faction has implemented: %s. What is our strategic statement?", summary),
		turnDialogueFallback)
	return r
}

// Plan computes the numeric part of a turn without any narration.
func (t *TurnEngine) Plan(factionName string, snap Snapshot, events []Event) TurnResult {
	personality, known := t.Catalog.Personality(factionName)
	if !known {
		personality.Aggression = defaultTurnAggression
	}

	threats := AssessThreats(events)
	opps := t.scoreOpportunities(snap)
	actions := t.chooseActions(personality, threats, opps)
	consequences, resources, territory := Resolve(factionName, actions)

	return TurnResult{
		Faction:        factionName,
		Timestamp:      t.now(),
		Threats:        threats,
		ThreatLevel:    threats.Overall,
		Opportunities:  opps,
		Actions:        actions,
		Consequences:   consequences,
		ResourceDelta:  resources,
		TerritoryDelta: territory,
	}
}

// AssessThreats scores the last ten events.
func AssessThreats(events []Event) Threats {
	if len(events) > threatWindow {
		events = events[len(events)-threatWindow:]
	}
	var th Threats
	for _, e := range events {
		switch e.Type {
		case EventHostileAction:
			th.Military += 0.2
		case EventEconomicSabotage:
			th.Economic += 0.3
		case EventDiplomaticInsult:
			th.Political += 0.1
		}
	}
	th.Overall = min(1.0, (th.Military+th.Economic+th.Political)/3)
	return th
}

func (t *TurnEngine) scoreOpportunities(snap Snapshot) []Opportunity {
	funds := snap.Resources
	if funds == 0 {
		funds = defaultSnapshotFunds
	}
	resourceMod := float64(funds) / 1000
	reputationMod := float64(snap.Reputation+100) / 200

	out := make([]Opportunity, len(opportunityRanges))
	for i, r := range opportunityRanges {
		raw := entropy.Uniform(t.Src, r.lo, r.hi)
		out[i] = Opportunity{Name: r.name, Score: min(1.0, raw*resourceMod*reputationMod)}
	}
	return out
}

func (t *TurnEngine) chooseActions(p faction.Personality, threats Threats, opps []Opportunity) []TurnAction {
	var actions []TurnAction

	if threats.Overall > threatResponseCutoff {
		if p.Aggression > aggressiveMobilization {
			actions = append(actions, TurnAction{
				Type:          "military_mobilization",
				Description:   "Mobilize military forces in response to threats",
				ResourceCost:  200,
				Effectiveness: entropy.Uniform(t.Src, 0.6, 0.9),
			})
		} else {
			actions = append(actions, TurnAction{
				Type:          "defensive_positioning",
				Description:   "Strengthen defensive positions and fortifications",
				ResourceCost:  150,
				Effectiveness: entropy.Uniform(t.Src, 0.5, 0.8),
			})
		}
	}

	// first maximum wins ties
	if len(opps) > 0 {
		best := opps[0]
		for _, o := range opps[1:] {
			if o.Score > best.Score {
				best = o
			}
		}
		if best.Score > bestOpportunityCutoff {
			actions = append(actions, TurnAction{
				Type:          "exploit_" + best.Name,
				Description:   fmt.Sprintf("Capitalize on %s opportunity", strings.ReplaceAll(best.Name, "_", " ")),
				ResourceCost:  100,
				Effectiveness: best.Score,
			})
		}
	}

	priorities := p.Priorities
	if len(priorities) > 2 {
		priorities = priorities[:2]
	}
	for _, pr := range priorities {
		actions = append(actions, TurnAction{
			Type:          "routine_" + pr,
			Description:   fmt.Sprintf("Continue %s operations", strings.ReplaceAll(pr, "_", " ")),
			ResourceCost:  50,
			Effectiveness: entropy.Uniform(t.Src, 0.4, 0.7),
		})
	}
	return actions
}

// Resolve turns a list of actions into narrative lines and resource and
// territory deltas. Routine actions cost resources but yield nothing.
func Resolve(factionName string, actions []TurnAction) (consequences []string, resourceDelta, territoryDelta int) {
	consequences = []string{}
	for _, a := range actions {
		resourceDelta -= a.ResourceCost
	}
	for _, a := range actions {
		switch {
		case strings.HasPrefix(a.Type, "military"):
			consequences = append(consequences, fmt.Sprintf("%s military presence increases across contested systems", factionName))
			territoryDelta += int(a.Effectiveness * 10)
		case strings.HasPrefix(a.Type, "exploit"):
			consequences = append(consequences, fmt.Sprintf("%s expands influence through strategic opportunities", factionName))
			resourceDelta += int(a.Effectiveness * 150)
		case strings.HasPrefix(a.Type, "defensive"):
			consequences = append(consequences, fmt.Sprintf("%s fortifies existing positions", factionName))
		}
	}
	return consequences, resourceDelta, territoryDelta
}
