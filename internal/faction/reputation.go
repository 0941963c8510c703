// Reputation rules: table-driven response of each faction to a player action.
package faction

import (
	"fmt"
	"time"
)

// Action is a player action the factions react to.
type Action string

const (
	ActionHelpEmpire    Action = "help_empire"
	ActionHelpRebels    Action = "help_rebels"
	ActionSmuggling     Action = "smuggling"
	ActionBountyHunting Action = "bounty_hunting"
	ActionPiracy        Action = "piracy"
	ActionPassiveTick   Action = "passive_tick"
)

type delta struct {
	reputation int
	awareness  int
}

// actionTable lists, per action, the factions affected and by how much.
// Factions absent from an action's row are untouched.
var actionTable = map[Action]map[string]delta{
	ActionHelpEmpire: {
		GalacticEmpire: {10, 5},
		RebelAlliance:  {-15, 10},
	},
	ActionHelpRebels: {
		RebelAlliance:  {10, 5},
		GalacticEmpire: {-15, 10},
	},
	ActionSmuggling: {
		CorporateSector: {-5, 8},
		GalacticEmpire:  {-3, 5},
	},
	ActionBountyHunting: {
		GalacticEmpire: {5, 3},
	},
	ActionPiracy: {
		GalacticEmpire:  {-10, 15},
		RebelAlliance:   {-10, 15},
		CorporateSector: {-10, 15},
	},
}

// Engine applies the reputation rules. Now stamps last-interaction times.
type Engine struct {
	Now func() time.Time
}

// NewEngine returns an Engine on the wall clock.
func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e == nil || e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Update is the before/after view of one standing after an action.
type Update struct {
	Faction   string   `json:"faction"`
	Old       Standing `json:"old_state"`
	New       Standing `json:"new_state"`
	Responses []string `json:"changes"`
}

// ApplyAction runs one action against one standing. The target faction is
// accepted for API compatibility but the table alone decides who is affected.
// Unknown actions and factions leave reputation and awareness unchanged while
// the resource and operations rules still run.
func (e *Engine) ApplyAction(s Standing, action Action, targetFaction string) (Standing, []string) {
	_ = targetFaction
	old := s.Clone()
	s = s.Clone()

	if action == ActionPassiveTick {
		if s.Awareness > 0 {
			s.Awareness--
		}
	} else if d, ok := actionTable[action][s.Faction]; ok {
		s.Reputation += d.reputation
		s.Awareness += d.awareness
	}
	s.Reputation = ClampReputation(s.Reputation)
	s.Awareness = ClampAwareness(s.Awareness)

	switch {
	case s.Reputation > 50:
		s.Resources = min(MaxResources, s.Resources+5)
	case s.Reputation < -50:
		s.Resources = max(MinResources, s.Resources-3)
	}

	switch {
	case s.Awareness > 70:
		if !s.HasOperation(HuntPlayer) {
			s.ActiveOperations = append(s.ActiveOperations, HuntPlayer)
		}
	case s.Awareness < 30:
		ops := s.ActiveOperations[:0]
		for _, op := range s.ActiveOperations {
			if op != HuntPlayer {
				ops = append(ops, op)
			}
		}
		s.ActiveOperations = ops
	}

	s.LastInteraction = e.now()
	return s, Responses(old, s)
}

// Tick applies one action to every standing the owner can see.
func (e *Engine) Tick(standings []Standing, action Action, targetFaction string) ([]Update, int) {
	updates := make([]Update, 0, len(standings))
	momentum := 0
	for _, s := range standings {
		next, responses := e.ApplyAction(s, action, targetFaction)
		updates = append(updates, Update{
			Faction:   next.Faction,
			Old:       s.Clone(),
			New:       next,
			Responses: responses,
		})
		momentum += next.Awareness
	}
	return updates, momentum
}

// Responses derives the human-readable reaction lines from a state change.
func Responses(old, cur Standing) []string {
	var out []string

	repChange := cur.Reputation - old.Reputation
	awareChange := cur.Awareness - old.Awareness

	if repChange > 10 {
		out = append(out, fmt.Sprintf("%s regards you more favorably", cur.Faction))
	} else if repChange < -10 {
		out = append(out, fmt.Sprintf("%s is displeased with your actions", cur.Faction))
	}

	if awareChange > 15 {
		out = append(out, fmt.Sprintf("%s is now actively tracking you", cur.Faction))
	} else if awareChange > 5 {
		out = append(out, fmt.Sprintf("%s has taken notice of your activities", cur.Faction))
	}

	switch {
	case cur.Faction == GalacticEmpire && cur.Awareness > 80:
		out = append(out, "Imperial Intelligence has issued a priority alert on your activities")
	case cur.Faction == RebelAlliance && cur.Reputation > 70:
		out = append(out, "The Rebellion considers you a valuable ally")
	case cur.Faction == CorporateSector && cur.Reputation < -60:
		out = append(out, "CSA has initiated asset seizure protocols")
	}

	return out
}
