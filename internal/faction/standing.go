// Package faction models a player's standing with each galactic faction and the
// rules that move reputation, awareness and resources in response to player actions.
package faction

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemOwner owns the shared default standing every user inherits from.
const SystemOwner = "system"

// Bounds for standing values.
const (
	MinReputation = -100
	MaxReputation = 100
	MinAwareness  = 0
	MaxAwareness  = 100
	MinResources  = 100
	MaxResources  = 1000
)

// HuntPlayer is the operation a faction runs once it is tracking the player closely.
const HuntPlayer = "Hunt player"

// ErrUnknownFaction is returned when neither a user nor a system standing exists.
var ErrUnknownFaction = errors.New("unknown faction")

// Standing is one owner's reputation/awareness/resources tuple with a faction.
type Standing struct {
	ID               string    `json:"id" db:"id"`
	Faction          string    `json:"faction_name" db:"faction_name"`
	Owner            string    `json:"user" db:"owner"`
	Reputation       int       `json:"reputation" db:"reputation"`
	Awareness        int       `json:"awareness" db:"awareness"`
	Resources        int       `json:"resources" db:"resources"`
	Goals            []string  `json:"goals" db:"-"`
	ActiveOperations []string  `json:"active_operations" db:"-"`
	LastInteraction  time.Time `json:"last_interaction" db:"last_interaction"`
}

// Clone returns a copy that shares no slices with s.
func (s Standing) Clone() Standing {
	s.Goals = append([]string(nil), s.Goals...)
	s.ActiveOperations = append([]string(nil), s.ActiveOperations...)
	return s
}

// HasOperation reports whether op is in the active operations list.
func (s Standing) HasOperation(op string) bool {
	for _, o := range s.ActiveOperations {
		if o == op {
			return true
		}
	}
	return false
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampReputation bounds a reputation value.
func ClampReputation(v int) int { return Clamp(v, MinReputation, MaxReputation) }

// ClampAwareness bounds an awareness value.
func ClampAwareness(v int) int { return Clamp(v, MinAwareness, MaxAwareness) }

// EnsureUserStanding returns the owner's standing with a faction, creating it from
// the matching system default when the owner has none yet. A freshly created
// standing takes its resources, goals and operations from the default and its
// reputation/awareness from the supplied deltas. An existing standing has the
// deltas added. Both paths clamp.
func EnsureUserStanding(existing *Standing, systemDefault *Standing, owner, factionName string, repDelta, awarenessDelta int, now time.Time) (Standing, bool, error) {
	if existing != nil {
		s := AdjustReputation(*existing, repDelta, awarenessDelta)
		s.LastInteraction = now
		return s, false, nil
	}
	if systemDefault == nil {
		return Standing{}, false, fmt.Errorf("%w: %s", ErrUnknownFaction, factionName)
	}
	s := systemDefault.Clone()
	s.ID = uuid.NewString()
	s.Owner = owner
	s.Faction = factionName
	s.Reputation = ClampReputation(repDelta)
	s.Awareness = ClampAwareness(awarenessDelta)
	s.LastInteraction = now
	return s, true, nil
}

// AdjustReputation adds deltas to a standing and re-clamps.
func AdjustReputation(s Standing, repDelta, awarenessDelta int) Standing {
	s = s.Clone()
	s.Reputation = ClampReputation(s.Reputation + repDelta)
	s.Awareness = ClampAwareness(s.Awareness + awarenessDelta)
	return s
}

// ApplyDeltas folds a faction AI turn's deltas into a durable standing.
func ApplyDeltas(s Standing, resourceDelta, repDelta, awarenessDelta int, now time.Time) Standing {
	s = AdjustReputation(s, repDelta, awarenessDelta)
	s.Resources = Clamp(s.Resources+resourceDelta, MinResources, MaxResources)
	s.LastInteraction = now
	return s
}

// Relationship labels a reputation value.
func Relationship(reputation int) string {
	switch {
	case reputation < -50:
		return "Hostile"
	case reputation < -10:
		return "Unfriendly"
	case reputation < 10:
		return "Neutral"
	case reputation < 50:
		return "Friendly"
	default:
		return "Allied"
	}
}

// ThreatLevel labels an awareness value.
func ThreatLevel(awareness int) string {
	switch {
	case awareness < 30:
		return "Low"
	case awareness < 70:
		return "Medium"
	default:
		return "High"
	}
}

// RelationshipView is the qualitative summary of one standing.
type RelationshipView struct {
	Reputation   int    `json:"reputation"`
	Awareness    int    `json:"awareness"`
	ThreatLevel  string `json:"threat_level"`
	Relationship string `json:"relationship_status"`
}

// Relationships summarizes every standing by faction name. Later entries win,
// so callers list system defaults before user standings.
func Relationships(standings []Standing) map[string]RelationshipView {
	out := make(map[string]RelationshipView, len(standings))
	for _, s := range standings {
		out[s.Faction] = RelationshipView{
			Reputation:   s.Reputation,
			Awareness:    s.Awareness,
			ThreatLevel:  ThreatLevel(s.Awareness),
			Relationship: Relationship(s.Reputation),
		}
	}
	return out
}

// GalaxyMomentum measures how stirred up the galaxy is around a player.
func GalaxyMomentum(standings []Standing) int {
	total := 0
	for _, s := range standings {
		contribution := s.Awareness
		if s.Reputation > 60 || s.Reputation < -60 {
			contribution += 20
		}
		total += contribution
	}
	if total > 100 {
		return 100
	}
	return total
}
