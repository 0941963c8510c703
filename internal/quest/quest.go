// Package quest generates procedural quests from faction standings and player
// history, and holds the status/objective rules callers apply afterwards.
package quest

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the kind of quest.
type Type string

const (
	Delivery        Type = "delivery"
	Rescue          Type = "rescue"
	Sabotage        Type = "sabotage"
	Investigation   Type = "investigation"
	FactionConflict Type = "faction_conflict"
	ForceAwakening  Type = "force_awakening"
	GalacticMystery Type = "galactic_mystery"
)

// Status is a quest's lifecycle state.
type Status string

const (
	Active    Status = "active"
	Completed Status = "completed"
	Failed    Status = "failed"
	Abandoned Status = "abandoned"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{Active, Completed, Failed, Abandoned}

// ErrInvalidStatus is returned for a status outside Statuses.
var ErrInvalidStatus = errors.New("invalid quest status")

// Difficulty labels.
const (
	Easy      = "Easy"
	Medium    = "Medium"
	Hard      = "Hard"
	Legendary = "Legendary"
)

// Objective is one step of a quest.
type Objective struct {
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	AddedAt     *time.Time `json:"added_at,omitempty"`
}

// Outcome is what the player chose while completing a quest. Adaptive
// generation reads it back from history.
type Outcome struct {
	Faction     string `json:"faction_chosen,omitempty"`
	MoralChoice string `json:"moral_choice,omitempty"`
	Approach    string `json:"approach,omitempty"`
}

// Quest is a generated mission owned by one user.
type Quest struct {
	ID          string      `json:"id"`
	Owner       string      `json:"user"`
	Title       string      `json:"quest_title"`
	Type        Type        `json:"quest_type"`
	Description string      `json:"description"`
	Objectives  []Objective `json:"objectives"`
	Rewards     []string    `json:"rewards"`
	Status      Status      `json:"status"`
	Difficulty  string      `json:"difficulty"`
	Factions    []string    `json:"faction_involvement"`
	Outcome     *Outcome    `json:"outcome,omitempty"`
	Details     *Details    `json:"details,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at"`
}

func newQuest(owner string, now time.Time) Quest {
	return Quest{ID: uuid.NewString(), Owner: owner, Status: Active, CreatedAt: now}
}

func objectives(descriptions ...string) []Objective {
	out := make([]Objective, len(descriptions))
	for i, d := range descriptions {
		out[i] = Objective{Description: d}
	}
	return out
}

// RoutineMission is the quest handed out when nothing better can be generated.
func RoutineMission(owner string, now time.Time) Quest {
	q := newQuest(owner, now)
	q.Title = "Routine Mission"
	q.Type = Delivery
	q.Description = "A simple transport job has become available."
	q.Objectives = objectives("Deliver package to destination", "Avoid Imperial patrols")
	q.Rewards = []string{"1000 credits", "Faction reputation +5"}
	q.Difficulty = Easy
	q.Factions = []string{"Independent"}
	return q
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// SetStatus moves a quest to a new status. Completing stamps CompletedAt.
func SetStatus(q *Quest, status string, now time.Time) error {
	st, err := ParseStatus(status)
	if err != nil {
		return err
	}
	q.Status = st
	if st == Completed {
		t := now
		q.CompletedAt = &t
	}
	return nil
}

// AddObjective appends a caller-authored objective.
func AddObjective(q *Quest, description string, now time.Time) {
	t := now
	q.Objectives = append(q.Objectives, Objective{Description: description, AddedAt: &t})
}

// GroupByStatus buckets quests by status, keeping input order. Every status has
// a bucket, possibly empty.
func GroupByStatus(quests []Quest) map[Status][]Quest {
	out := make(map[Status][]Quest, len(Statuses))
	for _, st := range Statuses {
		out[st] = []Quest{}
	}
	for _, q := range quests {
		if _, ok := out[q.Status]; ok {
			out[q.Status] = append(out[q.Status], q)
		}
	}
	return out
}
