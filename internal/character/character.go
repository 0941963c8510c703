// Package character holds the player character sheet: one per user, written by
// the companion client and kept in step with the user's Force alignment.
package character

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/galaxy-of-consequence/internal/force"
)

// ErrInvalid is returned for a sheet missing a required field or carrying an
// unknown alignment.
var ErrInvalid = errors.New("invalid character")

// Character is a player's sheet.
type Character struct {
	ID                string          `json:"id"`
	Owner             string          `json:"user"`
	Name              string          `json:"name"`
	Species           string          `json:"species"`
	Homeworld         string          `json:"homeworld"`
	Background        string          `json:"background"`
	Allegiance        string          `json:"allegiance"`
	ForceSensitive    bool            `json:"force_sensitive"`
	ForceAlignment    force.Alignment `json:"force_alignment"`
	Appearance        string          `json:"appearance"`
	Equipment         []string        `json:"equipment"`
	Skills            []string        `json:"skills"`
	PersonalGoal      string          `json:"personal_goal"`
	Contacts          string          `json:"contacts"`
	FactionReputation map[string]int  `json:"faction_reputation"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

var alignments = []force.Alignment{force.Light, force.Dark, force.Balance, force.Gray, force.Conflicted}

// Upsert validates a submitted sheet and merges it over the stored one, if
// any. The stored ID and creation time survive; everything else is replaced.
func Upsert(existing *Character, in Character, now time.Time) (Character, error) {
	if in.Owner == "" {
		return Character{}, fmt.Errorf("%w: missing user", ErrInvalid)
	}
	if in.Name == "" {
		return Character{}, fmt.Errorf("%w: missing name", ErrInvalid)
	}
	if in.ForceAlignment == "" {
		in.ForceAlignment = force.Balance
	}
	if !slices.Contains(alignments, in.ForceAlignment) {
		return Character{}, fmt.Errorf("%w: unknown alignment %q", ErrInvalid, in.ForceAlignment)
	}

	in.Equipment = nonNil(in.Equipment)
	in.Skills = nonNil(in.Skills)
	if in.FactionReputation == nil {
		in.FactionReputation = map[string]int{}
	} else {
		in.FactionReputation = maps.Clone(in.FactionReputation)
	}

	if existing != nil {
		in.ID = existing.ID
		in.CreatedAt = existing.CreatedAt
	} else {
		in.ID = uuid.NewString()
		in.CreatedAt = now.UTC()
	}
	in.UpdatedAt = now.UTC()
	return in, nil
}

// SyncAlignment records the alignment a moral choice left the player with.
func SyncAlignment(c Character, a force.Alignment, now time.Time) Character {
	c.ForceAlignment = a
	c.UpdatedAt = now.UTC()
	return c
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return slices.Clone(v)
}
