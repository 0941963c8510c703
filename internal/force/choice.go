package force

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/galaxy-of-consequence/internal/entropy"
)

// Severity is how far a moral choice's consequences reach.
type Severity string

const (
	Minor    Severity = "minor"
	Moderate Severity = "moderate"
	Major    Severity = "major"
	Galactic Severity = "galactic"
)

// ParseSeverity maps unknown or empty values to Moderate.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case Minor, Moderate, Major, Galactic:
		return Severity(s)
	default:
		return Moderate
	}
}

const baseShift = 10

// Shift is one alignment's signed point delta.
type Shift struct {
	Alignment Alignment `json:"alignment"`
	Delta     int       `json:"delta"`
}

// MoralChoice is an immutable record of a decision and its raw shifts.
// Shifts are kept before corruption damping.
type MoralChoice struct {
	ID              string         `json:"choice_id"`
	Description     string         `json:"description"`
	Shifts          []Shift        `json:"alignment_shift"`
	NarrativeWeight float64        `json:"narrative_weight"`
	Severity        Severity       `json:"consequence_level"`
	FactionImpacts  map[string]int `json:"faction_impacts"`
	ForceEcho       bool           `json:"force_echo"`
	Timestamp       time.Time      `json:"timestamp"`
}

// shift returns the delta for one alignment, zero when absent.
func (c MoralChoice) shift(a Alignment) int {
	for _, s := range c.Shifts {
		if s.Alignment == a {
			return s.Delta
		}
	}
	return 0
}

// dominant is the shift with the largest magnitude; ties keep the earlier entry.
func (c MoralChoice) dominant() Shift {
	var best Shift
	for i, s := range c.Shifts {
		if i == 0 || absInt(s.Delta) > absInt(best.Delta) {
			best = s
		}
	}
	return best
}

// ChoiceContext describes the situation a choice is made in.
type ChoiceContext struct {
	Type           string         `json:"type"`
	Description    string         `json:"description"`
	Severity       string         `json:"consequence_level"`
	FactionImpacts map[string]int `json:"faction_impacts"`
}

type dilemma struct {
	description  string
	consequences []string
}

var dilemmas = map[string]dilemma{
	"sacrifice_dilemma": {
		description:  "Save one to doom many, or sacrifice few for the greater good",
		consequences: []string{"Ripples through Force connections", "Affects faction relationships", "Changes NPC reactions"},
	},
	"power_temptation": {
		description:  "Use forbidden knowledge or power to achieve righteous goals",
		consequences: []string{"Force corruption spreads", "Dark side temptations increase", "Ancient evils stir"},
	},
	"mercy_vs_justice": {
		description:  "Show mercy to an enemy or deliver absolute justice",
		consequences: []string{"Reputation shifts across factions", "Future encounters change", "Moral echoes in the Force"},
	},
}

// Consequence is one narrative outcome of a choice.
type Consequence struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Magnitude   float64   `json:"magnitude,omitempty"`
	Faction     string    `json:"faction,omitempty"`
	Impact      int       `json:"impact,omitempty"`
	Range       string    `json:"range,omitempty"`
	Alignment   Alignment `json:"alignment,omitempty"`
}

// AlignmentChange records point totals around a choice.
type AlignmentChange struct {
	Before Points  `json:"before"`
	After  Points  `json:"after"`
	Shifts []Shift `json:"shifts"`
}

// Echo is a disturbance other Force users can feel.
type Echo struct {
	Alignment Alignment `json:"alignment"`
	Strength  float64   `json:"strength"`
	Message   string    `json:"message"`
}

// GalacticImpact is a faction-wide effect of a major choice.
type GalacticImpact struct {
	Faction string `json:"faction"`
	Impact  int    `json:"impact"`
	Reach   string `json:"reach"`
}

// ChoiceResult is everything ApplyMoralChoice produced.
type ChoiceResult struct {
	Choice            MoralChoice      `json:"moral_choice"`
	AlignmentChanges  AlignmentChange  `json:"alignment_changes"`
	NewAlignment      Alignment        `json:"new_alignment"`
	SensitivityChange float64          `json:"force_sensitivity_change"`
	Consequences      []Consequence    `json:"narrative_consequences"`
	Echoes            []Echo           `json:"force_echoes"`
	GalacticImpacts   []GalacticImpact `json:"galactic_impacts"`
	DestinyShift      float64          `json:"destiny_shift"`
}

// Processor applies moral choices to profiles.
type Processor struct {
	Src entropy.Source
	Now func() time.Time
}

// NewProcessor returns a Processor drawing from src.
func NewProcessor(src entropy.Source) *Processor {
	return &Processor{Src: src, Now: time.Now}
}

func (p *Processor) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// ApplyMoralChoice records a choice on the profile and moves its points.
// selection is "light", "dark" or anything else for a balanced choice.
func (p *Processor) ApplyMoralChoice(profile *Profile, ctx ChoiceContext, selection string) ChoiceResult {
	choice := p.buildChoice(profile, ctx, selection)
	changes := applyShifts(profile, choice)
	consequences := narrativeConsequences(choice)

	profile.MoralHistory = append(profile.MoralHistory, choice)
	profile.Refresh()

	var sensitivityChange float64
	if choice.ForceEcho {
		sensitivityChange = entropy.Uniform(p.Src, 0.01, 0.05)
		profile.Sensitivity = min(1.0, profile.Sensitivity+sensitivityChange)
	}

	return ChoiceResult{
		Choice:            choice,
		AlignmentChanges:  changes,
		NewAlignment:      profile.Alignment,
		SensitivityChange: sensitivityChange,
		Consequences:      consequences,
		Echoes:            echoes(profile, choice),
		GalacticImpacts:   galacticImpacts(choice),
		DestinyShift:      destinyShift(choice),
	}
}

func (p *Processor) buildChoice(profile *Profile, ctx ChoiceContext, selection string) MoralChoice {
	d, ok := dilemmas[ctx.Type]
	if !ok {
		d = dilemmas["sacrifice_dilemma"]
	}

	var shifts []Shift
	switch selection {
	case string(Light):
		shifts = []Shift{{Light, baseShift}, {Dark, -baseShift / 2}, {Balance, baseShift / 2}}
	case string(Dark):
		shifts = []Shift{{Dark, baseShift}, {Light, -baseShift / 2}, {Balance, -baseShift / 2}}
	default:
		shifts = []Shift{{Balance, baseShift}, {Light, 0}, {Dark, 0}}
	}

	multiplier := 1 + profile.Sensitivity*0.5
	for i := range shifts {
		shifts[i].Delta = truncate(float64(shifts[i].Delta) * multiplier)
	}

	description := ctx.Description
	if description == "" {
		description = d.description
	}

	impacts := make(map[string]int, len(ctx.FactionImpacts))
	for k, v := range ctx.FactionImpacts {
		impacts[k] = v
	}

	return MoralChoice{
		ID:              fmt.Sprintf("choice_%d_%s", len(profile.MoralHistory), uuid.NewString()),
		Description:     description,
		Shifts:          shifts,
		NarrativeWeight: entropy.Uniform(p.Src, 0.3, 1.0),
		Severity:        ParseSeverity(ctx.Severity),
		FactionImpacts:  impacts,
		ForceEcho:       profile.Sensitivity > 0.5,
		Timestamp:       p.now(),
	}
}

// applyShifts moves the profile's points. Dark deltas are damped by corruption
// resistance before they land.
func applyShifts(profile *Profile, choice MoralChoice) AlignmentChange {
	before := profile.Points
	for _, s := range choice.Shifts {
		switch s.Alignment {
		case Light:
			profile.Points.Light = clampPoints(profile.Points.Light + s.Delta)
		case Dark:
			effective := float64(s.Delta) * (1 - profile.CorruptionResistance*0.3)
			profile.Points.Dark = clampPoints(profile.Points.Dark + truncate(effective))
		case Balance:
			profile.Points.Balance = clampPoints(profile.Points.Balance + s.Delta)
		}
	}
	return AlignmentChange{
		Before: before,
		After:  profile.Points,
		Shifts: append([]Shift(nil), choice.Shifts...),
	}
}

func narrativeConsequences(choice MoralChoice) []Consequence {
	out := []Consequence{{
		Type:        "immediate",
		Description: "Your choice echoes through the Force",
		Magnitude:   choice.NarrativeWeight,
	}}

	for _, faction := range sortedKeys(choice.FactionImpacts) {
		impact := choice.FactionImpacts[faction]
		verb := "deteriorates"
		if impact > 0 {
			verb = "improves"
		}
		out = append(out, Consequence{
			Type:        "faction_relationship",
			Faction:     faction,
			Impact:      impact,
			Description: fmt.Sprintf("Relationship with %s %s", faction, verb),
		})
	}

	if choice.ForceEcho {
		reach := "local"
		if choice.Severity == Galactic {
			reach = "galactic"
		}
		out = append(out, Consequence{
			Type:        "force_disturbance",
			Description: "Your actions create ripples in the Force felt by other Force users",
			Range:       reach,
		})
	}

	if d := choice.dominant(); absInt(d.Delta) > 15 {
		out = append(out, Consequence{
			Type:        "character_development",
			Alignment:   d.Alignment,
			Description: fmt.Sprintf("Your character undergoes significant %s side development", d.Alignment),
		})
	}

	return out
}

// echoes are felt only when the choice echoed; strength scales with how
// attuned the chooser is.
func echoes(profile *Profile, choice MoralChoice) []Echo {
	if !choice.ForceEcho {
		return nil
	}
	d := choice.dominant()
	return []Echo{{
		Alignment: d.Alignment,
		Strength:  min(1.0, choice.NarrativeWeight*profile.Sensitivity),
		Message:   fmt.Sprintf("A wave of %s energy spreads from %s's choice", d.Alignment, profile.Owner),
	}}
}

// galacticImpacts amplifies faction impacts for major and galactic choices.
func galacticImpacts(choice MoralChoice) []GalacticImpact {
	var factor int
	switch choice.Severity {
	case Major:
		factor = 1
	case Galactic:
		factor = 2
	default:
		return nil
	}
	var out []GalacticImpact
	for _, faction := range sortedKeys(choice.FactionImpacts) {
		out = append(out, GalacticImpact{
			Faction: faction,
			Impact:  choice.FactionImpacts[faction] * factor,
			Reach:   string(choice.Severity),
		})
	}
	return out
}

// destinyShift is how far a choice bends the chooser's fate, in [0, 1].
func destinyShift(choice MoralChoice) float64 {
	return min(1.0, choice.NarrativeWeight*float64(absInt(choice.dominant().Delta))/20)
}

// Consequences lists the stock narrative outcomes of a dilemma type.
func Consequences(dilemmaType string) []string {
	d, ok := dilemmas[dilemmaType]
	if !ok {
		d = dilemmas["sacrifice_dilemma"]
	}
	return append([]string(nil), d.consequences...)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
