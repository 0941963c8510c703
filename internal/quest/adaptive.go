package quest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/talgya/galaxy-of-consequence/internal/entropy"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
)

// BranchingPath is a way the quest can escalate.
type BranchingPath struct {
	Trigger       string `json:"trigger"`
	Consequence   string `json:"consequence"`
	FactionImpact string `json:"faction_impact"`
	ForceShift    int    `json:"force_alignment_shift"`
}

// Dilemma is a moral choice offered during the quest.
type Dilemma struct {
	Situation     string `json:"situation"`
	LightChoice   string `json:"light_choice"`
	DarkChoice    string `json:"dark_choice"`
	NeutralChoice string `json:"neutral_choice"`
	Consequences  string `json:"consequences"`
}

// AdaptiveElements are the randomized set pieces of an adaptive quest.
type AdaptiveElements struct {
	Location     string  `json:"location"`
	KeyNPC       string  `json:"key_npc"`
	Complication string  `json:"complication"`
	Tension      float64 `json:"faction_tension_level"`
}

// NarrativeState tracks story progress once the quest is underway.
type NarrativeState struct {
	Phase               string   `json:"current_phase"`
	CompletedObjectives []string `json:"completed_objectives"`
	FactionDiscoveries  []string `json:"faction_discoveries"`
	ForceEncounters     []string `json:"force_encounters"`
}

// Details is the extra structure only adaptive quests carry.
type Details struct {
	BranchingPaths   []BranchingPath  `json:"branching_paths"`
	MoralChoices     []Dilemma        `json:"moral_choices"`
	AdaptiveElements AdaptiveElements `json:"adaptive_elements"`
	NarrativeState   NarrativeState   `json:"narrative_state"`
}

// AlignmentInput is the caller's view of the player's Force alignment.
// Sensitivity is on a 0..100 scale.
type AlignmentInput struct {
	Light       int `json:"light"`
	Dark        int `json:"dark"`
	Balance     int `json:"balance"`
	Sensitivity int `json:"sensitivity"`
}

// PlayerProfile is what adaptive generation learns from quest history.
type PlayerProfile struct {
	FactionLoyalty    map[string]int `json:"faction_loyalty"`
	MoralTendency     string         `json:"moral_tendency"`
	PreferredApproach string         `json:"preferred_approach"`
	Sensitivity       int            `json:"force_sensitivity"`
	CompletedQuests   int            `json:"completed_quests"`
}

type adaptiveTemplate struct {
	objectives  []string
	escalations []string
	dilemmas    []string
}

var adaptiveTemplates = map[Type]adaptiveTemplate{
	FactionConflict: {
		objectives:  []string{"infiltrate_facility", "extract_intel", "eliminate_target", "sabotage_operations"},
		escalations: []string{"discovery_leads_to_larger_conspiracy", "mission_compromised_requires_extraction", "success_opens_new_faction_opportunities"},
		dilemmas:    []string{"civilian_casualties", "betraying_allies", "choosing_between_factions"},
	},
	ForceAwakening: {
		objectives:  []string{"investigate_force_disturbance", "protect_force_sensitive", "confront_dark_side_temptation", "uncover_ancient_knowledge"},
		escalations: []string{"force_vision_reveals_future_threat", "dark_side_corruption_spreads", "ancient_sith_artifact_discovered"},
		dilemmas:    []string{"use_dark_powers_for_good", "sacrifice_one_to_save_many", "trust_in_force_vs_logic"},
	},
	GalacticMystery: {
		objectives:  []string{"investigate_disappearances", "decode_ancient_message", "track_smuggling_operation", "uncover_conspiracy"},
		escalations: []string{"mystery_connects_to_larger_threat", "investigation_attracts_dangerous_attention", "truth_has_galactic_implications"},
		dilemmas:    []string{"expose_truth_vs_protect_innocents", "work_with_criminals_for_greater_good", "personal_gain_vs_galactic_responsibility"},
	},
}

var titleWords = map[Type]struct {
	format string
	words  []string
}{
	FactionConflict: {"Shadow War: %s Conspiracy", []string{"Imperial", "Rebel", "Corporate"}},
	ForceAwakening:  {"Force Echoes: %s Legacy", []string{"Ancient", "Dark", "Lost"}},
	GalacticMystery: {"Deep Space: %s Truth", []string{"Missing", "Hidden", "Forgotten"}},
}

var (
	adaptiveLocations = []string{"Coruscant", "Tatooine", "Dagobah", "Hoth", "Endor", "Kashyyyk", "Naboo", "Kamino"}
	adaptiveNPCs      = []string{"Imperial Officer", "Rebel Spy", "Smuggler", "Jedi Survivor", "Sith Apprentice", "Corporate Executive", "Bounty Hunter", "Force Sensitive"}
	complications     = []string{"Imperial ambush", "Betrayal by ally", "Force vision", "Equipment failure", "Innocent bystanders", "Time pressure", "Moral choice"}
	triggers          = []string{"succeeds", "fails", "discovers evidence"}
	forceRewards      = []string{"Ancient lightsaber crystal", "Force technique scroll", "Meditation chamber access", "Jedi holocron fragment"}
)

var approachRewards = map[string][]string{
	"stealth":   {"Stealth field generator", "Silent blaster", "Infiltration kit"},
	"combat":    {"Advanced armor plating", "Heavy blaster rifle", "Combat stimulants"},
	"diplomacy": {"Diplomatic immunity badge", "Translation droid", "Noble house favor"},
	"balanced":  {"Multi-tool", "Emergency supplies", "Versatile equipment pack"},
}

const narratorSystem = "You are a Star Wars quest narrator. Create an engaging quest description that sets up the scenario, explains the stakes, and hints at deeper consequences."

// AnalyzeProfile reads the last ten history entries.
func AnalyzeProfile(history []Quest, alignment AlignmentInput) PlayerProfile {
	p := PlayerProfile{
		FactionLoyalty:    map[string]int{"Empire": 0, "Rebellion": 0, "Corporate": 0},
		MoralTendency:     "neutral",
		PreferredApproach: "balanced",
		Sensitivity:       alignment.Sensitivity,
		CompletedQuests:   len(history),
	}
	recent := history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	for _, q := range recent {
		if q.Outcome == nil {
			continue
		}
		if _, ok := p.FactionLoyalty[q.Outcome.Faction]; ok {
			p.FactionLoyalty[q.Outcome.Faction]++
		}
		switch q.Outcome.MoralChoice {
		case "light":
			if p.MoralTendency == "dark" {
				p.MoralTendency = "conflicted"
			} else {
				p.MoralTendency = "light"
			}
		case "dark":
			if p.MoralTendency == "light" {
				p.MoralTendency = "conflicted"
			} else {
				p.MoralTendency = "dark"
			}
		}
		switch q.Outcome.Approach {
		case "stealth", "diplomacy", "combat":
			p.PreferredApproach = q.Outcome.Approach
		}
	}
	return p
}

// collapse keys standings by faction name. A later standing replaces an
// earlier one but keeps its position.
func collapse(standings []faction.Standing) ([]string, map[string]faction.Standing) {
	var names []string
	byName := make(map[string]faction.Standing, len(standings))
	for _, s := range standings {
		if _, ok := byName[s.Faction]; !ok {
			names = append(names, s.Faction)
		}
		byName[s.Faction] = s
	}
	return names, byName
}

func totalTension(byName map[string]faction.Standing) int {
	total := 0
	for _, s := range byName {
		total += abs(s.Reputation)
	}
	return total
}

// SelectType favors conflict when factions are polarized, then the Force for
// sensitive players, then mystery.
func SelectType(tension int, p PlayerProfile) Type {
	switch {
	case tension > 150:
		return FactionConflict
	case p.Sensitivity > 50:
		return ForceAwakening
	default:
		return GalacticMystery
	}
}

type tensionPair struct {
	tension int
	a, b    string
}

// selectFactions picks the pair with the widest reputation gap. Ties go to the
// pair whose names sort last. With fewer than two factions it samples.
func (g *Generator) selectFactions(names []string, byName map[string]faction.Standing) []string {
	var pairs []tensionPair
	for i, a := range names {
		for _, b := range names[i+1:] {
			pairs = append(pairs, tensionPair{abs(byName[a].Reputation - byName[b].Reputation), a, b})
		}
	}
	if len(pairs) == 0 {
		return entropy.Sample(g.Src, names, min(2, len(names)))
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].tension != pairs[j].tension {
			return pairs[i].tension > pairs[j].tension
		}
		if pairs[i].a != pairs[j].a {
			return pairs[i].a > pairs[j].a
		}
		return pairs[i].b > pairs[j].b
	})
	return []string{pairs[0].a, pairs[0].b}
}

// Difficulty scales with experience and how polarized the galaxy is.
func Difficulty(completed int, tension int) string {
	total := float64(completed) + float64(tension)/100
	switch {
	case total < 5:
		return Easy
	case total < 15:
		return Medium
	case total < 30:
		return Hard
	default:
		return Legendary
	}
}

// Adaptive generates a quest shaped by galaxy tension and the player's history.
func (g *Generator) Adaptive(ctx context.Context, owner string, standings []faction.Standing, history []Quest, alignment AlignmentInput) Quest {
	profile := AnalyzeProfile(history, alignment)
	names, byName := collapse(standings)
	tension := totalTension(byName)
	qt := SelectType(tension, profile)
	tmpl := adaptiveTemplates[qt]

	primary := entropy.Pick(g.Src, tmpl.objectives)
	secondary := entropy.Sample(g.Src, tmpl.objectives, min(2, len(tmpl.objectives)-1))
	factions := g.selectFactions(names, byName)

	tw := titleWords[qt]
	title := fmt.Sprintf(tw.format, entropy.Pick(g.Src, tw.words))

	objs := objectives(humanize(primary))
	for _, s := range secondary {
		objs = append(objs, Objective{Description: humanize(s)})
	}

	paths := make([]BranchingPath, 0, len(tmpl.escalations))
	for _, esc := range tmpl.escalations {
		bp := BranchingPath{
			Trigger:     "Player " + entropy.Pick(g.Src, triggers),
			Consequence: strings.ReplaceAll(esc, "_", " "),
		}
		if len(factions) > 0 {
			bp.FactionImpact = entropy.Pick(g.Src, factions)
		}
		if strings.Contains(esc, "force") {
			bp.ForceShift = entropy.IntRange(g.Src, -10, 10)
		}
		paths = append(paths, bp)
	}

	dilemmas := make([]Dilemma, 0, len(tmpl.dilemmas))
	for _, d := range tmpl.dilemmas {
		dilemmas = append(dilemmas, Dilemma{
			Situation:     strings.ReplaceAll(d, "_", " "),
			LightChoice:   "Show mercy and seek peaceful resolution",
			DarkChoice:    "Use any means necessary to achieve goals",
			NeutralChoice: "Find a pragmatic middle ground",
			Consequences:  "Choice affects faction relationships and Force alignment",
		})
	}

	elements := AdaptiveElements{
		Location:     entropy.Pick(g.Src, adaptiveLocations),
		KeyNPC:       entropy.Pick(g.Src, adaptiveNPCs),
		Complication: entropy.Pick(g.Src, complications),
	}
	if len(byName) > 0 {
		elements.Tension = float64(tension) / float64(len(byName))
	}

	factionList := strings.Join(factions, ", ")
	prompt := fmt.Sprintf("Create a compelling quest narrative for: %s. Context: Quest type: %s, Factions: %s, Location: %s. Primary objective: %s",
		title, qt, factionList, elements.Location, primary)
	fallback := fmt.Sprintf("A new challenge emerges in the %s system involving %s.", elements.Location, factionList)
	description := g.Narrator.Text(ctx, narratorSystem, prompt, fallback)

	q := newQuest(owner, g.now())
	q.Title = title
	q.Type = qt
	q.Description = description
	q.Objectives = objs
	q.Factions = factions
	q.Difficulty = Difficulty(profile.CompletedQuests, tension)
	q.Rewards = g.adaptiveRewards(factions, profile)
	q.Details = &Details{
		BranchingPaths:   paths,
		MoralChoices:     dilemmas,
		AdaptiveElements: elements,
		NarrativeState: NarrativeState{
			Phase:               "initial",
			CompletedObjectives: []string{},
			FactionDiscoveries:  []string{},
			ForceEncounters:     []string{},
		},
	}
	return q
}

func (g *Generator) adaptiveRewards(factions []string, p PlayerProfile) []string {
	rewards := []string{fmt.Sprintf("%d credits", entropy.IntRange(g.Src, 800, 2000))}
	if len(factions) > 0 {
		f := entropy.Pick(g.Src, factions)
		rewards = append(rewards, fmt.Sprintf("%s reputation +%d", f, entropy.IntRange(g.Src, 10, 25)))
	}
	if p.Sensitivity > 30 {
		rewards = append(rewards, entropy.Pick(g.Src, forceRewards))
	}
	equipment, ok := approachRewards[p.PreferredApproach]
	if !ok {
		equipment = approachRewards["balanced"]
	}
	return append(rewards, entropy.Pick(g.Src, equipment))
}

// humanize turns a template key like "extract_intel" into "Extract Intel".
func humanize(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
