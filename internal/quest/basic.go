package quest

import (
	"fmt"
	"strings"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/entropy"
	"github.com/talgya/galaxy-of-consequence/internal/faction"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
)

// Generator builds quests. Every random pick draws from Src.
type Generator struct {
	Src      entropy.Source
	Narrator *llm.Narrator
	Now      func() time.Time
}

// NewGenerator returns a Generator on the wall clock.
func NewGenerator(src entropy.Source, narrator *llm.Narrator) *Generator {
	return &Generator{Src: src, Narrator: narrator, Now: time.Now}
}

func (g *Generator) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

type template struct {
	titles       []string
	descriptions []string
}

var basicTypes = []Type{Delivery, Rescue, Sabotage, Investigation}

var basicTemplates = map[Type]template{
	Delivery: {
		titles: []string{"Critical Supply Run", "Urgent Package Delivery", "Classified Transport Mission"},
		descriptions: []string{
			"A {faction} contact needs sensitive materials delivered to {location}.",
			"Transport classified cargo through {threat} territory.",
			"Rush delivery of medical supplies to {location}.",
		},
	},
	Rescue: {
		titles: []string{"Extraction Operation", "Rescue Mission", "Prisoner Liberation"},
		descriptions: []string{
			"A {faction} agent is trapped behind enemy lines.",
			"Extract civilians from {location} before {threat} arrives.",
			"Break out a political prisoner from {enemy_faction} custody.",
		},
	},
	Sabotage: {
		titles: []string{"Covert Operations", "Sabotage Mission", "Disruption Protocol"},
		descriptions: []string{
			"Disable {enemy_faction} communications on {location}.",
			"Sabotage {enemy_faction} supply lines.",
			"Plant surveillance devices in {enemy_faction} facilities.",
		},
	},
	Investigation: {
		titles: []string{"Intelligence Gathering", "Mystery Investigation", "Corporate Espionage"},
		descriptions: []string{
			"Investigate suspicious {enemy_faction} activities.",
			"Uncover the truth behind recent attacks on {faction} assets.",
			"Gather intelligence on {enemy_faction} fleet movements.",
		},
	},
}

var basicLocations = []string{"Tatooine", "Coruscant", "Naboo", "Kashyyyk", "Ryloth"}

var equipmentRewards = []string{
	"Upgraded blaster",
	"Advanced comlink",
	"Stealth field generator",
	"Medical supplies",
	"Ship upgrade components",
}

// Basic generates a quest from the owner's visible standings. It never fails:
// with no standings, or no faction to oppose the quest giver, it returns the
// routine mission.
func (g *Generator) Basic(owner string, standings []faction.Standing) Quest {
	now := g.now()
	if len(standings) == 0 {
		return RoutineMission(owner, now)
	}

	var friendly, hostile []int
	for i, s := range standings {
		if s.Reputation > 30 {
			friendly = append(friendly, i)
		}
		if s.Reputation < -30 {
			hostile = append(hostile, i)
		}
	}

	var qt Type
	switch {
	case len(hostile) > 0 && entropy.Chance(g.Src, 0.4):
		qt = entropy.Pick(g.Src, []Type{Sabotage, Investigation})
	case len(friendly) > 0 && entropy.Chance(g.Src, 0.5):
		qt = entropy.Pick(g.Src, []Type{Delivery, Rescue})
	default:
		qt = entropy.Pick(g.Src, basicTypes)
	}
	tmpl := basicTemplates[qt]

	var giver int
	if len(friendly) > 0 {
		giver = entropy.Pick(g.Src, friendly)
	} else {
		giver = entropy.Index(g.Src, len(standings))
	}

	var enemy int
	if len(hostile) > 0 {
		enemy = entropy.Pick(g.Src, hostile)
	} else {
		others := make([]int, 0, len(standings)-1)
		for i := range standings {
			if i != giver {
				others = append(others, i)
			}
		}
		if len(others) == 0 {
			return RoutineMission(owner, now)
		}
		enemy = entropy.Pick(g.Src, others)
	}

	giverName := standings[giver].Faction
	enemyName := standings[enemy].Faction

	title := entropy.Pick(g.Src, tmpl.titles)
	description := entropy.Pick(g.Src, tmpl.descriptions)
	location := entropy.Pick(g.Src, basicLocations)
	description = strings.NewReplacer(
		"{faction}", giverName,
		"{enemy_faction}", enemyName,
		"{location}", location,
		"{threat}", enemyName,
	).Replace(description)

	q := newQuest(owner, now)
	q.Title = title
	q.Type = qt
	q.Description = description
	q.Objectives = basicObjectives(qt, giverName, enemyName)
	q.Rewards = g.basicRewards(qt, standings[giver].Reputation)
	q.Difficulty = difficultyFromAwareness(standings[enemy].Awareness)
	q.Factions = []string{giverName, enemyName}
	return q
}

func basicObjectives(qt Type, giver, enemy string) []Objective {
	switch qt {
	case Delivery:
		return objectives(
			fmt.Sprintf("Obtain package from %s contact", giver),
			"Navigate to destination safely",
			"Deliver package without detection",
			"Report back to quest giver",
		)
	case Rescue:
		return objectives(
			fmt.Sprintf("Locate %s agent", giver),
			fmt.Sprintf("Avoid %s patrols", enemy),
			"Extract target safely",
			"Escort to safe house",
		)
	case Sabotage:
		return objectives(
			fmt.Sprintf("Infiltrate %s facility", enemy),
			"Plant surveillance devices",
			"Avoid security detection",
			"Escape without raising alarms",
		)
	case Investigation:
		return objectives(
			"Gather intelligence at location",
			"Interview witnesses",
			"Analyze collected data",
			"Report findings",
		)
	default:
		return objectives("Complete the mission")
	}
}

// basicRewards pays more for a friendly giver and less for a hostile one.
func (g *Generator) basicRewards(qt Type, giverReputation int) []string {
	credits := entropy.IntRange(g.Src, 500, 2000)
	switch {
	case giverReputation > 50:
		credits = int(float64(credits) * 1.5)
	case giverReputation < -30:
		credits = int(float64(credits) * 0.7)
	}

	rewards := []string{fmt.Sprintf("%d credits", credits)}
	if entropy.Chance(g.Src, 0.6) {
		rewards = append(rewards, "Faction reputation +10")
	}
	if entropy.Chance(g.Src, 0.3) {
		rewards = append(rewards, entropy.Pick(g.Src, equipmentRewards))
	}
	if qt == Rescue && entropy.Chance(g.Src, 0.4) {
		rewards = append(rewards, "New ally contact")
	}
	return rewards
}

func difficultyFromAwareness(awareness int) string {
	switch {
	case awareness > 60:
		return Hard
	case awareness > 30:
		return Medium
	default:
		return Easy
	}
}
