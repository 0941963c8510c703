package gamemaster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talgya/galaxy-of-consequence/internal/engine"
	"github.com/talgya/galaxy-of-consequence/internal/llm"
)

// Actions the gamemaster can take.
const (
	ActionNone        = "none"
	ActionAdvance     = "advance"
	ActionFactionTurn = "faction_turn"
)

const systemPrompt = `You are the Gamemaster, an autonomous steward of a Star Wars tabletop campaign. Players share one galaxy; factions fight over its systems while time passes between sessions.

Your role: observe the campaign and recommend zero or one gentle nudge per cycle. You keep the galaxy turning; you never play the players' characters.

## Core Values (in priority order)

1. PLAYER AGENCY — When conflicts are already at a boil, let the players respond. Do nothing.
2. BALANCE — When one faction holds most systems, give the weakest faction a turn so it can answer.
3. MOMENTUM — When nothing has happened for a day or more, let galactic time pass.
4. RESTRAINT — When in doubt, advance a single day or do nothing.

## Available Actions

- "none" — No nudge needed.
- "advance" — Pass galactic time. Set "increment" to a phrase like "1 day", "3 days", "1 week" or "1 month".
- "faction_turn" — Run one AI turn for a faction. Set "faction" to "Empire", "Rebellion" or "Corporate".

## Response Format

Respond with ONLY valid JSON (no markdown, no explanation outside the JSON):
{
  "action": "advance",
  "rationale": "Brief explanation of your assessment.",
  "increment": "1 week",
  "faction": ""
}`

// Decision is the steward's recommended action.
type Decision struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
	Increment string `json:"increment,omitempty"`
	Faction   string `json:"faction,omitempty"`
}

// RuleDecision is the deterministic choice for a triaged session. It is also
// what the narrator falls back to.
func RuleDecision(h *Health) Decision {
	switch h.Tension {
	case TensionEmpty:
		return Decision{Action: ActionNone, Rationale: "No players are at the table."}
	case TensionCritical:
		return Decision{Action: ActionNone, Rationale: "Conflicts are already at a boil; the players should answer first."}
	case TensionLopsided:
		return Decision{
			Action:    ActionFactionTurn,
			Faction:   h.Underdog,
			Rationale: fmt.Sprintf("%s holds %.0f%% of claimed systems; %s answers.", h.Dominant, h.DominantShare*100, h.Underdog),
		}
	case TensionStagnant:
		return Decision{Action: ActionAdvance, Increment: "1 week", Rationale: "The session has been idle; a week passes."}
	default:
		return Decision{Action: ActionAdvance, Increment: "1 day", Rationale: "The galaxy keeps turning."}
	}
}

// Decide asks the narrator for a decision, falling back to RuleDecision when
// no backend is configured or the call fails.
func Decide(ctx context.Context, narrator *llm.Narrator, snap *Snapshot, h *Health, mem *CycleMemory, maxAdvance string) (*Decision, error) {
	rule := RuleDecision(h)
	if !narrator.Enabled() {
		d := rule
		return &d, enforceGuardrails(&d, snap, maxAdvance)
	}

	fallback, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("marshal rule decision: %w", err)
	}
	prompt := formatSnapshot(snap, h) + mem.FormatForPrompt()
	slog.Debug("gamemaster prompt", "length", len(prompt))

	resp := narrator.Text(ctx, systemPrompt, prompt, string(fallback))

	// Strip markdown fences if the model wraps them anyway.
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var decision Decision
	if err := json.Unmarshal([]byte(resp), &decision); err != nil {
		return nil, fmt.Errorf("parse decision (raw: %s): %w", resp, err)
	}
	if err := enforceGuardrails(&decision, snap, maxAdvance); err != nil {
		return nil, fmt.Errorf("guardrail violation: %w", err)
	}
	return &decision, nil
}

// enforceGuardrails validates and clamps the decision within safe bounds.
func enforceGuardrails(d *Decision, snap *Snapshot, maxAdvance string) error {
	switch d.Action {
	case ActionNone:
		d.Increment, d.Faction = "", ""
		return nil

	case ActionAdvance:
		d.Faction = ""
		if d.Increment == "" {
			d.Increment = "1 day"
		}
		if maxAdvance != "" && engine.ParseIncrement(d.Increment) > engine.ParseIncrement(maxAdvance) {
			slog.Warn("gamemaster advance capped", "requested", d.Increment, "capped", maxAdvance)
			d.Increment = maxAdvance
		}
		return nil

	case ActionFactionTurn:
		d.Increment = ""
		if _, ok := snap.Session.FactionBalance[d.Faction]; !ok {
			return fmt.Errorf("faction turn for unknown faction %q", d.Faction)
		}
		return nil

	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}
}

// formatSnapshot builds a concise prompt from the snapshot.
func formatSnapshot(snap *Snapshot, h *Health) string {
	var b strings.Builder

	w := snap.Session.World
	fmt.Fprintf(&b, "## Session %s (%s)\n", w.SessionID, w.GalaxyTimestamp)
	fmt.Fprintf(&b, "Players: %d | Idle for: %s | Tension: %s\n", h.Players, h.IdleFor.Round(time.Second), h.Tension)
	fmt.Fprintf(&b, "Galactic threat: %.2f | Major events: %d\n\n", snap.Status.ThreatLevel, snap.Status.MajorEvents)

	b.WriteString("## Territory\n")
	for _, f := range []string{engine.Empire, engine.Rebellion, engine.Corporate} {
		fmt.Fprintf(&b, "- %s: %.0f%% of claimed systems\n", f, snap.Session.FactionBalance[f]*100)
	}
	b.WriteString("\n")

	if len(w.ActiveConflicts) > 0 {
		b.WriteString("## Conflicts\n")
		for _, c := range w.ActiveConflicts {
			fmt.Fprintf(&b, "- %s (%s): intensity %.2f\n", c.Name, strings.Join(c.Factions, " vs "), c.Intensity)
		}
		b.WriteString("\n")
	}

	if len(snap.Factions) > 0 {
		b.WriteString("## Faction Treasuries\n")
		for _, f := range snap.Factions {
			fmt.Fprintf(&b, "- %s: resources %d, reputation %d\n", f.Faction, f.Resources, f.Reputation)
		}
		b.WriteString("\n")
	}

	if len(snap.Events) > 0 {
		b.WriteString("## Recent Galaxy Events\n")
		for _, e := range snap.Events {
			fmt.Fprintf(&b, "- %s", e.Type)
			if e.Source != "" {
				fmt.Fprintf(&b, " by %s", e.Source)
			}
			if e.Description != "" {
				fmt.Fprintf(&b, ": %s", e.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if snap.Session.Summary != "" {
		fmt.Fprintf(&b, "## Chronicle\n%s\n\n", snap.Session.Summary)
	}
	return b.String()
}
