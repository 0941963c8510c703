package gamemaster

import (
	"slices"
	"time"
)

// Tension labels, most urgent first.
const (
	TensionEmpty     = "EMPTY"
	TensionCritical  = "CRITICAL"
	TensionLopsided  = "LOPSIDED"
	TensionStagnant  = "STAGNANT"
	TensionSimmering = "SIMMERING"
)

const (
	criticalConflict = 0.85
	lopsidedShare    = 0.6
	stagnantAfter    = 24 * time.Hour
)

// Health holds derived signals computed from a Snapshot.
// Runs before the narrator and is deterministic.
type Health struct {
	Players       int
	IdleFor       time.Duration // wall time since the session last changed
	Dominant      string
	DominantShare float64
	Underdog      string
	UnderdogShare float64
	PeakConflict  float64
	ThreatLevel   float64
	Tension       string
}

// Triage computes a Health from the snapshot's data.
func Triage(snap *Snapshot, now time.Time) *Health {
	h := &Health{
		Players:     len(snap.Session.ActivePlayers),
		ThreatLevel: snap.Status.ThreatLevel,
	}
	if updated := snap.Session.World.UpdatedAt; !updated.IsZero() && now.After(updated) {
		h.IdleFor = now.Sub(updated)
	}

	// Sorted so ties resolve the same way every cycle.
	factions := make([]string, 0, len(snap.Session.FactionBalance))
	for f := range snap.Session.FactionBalance {
		factions = append(factions, f)
	}
	slices.Sort(factions)
	for i, f := range factions {
		share := snap.Session.FactionBalance[f]
		if i == 0 || share > h.DominantShare {
			h.Dominant, h.DominantShare = f, share
		}
		if i == 0 || share < h.UnderdogShare {
			h.Underdog, h.UnderdogShare = f, share
		}
	}

	for _, c := range snap.Session.World.ActiveConflicts {
		h.PeakConflict = max(h.PeakConflict, c.Intensity)
	}

	switch {
	case h.Players == 0:
		h.Tension = TensionEmpty
	case h.PeakConflict > criticalConflict:
		h.Tension = TensionCritical
	case h.DominantShare > lopsidedShare:
		h.Tension = TensionLopsided
	case h.IdleFor > stagnantAfter:
		h.Tension = TensionStagnant
	default:
		h.Tension = TensionSimmering
	}
	return h
}
