// Package force tracks a player's standing with the light and dark sides: point
// totals, the alignment derived from them, moral choices, corruption, visions and
// destiny threads.
package force

// Alignment is the categorical Force-morality label.
type Alignment string

const (
	Light      Alignment = "light"
	Dark       Alignment = "dark"
	Balance    Alignment = "balance"
	Gray       Alignment = "gray"
	Conflicted Alignment = "conflicted"
)

// Points are the three bounded tallies an alignment is derived from.
type Points struct {
	Light   int `json:"light"`
	Dark    int `json:"dark"`
	Balance int `json:"balance"`
}

// DefaultPoints is used when a caller supplies no alignment context.
var DefaultPoints = Points{Light: 0, Dark: 0, Balance: 100}

// Total is the sum of all three tallies.
func (p Points) Total() int { return p.Light + p.Dark + p.Balance }

// Clamped bounds every tally to [0, 100].
func (p Points) Clamped() Points {
	return Points{Light: clampPoints(p.Light), Dark: clampPoints(p.Dark), Balance: clampPoints(p.Balance)}
}

func clampPoints(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// DeriveAlignment maps point totals to a label. Thresholds are checked in order
// against each tally's share of the total; an empty total is balance.
func DeriveAlignment(p Points) Alignment {
	total := p.Total()
	if total == 0 {
		return Balance
	}
	light := float64(p.Light) / float64(total)
	dark := float64(p.Dark) / float64(total)
	balance := float64(p.Balance) / float64(total)

	switch {
	case light > 0.6:
		return Light
	case dark > 0.6:
		return Dark
	case balance > 0.4:
		return Balance
	case abs(light-dark) < 0.2:
		return Conflicted
	default:
		return Gray
	}
}

// Score collapses the tallies onto a single -100..100 light/dark axis.
func (p Points) Score() int { return p.Light - p.Dark }

// Describe gives the descriptive text for a light/dark score.
func Describe(score int) string {
	switch {
	case score <= -80:
		return "Consumed by the dark side"
	case score <= -60:
		return "Deeply touched by darkness"
	case score <= -30:
		return "Leaning toward the dark side"
	case score <= -10:
		return "Slightly influenced by darkness"
	case score < 10:
		return "Balanced in the Force"
	case score < 30:
		return "Touched by the light"
	case score < 60:
		return "Strong in the light side"
	case score < 80:
		return "A beacon of light"
	default:
		return "One with the light side"
	}
}

// Meter renders a score as a 20-cell bar, filled from the dark end.
func Meter(score int) string {
	pos := (score + 100) * 20 / 200
	b := make([]byte, 20)
	for i := range b {
		if i < pos {
			b[i] = '|'
		} else {
			b[i] = '-'
		}
	}
	return string(b)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
