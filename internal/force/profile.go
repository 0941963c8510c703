package force

import (
	"math"

	"github.com/talgya/galaxy-of-consequence/internal/entropy"
)

// Profile is one owner's Force record. Alignment is always DeriveAlignment(Points)
// except right after creation, where it is the requested starting alignment.
type Profile struct {
	Owner                string        `json:"user_id"`
	Points               Points        `json:"points"`
	Alignment            Alignment     `json:"current_alignment"`
	Sensitivity          float64       `json:"force_sensitivity"`
	CorruptionResistance float64       `json:"corruption_resistance"`
	RedemptionPotential  float64       `json:"redemption_potential"`
	MoralHistory         []MoralChoice `json:"moral_history"`
	DestinyThreads       []string      `json:"destiny_threads"`
}

// NewProfile creates a profile with randomized traits. Only light, dark and
// balance seed points; any other starting alignment starts at zero everywhere.
func NewProfile(owner string, initial Alignment, src entropy.Source) *Profile {
	if initial == "" {
		initial = Balance
	}
	p := &Profile{Owner: owner, Alignment: initial}
	switch initial {
	case Light:
		p.Points.Light = 50
	case Dark:
		p.Points.Dark = 50
	case Balance:
		p.Points.Balance = 100
	}
	p.Sensitivity = entropy.Uniform(src, 0.1, 0.8)
	p.CorruptionResistance = entropy.Uniform(src, 0.3, 0.9)
	p.RedemptionPotential = entropy.Uniform(src, 0.4, 1.0)
	return p
}

// Refresh re-derives the alignment from the point totals.
func (p *Profile) Refresh() {
	p.Alignment = DeriveAlignment(p.Points)
}

// Description is the descriptive text for the profile's light/dark score.
func (p *Profile) Description() string {
	return Describe(p.Points.Score())
}

// QuestSensitivity expresses sensitivity on the 0..100 scale quest rules use.
func (p *Profile) QuestSensitivity() int {
	return truncate(p.Sensitivity * 100)
}

// truncate converts toward zero, absorbing float noise just below an integer.
func truncate(x float64) int {
	return int(x + math.Copysign(1e-9, x))
}
