package force

// RedemptionPath is offered to profiles deep enough in the dark side.
type RedemptionPath struct {
	Difficulty   string   `json:"difficulty"`
	Steps        []string `json:"steps"`
	TimeRequired string   `json:"time_required"`
}

// ResistanceBreakdown explains what is holding corruption back.
type ResistanceBreakdown struct {
	BaseResistance    float64 `json:"base_resistance"`
	LightSideStrength float64 `json:"light_side_strength"`
	MoralConsistency  float64 `json:"moral_consistency"`
}

// CorruptionReport is the result of a corruption analysis.
type CorruptionReport struct {
	Level               float64             `json:"corruption_level"`
	Effects             []string            `json:"corruption_effects"`
	RedemptionPotential float64             `json:"redemption_potential"`
	RedemptionPath      *RedemptionPath     `json:"redemption_path"`
	Resistance          ResistanceBreakdown `json:"resistance_breakdown"`
}

// CorruptionLevel is the dark share of all points, 0 when there are none.
func CorruptionLevel(p Points) float64 {
	total := p.Total()
	if total == 0 {
		return 0
	}
	return float64(p.Dark) / float64(total)
}

// CorruptionEffects lists the symptoms for a corruption level.
func CorruptionEffects(level float64) []string {
	switch {
	case level > 0.7:
		return []string{"Physical manifestation of dark side", "Aggressive tendencies", "Fear of loss"}
	case level > 0.5:
		return []string{"Emotional instability", "Quick to anger", "Distrustful"}
	case level > 0.3:
		return []string{"Occasional dark thoughts", "Tempted by power"}
	default:
		return []string{}
	}
}

// Corruption analyzes how far the profile has fallen.
func Corruption(profile *Profile) CorruptionReport {
	level := CorruptionLevel(profile.Points)
	r := CorruptionReport{
		Level:               level,
		Effects:             CorruptionEffects(level),
		RedemptionPotential: profile.RedemptionPotential,
		Resistance:          resistance(profile),
	}
	if level > 0.5 {
		r.RedemptionPath = redemptionPath(profile)
	}
	return r
}

func redemptionPath(profile *Profile) *RedemptionPath {
	path := &RedemptionPath{
		Difficulty:   "moderate",
		Steps:        []string{"Acknowledge past mistakes", "Seek forgiveness", "Perform selfless acts"},
		TimeRequired: "focused effort",
	}
	if profile.Points.Dark > 70 {
		path.Difficulty = "challenging"
		path.TimeRequired = "long journey"
	}
	return path
}

// resistance counts light-leaning choices among the last five, always out of five.
func resistance(profile *Profile) ResistanceBreakdown {
	recent := lastChoices(profile.MoralHistory, 5)
	consistent := 0
	for _, c := range recent {
		if c.shift(Light) > 0 {
			consistent++
		}
	}
	return ResistanceBreakdown{
		BaseResistance:    profile.CorruptionResistance,
		LightSideStrength: float64(profile.Points.Light) / 100,
		MoralConsistency:  float64(consistent) / 5,
	}
}

func lastChoices(history []MoralChoice, n int) []MoralChoice {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
