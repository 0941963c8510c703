package force

import (
	"context"
	"fmt"

	"github.com/talgya/galaxy-of-consequence/internal/llm"
)

// Trajectory summarizes the direction of recent moral choices.
type Trajectory struct {
	Trend         string  `json:"trend"`
	Stability     float64 `json:"stability"`
	LightMomentum int     `json:"light_momentum,omitempty"`
	DarkMomentum  int     `json:"dark_momentum,omitempty"`
	Strength      int     `json:"trajectory_strength,omitempty"`
}

// VisionResult is a Force vision and the insight around it.
type VisionResult struct {
	Type         string     `json:"vision_type"`
	Narrative    string     `json:"narrative"`
	Significance string     `json:"significance"`
	Insight      Trajectory `json:"force_alignment_insight"`
	Revelation   string     `json:"destiny_revelation"`
	Guidance     string     `json:"moral_guidance"`
}

// VisionContext carries optional caller framing for a vision.
type VisionContext struct {
	Trigger string `json:"trigger"`
}

const visionSystem = "You are the Force itself, speaking through visions. Create mystical, prophetic visions that guide moral choices in the Star Wars universe."

// AnalyzeTrajectory reads the last five choices. Fewer than two is not enough to judge.
func AnalyzeTrajectory(profile *Profile) Trajectory {
	if len(profile.MoralHistory) < 2 {
		return Trajectory{Trend: "insufficient_data", Stability: 1.0}
	}
	recent := lastChoices(profile.MoralHistory, 5)
	var light, dark, variance int
	for _, c := range recent {
		light += c.shift(Light)
		dark += c.shift(Dark)
		variance += absInt(c.shift(Light) - c.shift(Dark))
	}
	trend := "balanced"
	switch {
	case light > dark:
		trend = "toward_light"
	case dark > light:
		trend = "toward_dark"
	}
	return Trajectory{
		Trend:         trend,
		Stability:     max(0.0, 1.0-float64(variance)/100),
		LightMomentum: light,
		DarkMomentum:  dark,
		Strength:      absInt(light - dark),
	}
}

// VisionType picks the kind of vision the profile receives.
func VisionType(profile *Profile, t Trajectory) string {
	switch {
	case profile.Alignment == Dark:
		return "dark_temptation"
	case profile.Alignment == Light:
		return "light_guidance"
	case t.Trend == "toward_dark":
		return "warning_vision"
	default:
		return "balance_insight"
	}
}

// Significance grows with sensitivity and a long moral history.
func Significance(profile *Profile) string {
	s := profile.Sensitivity
	if len(profile.MoralHistory) > 10 {
		s += 0.2
	}
	switch {
	case s > 0.8:
		return "prophetic"
	case s > 0.6:
		return "significant"
	case s > 0.4:
		return "meaningful"
	default:
		return "subtle"
	}
}

// Guidance is the moral counsel for the profile's alignment.
func Guidance(a Alignment) string {
	switch a {
	case Dark:
		return "The dark side clouds your judgment, but redemption remains possible"
	case Light:
		return "The light side illuminates the path of compassion and justice"
	default:
		return "Balance in the Force brings wisdom and understanding"
	}
}

// Vision generates a Force vision. Narrative text comes from the narrator and
// falls back to a fixed line naming the current alignment.
func Vision(ctx context.Context, narrator *llm.Narrator, profile *Profile, vc VisionContext) VisionResult {
	t := AnalyzeTrajectory(profile)
	kind := VisionType(profile, t)

	prompt := fmt.Sprintf("Generate a Star Wars Force vision for a character with Force vision type: %s, Current alignment: %s, Force sensitivity: %.2f. The vision should be mystical, prophetic, and relevant to their moral journey.",
		kind, profile.Alignment, profile.Sensitivity)
	if vc.Trigger != "" {
		prompt += " The vision was triggered by: " + vc.Trigger
	}
	fallback := fmt.Sprintf("In the swirling mists of the Force, you see echoes of choices yet to come. The %s within you pulses with possibility.", profile.Alignment)

	return VisionResult{
		Type:         kind,
		Narrative:    narrator.Text(ctx, visionSystem, prompt, fallback),
		Significance: Significance(profile),
		Insight:      t,
		Revelation:   fmt.Sprintf("Your path through the %s side of the Force shapes galactic destiny", profile.Alignment),
		Guidance:     Guidance(profile.Alignment),
	}
}
