package force

import "fmt"

// Convergence marks a point where several destiny threads meet.
type Convergence struct {
	Type         string `json:"type"`
	Description  string `json:"description"`
	Significance string `json:"significance"`
}

// DestinyReport is the result of weaving an action into the profile's destiny.
type DestinyReport struct {
	Weight        float64       `json:"destiny_weight"`
	NewThreads    []string      `json:"new_threads"`
	ActiveThreads []string      `json:"active_threads"`
	Convergences  []Convergence `json:"convergence_points"`
	Insights      []string      `json:"prophetic_insights"`
	FateMomentum  float64       `json:"fate_momentum"`
}

// TrackDestiny appends threads for an action and reports on the profile's fate.
func TrackDestiny(profile *Profile, actionType string) DestinyReport {
	if actionType == "" {
		actionType = "unknown"
	}

	weight := 0.3
	if actionType == "major_decision" {
		weight += 0.4
	}
	if profile.Sensitivity > 0.7 {
		weight += 0.3
	}

	threads := []string{fmt.Sprintf("Thread: %s echoes through time", actionType)}
	if profile.Alignment != Balance {
		threads = append(threads, fmt.Sprintf("Thread: %s path strengthens", profile.Alignment))
	}
	profile.DestinyThreads = append(profile.DestinyThreads, threads...)

	var convergences []Convergence
	if len(profile.DestinyThreads) > 5 {
		convergences = append(convergences, Convergence{
			Type:         "thread_intersection",
			Description:  "Multiple destiny threads converge",
			Significance: "major",
		})
	}

	insights := []string{}
	if profile.Sensitivity > 0.6 {
		insights = append(insights, "The Force whispers of choices yet to come")
	}
	if profile.Alignment == Conflicted {
		insights = append(insights, "Balance teeters on the edge of a blade")
	}

	active := profile.DestinyThreads
	if len(active) > 10 {
		active = active[len(active)-10:]
	}

	return DestinyReport{
		Weight:        min(1.0, weight),
		NewThreads:    threads,
		ActiveThreads: append([]string(nil), active...),
		Convergences:  convergences,
		Insights:      insights,
		FateMomentum:  min(1.0, float64(len(profile.DestinyThreads))*0.1+profile.Sensitivity*0.5),
	}
}
