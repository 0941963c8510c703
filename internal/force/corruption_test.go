package force

import (
	"context"
	"strings"
	"testing"
)

func TestCorruptionTiers(t *testing.T) {
	tests := []struct {
		p         Points
		effects   int
		redeem    bool
		difficult string
	}{
		{Points{0, 0, 0}, 0, false, ""},
		{Points{70, 30, 0}, 0, false, ""},
		{Points{60, 40, 0}, 2, false, ""},
		{Points{40, 60, 0}, 3, true, "moderate"},
		{Points{10, 80, 10}, 3, true, "challenging"},
	}
	for _, tt := range tests {
		r := Corruption(&Profile{Points: tt.p, RedemptionPotential: 0.5})
		if len(r.Effects) != tt.effects {
			t.Fatalf("%+v: effects = %v", tt.p, r.Effects)
		}
		if (r.RedemptionPath != nil) != tt.redeem {
			t.Fatalf("%+v: redemption path = %+v", tt.p, r.RedemptionPath)
		}
		if tt.redeem && r.RedemptionPath.Difficulty != tt.difficult {
			t.Fatalf("%+v: difficulty = %s", tt.p, r.RedemptionPath.Difficulty)
		}
	}
	r := Corruption(&Profile{Points: Points{10, 80, 10}})
	if r.Effects[0] != "Physical manifestation of dark side" || r.RedemptionPath.TimeRequired != "long journey" {
		t.Fatalf("report = %+v", r)
	}
}

func TestResistanceConsistency(t *testing.T) {
	light := MoralChoice{Shifts: []Shift{{Light, 10}}}
	dark := MoralChoice{Shifts: []Shift{{Dark, 10}, {Light, -5}}}
	p := &Profile{Points: Points{Light: 50}, MoralHistory: []MoralChoice{light, light, light, dark, light, dark}}
	r := Corruption(p)
	if r.Resistance.MoralConsistency != 0.6 || r.Resistance.LightSideStrength != 0.5 {
		t.Fatalf("resistance = %+v", r.Resistance)
	}
}

func TestVisionFallback(t *testing.T) {
	p := &Profile{Points: Points{10, 80, 10}, Alignment: Dark, Sensitivity: 0.65}
	v := Vision(context.Background(), nil, p, VisionContext{})
	if v.Type != "dark_temptation" || v.Significance != "significant" {
		t.Fatalf("vision = %+v", v)
	}
	if !strings.Contains(v.Narrative, "The dark within you pulses with possibility.") {
		t.Fatalf("narrative = %q", v.Narrative)
	}
	if v.Insight.Trend != "insufficient_data" || v.Insight.Stability != 1.0 {
		t.Fatalf("insight = %+v", v.Insight)
	}
	if v.Guidance != "The dark side clouds your judgment, but redemption remains possible" {
		t.Fatalf("guidance = %q", v.Guidance)
	}
}

func TestTrajectoryTowardDark(t *testing.T) {
	dark := MoralChoice{Shifts: []Shift{{Dark, 12}, {Light, -6}, {Balance, -6}}}
	p := &Profile{Alignment: Gray, MoralHistory: []MoralChoice{dark, dark}}
	tr := AnalyzeTrajectory(p)
	if tr.Trend != "toward_dark" || tr.LightMomentum != -12 || tr.DarkMomentum != 24 || tr.Strength != 36 {
		t.Fatalf("trajectory = %+v", tr)
	}
	if tr.Stability < 0.639 || tr.Stability > 0.641 {
		t.Fatalf("stability = %v, want 0.64", tr.Stability)
	}
	if VisionType(p, tr) != "warning_vision" {
		t.Fatalf("vision type = %s", VisionType(p, tr))
	}
}

func TestTrackDestiny(t *testing.T) {
	p := &Profile{Alignment: Conflicted, Sensitivity: 0.75}
	var r DestinyReport
	for i := 0; i < 3; i++ {
		r = TrackDestiny(p, "major_decision")
	}
	if r.Weight < 0.999 || r.Weight > 1.0 {
		t.Fatalf("weight = %v", r.Weight)
	}
	if len(p.DestinyThreads) != 6 || len(r.NewThreads) != 2 || r.NewThreads[1] != "Thread: conflicted path strengthens" {
		t.Fatalf("threads = %v / %v", p.DestinyThreads, r.NewThreads)
	}
	if len(r.Convergences) != 1 {
		t.Fatalf("convergences = %+v", r.Convergences)
	}
	if len(r.Insights) != 2 || r.FateMomentum < 0.974 || r.FateMomentum > 0.976 {
		t.Fatalf("insights=%v momentum=%v", r.Insights, r.FateMomentum)
	}

	b := &Profile{Alignment: Balance}
	r = TrackDestiny(b, "")
	if len(r.NewThreads) != 1 || r.NewThreads[0] != "Thread: unknown echoes through time" || r.Weight != 0.3 {
		t.Fatalf("balance report = %+v", r)
	}
}
