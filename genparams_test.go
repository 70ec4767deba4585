package oread

import (
	"strings"
	"testing"

	"github.com/sleddd/oread-companion/profile"
)

func TestParamRuleOrder(t *testing.T) {
	s := NewParamSelector()
	romantic := &profile.Character{Name: "Lyra", CompanionType: profile.TypeRomantic}

	cases := []struct {
		name     string
		message  string
		emotions []EmotionSignal
		wantRule string
		wantTok  int
		wantTemp float64
	}{
		{"starter", StarterPrefix + " for Sam]", nil, "starter", 120, 1.25},
		{"goodnight", "goodnight!", nil, "goodnight", 60, 0.85},
		{"goodnight beats heart", "good night ❤️", nil, "goodnight", 60, 0.85},
		{"heart", "❤️", nil, "heart", 60, 0.85},
		{"physical romantic", "come hold me", nil, "physical_romantic", 180, 1.35},
		{"high distress", "everything fell apart",
			[]EmotionSignal{{Emotion: "sadness", Confidence: 0.85}}, "high_distress", 100, 0.60},
		{"high anxiety", "I can't stop shaking",
			[]EmotionSignal{{Emotion: "fear", Confidence: 0.7}}, "high_anxiety", 110, 0.65},
		{"high anger", "they ignored me again",
			[]EmotionSignal{{Emotion: "anger", Confidence: 0.65}}, "high_anger", 90, 0.70},
		{"distress topic", "work has been really stressed lately", nil, "distress_topic", 130, 0.75},
		{"high positive", "best day ever",
			[]EmotionSignal{{Emotion: "joy", Confidence: 0.9}}, "high_positive", 140, 1.35},
		{"engaged", "that was unexpected",
			[]EmotionSignal{{Emotion: "curiosity", Confidence: 0.5}}, "engaged", 600, 1.25},
		{"intellectual", "tell me your theory of consciousness", nil, "intellectual", 600, 1.25},
		{"default neutral", "okay", nil, "default", 150, 1.05},
		{"default positive", "nice",
			[]EmotionSignal{{Emotion: "joy", Confidence: 0.3}}, "default", 145, 1.20},
		{"default distress", "okay",
			[]EmotionSignal{{Emotion: "sadness", Confidence: 0.3}}, "default", 130, 0.80},
	}
	for _, tc := range cases {
		got := s.Select(tc.message, romantic, tc.emotions)
		if got.Rule != tc.wantRule {
			t.Fatalf("%s: rule = %q, want %q", tc.name, got.Rule, tc.wantRule)
		}
		if got.MaxTokens != tc.wantTok || got.Temperature != tc.wantTemp {
			t.Fatalf("%s: params = %d/%.2f, want %d/%.2f",
				tc.name, got.MaxTokens, got.Temperature, tc.wantTok, tc.wantTemp)
		}
		if got.Guidance == "" {
			t.Fatalf("%s: rule %q produced no guidance", tc.name, got.Rule)
		}
	}
}

func TestRuleGuidanceIsRuleSpecific(t *testing.T) {
	s := NewParamSelector()
	romantic := &profile.Character{Name: "Lyra", CompanionType: profile.TypeRomantic}

	distress := s.Select("anything", romantic, []EmotionSignal{{Emotion: "sadness", Confidence: 0.85}})
	if !strings.Contains(distress.Guidance, "do not fix") {
		t.Fatalf("distress guidance = %q", distress.Guidance)
	}
	engaged := s.Select("that was unexpected", romantic, []EmotionSignal{{Emotion: "curiosity", Confidence: 0.5}})
	if !strings.Contains(engaged.Guidance, "Elaborate") {
		t.Fatalf("engaged guidance = %q", engaged.Guidance)
	}
	starter := s.Select(StarterPrefix+" for Sam]", romantic, nil)
	if !strings.Contains(starter.Guidance, "opener") {
		t.Fatalf("starter guidance = %q", starter.Guidance)
	}
	if distress.Guidance == engaged.Guidance {
		t.Fatal("distinct rules share guidance")
	}
}

func TestPhysicalRequiresRomantic(t *testing.T) {
	s := NewParamSelector()
	friend := &profile.Character{Name: "Lyra", CompanionType: profile.TypeFriend}
	got := s.Select("come hold me", friend, nil)
	if got.Rule == "physical_romantic" {
		t.Fatalf("physical rule fired for platonic character: %+v", got)
	}
}

func TestGoodnightGuidance(t *testing.T) {
	s := NewParamSelector()
	romantic := &profile.Character{Name: "Lyra", CompanionType: profile.TypeRomantic}
	got := s.Select("goodnight", romantic, nil)
	if got.Guidance == "" {
		t.Fatal("goodnight rule produced no guidance")
	}
}

func TestWellnessClamp(t *testing.T) {
	s := NewParamSelector()
	wellness := &profile.Character{Name: "Kairos", CompanionType: profile.TypeCompanion, Wellness: true}

	got := s.Select("tell me your theory of consciousness", wellness, nil)
	if got.Temperature != 0.85 {
		t.Fatalf("wellness temperature = %.2f, want 0.85", got.Temperature)
	}
	if got.MaxTokens != 180 {
		t.Fatalf("wellness max tokens = %d, want 180", got.MaxTokens)
	}
	if !strings.Contains(got.Guidance, "reflective") {
		t.Fatalf("wellness guidance missing: %q", got.Guidance)
	}

	// Low-token rules gain the headroom instead of hitting the cap.
	got = s.Select("goodnight", wellness, nil)
	if got.MaxTokens != 90 {
		t.Fatalf("wellness goodnight tokens = %d, want 90", got.MaxTokens)
	}
	if got.Temperature != 0.85 {
		t.Fatalf("wellness goodnight temperature = %.2f, want 0.85", got.Temperature)
	}
}

func TestWellnessStarter(t *testing.T) {
	s := NewParamSelector()
	wellness := &profile.Character{Name: "Kairos", CompanionType: profile.TypeCompanion, Wellness: true}
	got := s.Select(StarterPrefix+" for Sam]", wellness, nil)
	if got.Rule != "starter" || got.MaxTokens != 150 || got.Temperature != 0.75 {
		t.Fatalf("wellness starter params = %+v", got)
	}
}
