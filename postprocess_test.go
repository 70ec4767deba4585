package oread

import (
	"strings"
	"testing"

	"github.com/sleddd/oread-companion/lorebook"
)

func emoChunk(id, category string, priority int, responses map[string]lorebook.EmotionResponse) lorebook.Chunk {
	return lorebook.Chunk{ID: id, Category: category, Priority: priority, EmotionResponses: responses}
}

func TestResolveExactPrimary(t *testing.T) {
	p := NewPostProcessor()
	c := emoChunk("warmth", "emotional_expression", 50, map[string]lorebook.EmotionResponse{
		"sadness":                  {Tone: "gentle", Action: "Acknowledge the feeling.", Tokens: 80},
		lorebook.DefaultEmotionKey: {Tone: "warm"},
	})
	got := p.Process([]lorebook.Chunk{c}, []EmotionSignal{{Emotion: "sadness", Confidence: 0.9}})
	if len(got) != 1 {
		t.Fatalf("got %d chunks", len(got))
	}
	if got[0].Content != "Acknowledge the feeling. Use gentle tone." {
		t.Fatalf("synthesized content = %q", got[0].Content)
	}
	if got[0].Tokens != 80 {
		t.Fatalf("tokens = %d, want 80", got[0].Tokens)
	}
	if len(got[0].EmotionResponses) != 0 {
		t.Fatal("emotion map survived resolution")
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	p := NewPostProcessor()
	c := emoChunk("warmth", "emotional_expression", 50, map[string]lorebook.EmotionResponse{
		"sadness":                  {Tone: "gentle"},
		lorebook.DefaultEmotionKey: {Tone: "warm"},
	})
	got := p.Process([]lorebook.Chunk{c}, []EmotionSignal{{Emotion: "pride", Confidence: 0.7}})
	if len(got) != 1 || got[0].Content != "Use warm tone." {
		t.Fatalf("default fallback failed: %+v", got)
	}
}

func TestResolveTopThreeBlend(t *testing.T) {
	p := NewPostProcessor()
	c := emoChunk("warmth", "emotional_expression", 50, map[string]lorebook.EmotionResponse{
		"fear": {Tone: "steady"},
	})
	signals := []EmotionSignal{
		{Emotion: "sadness", Confidence: 0.6},
		{Emotion: "fear", Confidence: 0.3},
	}
	got := p.Process([]lorebook.Chunk{c}, signals)
	if len(got) != 1 || got[0].Content != "Use steady tone." {
		t.Fatalf("top-3 blend failed: %+v", got)
	}
}

func TestResolveNoMatchDropsChunk(t *testing.T) {
	p := NewPostProcessor()
	c := emoChunk("warmth", "emotional_expression", 50, map[string]lorebook.EmotionResponse{
		"fear": {Tone: "steady"},
	})
	got := p.Process([]lorebook.Chunk{c}, []EmotionSignal{{Emotion: "joy", Confidence: 0.9}})
	if len(got) != 0 {
		t.Fatalf("unresolvable chunk survived: %+v", got)
	}
}

func TestResolveEmptyResponseDropsChunk(t *testing.T) {
	p := NewPostProcessor()
	c := emoChunk("warmth", "emotional_expression", 50, map[string]lorebook.EmotionResponse{
		lorebook.DefaultEmotionKey: {},
	})
	if got := p.Process([]lorebook.Chunk{c}, nil); len(got) != 0 {
		t.Fatalf("empty response survived: %+v", got)
	}
}

func TestPriorityOverrideFromResponse(t *testing.T) {
	p := NewPostProcessor()
	pri := 90
	c := emoChunk("warmth", "emotional_expression", 50, map[string]lorebook.EmotionResponse{
		"fear": {Tone: "steady", Priority: &pri},
	})
	got := p.Process([]lorebook.Chunk{c}, []EmotionSignal{{Emotion: "fear", Confidence: 0.8}})
	if len(got) != 1 || got[0].Priority != 90 {
		t.Fatalf("priority override failed: %+v", got)
	}
}

func TestCombineSameCategory(t *testing.T) {
	p := NewPostProcessor()
	a := emoChunk("warm", "emotional_expression", 60, map[string]lorebook.EmotionResponse{
		lorebook.DefaultEmotionKey: {Tone: "warm", Action: "Stay close.", Tokens: 90},
	})
	b := emoChunk("dry", "emotional_expression", 40, map[string]lorebook.EmotionResponse{
		lorebook.DefaultEmotionKey: {Tone: "dry", Tokens: 90},
	})
	other := lorebook.Chunk{ID: "rules", Category: "boundary", Priority: 80, Content: "Respect pace.", Tokens: 60}

	got := p.Process([]lorebook.Chunk{a, b, other}, nil)
	if len(got) != 2 {
		t.Fatalf("combine kept %d chunks: %+v", len(got), got)
	}

	var combined *lorebook.Chunk
	for i := range got {
		if got[i].ID == "combined_emotional_expression" {
			combined = &got[i]
		}
	}
	if combined == nil {
		t.Fatalf("combined chunk missing: %+v", got)
	}
	if !strings.Contains(combined.Content, "warm and dry tone.") {
		t.Fatalf("tones not joined: %q", combined.Content)
	}
	if !strings.Contains(combined.Content, "Stay close.") {
		t.Fatalf("action lost: %q", combined.Content)
	}
	if combined.Priority != 60 {
		t.Fatalf("combined priority = %d, want max 60", combined.Priority)
	}
	if combined.Tokens != 150 {
		t.Fatalf("combined tokens = %d, want capped 150", combined.Tokens)
	}
	if combined.Source != SourceCombined {
		t.Fatalf("combined source = %q", combined.Source)
	}
	// Re-sorted by priority: boundary (80) first.
	if got[0].ID != "rules" {
		t.Fatalf("priority re-sort failed: %+v", got)
	}
}

func TestCombineThreeTonesUsesOxfordJoin(t *testing.T) {
	if got := joinNatural([]string{"warm", "dry", "playful"}); got != "warm, dry, and playful" {
		t.Fatalf("joinNatural = %q", got)
	}
	if got := joinNatural([]string{"warm"}); got != "warm" {
		t.Fatalf("joinNatural single = %q", got)
	}
}

func TestSingleCategoryChunkNotCombined(t *testing.T) {
	p := NewPostProcessor()
	a := emoChunk("warm", "emotional_expression", 60, map[string]lorebook.EmotionResponse{
		lorebook.DefaultEmotionKey: {Tone: "warm"},
	})
	got := p.Process([]lorebook.Chunk{a}, nil)
	if len(got) != 1 || got[0].ID != "warm" {
		t.Fatalf("lone chunk combined: %+v", got)
	}
}

func TestSplitDirective(t *testing.T) {
	action, tone := splitDirective("Stay close. Use warm tone.")
	if action != "Stay close." || tone != "warm" {
		t.Fatalf("split = %q / %q", action, tone)
	}
	action, tone = splitDirective("Use warm tone.")
	if action != "" || tone != "warm" {
		t.Fatalf("tone-only split = %q / %q", action, tone)
	}
	action, tone = splitDirective("Just an action.")
	if action != "Just an action." || tone != "" {
		t.Fatalf("action-only split = %q / %q", action, tone)
	}
}
