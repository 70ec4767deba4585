package oread

import (
	"strings"
	"testing"
	"time"

	"github.com/sleddd/oread-companion/lorebook"
	"github.com/sleddd/oread-companion/profile"
)

func testBuildInput() BuildInput {
	return BuildInput{
		Character: &profile.Character{Name: "Lyra", CompanionType: profile.TypeRomantic, Persona: "A night-shift botanist."},
		User:      &profile.User{Name: "Sam"},
		Message:   "how was your day?",
		Now:       time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestBuildDeterministic(t *testing.T) {
	c := NewCompiler()
	in := testBuildInput()
	in.Chunks = []lorebook.Chunk{
		{ID: "a", Category: "identity", Priority: 100, Tokens: 50, Content: "Be yourself."},
	}
	first, err := c.Build(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := c.Build(in)
		if err != nil {
			t.Fatalf("build %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("build diverged on run %d", i)
		}
	}
}

func TestBuildSections(t *testing.T) {
	c := NewCompiler()
	in := testBuildInput()
	in.Emotions = []EmotionSignal{{Emotion: "sadness", Confidence: 0.7}}
	in.Chunks = []lorebook.Chunk{
		{ID: "a", Category: "boundary", Priority: 80, Tokens: 50, Content: "Respect pace."},
	}
	in.History = []Turn{{Speaker: "Sam", Text: "hey"}, {Speaker: "Lyra", Text: "hi"}}
	in.MemoryContext = "RELEVANT CONTEXT (from earlier conversations):\nPreviously, Sam mentioned: a new job"
	in.Guidance = "Keep it short."

	got, err := c.Build(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"You are Lyra, the user's romantic companion.",
		"A night-shift botanist.",
		"When your directives conflict",
		"It is morning for Sam.",
		"feeling sadness (high intensity)",
		"- Respect pace.",
		"RELEVANT CONTEXT",
		"Keep it short.",
		"Sam: hey",
		"Lyra: hi",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
	if !strings.HasSuffix(got, "Lyra:") {
		t.Fatalf("prompt missing reply cue:\n%s", got)
	}
}

func TestPrefixCacheInvalidation(t *testing.T) {
	c := NewCompiler()
	char := &profile.Character{Name: "Lyra", CompanionType: profile.TypeRomantic, Persona: "First persona."}
	first := c.staticPrefix(char)
	if !strings.Contains(first, "First persona.") {
		t.Fatalf("prefix missing persona: %q", first)
	}
	if again := c.staticPrefix(char); again != first {
		t.Fatal("cached prefix changed without profile change")
	}
	char.Persona = "Second persona."
	updated := c.staticPrefix(char)
	if !strings.Contains(updated, "Second persona.") {
		t.Fatalf("prefix not recompiled after profile change: %q", updated)
	}
}

func TestPrefixCarriesRulesAndSafety(t *testing.T) {
	c := NewCompiler()
	got, err := c.Build(testBuildInput())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"Core response rules:",
		"9. Do not repeat",
		"SAFETY PROTOCOL, MANDATORY",
		"988 Suicide & Crisis Lifeline",
		"741741",
		"25 or older",
		"explicitly consensual",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestConflictPreambleWrapsChunksOnly(t *testing.T) {
	c := NewCompiler()
	in := testBuildInput()
	bare, err := c.Build(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(bare, "When your directives conflict") {
		t.Fatal("conflict preamble present without any chunks")
	}
	in.Chunks = []lorebook.Chunk{
		{ID: "a", Category: "boundary", Priority: 80, Tokens: 50, Content: "Respect pace."},
	}
	got, err := c.Build(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	pre := strings.Index(got, "When your directives conflict")
	sec := strings.Index(got, "How to behave right now:")
	if pre < 0 || sec < 0 || pre > sec {
		t.Fatalf("conflict preamble not wrapping chunk section: preamble at %d, section at %d", pre, sec)
	}
}

func TestProfileDetailsInPrompt(t *testing.T) {
	c := NewCompiler()
	in := testBuildInput()
	in.Character.Role = "botanist"
	in.Character.Boundaries = []string{"no pet names"}
	in.User.Preferences = []string{"tea", "night walks"}
	in.User.CommunicationBoundaries = []string{"no baby talk"}

	got, err := c.Build(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"Lyra is a botanist.",
		"Hard limits, never cross them:\n- no pet names",
		"About Sam:",
		"They enjoy tea and night walks.",
		"How they want to be spoken to: no baby talk.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestPrefixReload(t *testing.T) {
	c := NewCompiler()
	char := &profile.Character{Name: "Lyra", CompanionType: profile.TypeRomantic, Persona: "First persona."}
	c.staticPrefix(char)
	c.Reload("Lyra")
	cache, _ := c.prefixes.Load().(map[string]cachedPrefix)
	if _, ok := cache["Lyra"]; ok {
		t.Fatal("prefix still cached after Reload")
	}
	c.Reload("nobody")
	if got := c.staticPrefix(char); !strings.Contains(got, "First persona.") {
		t.Fatalf("rebuild after reload: %q", got)
	}
}

func TestChunkBudget(t *testing.T) {
	cfg := DefaultCompilerConfig()
	cfg.ChunkTokenBudget = 100
	c := NewCompiler(cfg)
	in := testBuildInput()
	in.Chunks = []lorebook.Chunk{
		{ID: "a", Category: "x", Priority: 90, Tokens: 80, Content: "first directive"},
		{ID: "b", Category: "x", Priority: 50, Tokens: 80, Content: "second directive"},
		{ID: "c", Category: "x", Priority: 10, Tokens: 15, Content: "third directive"},
	}
	got, err := c.Build(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(got, "first directive") {
		t.Fatalf("highest priority chunk dropped:\n%s", got)
	}
	if strings.Contains(got, "second directive") {
		t.Fatalf("over-budget chunk kept:\n%s", got)
	}
	if !strings.Contains(got, "third directive") {
		t.Fatalf("chunk fitting residual budget dropped:\n%s", got)
	}
}

func TestHistoryWindow(t *testing.T) {
	cfg := DefaultCompilerConfig()
	cfg.HistoryTurns = 2
	c := NewCompiler(cfg)
	in := testBuildInput()
	in.History = []Turn{
		{Speaker: "Sam", Text: "first"},
		{Speaker: "Lyra", Text: "second"},
		{Speaker: "Sam", Text: "third"},
	}
	got, err := c.Build(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(got, "Sam: first") {
		t.Fatalf("history window leaked old turns:\n%s", got)
	}
	if !strings.Contains(got, "Sam: third") {
		t.Fatalf("latest turn missing:\n%s", got)
	}
}

func TestTimeOfDay(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{5, "morning"},
		{11, "morning"},
		{12, "afternoon"},
		{16, "afternoon"},
		{17, "evening"},
		{20, "evening"},
		{21, "late night"},
		{2, "late night"},
	}
	for _, tc := range cases {
		ts := time.Date(2026, 3, 14, tc.hour, 0, 0, 0, time.UTC)
		if got := TimeOfDay(ts); got != tc.want {
			t.Fatalf("TimeOfDay(hour=%d) = %q, want %q", tc.hour, got, tc.want)
		}
	}
}

func TestCharsEstimator(t *testing.T) {
	e := CharsEstimator{CharsPerToken: 4}
	if got := e.Estimate("12345678"); got != 2 {
		t.Fatalf("estimate = %d, want 2", got)
	}
	if got := e.Estimate("a"); got != 1 {
		t.Fatalf("minimum estimate = %d, want 1", got)
	}
}
