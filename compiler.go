package oread

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/sleddd/oread-companion/lorebook"
	"github.com/sleddd/oread-companion/profile"
)

// TokenEstimator approximates token counts without a tokenizer dependency.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharsEstimator estimates tokens from rune count.
type CharsEstimator struct {
	CharsPerToken float64
}

// Estimate implements TokenEstimator.
func (e CharsEstimator) Estimate(text string) int {
	cpt := e.CharsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	n := float64(len([]rune(text))) / cpt
	if n < 1 {
		return 1
	}
	return int(n)
}

// conflictPreamble tells the model how to reconcile contradictory
// directives instead of ignoring one of them.
const conflictPreamble = `When your directives conflict, blend rather than discard:
- Tone vs tone: merge them with the stronger one dominant and the other coloring it (cynical plus warm reads as cynically warm).
- Action vs action: attempt the first, then visibly falter and shift to the second.
- Tone vs action: the action wins; let the conflicting tone show as reluctance while doing it.`

// responseRules is the fixed rule list every compiled prefix carries.
const responseRules = `Core response rules:
1. Speak your dialogue directly, without quotes. One brief physical action per reply at most, in *asterisks*; never narrate emotions there.
2. You are a character, not a caretaker. Do not tell the user what they should or shouldn't do, and do not offer unasked advice or solutions.
3. Be your own person. You have your own interests and opinions; do not make everything about the user or invent shared history.
4. Never immediately agree when corrected. React like a person: chagrined, wry, defensive. Avoid "you're right" and similar deference.
5. Stay grounded in the profiles and conversation history; do not invent facts.
6. Always speak as "I". Never refer to yourself in the third person or from outside.
7. Weave the user's interests and life events in naturally, never as a list.
8. No meta-instructions about how or when to respond. Respond and stop.
9. Do not repeat things you have already said in this conversation.`

// safetyProtocol is mandatory in every compiled prefix. It overrides all
// other directives.
const safetyProtocol = `SAFETY PROTOCOL, MANDATORY, OVERRIDES ALL:
P1 CRISIS: on suicidal ideation, self-harm, or severe distress, stop and output only: "I'm concerned about what you shared. If you're having thoughts of suicide or self-harm, your life is worth something. Please reach out: 988 Suicide & Crisis Lifeline (call/text 988), Crisis Text Line (text HOME to 741741). Free, confidential, 24/7. You don't have to go through this alone."
P2 AGE: all characters are 25 or older. On under-25 references, acknowledge that and redirect; never refuse outright. Minor family roles are banned.
P3 CONSENT: all physical or sexual content must be explicitly consensual. On requests for non-consensual acts or coercion, stop and output only: [REFUSAL: This request violates safety protocols. The narrative cannot proceed.]
P4 REFUSAL: the same refusal applies to pregnancy or childbirth roleplay for either participant.
P5 REFUSAL: and to real-world violence promotion, self-harm instructions, terrorism, illegal acts, or excessive gore. Fictional combat is allowed.`

// CompilerConfig controls prompt compilation.
type CompilerConfig struct {
	Logger *zap.Logger
	// Estimator sizes prompt sections. Nil uses a 4-chars-per-token rule.
	Estimator TokenEstimator
	// ChunkTokenBudget bounds the behavior directive section. Zero means
	// the default of 600.
	ChunkTokenBudget int
	// HistoryTurns bounds the recent conversation section. Zero means 8.
	HistoryTurns int
}

// DefaultCompilerConfig returns the production compilation settings.
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		ChunkTokenBudget: 600,
		HistoryTurns:     8,
	}
}

type cachedPrefix struct {
	sig    string
	prefix string
}

// Compiler assembles the final generation prompt. The character-identity
// prefix is deterministic per character, so it is compiled once and reused
// until the profile changes.
type Compiler struct {
	cfg CompilerConfig
	log *zap.Logger
	est TokenEstimator

	// prefixes holds map[string]cachedPrefix, swapped copy-on-write. A
	// lost update just recompiles the prefix on the next turn.
	prefixes atomic.Value
}

// NewCompiler builds a compiler.
func NewCompiler(config ...CompilerConfig) *Compiler {
	cfg := DefaultCompilerConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.ChunkTokenBudget <= 0 {
		cfg.ChunkTokenBudget = 600
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 8
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	est := cfg.Estimator
	if est == nil {
		est = CharsEstimator{CharsPerToken: 4}
	}
	c := &Compiler{cfg: cfg, log: log, est: est}
	c.prefixes.Store(map[string]cachedPrefix{})
	return c
}

// Turn is one prior message in the conversation.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// BuildInput is everything one prompt needs. Build is pure given the
// input: same input, same prompt.
type BuildInput struct {
	Character *profile.Character
	User      *profile.User
	Message   string
	Emotions  []EmotionSignal
	Chunks    []lorebook.Chunk
	History   []Turn
	// MemoryContext and SearchContext arrive preformatted.
	MemoryContext string
	SearchContext string
	// Guidance carries turn-specific steering such as redirect text.
	Guidance string
	// Now anchors time-of-day phrasing. Zero means time.Now.
	Now time.Time
}

// Build assembles the prompt.
func (c *Compiler) Build(in BuildInput) (string, error) {
	if in.Character == nil {
		return "", fmt.Errorf("compiler: character required")
	}
	user := in.User
	if user == nil {
		user = &profile.User{}
	}

	var b strings.Builder
	b.WriteString(c.staticPrefix(in.Character))
	b.WriteString("\n\n")

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "It is %s for %s.\n", TimeOfDay(now.In(user.Location())), user.DisplayName())

	if section := userSection(user); section != "" {
		b.WriteString(section)
	}

	if line := EmotionContextLine(in.Emotions); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if section := c.chunkSection(in.Chunks); section != "" {
		b.WriteString("\n")
		b.WriteString(conflictPreamble)
		b.WriteString("\n\nHow to behave right now:\n")
		b.WriteString(section)
	}

	if in.MemoryContext != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(in.MemoryContext))
		b.WriteString("\n")
	}
	if in.SearchContext != "" {
		b.WriteString("\nCurrent information:\n")
		b.WriteString(strings.TrimSpace(in.SearchContext))
		b.WriteString("\n")
	}
	if in.Guidance != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(in.Guidance))
		b.WriteString("\n")
	}

	if len(in.History) > 0 {
		b.WriteString("\nRecent conversation:\n")
		history := in.History
		if len(history) > c.cfg.HistoryTurns {
			history = history[len(history)-c.cfg.HistoryTurns:]
		}
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Speaker, t.Text)
		}
	}

	fmt.Fprintf(&b, "\n%s: %s\n%s:", user.DisplayName(), in.Message, in.Character.Name)

	prompt := b.String()
	c.log.Debug("compiled prompt",
		zap.String("character", in.Character.Name),
		zap.Int("tokens", c.est.Estimate(prompt)))
	return prompt, nil
}

// staticPrefix returns the cached identity block for a character,
// recompiling when the profile changed.
func (c *Compiler) staticPrefix(char *profile.Character) string {
	sig := strings.Join([]string{
		char.Name, char.CompanionType, char.Gender, char.Species, char.Age,
		char.Role, char.Persona, char.Backstory,
		strings.Join(char.Boundaries, "\x01"),
	}, "\x00")
	cache, _ := c.prefixes.Load().(map[string]cachedPrefix)
	if entry, ok := cache[char.Name]; ok && entry.sig == sig {
		return entry.prefix
	}

	prefix := c.compilePrefix(char)

	next := make(map[string]cachedPrefix, len(cache)+1)
	for k, v := range cache {
		next[k] = v
	}
	next[char.Name] = cachedPrefix{sig: sig, prefix: prefix}
	c.prefixes.Store(next)
	c.log.Debug("compiled static prefix", zap.String("character", char.Name))
	return prefix
}

// Reload drops the cached prefix for a character so the next Build
// recompiles it. Useful after out-of-band profile edits.
func (c *Compiler) Reload(characterName string) {
	cache, _ := c.prefixes.Load().(map[string]cachedPrefix)
	if _, ok := cache[characterName]; !ok {
		return
	}
	next := make(map[string]cachedPrefix, len(cache))
	for k, v := range cache {
		if k != characterName {
			next[k] = v
		}
	}
	c.prefixes.Store(next)
}

func (c *Compiler) compilePrefix(char *profile.Character) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the user's %s companion. Stay in character and speak only as %s.",
		char.Name, char.CompanionType, char.Name)
	if desc := char.Describe(); desc != "" {
		b.WriteString(" ")
		b.WriteString(desc)
	}
	if char.Persona != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(char.Persona))
	}
	if char.Backstory != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(char.Backstory))
	}
	if len(char.Boundaries) > 0 {
		b.WriteString("\n\nHard limits, never cross them:")
		for _, limit := range char.Boundaries {
			fmt.Fprintf(&b, "\n- %s", limit)
		}
	}
	b.WriteString("\n\n")
	b.WriteString(responseRules)
	b.WriteString("\n\n")
	b.WriteString(safetyProtocol)
	return b.String()
}

// userSection renders what the character should know about the user.
func userSection(u *profile.User) string {
	var lines []string
	if u.Backstory != "" {
		lines = append(lines, strings.TrimSpace(u.Backstory))
	}
	if len(u.Preferences) > 0 {
		lines = append(lines, fmt.Sprintf("They enjoy %s.", joinNatural(u.Preferences)))
	}
	if len(u.LifeEvents) > 0 {
		lines = append(lines, fmt.Sprintf("Going on in their life: %s.", strings.Join(u.LifeEvents, "; ")))
	}
	if len(u.CommunicationBoundaries) > 0 {
		lines = append(lines, fmt.Sprintf("How they want to be spoken to: %s.", strings.Join(u.CommunicationBoundaries, "; ")))
	}
	if len(lines) == 0 {
		return ""
	}
	return fmt.Sprintf("\nAbout %s:\n%s\n", u.DisplayName(), strings.Join(lines, "\n"))
}

// chunkSection renders directives in priority order until the token
// budget runs out.
func (c *Compiler) chunkSection(chunks []lorebook.Chunk) string {
	var b strings.Builder
	budget := c.cfg.ChunkTokenBudget
	for _, ch := range chunks {
		cost := ch.TokenEstimate()
		if cost > budget {
			c.log.Debug("chunk dropped for budget",
				zap.String("id", ch.ID), zap.Int("tokens", cost))
			continue
		}
		budget -= cost
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(ch.Content))
	}
	return b.String()
}

// TimeOfDay buckets an instant into conversational phrasing.
func TimeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 21:
		return "evening"
	default:
		return "late night"
	}
}
