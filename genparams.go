package oread

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sleddd/oread-companion/profile"
)

var goodnightMsgRe = regexp.MustCompile(`(?i)\bgood\s?night\b`)

// GenParams are the sampling settings for one generation.
type GenParams struct {
	MaxTokens   int
	Temperature float64
	// Guidance is extra prompt steering attached by the matched rule.
	Guidance string
	// Rule names the rule that produced these settings.
	Rule string
}

// StarterPrefix marks a synthetic message asking for a conversation opener
// rather than a reply.
const StarterPrefix = "[System: Generate a brief, natural conversation starter"

var (
	physicalWords     = []string{"kiss", "touch", "hold", "walk up", "bed", "nuzzle", "sexual", "intimate", "naked"}
	intellectualWords = []string{"think", "philosophy", "theory", "research", "study", "concept", "explore", "why", "how", "nature of", "consciousness"}
	distressWords     = []string{"worried", "concerned", "anxious", "stressed", "tough", "hard", "difficult", "struggling"}
)

const goodnightGuidance = "The user is saying goodnight. Reply with a single short goodnight line using their name and one heart, nothing else."

const wellnessGuidance = "Keep the reply grounded and reflective. When it fits, end with one gentle question that invites the user to notice how they feel."

// Per-rule steering, adopted into the prompt by the compiler.
const (
	starterGuidance = "Generate a brief, engaging opener. Keep it natural, one or two sentences, and do not use heart emojis."

	wellnessStarterGuidance = "Open with a calming presence cue and a warm greeting, then one gentle, open-ended check-in question. Two or three serene sentences, no playfulness, no heart emojis."

	heartGuidance = "The user sent a heart. Respond briefly and warmly with a red heart emoji, a few words at most."

	physicalGuidance = "The user initiated physical contact. Respond authentically in this moment with actions; react naturally rather than mirroring. Two or three sentences, responding to what they initiated without scripting what comes next."

	distressGuidance = "Calm presence. Short sentences. Acknowledge what they said; do not fix, diagnose, or amplify. No advice unless asked."

	anxietyGuidance = "Steady and calm. Simple, concrete language. Avoid complexity and uncertainty; be a stable presence."

	angerGuidance = "The user is frustrated or angry. Listen and validate, briefly. Do not help, fix, or calm them; let them vent."

	supportiveGuidance = "Gentle and present. Listen more than you advise. Stay grounded."

	enthusiasmGuidance = "Match their excitement authentically and share the moment. Natural, without over-inflation."

	explorationGuidance = "They are developing this topic. Elaborate, be thought-provoking, and invite further discussion naturally."

	intellectualGuidance = "Engage deeply: offer a counter-perspective or a sharp insight, then a curious follow-up. Keep it concise."

	naturalGuidance = "Engage authentically with the user's topic. If they are doing their own work, acknowledge it without inserting yourself. Vary your energy and keep it to two or three sentences."
)

type paramRule struct {
	name  string
	match func(ctx paramContext) bool
	apply func(ctx paramContext) GenParams
}

type paramContext struct {
	message  string // lowercased
	raw      string
	char     *profile.Character
	emotions []EmotionSignal
}

func (ctx paramContext) primaryCategory() string {
	primary, ok := Primary(ctx.emotions)
	if !ok {
		return CategoryNeutral
	}
	return CategoryOf(primary.Emotion)
}

func (ctx paramContext) primaryHigh() bool {
	primary, ok := Primary(ctx.emotions)
	return ok && HighIntensity(primary.Confidence)
}

func (ctx paramContext) containsAny(words []string) bool {
	for _, w := range words {
		if strings.Contains(ctx.message, w) {
			return true
		}
	}
	return false
}

func (ctx paramContext) romantic() bool {
	return ctx.char != nil && !ctx.char.Platonic()
}

func (ctx paramContext) wellness() bool {
	return ctx.char != nil && ctx.char.Wellness
}

// paramRules is evaluated in order; the first match wins. The default rule
// at the end always matches.
var paramRules = []paramRule{
	{
		name:  "starter",
		match: func(ctx paramContext) bool { return strings.HasPrefix(ctx.raw, StarterPrefix) },
		apply: func(ctx paramContext) GenParams {
			if ctx.wellness() {
				return GenParams{MaxTokens: 150, Temperature: 0.75, Guidance: wellnessStarterGuidance}
			}
			return GenParams{MaxTokens: 120, Temperature: 1.25, Guidance: starterGuidance}
		},
	},
	{
		name:  "goodnight",
		match: func(ctx paramContext) bool { return goodnightMsgRe.MatchString(ctx.message) },
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 60, Temperature: 0.85, Guidance: goodnightGuidance}
		},
	},
	{
		name:  "heart",
		match: func(ctx paramContext) bool { return strings.Contains(ctx.raw, "❤") },
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 60, Temperature: 0.85, Guidance: heartGuidance}
		},
	},
	{
		name: "physical_romantic",
		match: func(ctx paramContext) bool {
			return ctx.romantic() && ctx.containsAny(physicalWords)
		},
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 180, Temperature: 1.35, Guidance: physicalGuidance}
		},
	},
	{
		name: "high_distress",
		match: func(ctx paramContext) bool {
			return ctx.primaryCategory() == CategoryDistress && ctx.primaryHigh()
		},
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 100, Temperature: 0.60, Guidance: distressGuidance}
		},
	},
	{
		name: "high_anxiety",
		match: func(ctx paramContext) bool {
			return ctx.primaryCategory() == CategoryAnxiety && ctx.primaryHigh()
		},
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 110, Temperature: 0.65, Guidance: anxietyGuidance}
		},
	},
	{
		name: "high_anger",
		match: func(ctx paramContext) bool {
			return ctx.primaryCategory() == CategoryAnger && ctx.primaryHigh()
		},
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 90, Temperature: 0.70, Guidance: angerGuidance}
		},
	},
	{
		name:  "distress_topic",
		match: func(ctx paramContext) bool { return ctx.containsAny(distressWords) },
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 130, Temperature: 0.75, Guidance: supportiveGuidance}
		},
	},
	{
		name: "high_positive",
		match: func(ctx paramContext) bool {
			return ctx.primaryCategory() == CategoryPositive && ctx.primaryHigh()
		},
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 140, Temperature: 1.35, Guidance: enthusiasmGuidance}
		},
	},
	{
		name:  "engaged",
		match: func(ctx paramContext) bool { return ctx.primaryCategory() == CategoryEngaged },
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 600, Temperature: 1.25, Guidance: explorationGuidance}
		},
	},
	{
		name:  "intellectual",
		match: func(ctx paramContext) bool { return ctx.containsAny(intellectualWords) },
		apply: func(ctx paramContext) GenParams {
			return GenParams{MaxTokens: 600, Temperature: 1.25, Guidance: intellectualGuidance}
		},
	},
	{
		name:  "default",
		match: func(paramContext) bool { return true },
		apply: func(ctx paramContext) GenParams {
			switch ctx.primaryCategory() {
			case CategoryPositive:
				return GenParams{MaxTokens: 145, Temperature: 1.20, Guidance: naturalGuidance}
			case CategoryDistress, CategoryAnxiety:
				return GenParams{MaxTokens: 130, Temperature: 0.80, Guidance: naturalGuidance}
			}
			return GenParams{MaxTokens: 150, Temperature: 1.05, Guidance: naturalGuidance}
		},
	},
}

// ParamSelector picks generation parameters for a turn.
type ParamSelector struct {
	log *zap.Logger
}

// NewParamSelector builds a selector.
func NewParamSelector(logger ...*zap.Logger) *ParamSelector {
	log := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	return &ParamSelector{log: log}
}

// Select evaluates the rule table, then applies the wellness clamp for
// wellness characters. Wellness replies stay short and measured no matter
// which rule fired.
func (s *ParamSelector) Select(message string, char *profile.Character, emotions []EmotionSignal) GenParams {
	ctx := paramContext{
		message:  strings.ToLower(message),
		raw:      message,
		char:     char,
		emotions: emotions,
	}
	var params GenParams
	for _, rule := range paramRules {
		if rule.match(ctx) {
			params = rule.apply(ctx)
			params.Rule = rule.name
			break
		}
	}

	if ctx.wellness() && params.Rule != "starter" {
		if params.Temperature > 0.85 {
			params.Temperature = 0.85
		}
		if t := params.MaxTokens + 30; t < 180 {
			params.MaxTokens = t
		} else {
			params.MaxTokens = 180
		}
		if params.Guidance != "" {
			params.Guidance += " " + wellnessGuidance
		} else {
			params.Guidance = wellnessGuidance
		}
	}

	s.log.Debug("selected generation params",
		zap.String("rule", params.Rule),
		zap.Int("max_tokens", params.MaxTokens),
		zap.Float64("temperature", params.Temperature))
	return params
}
