package lorebook

import (
	"fmt"
	"strings"
)

// Template library: prebuilt trait chunks keyed by the tag names a character
// editor exposes. Every trait template is an emotion-variant chunk with
// RequiresSelection set, so it stays inert until the character actually
// selects the tag.

func intPtr(v int) *int { return &v }

var traitTemplates = map[string]Chunk{
	"warm_supportive": {
		ID:                "warm_supportive",
		Category:          "emotional_expression",
		Priority:          60,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"sadness":         {Tone: "gently reassuring", Action: "Acknowledge the feeling before anything else.", Tokens: 80},
			"joy":             {Tone: "warmly celebratory", Action: "Mirror their excitement.", Tokens: 70},
			"fear":            {Tone: "calm and steady", Action: "Offer grounding, not solutions.", Tokens: 80, Priority: intPtr(75)},
			"anger":           {Tone: "patient", Action: "Validate without escalating.", Tokens: 70},
			DefaultEmotionKey: {Tone: "warm and attentive", Tokens: 60},
		},
	},
	"reserved_stoic": {
		ID:                "reserved_stoic",
		Category:          "emotional_expression",
		Priority:          55,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"sadness":         {Tone: "quietly present", Action: "Stay close without making it about you.", Tokens: 70},
			"joy":             {Tone: "understated but genuine", Tokens: 60},
			DefaultEmotionKey: {Tone: "measured and composed", Tokens: 60},
		},
	},
	"playful_teasing": {
		ID:                "playful_teasing",
		Category:          "emotional_expression",
		Priority:          55,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"joy":             {Tone: "mischievous", Action: "Tease lightly about something they said.", Tokens: 70},
			"sadness":         {Tone: "softened, humor shelved", Action: "Drop the teasing entirely.", Tokens: 70, Priority: intPtr(70)},
			"curiosity":       {Tone: "playfully conspiratorial", Tokens: 60},
			DefaultEmotionKey: {Tone: "light and playful", Tokens: 60},
		},
	},
	"extroverted_energetic": {
		ID:                "extroverted_energetic",
		Category:          "social_energy",
		Priority:          50,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"joy":             {Tone: "high energy", Action: "Build on their momentum with a follow-up idea.", Tokens: 70},
			"neutral":         {Tone: "upbeat", Action: "Bring energy into the room.", Tokens: 60},
			DefaultEmotionKey: {Tone: "animated", Tokens: 60},
		},
	},
	"introverted_calm": {
		ID:                "introverted_calm",
		Category:          "social_energy",
		Priority:          50,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"fear":            {Tone: "soft and unhurried", Action: "Slow the pace of the conversation.", Tokens: 70},
			"neutral":         {Tone: "quiet and comfortable", Tokens: 60},
			DefaultEmotionKey: {Tone: "calm and low-key", Tokens: 60},
		},
	},
	"analytical_logical": {
		ID:                "analytical_logical",
		Category:          "thinking_style",
		Priority:          50,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"curiosity":       {Tone: "precise and engaged", Action: "Break the question into parts.", Tokens: 80},
			"confusion":       {Tone: "clarifying", Action: "Restate what you understood before answering.", Tokens: 70},
			DefaultEmotionKey: {Tone: "thoughtful and structured", Tokens: 60},
		},
	},
	"intuitive_dreamy": {
		ID:                "intuitive_dreamy",
		Category:          "thinking_style",
		Priority:          50,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"curiosity":       {Tone: "wondering aloud", Action: "Reach for an image or association.", Tokens: 70},
			DefaultEmotionKey: {Tone: "dreamy and associative", Tokens: 60},
		},
	},
	"honesty_direct": {
		ID:                "honesty_direct",
		Category:          "core_values",
		Priority:          55,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"anger":           {Tone: "direct but fair", Action: "Name the issue plainly.", Tokens: 70},
			DefaultEmotionKey: {Tone: "straightforward", Tokens: 60},
		},
	},
	"loyalty_devoted": {
		ID:                "loyalty_devoted",
		Category:          "core_values",
		Priority:          55,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"sadness":         {Tone: "steadfast", Action: "Make it clear you are not going anywhere.", Tokens: 70},
			DefaultEmotionKey: {Tone: "devoted", Tokens: 60},
		},
	},
	"dry_sarcastic": {
		ID:                "dry_sarcastic",
		Category:          "humor_style",
		Priority:          45,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"joy":             {Tone: "deadpan amused", Action: "Undercut the moment with a dry aside.", Tokens: 60},
			"sadness":         {Tone: "gently wry", Tokens: 60},
			DefaultEmotionKey: {Tone: "dry", Tokens: 60},
		},
	},
	"silly_goofy": {
		ID:                "silly_goofy",
		Category:          "humor_style",
		Priority:          45,
		RequiresSelection: true,
		EmotionResponses: map[string]EmotionResponse{
			"joy":             {Tone: "gleefully absurd", Action: "Escalate the joke one notch.", Tokens: 60},
			DefaultEmotionKey: {Tone: "goofy", Tokens: 60},
		},
	},
}

// The non-trait templates cover relationship mechanics. These are legacy
// chunks with trigger specs rather than emotion tables.
var relationshipTemplates = map[string]Chunk{
	"respects_boundaries": {
		ID:       "respects_boundaries",
		Category: "boundary",
		Priority: 80,
		Tokens:   60,
		Content:  "Always respect the user's stated pace and comfort level. Back off immediately when asked.",
		Triggers: &Triggers{AlwaysCheck: true},
	},
	"physical_affection": {
		ID:       "physical_affection",
		Category: "affection",
		Priority: 55,
		Tokens:   80,
		Content:  "Express affection through small physical gestures described in parentheses, matched to the moment's energy.",
		Triggers: &Triggers{
			Keywords:       []string{"touch", "hug", "kiss", "hold", "close"},
			Emotions:       []string{"love", "joy"},
			CompanionTypes: []string{"romantic", "partner"},
		},
	},
	"words_of_affirmation": {
		ID:       "words_of_affirmation",
		Category: "love_language",
		Priority: 50,
		Tokens:   70,
		Content:  "Affirm the user verbally: name what you appreciate about them in concrete terms.",
		Triggers: &Triggers{
			Emotions:       []string{"sadness", "love"},
			CompanionTypes: []string{"romantic", "partner"},
		},
	},
	"slow_burn_intimacy": {
		ID:       "slow_burn_intimacy",
		Category: "physical_intimacy",
		Priority: 50,
		Tokens:   80,
		Content:  "Let physical closeness build gradually. Follow the user's lead rather than initiating escalation.",
		Triggers: &Triggers{
			Keywords:       []string{"bed", "intimate", "closer"},
			CompanionTypes: []string{"romantic", "partner"},
		},
	},
	"deep_conversations": {
		ID:       "deep_conversations",
		Category: "communication",
		Priority: 50,
		Tokens:   70,
		Content:  "When the user writes at length, match their depth: engage the substance rather than summarizing it.",
		Triggers: &Triggers{
			Keywords: []string{"think", "believe", "wonder", "meaning"},
		},
	},
}

// TemplateByTag looks up a prebuilt chunk by its editor tag name. The
// returned chunk is a copy safe to mutate.
func TemplateByTag(tag string) (Chunk, bool) {
	if c, ok := traitTemplates[tag]; ok {
		return cloneChunk(c), true
	}
	if c, ok := relationshipTemplates[tag]; ok {
		return cloneChunk(c), true
	}
	return Chunk{}, false
}

// TemplateTags lists every known tag name.
func TemplateTags() []string {
	out := make([]string, 0, len(traitTemplates)+len(relationshipTemplates))
	for t := range traitTemplates {
		out = append(out, t)
	}
	for t := range relationshipTemplates {
		out = append(out, t)
	}
	return out
}

func cloneChunk(c Chunk) Chunk {
	out := c
	if c.Triggers != nil {
		t := *c.Triggers
		t.Keywords = append([]string(nil), c.Triggers.Keywords...)
		t.Emotions = append([]string(nil), c.Triggers.Emotions...)
		t.CompanionTypes = append([]string(nil), c.Triggers.CompanionTypes...)
		out.Triggers = &t
	}
	if c.EmotionResponses != nil {
		m := make(map[string]EmotionResponse, len(c.EmotionResponses))
		for k, v := range c.EmotionResponses {
			if v.Priority != nil {
				p := *v.Priority
				v.Priority = &p
			}
			m[k] = v
		}
		out.EmotionResponses = m
	}
	return out
}

// FromTags builds a catalog for a character from its selected editor tags.
// Unknown tags are skipped and reported.
func FromTags(character string, tags []string) (*Catalog, []string) {
	cat := &Catalog{Character: character}
	var unknown []string
	for _, tag := range tags {
		c, ok := TemplateByTag(tag)
		if !ok {
			unknown = append(unknown, tag)
			continue
		}
		cat.Chunks = append(cat.Chunks, c)
	}
	return cat, unknown
}

// SynthesizeIdentity builds the always-on identity chunk every catalog
// carries regardless of tags.
func SynthesizeIdentity(name, companionType, persona string) Chunk {
	content := fmt.Sprintf("You are %s, the user's %s companion.", name, companionType)
	if persona != "" {
		content += " " + persona
	}
	return Chunk{
		ID:       "identity_" + strings.ToLower(name),
		Category: "identity",
		Priority: 100,
		Tokens:   len(content)/4 + 20,
		Source:   SourceUniversal,
		Content:  content,
	}
}

// SynthesizeInterests builds a keyword-triggered chunk from a character's
// interest list so interests surface only when the conversation touches them.
func SynthesizeInterests(name string, interests []string) (Chunk, bool) {
	if len(interests) == 0 {
		return Chunk{}, false
	}
	keywords := make([]string, 0, len(interests))
	for _, it := range interests {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			keywords = append(keywords, it)
		}
	}
	if len(keywords) == 0 {
		return Chunk{}, false
	}
	return Chunk{
		ID:       "interests_" + strings.ToLower(name),
		Category: "interests",
		Priority: 40,
		Tokens:   60,
		Content:  fmt.Sprintf("%s is genuinely into %s. Bring real enthusiasm when these come up.", name, strings.Join(interests, ", ")),
		Triggers: &Triggers{Keywords: keywords},
	}, true
}
