// Package lorebook defines the behavior-chunk data model: the unit of
// character-personality instruction that gets scored, ranked, and injected
// into a generation prompt.
package lorebook

import (
	"fmt"
)

// ChunkKind discriminates the two content variants a chunk can carry.
type ChunkKind int

const (
	// KindInvalid marks chunks that carry neither variant.
	KindInvalid ChunkKind = iota
	// KindLegacy chunks carry literal content plus trigger conditions.
	KindLegacy
	// KindEmotionVariant chunks carry per-emotion tone/action responses.
	KindEmotionVariant
)

// Triggers describes when a legacy chunk becomes relevant.
type Triggers struct {
	Keywords       []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Emotions       []string `yaml:"emotions,omitempty" json:"emotions,omitempty"`
	CompanionTypes []string `yaml:"companion_types,omitempty" json:"companion_types,omitempty"`
	AlwaysCheck    bool     `yaml:"always_check,omitempty" json:"always_check,omitempty"`
}

// EmotionResponse is one entry of an emotion-variant chunk: how to sound
// (tone) and what to do (action) when the user shows that emotion.
type EmotionResponse struct {
	Tone     string `yaml:"tone,omitempty" json:"tone,omitempty"`
	Action   string `yaml:"action,omitempty" json:"action,omitempty"`
	Tokens   int    `yaml:"tokens,omitempty" json:"tokens,omitempty"`
	Priority *int   `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// DefaultEmotionKey is the fallback key inside EmotionResponses.
const DefaultEmotionKey = "default"

// Chunk is a single behavior directive. Exactly one of the two content
// variants is expected: Content+Triggers (legacy) or EmotionResponses.
type Chunk struct {
	ID       string `yaml:"id" json:"id"`
	Category string `yaml:"category" json:"category"`
	Priority int    `yaml:"priority" json:"priority"`
	Tokens   int    `yaml:"tokens,omitempty" json:"tokens,omitempty"`
	Source   string `yaml:"source,omitempty" json:"source,omitempty"`

	// RequiresSelection makes the chunk inert unless its ID is in the
	// caller's selected-tag set.
	RequiresSelection bool `yaml:"requires_selection,omitempty" json:"requires_selection,omitempty"`

	Content  string    `yaml:"content,omitempty" json:"content,omitempty"`
	Triggers *Triggers `yaml:"triggers,omitempty" json:"triggers,omitempty"`

	EmotionResponses map[string]EmotionResponse `yaml:"emotion_responses,omitempty" json:"emotion_responses,omitempty"`

	// CombinedFrom records source chunk IDs when this chunk was synthesized
	// by category merging.
	CombinedFrom []string `yaml:"-" json:"combined_from,omitempty"`
}

// SourceUniversal marks chunks that bypass scoring regardless of triggers.
const SourceUniversal = "universal"

// Kind reports which content variant the chunk carries.
func (c *Chunk) Kind() ChunkKind {
	if len(c.EmotionResponses) > 0 {
		return KindEmotionVariant
	}
	if c.Content != "" {
		return KindLegacy
	}
	return KindInvalid
}

// AlwaysInclude reports whether the chunk bypasses scoring entirely.
// Companion-type allowlists still apply on top of this.
func (c *Chunk) AlwaysInclude() bool {
	if c.Source == SourceUniversal {
		return true
	}
	return c.Triggers != nil && c.Triggers.AlwaysCheck
}

// AllowedFor reports whether the chunk may appear for the given companion
// type. Chunks without a companion_types allowlist are allowed everywhere.
func (c *Chunk) AllowedFor(companionType string) bool {
	if c.Triggers == nil || len(c.Triggers.CompanionTypes) == 0 {
		return true
	}
	for _, t := range c.Triggers.CompanionTypes {
		if t == companionType {
			return true
		}
	}
	return false
}

// TokenEstimate returns the chunk's token estimate with a sane floor for
// chunks authored without one.
func (c *Chunk) TokenEstimate() int {
	if c.Tokens > 0 {
		return c.Tokens
	}
	if c.Kind() == KindEmotionVariant {
		return 70
	}
	return 100
}

// Validate checks that the chunk carries exactly one usable content variant.
// Chunks failing validation are skipped by the retriever, not fatal.
func (c *Chunk) Validate() error {
	if c.Category == "" {
		return fmt.Errorf("chunk %q: missing category", c.ID)
	}
	switch {
	case len(c.EmotionResponses) > 0 && c.Content != "":
		return fmt.Errorf("chunk %q: both content and emotion_responses set", c.ID)
	case len(c.EmotionResponses) == 0 && c.Content == "":
		return fmt.Errorf("chunk %q: no content", c.ID)
	}
	return nil
}
