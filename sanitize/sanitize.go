// Package sanitize turns raw model output into clean in-character chat text.
// It runs an ordered list of named transforms; every transform is
// idempotent, so the whole pipeline can be re-applied to already-clean
// text without changing it.
package sanitize

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Request carries the per-turn context the transforms need beyond the raw
// text itself.
type Request struct {
	CharacterName string
	UserName      string
	// UserMessage is the message being replied to. The goodnight override
	// keys off it.
	UserMessage string
	// AvoidWords are per-character banned words. They are matched with
	// fresh word-boundary patterns on every call, never cached, since the
	// list is user-editable between turns.
	AvoidWords []string
}

// Transform is one named rewrite step.
type Transform struct {
	Name  string
	Apply func(text string, req Request) string
}

// Config controls pipeline construction.
type Config struct {
	Logger *zap.Logger
	// MaxSentences caps reply length after all removals. Zero means the
	// default of 3.
	MaxSentences int
}

// DefaultConfig returns the configuration used in production.
func DefaultConfig() Config {
	return Config{MaxSentences: 3}
}

// Pipeline runs the transform sequence.
type Pipeline struct {
	transforms []Transform
	log        *zap.Logger
}

// NewPipeline builds the standard pipeline. Order matters: structural
// rewrites (emoji, actions, parens) run first, content removals next,
// boundary cuts after that, and normalization plus length caps last.
func NewPipeline(config ...Config) *Pipeline {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MaxSentences <= 0 {
		cfg.MaxSentences = 3
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		log: log,
		transforms: []Transform{
			{"strip_emoji", stripEmoji},
			{"star_actions", starActions},
			{"flatten_parens", flattenParens},
			{"strip_reasoning", stripReasoning},
			{"strip_meta_parens", stripMetaParens},
			{"strip_brackets", stripBrackets},
			{"strip_meta_sentences", stripMetaSentences},
			{"strip_greeting_petnames", stripGreetingPetNames},
			{"strip_item_offers", stripItemOffers},
			{"strip_infantilizing", stripInfantilizing},
			{"strip_state_assumptions", stripStateAssumptions},
			{"collapse_stutter", collapseStutter},
			{"strip_filler", stripFiller},
			{"truncate_turns", truncateTurns},
			{"cut_stop_markers", cutStopMarkers},
			{"remove_avoid_words", removeAvoidWords},
			{"normalize_text", normalizeText},
			{"trim_incomplete_tail", trimIncompleteTail},
			{"trim_repeated_tail", trimRepeatedTail},
			{"cap_sentences", capSentencesN(cfg.MaxSentences)},
			{"strip_wrap_quotes", stripWrapQuotes},
		},
	}
}

// Clean sanitizes one reply.
func (p *Pipeline) Clean(text string, req Request) string {
	out, _ := p.CleanTrace(text, req)
	return out
}

// CleanTrace sanitizes one reply and reports which transforms changed it.
func (p *Pipeline) CleanTrace(text string, req Request) (string, []string) {
	if tmpl, ok := goodnightOverride(req); ok {
		if text != tmpl {
			p.log.Debug("sanitize: goodnight override",
				zap.String("user", req.UserName))
		}
		return tmpl, []string{"goodnight_override"}
	}

	var applied []string
	for _, tr := range p.transforms {
		next := tr.Apply(text, req)
		if next != text {
			applied = append(applied, tr.Name)
			p.log.Debug("sanitize: transform changed text",
				zap.String("transform", tr.Name),
				zap.Int("before", len(text)),
				zap.Int("after", len(next)))
			text = next
		}
	}
	return strings.TrimSpace(text), applied
}

// Transforms exposes the ordered transform names, for diagnostics.
func (p *Pipeline) Transforms() []string {
	names := make([]string, len(p.transforms))
	for i, tr := range p.transforms {
		names[i] = tr.Name
	}
	return names
}

// goodnightOverride short-circuits the whole pipeline when the user said
// goodnight: the reply is always the fixed template.
func goodnightOverride(req Request) (string, bool) {
	if !goodnightRe.MatchString(req.UserMessage) {
		return "", false
	}
	name := strings.TrimSpace(req.UserName)
	if name == "" {
		name = "friend"
	}
	return fmt.Sprintf("Goodnight %s ❤️", name), true
}
