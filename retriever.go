package oread

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sleddd/oread-companion/lorebook"
	"github.com/sleddd/oread-companion/profile"
)

// Categories stripped for platonic companion types.
var romanticCategories = map[string]bool{
	"love_language":     true,
	"physical_intimacy": true,
}

// IDs carrying these markers get their keyword weight dampened when the
// conversation reads as gentle.
var heavyToneMarkers = []string{"dominant", "aggressive", "intense", "sexual"}

var touchWords = []string{"touch", "hug", "kiss", "hold"}

// ScoringWeights are the relevance weights. The values are tuned, not
// structural: adjusting them changes ranking quality, not correctness.
type ScoringWeights struct {
	SelectionBonus      int // requires_selection chunk whose tag is selected
	EmotionExact        int // emotion chunk matching the primary emotion
	EmotionBlendedScale int // scaled by confidence for top-3 matches
	EmotionDefault      int // emotion chunk falling back to its default key
	KeywordMessage      int // trigger keyword present in the user message
	KeywordDampGentle   int // replaces KeywordMessage for heavy chunks in gentle context
	KeywordDampSexual   int // replaces KeywordMessage for sexual chunks without intense context
	KeywordHistory      int // trigger keyword present in recent history
	TriggerEmotionScale int // scaled by confidence for trigger emotion matches
	TriggerEmotionFlat  int // single-emotion fallback when no confidence applies
	CompanionType       int // chunk allowlist names this companion type
	BoostBoundary       int
	BoostAffectionHigh  int // affection chunk with touch words, gentle context
	BoostAffectionLow   int
	BoostCommunication  int // communication chunk on a long message
}

// DefaultScoringWeights returns the production weights.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		SelectionBonus:      30,
		EmotionExact:        40,
		EmotionBlendedScale: 30,
		EmotionDefault:      10,
		KeywordMessage:      20,
		KeywordDampGentle:   5,
		KeywordDampSexual:   8,
		KeywordHistory:      5,
		TriggerEmotionScale: 25,
		TriggerEmotionFlat:  25,
		CompanionType:       5,
		BoostBoundary:       3,
		BoostAffectionHigh:  10,
		BoostAffectionLow:   5,
		BoostCommunication:  3,
	}
}

// RetrieverConfig controls retrieval.
type RetrieverConfig struct {
	MaxChunks int
	Weights   ScoringWeights
	Logger    *zap.Logger
}

// DefaultRetrieverConfig returns the production retrieval settings.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		MaxChunks: 6,
		Weights:   DefaultScoringWeights(),
	}
}

// Retriever selects the lorebook chunks relevant to one turn.
type Retriever struct {
	cfg RetrieverConfig
	log *zap.Logger
}

// NewRetriever builds a retriever.
func NewRetriever(config ...RetrieverConfig) *Retriever {
	cfg := DefaultRetrieverConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 6
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{cfg: cfg, log: log}
}

// Query is one retrieval request.
type Query struct {
	Message        string
	HistoryContext string
	Emotions       []EmotionSignal
	Character      *profile.Character
	// SelectedTags gates requires_selection chunks. Nil falls back to the
	// character's own selected tag set.
	SelectedTags map[string]bool
}

func (q *Query) selected() map[string]bool {
	if q.SelectedTags != nil {
		return q.SelectedTags
	}
	if q.Character != nil {
		return q.Character.SelectedTagSet()
	}
	return nil
}

type scoredChunk struct {
	chunk lorebook.Chunk
	score int
}

// Retrieve returns the ranked chunk set for the turn: the top scoring
// chunks up to MaxChunks, unioned with always-include chunks, ordered by
// priority descending.
func (r *Retriever) Retrieve(cat *lorebook.Catalog, q Query) []lorebook.Chunk {
	if cat == nil || q.Character == nil {
		return nil
	}
	chunks := r.dedupe(cat.Chunks)
	chunks = r.filterRomantic(chunks, q.Character)

	var always []lorebook.Chunk
	var scorable []lorebook.Chunk
	for _, c := range chunks {
		if !c.AllowedFor(q.Character.CompanionType) {
			continue
		}
		if c.AlwaysInclude() {
			always = append(always, c)
			continue
		}
		scorable = append(scorable, c)
	}

	mood := DetectMood(q.Message)
	selected := q.selected()

	var scored []scoredChunk
	for _, c := range scorable {
		s := r.score(c, q, mood, selected)
		if s > 0 {
			scored = append(scored, scoredChunk{chunk: c, score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].chunk.Priority > scored[j].chunk.Priority
	})
	if len(scored) > r.cfg.MaxChunks {
		scored = scored[:r.cfg.MaxChunks]
	}

	out := make([]lorebook.Chunk, 0, len(always)+len(scored))
	out = append(out, always...)
	for _, s := range scored {
		out = append(out, s.chunk)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})

	r.log.Debug("retrieved chunks",
		zap.Int("always", len(always)),
		zap.Int("scored", len(scored)),
		zap.Int("total", len(out)))
	return out
}

// dedupe drops later chunks sharing an earlier chunk's ID. Chunks without
// an ID cannot collide, so they pass through with a warning.
func (r *Retriever) dedupe(chunks []lorebook.Chunk) []lorebook.Chunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]lorebook.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			r.log.Warn("skipping invalid chunk", zap.Error(err))
			continue
		}
		if c.ID == "" {
			r.log.Warn("chunk without id", zap.String("category", c.Category))
			out = append(out, c)
			continue
		}
		if seen[c.ID] {
			r.log.Warn("duplicate chunk id", zap.String("id", c.ID))
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func (r *Retriever) filterRomantic(chunks []lorebook.Chunk, char *profile.Character) []lorebook.Chunk {
	if !char.Platonic() {
		return chunks
	}
	out := chunks[:0:0]
	for _, c := range chunks {
		if romanticCategories[c.Category] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *Retriever) score(c lorebook.Chunk, q Query, mood Mood, selected map[string]bool) int {
	w := r.cfg.Weights
	score := 0

	if c.RequiresSelection {
		if !selected[c.ID] {
			return 0
		}
		score += w.SelectionBonus
	}

	if c.Kind() == lorebook.KindEmotionVariant {
		return score + r.scoreEmotionVariant(c, q)
	}

	message := strings.ToLower(q.Message)
	history := strings.ToLower(q.HistoryContext)

	if c.Triggers != nil {
		// Every matched keyword accumulates, so a chunk matching three
		// keywords outranks one matching a single keyword. A keyword
		// already credited against the message earns nothing from history.
		for _, kw := range c.Triggers.Keywords {
			kw = strings.ToLower(kw)
			if kw == "" {
				continue
			}
			if strings.Contains(message, kw) {
				score += r.keywordWeight(c, mood)
			} else if strings.Contains(history, kw) {
				score += w.KeywordHistory
			}
		}
		score += r.scoreTriggerEmotions(c.Triggers.Emotions, q.Emotions)
		for _, t := range c.Triggers.CompanionTypes {
			if t == q.Character.CompanionType {
				score += w.CompanionType
				break
			}
		}
	}

	score += r.categoryBoost(c, q, mood)
	return score
}

// keywordWeight dampens heavy content when the conversation is soft.
func (r *Retriever) keywordWeight(c lorebook.Chunk, mood Mood) int {
	w := r.cfg.Weights
	id := strings.ToLower(c.ID)
	if mood.Gentle {
		for _, marker := range heavyToneMarkers {
			if strings.Contains(id, marker) {
				return w.KeywordDampGentle
			}
		}
	}
	if strings.Contains(id, "sexual") && !mood.Intense {
		return w.KeywordDampSexual
	}
	return w.KeywordMessage
}

// scoreEmotionVariant scores a per-emotion chunk on emotion match alone.
// Keyword and companion boosts do not apply to these.
func (r *Retriever) scoreEmotionVariant(c lorebook.Chunk, q Query) int {
	w := r.cfg.Weights
	if primary, ok := Primary(q.Emotions); ok {
		if _, exact := c.EmotionResponses[strings.ToLower(primary.Emotion)]; exact {
			return w.EmotionExact
		}
		for _, sig := range TopN(q.Emotions, 3) {
			if _, ok := c.EmotionResponses[strings.ToLower(sig.Emotion)]; ok {
				return int(float64(w.EmotionBlendedScale) * sig.Confidence)
			}
		}
	}
	if _, ok := c.EmotionResponses[lorebook.DefaultEmotionKey]; ok {
		return w.EmotionDefault
	}
	return 0
}

func (r *Retriever) scoreTriggerEmotions(triggers []string, signals []EmotionSignal) int {
	if len(triggers) == 0 {
		return 0
	}
	w := r.cfg.Weights
	if len(signals) == 0 {
		return 0
	}
	trigSet := make(map[string]bool, len(triggers))
	for _, t := range triggers {
		trigSet[strings.ToLower(t)] = true
	}
	score := 0
	matched := false
	for _, sig := range TopN(signals, 3) {
		if trigSet[strings.ToLower(sig.Emotion)] {
			score += int(float64(w.TriggerEmotionScale) * sig.Confidence)
			matched = true
		}
	}
	if matched && score == 0 {
		score = w.TriggerEmotionFlat
	}
	return score
}

func (r *Retriever) categoryBoost(c lorebook.Chunk, q Query, mood Mood) int {
	w := r.cfg.Weights
	switch c.Category {
	case "boundary":
		return w.BoostBoundary
	case "affection":
		message := strings.ToLower(q.Message)
		for _, t := range touchWords {
			if strings.Contains(message, t) {
				if mood.Gentle {
					return w.BoostAffectionHigh
				}
				return w.BoostAffectionLow
			}
		}
	case "communication":
		if len(strings.Fields(q.Message)) > 30 {
			return w.BoostCommunication
		}
	}
	return 0
}
