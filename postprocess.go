package oread

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sleddd/oread-companion/lorebook"
)

// Categories whose resolved chunks get merged into one directive so the
// prompt reads as a single personality rather than a trait list.
var combinableCategories = map[string]bool{
	"emotional_expression": true,
	"social_energy":        true,
	"thinking_style":       true,
	"core_values":          true,
	"humor_style":          true,
}

// SourceCombined marks chunks produced by category merging.
const SourceCombined = "combined"

const combinedTokenCap = 150

// PostProcessor turns retrieved chunks into final prompt-ready directives:
// emotion variants get resolved against the user's current emotions, and
// same-category trait chunks get merged.
type PostProcessor struct {
	log *zap.Logger
}

// NewPostProcessor builds a post-processor.
func NewPostProcessor(logger ...*zap.Logger) *PostProcessor {
	log := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	return &PostProcessor{log: log}
}

// Process resolves and combines chunks. Input order is the retriever's
// priority order; output is re-sorted by priority after combining.
func (p *PostProcessor) Process(chunks []lorebook.Chunk, emotions []EmotionSignal) []lorebook.Chunk {
	resolved := make([]lorebook.Chunk, 0, len(chunks))
	for _, c := range chunks {
		rc, ok := p.resolve(c, emotions)
		if !ok {
			p.log.Debug("chunk resolved to nothing", zap.String("id", c.ID))
			continue
		}
		resolved = append(resolved, rc)
	}
	return p.combine(resolved)
}

// resolve collapses an emotion-variant chunk to plain content for the
// current emotional state. Legacy chunks pass through unchanged.
func (p *PostProcessor) resolve(c lorebook.Chunk, emotions []EmotionSignal) (lorebook.Chunk, bool) {
	if c.Kind() != lorebook.KindEmotionVariant {
		return c, c.Content != ""
	}

	resp, ok := p.matchResponse(c, emotions)
	if !ok {
		return lorebook.Chunk{}, false
	}

	content := synthesizeContent(resp)
	if content == "" {
		return lorebook.Chunk{}, false
	}

	out := c
	out.EmotionResponses = nil
	out.Content = content
	out.Tokens = resp.Tokens
	if out.Tokens <= 0 {
		out.Tokens = 70
	}
	if resp.Priority != nil {
		out.Priority = *resp.Priority
	}
	return out, true
}

// matchResponse picks the response for the user's state: exact primary
// emotion first, then any of the top three, then the default key.
func (p *PostProcessor) matchResponse(c lorebook.Chunk, emotions []EmotionSignal) (lorebook.EmotionResponse, bool) {
	if primary, ok := Primary(emotions); ok {
		if resp, exact := c.EmotionResponses[strings.ToLower(primary.Emotion)]; exact {
			return resp, true
		}
		for _, sig := range TopN(emotions, 3) {
			if resp, ok := c.EmotionResponses[strings.ToLower(sig.Emotion)]; ok {
				return resp, true
			}
		}
	}
	resp, ok := c.EmotionResponses[lorebook.DefaultEmotionKey]
	return resp, ok
}

func synthesizeContent(resp lorebook.EmotionResponse) string {
	action := strings.TrimSpace(resp.Action)
	tone := strings.TrimSpace(resp.Tone)
	switch {
	case action != "" && tone != "":
		return fmt.Sprintf("%s Use %s tone.", action, tone)
	case action != "":
		return action
	case tone != "":
		return fmt.Sprintf("Use %s tone.", tone)
	}
	return ""
}

// combine merges same-category trait chunks into one directive per
// category, then re-sorts everything by priority.
func (p *PostProcessor) combine(chunks []lorebook.Chunk) []lorebook.Chunk {
	groups := make(map[string][]lorebook.Chunk)
	var out []lorebook.Chunk
	for _, c := range chunks {
		if combinableCategories[c.Category] {
			groups[c.Category] = append(groups[c.Category], c)
			continue
		}
		out = append(out, c)
	}

	// Deterministic category order.
	cats := make([]string, 0, len(groups))
	for cat := range groups {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	for _, cat := range cats {
		group := groups[cat]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		out = append(out, p.combineGroup(cat, group))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

func (p *PostProcessor) combineGroup(category string, group []lorebook.Chunk) lorebook.Chunk {
	var actions, tones, ids []string
	priority := 0
	tokens := 0
	seenTone := map[string]bool{}
	for _, c := range group {
		action, tone := splitDirective(c.Content)
		if action != "" {
			actions = append(actions, action)
		}
		if tone != "" && !seenTone[tone] {
			seenTone[tone] = true
			tones = append(tones, tone)
		}
		if c.Priority > priority {
			priority = c.Priority
		}
		tokens += c.TokenEstimate()
		ids = append(ids, c.ID)
	}
	if tokens > combinedTokenCap {
		tokens = combinedTokenCap
	}

	content := strings.Join(actions, " ")
	if len(tones) > 0 {
		tonePart := fmt.Sprintf("Use %s tone.", joinNatural(tones))
		if content != "" {
			content += " " + tonePart
		} else {
			content = tonePart
		}
	}

	p.log.Debug("combined category chunks",
		zap.String("category", category),
		zap.Strings("ids", ids))

	return lorebook.Chunk{
		ID:           "combined_" + category,
		Category:     category,
		Priority:     priority,
		Tokens:       tokens,
		Source:       SourceCombined,
		Content:      content,
		CombinedFrom: ids,
	}
}

// splitDirective undoes synthesizeContent: "{action} Use {tone} tone."
// back into its parts. Content not in that shape is all action.
func splitDirective(content string) (action, tone string) {
	content = strings.TrimSpace(content)
	if strings.HasSuffix(content, " tone.") {
		body := strings.TrimSuffix(content, " tone.")
		if i := strings.LastIndex(body, "Use "); i >= 0 {
			action = strings.TrimSpace(body[:i])
			tone = strings.TrimSpace(body[i+len("Use "):])
			return action, tone
		}
	}
	return content, ""
}

func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
