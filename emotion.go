// Package oread implements the context assembly and output pipeline for a
// character roleplay assistant: lorebook retrieval, prompt compilation,
// generation parameter selection, and reply sanitization.
package oread

import (
	"fmt"
	"strings"
)

// EmotionSignal is one classifier label with its confidence.
type EmotionSignal struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Emotion categories the pipeline branches on.
const (
	CategoryDistress = "distress"
	CategoryAnxiety  = "anxiety"
	CategoryAnger    = "anger"
	CategoryPositive = "positive"
	CategoryEngaged  = "engaged"
	CategoryNeutral  = "neutral"
)

var emotionCategories = map[string]string{
	"sadness":        CategoryDistress,
	"grief":          CategoryDistress,
	"disappointment": CategoryDistress,
	"remorse":        CategoryDistress,

	"fear":          CategoryAnxiety,
	"nervousness":   CategoryAnxiety,
	"embarrassment": CategoryAnxiety,

	"anger":       CategoryAnger,
	"annoyance":   CategoryAnger,
	"disapproval": CategoryAnger,

	"joy":        CategoryPositive,
	"amusement":  CategoryPositive,
	"excitement": CategoryPositive,
	"gratitude":  CategoryPositive,
	"love":       CategoryPositive,
	"optimism":   CategoryPositive,
	"pride":      CategoryPositive,
	"relief":     CategoryPositive,

	"curiosity":   CategoryEngaged,
	"surprise":    CategoryEngaged,
	"realization": CategoryEngaged,
	"admiration":  CategoryEngaged,

	"neutral":   CategoryNeutral,
	"approval":  CategoryNeutral,
	"caring":    CategoryNeutral,
	"desire":    CategoryNeutral,
	"confusion": CategoryNeutral,
}

// CategoryOf maps a classifier label to its response category. Unknown
// labels are treated as neutral.
func CategoryOf(emotion string) string {
	if c, ok := emotionCategories[strings.ToLower(emotion)]; ok {
		return c
	}
	return CategoryNeutral
}

// IntensityOf buckets a confidence score into a coarse intensity label.
func IntensityOf(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "very high"
	case confidence >= 0.6:
		return "high"
	case confidence >= 0.4:
		return "moderate"
	case confidence >= 0.2:
		return "low"
	default:
		return "very low"
	}
}

// HighIntensity reports whether a confidence crosses into the range the
// parameter rules treat as acute.
func HighIntensity(confidence float64) bool {
	label := IntensityOf(confidence)
	return label == "high" || label == "very high"
}

// Primary returns the strongest signal, if any.
func Primary(signals []EmotionSignal) (EmotionSignal, bool) {
	if len(signals) == 0 {
		return EmotionSignal{}, false
	}
	return signals[0], true
}

// TopN returns up to the n strongest signals. Callers pass signals already
// sorted by the classifier; this just bounds the slice.
func TopN(signals []EmotionSignal, n int) []EmotionSignal {
	if len(signals) <= n {
		return signals
	}
	return signals[:n]
}

// EmotionContextLine formats the prompt line describing the user's state.
// Neutral or barely-registered emotions produce no line at all; telling the
// model the user is neutral only flattens the reply.
func EmotionContextLine(signals []EmotionSignal) string {
	primary, ok := Primary(signals)
	if !ok {
		return ""
	}
	if CategoryOf(primary.Emotion) == CategoryNeutral {
		return ""
	}
	intensity := IntensityOf(primary.Confidence)
	if intensity == "very low" {
		return ""
	}
	return fmt.Sprintf("The user seems to be feeling %s (%s intensity). Let that shape your tone.",
		strings.ToLower(primary.Emotion), intensity)
}

// Word lists used for message mood detection.
var (
	gentleWords  = []string{"soft", "gentle", "tender", "sweet", "light", "subtle", "quiet", "calm", "peaceful", "morning"}
	intenseWords = []string{"passionate", "hard", "deep", "intense", "urgent", "desperately", "need", "crave", "hunger"}
)

// Mood captures the coarse texture of the current message.
type Mood struct {
	Gentle  bool
	Intense bool
}

// DetectMood scans the current message for gentle or intense texture
// words. History stays out of it: an old mention of "calm" must not
// dampen scoring for a new message. Both flags can be true at once.
func DetectMood(message string) Mood {
	text := strings.ToLower(message)
	var m Mood
	for _, w := range gentleWords {
		if strings.Contains(text, w) {
			m.Gentle = true
			break
		}
	}
	for _, w := range intenseWords {
		if strings.Contains(text, w) {
			m.Intense = true
			break
		}
	}
	return m
}
