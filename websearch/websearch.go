// Package websearch decides when a chat message needs live information and
// fetches it from a web search API.
package websearch

import (
	"regexp"
	"strings"
)

// currentInfoWords indicate the user is asking about the world right now
// rather than about themselves or the relationship.
var currentInfoWords = []string{
	"weather", "news", "today", "tonight", "latest", "current", "right now",
	"price", "cost", "score", "stock", "release", "happening", "open",
	"schedule", "forecast", "election", "trending",
}

// personalWords indicate the message is about the user's inner life, where
// a search result would land badly no matter how relevant.
var personalWords = []string{
	"feel", "feeling", "felt", "love", "miss", "lonely", "sad", "happy",
	"anxious", "worried", "scared", "us", "our", "you and me", "relationship",
}

var questionRe = regexp.MustCompile(`(?i)^\s*(?:what|who|when|where|which|how much|how many|is|are|was|were|did|does|do)\b`)

// ShouldSearch reports whether the message warrants a live lookup.
func ShouldSearch(message string) bool {
	lower := strings.ToLower(message)
	for _, w := range personalWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	hasInfo := false
	for _, w := range currentInfoWords {
		if strings.Contains(lower, w) {
			hasInfo = true
			break
		}
	}
	if !hasInfo {
		return false
	}
	return questionRe.MatchString(message) || strings.Contains(message, "?")
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "what": true, "whats": true, "who": true, "when": true,
	"where": true, "which": true, "how": true, "do": true, "does": true,
	"did": true, "can": true, "could": true, "you": true, "me": true,
	"i": true, "my": true, "in": true, "on": true, "at": true, "of": true,
	"for": true, "to": true, "and": true, "or": true, "it": true, "its": true,
	"tell": true, "about": true, "know": true, "right": true, "now": true,
}

var wordSplitRe = regexp.MustCompile(`[a-zA-Z0-9']+`)

// KeyTerms reduces a chat message to a search query.
func KeyTerms(message string) string {
	words := wordSplitRe.FindAllString(message, -1)
	var terms []string
	for _, w := range words {
		lw := strings.ToLower(w)
		if stopwords[lw] || len(lw) < 2 {
			continue
		}
		terms = append(terms, lw)
		if len(terms) == 8 {
			break
		}
	}
	return strings.Join(terms, " ")
}
