package oread

import (
	"regexp"
	"strconv"
	"strings"
)

// Safety checks run before any generation. A crisis match replaces the
// reply outright; an age match steers the reply without replacing it.

var crisisPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bkill(ing)? myself\b`),
	regexp.MustCompile(`(?i)\bsuicid(e|al)\b`),
	regexp.MustCompile(`(?i)\bend(ing)? (my|it all|my own) life\b`),
	regexp.MustCompile(`(?i)\b(want|wanted|going) to die\b`),
	regexp.MustCompile(`(?i)\bself[- ]harm\b`),
	regexp.MustCompile(`(?i)\bhurt(ing)? myself\b`),
	regexp.MustCompile(`(?i)\bno reason to (live|go on)\b`),
	regexp.MustCompile(`(?i)\bbetter off without me\b`),
}

// CrisisMessage is the fixed reply sent when a crisis is detected. It is
// never generated; wording here is reviewed, not sampled.
const CrisisMessage = "I'm really glad you told me, and I care about what happens to you. What you're feeling matters, and you deserve real support right now. Please reach out to someone who can help: you can call or text 988 (Suicide & Crisis Lifeline) anytime, or text HOME to 741741. If you're in immediate danger, please call 911. I'm still here with you."

// DetectCrisis reports whether the message indicates self-harm risk.
func DetectCrisis(message string) bool {
	for _, re := range crisisPatterns {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

var ageStatementRe = regexp.MustCompile(`(?i)\b(?:i'?m|i am|im)\s+(\d{1,2})(?:\s+years?\s+old)?\b`)

var minorPhraseRe = regexp.MustCompile(`(?i)\b(?:i'?m|i am|im)\s+(?:a\s+)?(?:minor|underage|in (?:middle|high) school)\b`)

// AgeRedirectGuidance steers the reply when the user references an age
// under 25. All characters are 25 or older, so the reply acknowledges
// that and redirects rather than refusing.
const AgeRedirectGuidance = "The user referenced an age under 25. All characters here are 25 or older. Acknowledge that gently, keep the reply warm but fully platonic, avoid any romantic or physical framing, and redirect the conversation rather than refusing."

// DetectUnderage reports whether the user stated an age under 25 or
// called themselves a minor.
func DetectUnderage(message string) bool {
	if minorPhraseRe.MatchString(message) {
		return true
	}
	m := ageStatementRe.FindStringSubmatch(message)
	if m == nil {
		return false
	}
	age, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	return age > 0 && age < 25
}

// RedirectGuidance returns steering text for the turn, empty when no
// safety steering applies.
func RedirectGuidance(message string) string {
	if DetectUnderage(message) {
		return AgeRedirectGuidance
	}
	return ""
}

// starterTopics seed conversation starters so repeated openers vary.
var starterTopics = []string{
	"something small that happened in your day",
	"a question about what they have been up to",
	"something you have been thinking about lately",
	"a shared interest of yours",
}

// StarterMessage builds the synthetic message that asks the model for a
// conversation opener instead of a reply. The topic index rotates so
// openers do not repeat back to back.
func StarterMessage(userName string, topicIndex int) string {
	topic := starterTopics[((topicIndex%len(starterTopics))+len(starterTopics))%len(starterTopics)]
	var b strings.Builder
	b.WriteString(StarterPrefix)
	b.WriteString(" addressed to ")
	if strings.TrimSpace(userName) == "" {
		userName = "the user"
	}
	b.WriteString(userName)
	b.WriteString(". Lead with ")
	b.WriteString(topic)
	b.WriteString(". One or two sentences, in character.]")
	return b.String()
}
