package sanitize

import (
	"regexp"
	"strings"
)

var (
	goodnightRe = regexp.MustCompile(`(?i)\bgood\s?night\b`)

	emojiRe = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}]|[\x{2600}-\x{27BF}]|[\x{2B00}-\x{2BFF}]|[\x{1F1E6}-\x{1F1FF}]|\x{FE0F}|\x{200D}`)

	starActionRe = regexp.MustCompile(`\*([^*\n]+)\*`)

	nestedParenRe = regexp.MustCompile(`\(([^()]*)\(([^()]*)\)([^()]*)\)`)

	thinkBlockRe    = regexp.MustCompile(`(?is)<think(?:ing)?>.*?</think(?:ing)?>`)
	reasoningLineRe = regexp.MustCompile(`(?im)^\s*(?:thought|reasoning|internal)\s*:.*$`)

	metaParenRe = regexp.MustCompile(`(?i)\([^()]*\b(?:ooc|out of character|note|meta|as an ai|staying in character|continuing the|end scene)\b[^()]*\)`)

	bracketRe = regexp.MustCompile(`\[[^\]\n]*\]`)

	metaSentenceRe = regexp.MustCompile(`(?i)^\s*(?:as an ai\b|i'?m an ai\b|i am an ai\b|note:|analysis:|instruction|in this response\b|this response\b|the user (?:is|seems|wants)\b|i (?:will|should) respond\b|let me respond\b)`)

	greetingPetNameRe = regexp.MustCompile(`(?i)^\s*(?:hey|hi|hello|well,?\s+hello|good\s+morning|good\s+evening)[,\s]+(?:sweetheart|sweetie|darling|babe|baby|honey|love|dear|cutie)\b`)

	offerVerbRe = regexp.MustCompile(`(?i)\b(?:made you|brought you|got you|fixed you|poured you|here'?s (?:some|a|your)|want some|would you like (?:some|a))\b`)
	offerItemRe = regexp.MustCompile(`(?i)\b(?:coffee|tea|cocoa|breakfast|dinner|snack|soup|cookies?|blanket|sandwich)\b`)

	infantilizingRe = regexp.MustCompile(`(?i)\b(?:pulls? you (?:in)?to (?:my|his|her|their) lap|pats? your head|tucks? you in|boops? your nose|ruffles? your hair|scoops? you up)\b`)

	stateAssumptionRe = regexp.MustCompile(`(?i)^\s*(?:\()?you (?:seem|look|must be|sound)\b.*\b(?:tired|exhausted|stressed|sleepy|worn out|overwhelmed|drained)\b`)

	fillerLeadRe   = regexp.MustCompile(`(?i)^\s*(?:m+h*m+|hmm+)[\s,.…]+`)
	sunshineRe     = regexp.MustCompile(`(?i),?\s*\bsunshine\b`)
	fillerMidRe    = regexp.MustCompile(`(?i)([.!?]\s+)(?:m+h*m+|hmm+)[\s,.…]+`)
	wordRe         = regexp.MustCompile(`[A-Za-z']+`)
	spaceBeforeRe  = regexp.MustCompile(`[ \t]+([,.!?;:])`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
	manyNewlinesRe = regexp.MustCompile(`\n{3,}`)
	leadingPunctRe = regexp.MustCompile(`^[\s,.;:!?'"“”]+`)
	manyDotsRe     = regexp.MustCompile(`\.{4,}`)
	longQuoteRe    = regexp.MustCompile(`["“][^"“”]{40,}["”]`)
	trailingSepRe  = regexp.MustCompile(`[,;\s]+$`)

	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+['")\s]*|[^.!?]+$`)

	stopMarkerRe = regexp.MustCompile(`(?i)end of transcript|end response|end of response|\n###|\n---|<\|`)
)

func stripEmoji(text string, _ Request) string {
	keepHeart := strings.Contains(text, "❤") && isSimpleGoodnight(text)
	const marker = "\x00\x01"
	if keepHeart {
		text = strings.ReplaceAll(text, "❤️", marker)
		text = strings.ReplaceAll(text, "❤", marker)
	}
	text = emojiRe.ReplaceAllString(text, "")
	if keepHeart {
		text = strings.ReplaceAll(text, marker, "❤️")
	}
	return strings.TrimSpace(text)
}

// isSimpleGoodnight reports a short sign-off where the heart emoji is part
// of the expected shape rather than decoration.
func isSimpleGoodnight(text string) bool {
	if !goodnightRe.MatchString(text) {
		return false
	}
	return len(strings.Fields(text)) <= 5
}

// starActions rewrites *asterisk actions* to the (parenthetical) style the
// rest of the pipeline understands. This runs before paren flattening so a
// converted action nested inside an existing parenthetical still gets
// flattened on the same pass.
func starActions(text string, _ Request) string {
	return starActionRe.ReplaceAllString(text, "($1)")
}

func flattenParens(text string, _ Request) string {
	for nestedParenRe.MatchString(text) {
		text = nestedParenRe.ReplaceAllString(text, "($1$2$3)")
	}
	return text
}

func stripReasoning(text string, _ Request) string {
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = reasoningLineRe.ReplaceAllString(text, "")
	return text
}

func stripMetaParens(text string, _ Request) string {
	return metaParenRe.ReplaceAllString(text, "")
}

func stripBrackets(text string, _ Request) string {
	return bracketRe.ReplaceAllString(text, "")
}

func stripMetaSentences(text string, _ Request) string {
	return removeSentences(text, func(s string) bool {
		return metaSentenceRe.MatchString(s)
	})
}

func stripGreetingPetNames(text string, _ Request) string {
	return removeSentences(text, func(s string) bool {
		return greetingPetNameRe.MatchString(s)
	})
}

func stripItemOffers(text string, _ Request) string {
	return removeSentences(text, func(s string) bool {
		return offerVerbRe.MatchString(s) && offerItemRe.MatchString(s)
	})
}

func stripInfantilizing(text string, _ Request) string {
	return removeSentences(text, func(s string) bool {
		return infantilizingRe.MatchString(s)
	})
}

func stripStateAssumptions(text string, _ Request) string {
	return removeSentences(text, func(s string) bool {
		return stateAssumptionRe.MatchString(s)
	})
}

// collapseStutter removes immediate word repeats such as "I I think" or
// "really, really". RE2 has no backreferences, so this walks word spans
// directly.
func collapseStutter(text string, _ Request) string {
	for {
		locs := wordRe.FindAllStringIndex(text, -1)
		changed := false
		for i := 0; i+1 < len(locs); i++ {
			w1 := text[locs[i][0]:locs[i][1]]
			w2 := text[locs[i+1][0]:locs[i+1][1]]
			sep := text[locs[i][1]:locs[i+1][0]]
			if strings.EqualFold(w1, w2) && isWordSep(sep) {
				text = text[:locs[i][1]] + text[locs[i+1][1]:]
				changed = true
				break
			}
		}
		if !changed {
			return text
		}
	}
}

func isWordSep(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != ' ' && r != ',' && r != '\t' {
			return false
		}
	}
	return true
}

func stripFiller(text string, _ Request) string {
	text = fillerLeadRe.ReplaceAllString(text, "")
	text = fillerMidRe.ReplaceAllString(text, "$1")
	text = sunshineRe.ReplaceAllString(text, "")
	return text
}

// truncateTurns cuts the reply where the model starts writing the next
// speaker's turn.
func truncateTurns(text string, req Request) string {
	for _, name := range []string{req.CharacterName, req.UserName, "User", "Assistant", "Human"} {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		label := name + ":"
		// Leading punctuation before the label still marks a leaked turn,
		// and later punctuation cleanup would otherwise expose it.
		leadRe := regexp.MustCompile(`^[\s,.;:!?'"“”]*` + regexp.QuoteMeta(label))
		if loc := leadRe.FindStringIndex(text); loc != nil {
			text = strings.TrimSpace(text[loc[1]:])
		}
		if i := strings.Index(text, "\n"+label); i >= 0 {
			text = text[:i]
		}
		re := regexp.MustCompile(`([.!?])\s*` + regexp.QuoteMeta(label) + `\s`)
		if loc := re.FindStringIndex(text); loc != nil {
			text = text[:loc[0]+1]
		}
		// A mid-sentence speaker label late in the reply is still a turn
		// leak even without preceding punctuation.
		if i := strings.Index(text, " "+label); i >= 0 {
			if len(strings.Fields(text[:i])) > 10 {
				text = text[:i]
			}
		}
	}
	return strings.TrimSpace(text)
}

func cutStopMarkers(text string, _ Request) string {
	text = strings.ReplaceAll(text, "```", "")
	if loc := stopMarkerRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return strings.TrimSpace(text)
}

// removeAvoidWords deletes per-character banned words. Patterns are built
// fresh on every call: the avoid list can change between turns, so caching
// compiled forms by character would serve stale rules.
func removeAvoidWords(text string, req Request) string {
	for _, w := range req.AvoidWords {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "")
	}
	return text
}

func normalizeText(text string, _ Request) string {
	text = manyDotsRe.ReplaceAllString(text, "...")
	const ellipsis = "\x00\x02"
	text = strings.ReplaceAll(text, "...", ellipsis)
	text = strings.ReplaceAll(text, "..", ".")
	text = strings.ReplaceAll(text, ellipsis, "...")

	text = longQuoteRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = manyNewlinesRe.ReplaceAllString(text, "\n\n")
	text = spaceBeforeRe.ReplaceAllString(text, "$1")
	text = leadingPunctRe.ReplaceAllString(text, "")
	text = trailingSepRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// trimIncompleteTail drops a dangling fragment after the last finished
// sentence. Replies with no sentence punctuation at all are left alone so
// short sign-offs survive.
func trimIncompleteTail(text string, _ Request) string {
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return trimmed
	}
	if strings.HasSuffix(trimmed, "❤️") || strings.HasSuffix(trimmed, "❤") {
		return trimmed
	}
	last := trimmed[len(trimmed)-1]
	switch last {
	case '.', '!', '?', ')', '"', '\'':
		return trimmed
	}
	idx := strings.LastIndexAny(trimmed, ".!?")
	if idx < 0 {
		return trimmed
	}
	return strings.TrimSpace(trimmed[:idx+1])
}

// trimRepeatedTail removes a trailing run of words that duplicates the run
// just before it, the failure mode of a generation loop. Runs shorter than
// five words are left alone to avoid eating legitimate echoes.
func trimRepeatedTail(text string, _ Request) string {
	words := strings.Fields(text)
	maxRun := len(words) / 2
	if maxRun > 30 {
		maxRun = 30
	}
	trimmed := false
	for n := maxRun; n >= 5; n-- {
		if len(words) < 2*n {
			continue
		}
		a := words[len(words)-2*n : len(words)-n]
		b := words[len(words)-n:]
		if equalRuns(a, b) {
			words = words[:len(words)-n]
			trimmed = true
			n = len(words)/2 + 1
			if n > 31 {
				n = 31
			}
		}
	}
	if !trimmed {
		return text
	}
	return strings.Join(words, " ")
}

func equalRuns(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// stripWrapQuotes removes quote characters wrapping the whole reply, plus
// the separators their removal exposes. Runs last and iterates to a
// fixpoint so earlier transforms cannot leave a dangling wrapper behind.
func stripWrapQuotes(text string, _ Request) string {
	for {
		next := leadingPunctRe.ReplaceAllString(text, "")
		next = strings.TrimRight(next, `"'“” `)
		next = trailingSepRe.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == text {
			return text
		}
		text = next
	}
}

// capSentencesN limits the reply to n sentences. Text without sentence
// punctuation passes through untouched.
func capSentencesN(n int) func(string, Request) string {
	return func(text string, _ Request) string {
		parts := sentenceRe.FindAllString(text, -1)
		if len(parts) <= n {
			return text
		}
		kept := make([]string, 0, n)
		for _, p := range parts[:n] {
			kept = append(kept, strings.TrimSpace(p))
		}
		return strings.Join(kept, " ")
	}
}

// removeSentences drops whole sentences matching pred and rejoins the rest.
func removeSentences(text string, pred func(string) bool) string {
	parts := sentenceRe.FindAllString(text, -1)
	if len(parts) == 0 {
		return text
	}
	kept := parts[:0:0]
	removed := false
	for _, p := range parts {
		if pred(strings.TrimSpace(p)) {
			removed = true
			continue
		}
		kept = append(kept, strings.TrimSpace(p))
	}
	if !removed {
		return text
	}
	return strings.Join(kept, " ")
}
