package pipeline

import (
	"strings"
	"unicode"
)

// Cheap language screening for lyric text. The goal is not detection
// accuracy but avoiding translation calls for text that is plainly English,
// so the heuristics err toward "not English" and let the translator confirm.

// latinMarkers maps a language code to function words common enough that a
// handful of hits in lyric text is a strong signal.
var latinMarkers = map[string][]string{
	"es": {"el", "la", "los", "las", "que", "de", "mi", "tu", "por", "para", "con", "como", "pero", "cuando", "siempre"},
	"fr": {"le", "la", "les", "je", "tu", "il", "nous", "vous", "est", "dans", "pour", "avec", "mais", "quand", "toujours"},
	"de": {"der", "die", "das", "und", "ich", "du", "nicht", "ein", "eine", "mit", "aber", "wenn", "immer", "mein", "dein"},
	"it": {"il", "la", "che", "di", "non", "per", "con", "sono", "una", "mio", "tuo", "quando", "sempre", "come", "anche"},
	"pt": {"o", "a", "os", "as", "que", "de", "não", "um", "uma", "com", "para", "meu", "seu", "quando", "sempre"},
}

var englishMarkers = []string{
	"the", "and", "you", "i", "to", "a", "me", "my", "in", "it",
	"of", "that", "we", "your", "is", "on", "all", "for", "be", "with",
}

// scriptLanguage maps non-Latin scripts straight to a language guess.
// Lyrics in these scripts are never English regardless of word content.
func scriptLanguage(text string) string {
	counts := map[string]int{}
	letters := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			counts["ru"]++
		case unicode.Is(unicode.Greek, r):
			counts["el"]++
		case unicode.Is(unicode.Hangul, r):
			counts["ko"]++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			counts["ja"]++
		case unicode.Is(unicode.Han, r):
			counts["zh"]++
		case unicode.Is(unicode.Arabic, r):
			counts["ar"]++
		case unicode.Is(unicode.Hebrew, r):
			counts["he"]++
		case unicode.Is(unicode.Devanagari, r):
			counts["hi"]++
		}
	}
	if letters == 0 {
		return ""
	}

	best, bestCount := "", 0
	for lang, count := range counts {
		if count > bestCount {
			best, bestCount = lang, count
		}
	}
	// Hiragana/Katakana alongside Han means Japanese, not Chinese.
	if best == "zh" && counts["ja"] > 0 {
		best = "ja"
	}
	if bestCount*10 >= letters {
		return best
	}
	return ""
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func markerHits(words []string, markers []string) int {
	set := make(map[string]bool, len(markers))
	for _, m := range markers {
		set[m] = true
	}
	hits := 0
	for _, w := range words {
		if set[w] {
			hits++
		}
	}
	return hits
}

// guessLanguage returns an ISO 639-1 code for the text, or "en" when the
// text reads as English, or "" when the heuristics cannot tell.
func guessLanguage(text string) string {
	if lang := scriptLanguage(text); lang != "" {
		return lang
	}

	words := tokenize(text)
	if len(words) == 0 {
		return ""
	}

	englishHits := markerHits(words, englishMarkers)

	best, bestHits := "", 0
	for lang, markers := range latinMarkers {
		if hits := markerHits(words, markers); hits > bestHits {
			best, bestHits = lang, hits
		}
	}

	if englishHits >= bestHits && englishHits*20 >= len(words) {
		return "en"
	}
	if bestHits > englishHits && bestHits*20 >= len(words) {
		return best
	}
	return ""
}

// looksEnglish reports whether the text can safely skip translation. Only a
// positive English verdict skips; uncertain text still goes to the
// translator, which settles languages the marker tables don't cover.
func looksEnglish(text string) bool {
	return guessLanguage(text) == "en"
}
