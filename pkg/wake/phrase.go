package wake

import (
	"strings"
	"unicode"
)

// PhraseMatcher finds wake phrases in transcripts, ignoring case and
// punctuation ("Hey, Robo!" matches "hey robo").
type PhraseMatcher struct {
	phrases [][]string
}

// NewPhraseMatcher creates a matcher. Blank phrases are dropped.
func NewPhraseMatcher(phrases ...string) *PhraseMatcher {
	m := &PhraseMatcher{}
	for _, p := range phrases {
		if words := tokens(p); len(words) > 0 {
			m.phrases = append(m.phrases, words)
		}
	}
	return m
}

// Len returns the number of usable phrases.
func (m *PhraseMatcher) Len() int {
	return len(m.phrases)
}

// Match reports whether text contains any phrase as a whole-word sequence.
func (m *PhraseMatcher) Match(text string) bool {
	words := tokens(text)
	for _, p := range m.phrases {
		if indexWords(words, p) >= 0 {
			return true
		}
	}
	return false
}

// StripPhrase removes the first leading occurrence of any phrase from text,
// along with the punctuation that follows it, for display. Text without a
// phrase is returned trimmed but otherwise unchanged.
func StripPhrase(text string, phrases ...string) string {
	text = strings.TrimSpace(text)
	for _, p := range phrases {
		want := tokens(p)
		if len(want) == 0 {
			continue
		}
		rest, ok := cutLeadingWords(text, want)
		if ok {
			return strings.TrimLeftFunc(rest, func(r rune) bool {
				return unicode.IsSpace(r) || unicode.IsPunct(r)
			})
		}
	}
	return text
}

// cutLeadingWords consumes want from the start of text word by word and
// returns the remainder.
func cutLeadingWords(text string, want []string) (string, bool) {
	rest := text
	for _, w := range want {
		rest = strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		end := strings.IndexFunc(rest, isSeparator)
		if end < 0 {
			end = len(rest)
		}
		if normalizeWord(rest[:end]) != w {
			return text, false
		}
		rest = rest[end:]
	}
	return rest, true
}

func tokens(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, isSeparator) {
		if w := normalizeWord(f); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'')
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, unicode.IsPunct))
}

func indexWords(words, phrase []string) int {
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
