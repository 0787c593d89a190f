// Package textnorm lowercases, trims and tokenizes user text for the matchers.
package textnorm

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"what", "is", "are", "how", "why", "when", "where", "who", "which", "can", "will", "would", "could", "should",
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by", "from", "up", "about", "into", "through", "during",
		// Hindi transliterations
		"kya", "hai", "hain", "ka", "ki", "ke", "ko", "se", "me", "par", "aur", "ya", "jo", "kaise", "kab", "kahan", "kaun", "batao", "bta", "btao",
	} {
		stopwords[w] = struct{}{}
	}
}

// Normalize lowercases text and trims surrounding whitespace.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// IsStopword reports whether word belongs to the bilingual stopword set.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

// Words splits text on whitespace without any filtering.
func Words(text string) []string {
	return strings.Fields(text)
}

// Tokenize yields the significant words of text: punctuation is treated as
// whitespace, and short, numeric and stopword tokens are skipped. The
// returned sequence can be ranged over any number of times.
func Tokenize(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		cleaned := strings.Map(func(r rune) rune {
			if isWordRune(r) || unicode.IsSpace(r) {
				return r
			}
			return ' '
		}, text)

		for _, w := range strings.Fields(cleaned) {
			if utf8.RuneCountInString(w) <= 2 || isNumeric(w) || IsStopword(w) {
				continue
			}
			if !yield(w) {
				return
			}
		}
	}
}

// Tokens collects Tokenize into a slice.
func Tokens(text string) []string {
	var out []string
	for w := range Tokenize(text) {
		out = append(out, w)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
