// Package textnorm normalizes free-text Spanish/English listing text for
// keyword matching.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics, so "Gijón" and "GIJON" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// ContainsAny reports whether the folded text contains any folded keyword.
func ContainsAny(text string, keywords []string) bool {
	folded := Fold(text)
	for _, kw := range keywords {
		if strings.Contains(folded, Fold(kw)) {
			return true
		}
	}
	return false
}

// ContainsWord reports whether word appears in text on word boundaries,
// ignoring case and accents.
func ContainsWord(text, word string) bool {
	return containsFoldedWord(Fold(text), Fold(word))
}

// ContainsAnyWord is ContainsWord over several words, folding text once.
func ContainsAnyWord(text string, words []string) bool {
	folded := Fold(text)
	for _, w := range words {
		if containsFoldedWord(folded, Fold(w)) {
			return true
		}
	}
	return false
}

// containsFoldedWord scans every occurrence of word in text and accepts the
// first one not adjacent to a letter or digit.
func containsFoldedWord(text, word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		if wordBoundaryBefore(text, start) && wordBoundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		i = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

func wordBoundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func wordBoundaryAfter(s string, i int) bool {
	if i == len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

// Title capitalizes each word using Spanish casing rules.
func Title(s string) string {
	return cases.Title(language.Spanish).String(strings.ToLower(s))
}
