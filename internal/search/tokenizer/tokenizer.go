// Package tokenizer splits directory text and user queries into lower-cased
// word tokens. Separators are runs of whitespace, commas, slashes and
// hyphens; every other character (accents, apostrophes, digits) stays part
// of the token.
package tokenizer

import (
	"iter"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsSeparator reports whether r splits two tokens.
func IsSeparator(r rune) bool {
	switch r {
	case ',', '/', '-':
		return true
	}
	return unicode.IsSpace(r)
}

// Tokens returns a lazy sequence over the tokens of text. The sequence can be
// ranged over any number of times; each pass rescans text.
func Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i, r := range text {
			if IsSeparator(r) {
				if start >= 0 {
					if !yield(strings.ToLower(text[start:i])) {
						return
					}
					start = -1
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			yield(strings.ToLower(text[start:]))
		}
	}
}

// Tokenize collects Tokens(text) into a slice.
func Tokenize(text string) []string {
	return slices.Collect(Tokens(text))
}

// IsNumeric reports whether token consists solely of digits.
func IsNumeric(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Prefix returns the first n runes of token, or token itself when shorter.
func Prefix(token string, n int) string {
	if utf8.RuneCountInString(token) <= n {
		return token
	}
	i := 0
	for pos := range token {
		if i == n {
			return token[:pos]
		}
		i++
	}
	return token
}
