package vocabulary

import (
	"strings"
	"unicode"
)

// CodeLength is the fixed length of a phonetic code: one letter, three digits.
const CodeLength = 4

var letterGroups = map[rune]byte{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// PhoneticCode returns the Soundex-style code of word: its first letter
// upper-cased followed by the group digits of the remaining letters.
// Adjacent letters from the same group collapse into one digit, while any
// letter outside the groups breaks the run so a repeat after it is kept.
// The digits are zero-padded or truncated to three. Empty input yields "".
func PhoneticCode(word string) string {
	if word == "" {
		return ""
	}
	runes := []rune(strings.ToLower(word))

	var b strings.Builder
	b.WriteRune(unicode.ToUpper(runes[0]))

	digits := 0
	last := letterGroups[runes[0]]
	for _, r := range runes[1:] {
		if digits == CodeLength-1 {
			break
		}
		d, ok := letterGroups[r]
		if !ok {
			last = 0
			continue
		}
		if d != last {
			b.WriteByte(d)
			digits++
		}
		last = d
	}
	for ; digits < CodeLength-1; digits++ {
		b.WriteByte('0')
	}
	return b.String()
}
