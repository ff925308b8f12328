// Package fuzzy scores string similarity on a 0..100 scale.
//
// Ratio is the indel similarity of two strings: twice the length of their
// longest common subsequence over their combined length. TokenSetRatio
// applies Ratio after a token-set pre-pass, so word order and repeated
// words do not affect the score:
//
//	TokenSetRatio("maria gonzalez", "gonzalez maria maria") == 100
//	TokenSetRatio("marai", "maria") == 80
package fuzzy

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/SojoC/PPAM-WEB-APP/internal/search/tokenizer"
)

// Ratio returns the LCS-based similarity of a and b.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	lcs := matchr.LongestCommonSubsequence(a, b)
	return int(math.Round(200 * float64(lcs) / float64(total)))
}

// TokenSetRatio compares a and b as sets of tokens. The shared tokens are
// compared against each side's full sorted token set and the best of the
// three pairwise Ratios is returned.
func TokenSetRatio(a, b string) int {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		if len(setA) == len(setB) {
			return 100
		}
		return 0
	}

	var shared, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			shared = append(shared, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	slices.Sort(shared)
	slices.Sort(onlyA)
	slices.Sort(onlyB)

	base := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := Ratio(combinedA, combinedB)
	if base != "" {
		best = max(best, Ratio(base, combinedA), Ratio(base, combinedB))
	}
	return best
}

// Best returns the candidate scoring highest against token. Ties keep the
// earliest candidate, so callers control determinism through ordering.
func Best(token string, candidates []string) (match string, score int, ok bool) {
	score = -1
	for _, c := range candidates {
		if s := TokenSetRatio(token, c); s > score {
			match, score = c, s
		}
	}
	if score < 0 {
		return "", 0, false
	}
	return match, score, true
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for tok := range tokenizer.Tokens(s) {
		set[tok] = struct{}{}
	}
	return set
}
