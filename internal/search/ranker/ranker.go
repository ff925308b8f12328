// Package ranker orders matched contacts by how well the interpreted query
// terms fit each contact's combined "name unit circuit" text.
package ranker

import (
	"sort"
	"strings"

	"github.com/SojoC/PPAM-WEB-APP/internal/search/fuzzy"
)

// DefaultMatchThreshold is the token-set score a term must exceed to count
// as found in a candidate's text.
const DefaultMatchThreshold = 80

type Candidate struct {
	ID   int64
	Name string
	// Text is the lower-cased text the terms are scored against.
	Text string
}

type ScoredCandidate struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Matched int    `json:"matched"`
}

// CandidateText joins the fields a candidate is scored against.
func CandidateText(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, strings.ToLower(f))
		}
	}
	return strings.Join(parts, " ")
}

// Score sums the scores of the terms found in text, multiplies the sum by
// the number of terms found and doubles it again when every term was found.
func Score(terms []string, text string, threshold int) (score, matched int) {
	total := 0
	for _, term := range terms {
		if r := fuzzy.TokenSetRatio(term, text); r > threshold {
			total += r
			matched++
		}
	}
	if matched == 0 {
		return 0, 0
	}
	score = total * matched
	if matched == len(terms) {
		score *= 2
	}
	return score, matched
}

// Rank scores every candidate and sorts by score descending, then name,
// then id. Candidates are never dropped for scoring zero; limit <= 0 keeps
// all of them.
func Rank(candidates []Candidate, terms []string, threshold int, limit int) []ScoredCandidate {
	result := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score, matched := Score(terms, c.Text, threshold)
		result = append(result, ScoredCandidate{
			ID:      c.ID,
			Name:    c.Name,
			Score:   score,
			Matched: matched,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
