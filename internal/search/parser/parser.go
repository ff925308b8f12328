// Package parser turns a raw contact query into an execution plan.
//
// A query is a comma-separated list of independent clauses. Inside a clause,
// administrative codes (letters followed by an optional space or hyphen and
// digits, e.g. "north 12") are lifted out verbatim; the rest of the clause
// becomes plain terms for the interpreter.
package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/SojoC/PPAM-WEB-APP/internal/search/tokenizer"
)

// codePattern has no word boundaries because RE2's \b is ASCII-only;
// findCodes checks the runes around each match instead.
var codePattern = regexp.MustCompile(`\p{L}+[ -]?\p{Nd}+`)

// Clause is one comma-separated segment of a query.
type Clause struct {
	Raw string `json:"raw"`
	// Codes match the unit grouping code only and are never interpreted.
	Codes []string `json:"codes,omitempty"`
	Terms []string `json:"terms,omitempty"`
}

// Empty reports whether the clause carries no filter at all.
func (c Clause) Empty() bool {
	return len(c.Codes) == 0 && len(c.Terms) == 0
}

// Plan is the parsed form of a query: browse mode, or clauses whose
// results are unioned.
type Plan struct {
	Raw string `json:"raw"`
	// Browse is set for the empty query, which lists the whole directory.
	Browse  bool     `json:"browse"`
	Clauses []Clause `json:"clauses"`
}

// Parse lower-cases query and splits it into clauses. Blank clauses are
// dropped; a blank query yields a browse plan.
func Parse(query string) *Plan {
	normalized := strings.ToLower(strings.TrimSpace(query))
	plan := &Plan{
		Raw:     query,
		Clauses: make([]Clause, 0),
	}
	if normalized == "" {
		plan.Browse = true
		return plan
	}
	for _, part := range strings.Split(normalized, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		plan.Clauses = append(plan.Clauses, parseClause(part))
	}
	return plan
}

func parseClause(raw string) Clause {
	clause := Clause{Raw: raw}
	var rest strings.Builder
	last := 0
	for _, loc := range findCodes(raw) {
		clause.Codes = appendUnique(clause.Codes, raw[loc[0]:loc[1]])
		rest.WriteString(raw[last:loc[0]])
		rest.WriteByte(' ')
		last = loc[1]
	}
	rest.WriteString(raw[last:])
	for tok := range tokenizer.Tokens(rest.String()) {
		clause.Terms = appendUnique(clause.Terms, tok)
	}
	return clause
}

// findCodes returns the spans of codePattern matches that stand as whole
// words in s.
func findCodes(s string) [][]int {
	var out [][]int
	for _, loc := range codePattern.FindAllStringIndex(s, -1) {
		before, _ := utf8.DecodeLastRuneInString(s[:loc[0]])
		after, _ := utf8.DecodeRuneInString(s[loc[1]:])
		if isWordRune(before) || isWordRune(after) {
			continue
		}
		out = append(out, loc)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
