// Package interpreter maps a user-typed token to the vocabulary word the
// engine will actually search for. Resolution is an ordered chain of
// strategies; the first one that resolves the token wins and tokens no
// strategy resolves pass through unchanged.
package interpreter

import (
	"unicode/utf8"

	"github.com/SojoC/PPAM-WEB-APP/internal/search/fuzzy"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/tokenizer"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/vocabulary"
)

// Strategy names reported in a Resolution.
const (
	StrategyAbbreviation = "abbreviation"
	StrategyPhonetic     = "phonetic"
	StrategyFuzzy        = "fuzzy"
	StrategyLiteral      = "literal"
)

// Strategy is one resolution attempt against a vocabulary index.
type Strategy interface {
	Name() string
	// Resolve returns the vocabulary word token most likely stands for and
	// its similarity score, or ok=false when the strategy does not apply.
	Resolve(ix *vocabulary.Index, token string) (term string, score int, ok bool)
}

// Resolution is the outcome of interpreting one token.
type Resolution struct {
	Input    string `json:"input"`
	Term     string `json:"term"`
	Strategy string `json:"strategy"`
	Score    int    `json:"score"`
}

// Corrected reports whether the interpreter replaced the input.
func (r Resolution) Corrected() bool {
	return r.Term != r.Input
}

// Options tune the fuzzy fallback.
type Options struct {
	FuzzyThreshold int
	MinFuzzyLength int
}

// Interpreter maps a query term onto a vocabulary word by trying its
// strategies in order. The first one to produce a word wins.
type Interpreter struct {
	chain []Strategy
}

// New returns the standard chain: abbreviation, phonetic, then whole
// vocabulary fuzzy matching.
func New(opts Options) *Interpreter {
	return NewWithChain(
		Abbreviation{},
		Phonetic{},
		Fuzzy{Threshold: opts.FuzzyThreshold, MinLength: opts.MinFuzzyLength},
	)
}

// NewWithChain builds an interpreter from an explicit strategy order.
func NewWithChain(chain ...Strategy) *Interpreter {
	return &Interpreter{chain: chain}
}

// Interpret resolves token against ix. A nil index resolves every token
// literally.
func (in *Interpreter) Interpret(ix *vocabulary.Index, token string) Resolution {
	res := Resolution{Input: token, Term: token, Strategy: StrategyLiteral, Score: 100}
	if ix == nil || token == "" {
		return res
	}
	for _, s := range in.chain {
		term, score, ok := s.Resolve(ix, token)
		if !ok {
			continue
		}
		res.Term, res.Strategy, res.Score = term, s.Name(), score
		return res
	}
	return res
}

// Strategies returns the names of the chain in evaluation order.
func (in *Interpreter) Strategies() []string {
	names := make([]string, len(in.chain))
	for i, s := range in.chain {
		names[i] = s.Name()
	}
	return names
}

// Abbreviation resolves a token through the words sharing its prefix.
type Abbreviation struct{}

func (Abbreviation) Name() string { return StrategyAbbreviation }

func (Abbreviation) Resolve(ix *vocabulary.Index, token string) (string, int, bool) {
	if utf8.RuneCountInString(token) < ix.PrefixLength() {
		return "", 0, false
	}
	candidates, ok := ix.Abbreviations(tokenizer.Prefix(token, ix.PrefixLength()))
	if !ok || len(candidates) == 0 {
		return "", 0, false
	}
	if len(candidates) == 1 {
		return candidates[0], fuzzy.TokenSetRatio(token, candidates[0]), true
	}
	return fuzzy.Best(token, candidates)
}

// Phonetic resolves a token through the words sharing its phonetic code.
type Phonetic struct{}

func (Phonetic) Name() string { return StrategyPhonetic }

func (Phonetic) Resolve(ix *vocabulary.Index, token string) (string, int, bool) {
	candidates, ok := ix.Phonetic(vocabulary.PhoneticCode(token))
	if !ok {
		return "", 0, false
	}
	return fuzzy.Best(token, candidates)
}

// Fuzzy scans the whole vocabulary and accepts the best match only when it
// reaches Threshold.
type Fuzzy struct {
	Threshold int
	MinLength int
}

func (Fuzzy) Name() string { return StrategyFuzzy }

func (f Fuzzy) Resolve(ix *vocabulary.Index, token string) (string, int, bool) {
	if ix.Len() == 0 || utf8.RuneCountInString(token) < f.MinLength {
		return "", 0, false
	}
	term, score, ok := fuzzy.Best(token, ix.Words())
	if !ok || score < f.Threshold {
		return "", 0, false
	}
	return term, score, true
}
