// Package vocabulary builds the derived lookup structures the term
// interpreter consults: the set of every word seen in the directory, a
// prefix → words abbreviation map and a phonetic code → words map.
//
// An Index is immutable once Build returns. It is rebuilt wholesale from a
// fresh directory snapshot and never updated in place, so any number of
// goroutines may read it without locking.
package vocabulary

import (
	"iter"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/SojoC/PPAM-WEB-APP/internal/search/tokenizer"
)

// Options tune index construction.
type Options struct {
	// PrefixLength is the abbreviation key length in runes. Only words
	// at least this long are registered.
	PrefixLength int
	// ExcludeNumeric keeps digit-only tokens out of the vocabulary.
	ExcludeNumeric bool
}

// DefaultOptions mirrors the service defaults.
func DefaultOptions() Options {
	return Options{PrefixLength: 3, ExcludeNumeric: true}
}

// Stats summarises an Index for health and admin endpoints.
type Stats struct {
	Words         int       `json:"words"`
	Abbreviations int       `json:"abbreviations"`
	PhoneticCodes int       `json:"phonetic_codes"`
	Fields        int       `json:"fields"`
	BuiltAt       time.Time `json:"built_at"`
	BuildTime     string    `json:"build_time"`
}

// Index is an immutable snapshot of the directory vocabulary with exact,
// abbreviation and phonetic lookups. It is safe for concurrent reads.
type Index struct {
	opts          Options
	words         map[string]struct{}
	sorted        []string
	abbreviations map[string][]string
	phonetic      map[string][]string
	stats         Stats
}

// Build tokenizes every field and derives the three lookup structures in a
// single pass over the vocabulary. Candidate lists are sorted so lookups
// are deterministic.
func Build(fields iter.Seq[string], opts Options) *Index {
	if opts.PrefixLength <= 0 {
		opts.PrefixLength = DefaultOptions().PrefixLength
	}
	start := time.Now()
	ix := &Index{
		opts:          opts,
		words:         make(map[string]struct{}),
		abbreviations: make(map[string][]string),
		phonetic:      make(map[string][]string),
	}

	fieldCount := 0
	for field := range fields {
		fieldCount++
		for tok := range tokenizer.Tokens(field) {
			if opts.ExcludeNumeric && tokenizer.IsNumeric(tok) {
				continue
			}
			ix.words[tok] = struct{}{}
		}
	}

	ix.sorted = make([]string, 0, len(ix.words))
	for w := range ix.words {
		ix.sorted = append(ix.sorted, w)
	}
	slices.Sort(ix.sorted)

	for _, w := range ix.sorted {
		if utf8.RuneCountInString(w) >= opts.PrefixLength {
			key := tokenizer.Prefix(w, opts.PrefixLength)
			ix.abbreviations[key] = append(ix.abbreviations[key], w)
		}
		code := PhoneticCode(w)
		ix.phonetic[code] = append(ix.phonetic[code], w)
	}

	ix.stats = Stats{
		Words:         len(ix.sorted),
		Abbreviations: len(ix.abbreviations),
		PhoneticCodes: len(ix.phonetic),
		Fields:        fieldCount,
		BuiltAt:       time.Now().UTC(),
		BuildTime:     time.Since(start).String(),
	}
	return ix
}

// Contains reports whether word is part of the vocabulary.
func (ix *Index) Contains(word string) bool {
	_, ok := ix.words[word]
	return ok
}

// Len is the number of distinct words.
func (ix *Index) Len() int {
	return len(ix.sorted)
}

// Words returns the sorted vocabulary. Callers must not modify it.
func (ix *Index) Words() []string {
	return ix.sorted
}

// PrefixLength is the abbreviation key length the index was built with.
func (ix *Index) PrefixLength() int {
	return ix.opts.PrefixLength
}

// Abbreviations returns the words registered under prefix.
func (ix *Index) Abbreviations(prefix string) ([]string, bool) {
	words, ok := ix.abbreviations[prefix]
	return words, ok
}

// Phonetic returns the words sharing the phonetic code.
func (ix *Index) Phonetic(code string) ([]string, bool) {
	words, ok := ix.phonetic[code]
	return words, ok
}

// Stats returns the counts recorded when the index was built.
func (ix *Index) Stats() Stats {
	return ix.stats
}
