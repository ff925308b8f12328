package vocabulary

import (
	"slices"
	"testing"
	"unicode/utf8"
)

func TestPhoneticCode(t *testing.T) {
	tests := []struct {
		word string
		want string
	}{
		{"Robert", "R163"},
		{"Rupert", "R163"},
		{"Pfister", "P236"},
		{"Tymczak", "T522"},
		{"Lee", "L000"},
		{"a", "A000"},
		{"maria", "M600"},
		{"marai", "M600"},
		{"gonzalez", "G524"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PhoneticCode(tt.word); got != tt.want {
			t.Errorf("PhoneticCode(%q) = %q, want %q", tt.word, got, tt.want)
		}
	}
}

func TestPhoneticCodeResetsAcrossUnmappedLetters(t *testing.T) {
	// "s" and "c" share a group; the vowel between them keeps both digits.
	if got := PhoneticCode("Sasco"); got != "S220" {
		t.Errorf("PhoneticCode(Sasco) = %q, want S220", got)
	}
	// Adjacent same-group letters collapse.
	if got := PhoneticCode("Sscx"); got != "S000" {
		t.Errorf("PhoneticCode(Sscx) = %q, want S000", got)
	}
}

func TestPhoneticCodeFixedLengthAndDeterministic(t *testing.T) {
	words := []string{"maria", "gonzalez", "x", "north", "constantinopla", "ñandú", "o'brien"}
	for _, w := range words {
		a, b := PhoneticCode(w), PhoneticCode(w)
		if a != b {
			t.Errorf("non-deterministic code for %q: %q vs %q", w, a, b)
		}
		if n := utf8.RuneCountInString(a); n != CodeLength {
			t.Errorf("PhoneticCode(%q) = %q has length %d", w, a, n)
		}
	}
}

func TestBuild(t *testing.T) {
	fields := []string{
		"Maria Gonzalez",
		"Mario Gomez",
		"Central",
		"east 5",
		"North-12",
		"Lo",
	}
	ix := Build(slices.Values(fields), DefaultOptions())

	for _, w := range []string{"maria", "gonzalez", "mario", "central", "east", "north", "lo"} {
		if !ix.Contains(w) {
			t.Errorf("expected %q in vocabulary", w)
		}
	}
	for _, w := range []string{"5", "12"} {
		if ix.Contains(w) {
			t.Errorf("numeric token %q should be excluded", w)
		}
	}

	mar, ok := ix.Abbreviations("mar")
	if !ok || !slices.Equal(mar, []string{"maria", "mario"}) {
		t.Errorf("Abbreviations(mar) = %q, %v", mar, ok)
	}
	if _, ok := ix.Abbreviations("lo"); ok {
		t.Error("two-letter words must not be registered as abbreviations")
	}

	same, ok := ix.Phonetic(PhoneticCode("maria"))
	if !ok || !slices.Contains(same, "maria") || !slices.Contains(same, "mario") {
		t.Errorf("Phonetic(M600) = %q, %v", same, ok)
	}

	stats := ix.Stats()
	if stats.Words != ix.Len() || stats.Fields != len(fields) {
		t.Errorf("unexpected stats %+v", stats)
	}
	if !slices.IsSorted(ix.Words()) {
		t.Error("Words() must be sorted")
	}
}

func TestBuildKeepsNumericWhenAsked(t *testing.T) {
	ix := Build(slices.Values([]string{"north 12"}), Options{PrefixLength: 3})
	if !ix.Contains("12") {
		t.Error("expected numeric token to be kept")
	}
}

func TestBuildEmpty(t *testing.T) {
	ix := Build(slices.Values([]string(nil)), DefaultOptions())
	if ix.Len() != 0 {
		t.Errorf("expected empty vocabulary, got %d words", ix.Len())
	}
	if _, ok := ix.Phonetic(""); ok {
		t.Error("empty index should have no phonetic entries")
	}
}

func BenchmarkBuild(b *testing.B) {
	fields := make([]string, 0, 3000)
	names := []string{"maria", "jose", "luis", "ana", "carmen", "gonzalez", "martinez", "lopez", "perez"}
	for i := 0; i < 3000; i++ {
		fields = append(fields, names[i%len(names)]+" "+names[(i*7)%len(names)]+" "+names[(i*3)%len(names)])
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Build(slices.Values(fields), DefaultOptions())
	}
}
