package tokenizer

import (
	"fmt"
	"slices"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"only separators", " ,/- \t", nil},
		{"lower-cases", "María GONZÁLEZ", []string{"maría", "gonzález"}},
		{"runs collapse", "north  12,,east/5 -- west", []string{"north", "12", "east", "5", "west"}},
		{"punctuation kept", "o'brien jr.", []string{"o'brien", "jr."}},
		{"hyphenated code", "norte-12", []string{"norte", "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokensRestartable(t *testing.T) {
	seq := Tokens("alpha beta gamma")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) || len(first) != 3 {
		t.Fatalf("expected identical passes, got %q and %q", first, second)
	}
}

func TestTokensStopsEarly(t *testing.T) {
	var seen []string
	for tok := range Tokens("a b c d") {
		seen = append(seen, tok)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Errorf("unexpected early-stop tokens %q", seen)
	}
}

func TestIsNumeric(t *testing.T) {
	cases := map[string]bool{"12": true, "0": true, "": false, "12a": false, "n12": false}
	for in, want := range cases {
		if got := IsNumeric(in); got != want {
			t.Errorf("IsNumeric(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPrefix(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"maria", 3, "mar"},
		{"ma", 3, "ma"},
		{"ñoño", 3, "ñoñ"},
		{"abc", 3, "abc"},
	}
	for _, c := range cases {
		if got := Prefix(c.in, c.n); got != c.want {
			t.Errorf("Prefix(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}

var sampleTexts = map[string]string{
	"short":  "Maria Gonzalez, Central, north 12",
	"medium": strings.Repeat("Jose Luis Martinez / Congregacion Los Olivos - Circuito Norte 12 ", 10),
	"long":   strings.Repeat("Ana Lucia Fernandez Rodriguez, Villa Esperanza, Territorio 4, Sur 7 ", 200),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				for tok := range Tokens(text) {
					_ = tok
				}
			}
		})
	}
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	sizes := []int{10, 100, 1000}
	base := "maria gonzalez central north 12 "
	for _, size := range sizes {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}
