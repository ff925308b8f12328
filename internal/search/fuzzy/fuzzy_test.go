package fuzzy

import "testing"

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"maria", "maria", 100},
		{"marai", "maria", 80},
		{"robert", "rupert", 67},
		{"abc", "xyz", 0},
		{"", "", 100},
		{"abc", "", 0},
	}
	for _, tt := range tests {
		if got := Ratio(tt.a, tt.b); got != tt.want {
			t.Errorf("Ratio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "maria gonzalez", "maria gonzalez", 100},
		{"order and duplicates ignored", "maria gonzalez", "gonzalez maria maria", 100},
		{"subset scores full", "maria", "maria gonzalez", 100},
		{"misspelling", "marai", "maria", 80},
		{"disjoint", "abc", "xyz", 0},
		{"case-insensitive", "MARIA", "maria", 100},
		{"empty vs text", "", "maria", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenSetRatio(tt.a, tt.b); got != tt.want {
				t.Errorf("TokenSetRatio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTokenSetRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"jose luis", "luis jose martinez"},
		{"centrall", "central"},
		{"north 12", "north 21"},
		{"ana", "anna lucia"},
	}
	for _, p := range pairs {
		ab := TokenSetRatio(p[0], p[1])
		ba := TokenSetRatio(p[1], p[0])
		if ab != ba {
			t.Errorf("asymmetric score for %q/%q: %d vs %d", p[0], p[1], ab, ba)
		}
	}
}

func TestBest(t *testing.T) {
	match, score, ok := Best("gonzales", []string{"garcia", "gonzalez", "gomez"})
	if !ok || match != "gonzalez" {
		t.Fatalf("Best() = %q, %d, %v", match, score, ok)
	}
	if score < 80 {
		t.Errorf("expected a high score, got %d", score)
	}

	match, _, _ = Best("abc", []string{"abd", "abe"})
	if match != "abd" {
		t.Errorf("expected the first candidate to win ties, got %q", match)
	}

	if _, _, ok := Best("abc", nil); ok {
		t.Error("expected no match for empty candidate list")
	}
}

func BenchmarkTokenSetRatio(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = TokenSetRatio("maria del carmen gonzalez", "gonzales maria carmen")
	}
}
