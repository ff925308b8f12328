package ranker

import (
	"fmt"
	"testing"
)

func TestScore(t *testing.T) {
	text := CandidateText("Maria Gonzalez", "Central", "east 5")
	if text != "maria gonzalez central east 5" {
		t.Fatalf("CandidateText = %q", text)
	}

	score, matched := Score([]string{"maria", "central"}, text, DefaultMatchThreshold)
	if matched != 2 {
		t.Fatalf("expected both terms to match, got %d", matched)
	}
	// (100 + 100) * 2 matched * 2 for a full match
	if score != 800 {
		t.Errorf("score = %d, want 800", score)
	}

	score, matched = Score([]string{"maria", "zzz"}, text, DefaultMatchThreshold)
	if matched != 1 || score != 100 {
		t.Errorf("partial match: score=%d matched=%d", score, matched)
	}

	if score, matched := Score([]string{"zzz"}, text, DefaultMatchThreshold); score != 0 || matched != 0 {
		t.Errorf("no match: score=%d matched=%d", score, matched)
	}
}

func TestRankOrdering(t *testing.T) {
	candidates := []Candidate{
		{ID: 3, Name: "Pedro Lopez", Text: CandidateText("Pedro Lopez", "Norte")},
		{ID: 1, Name: "Maria Gonzalez", Text: CandidateText("Maria Gonzalez", "Central")},
		{ID: 2, Name: "Ana Maria Ruiz", Text: CandidateText("Ana Maria Ruiz", "Central")},
		{ID: 4, Name: "Ana Maria Ruiz", Text: CandidateText("Ana Maria Ruiz", "Central")},
	}
	got := Rank(candidates, []string{"maria", "central"}, DefaultMatchThreshold, 0)
	wantIDs := []int64{2, 4, 1, 3}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d results, got %d", len(wantIDs), len(got))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("position %d: got id %d, want %d (%+v)", i, got[i].ID, id, got)
		}
	}
	if got[3].Score != 0 {
		t.Errorf("non-matching candidate should keep score 0, got %d", got[3].Score)
	}
}

func TestRankLimit(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "a", Text: "a"},
		{ID: 2, Name: "b", Text: "b"},
		{ID: 3, Name: "c", Text: "c"},
	}
	if got := Rank(candidates, nil, DefaultMatchThreshold, 2); len(got) != 2 {
		t.Errorf("expected limit 2, got %d", len(got))
	}
	if got := Rank(candidates, nil, DefaultMatchThreshold, 0); len(got) != 3 {
		t.Errorf("expected no limit, got %d", len(got))
	}
}

func BenchmarkRank(b *testing.B) {
	for _, n := range []int{100, 1000} {
		candidates := make([]Candidate, n)
		for i := range candidates {
			name := fmt.Sprintf("Persona %d Gonzalez", i)
			candidates[i] = Candidate{ID: int64(i), Name: name, Text: CandidateText(name, "Central", "east 5")}
		}
		b.Run(fmt.Sprintf("candidates_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Rank(candidates, []string{"gonzalez", "central"}, DefaultMatchThreshold, 100)
			}
		})
	}
}
