package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.TermCorrectionsTotal.WithLabelValues("phonetic").Inc()
	m.TermCorrectionsTotal.WithLabelValues("phonetic").Inc()
	if got := testutil.ToFloat64(m.TermCorrectionsTotal.WithLabelValues("phonetic")); got != 2 {
		t.Errorf("phonetic corrections = %v, want 2", got)
	}

	// A second set of collectors on a separate registry must not collide.
	NewWithRegistry(prometheus.NewRegistry())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "contact_search_term_corrections_total" {
			found = true
		}
	}
	if !found {
		t.Error("corrections counter not registered")
	}
}
