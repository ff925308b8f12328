package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLoad(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n%2 == 0 {
			w.Header().Set("X-Cache", "HIT")
		}
		if r.URL.Query().Get("q") == "boom" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"total":0}`))
	}))
	defer srv.Close()

	stats, err := runLoad(context.Background(), loadConfig{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    200 * time.Millisecond,
		Queries:     []string{"maria", "boom"},
	})
	require.NoError(t, err)

	total := stats.total.Load()
	require.Positive(t, total)
	assert.Equal(t, total, stats.success.Load()+stats.errors.Load())
	assert.Positive(t, stats.errors.Load())
	assert.Positive(t, stats.cacheHits.Load())

	var buf bytes.Buffer
	printLoadReport(&buf, stats, 200*time.Millisecond)
	assert.Contains(t, buf.String(), "status 503:")
	assert.Contains(t, buf.String(), "latency min=")
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("maria\n\n  pedro, north 12 \n"), 0o600))

	got, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"maria", "pedro, north 12"}, got)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n \n"), 0o600))
	_, err = readQueries(empty)
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, 1},
		{50, 5},
		{90, 9},
		{99, 10},
		{100, 10},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
}

func TestLoadtestCommandRejectsBadConcurrency(t *testing.T) {
	_, err := run(t, "loadtest", "--concurrency", "0", "--duration", "10ms")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "concurrency"))
}
