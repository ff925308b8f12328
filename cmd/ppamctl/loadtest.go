package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// defaultLoadQueries mixes exact names, misspellings, abbreviations and
// multi-clause queries so the cache and every interpreter stage see traffic.
var defaultLoadQueries = []string{
	"maria",
	"maira gonzales",
	"pedro, north 12",
	"anciano",
	"precursor regular",
	"p. reg",
	"east 5",
	"lopes",
	"norte, ana",
	"ruiz",
}

type loadConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
}

type loadStats struct {
	total     atomic.Int64
	success   atomic.Int64
	errors    atomic.Int64
	cacheHits atomic.Int64
	degraded  atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 10000),
		statusCodes: make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, resp *http.Response, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}
	if resp.Header.Get("X-Cache") == "HIT" {
		s.cacheHits.Add(1)
	}
	if resp.Header.Get("Warning") != "" {
		s.degraded.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[resp.StatusCode]++
	s.mu.Unlock()
}

func loadtestCommand(c *cli.Context) error {
	queries := defaultLoadQueries
	if path := c.String("queries"); path != "" {
		var err error
		if queries, err = readQueries(path); err != nil {
			return err
		}
	}
	cfg := loadConfig{
		BaseURL:     strings.TrimRight(c.String("url"), "/"),
		Concurrency: c.Int("concurrency"),
		Duration:    c.Duration("duration"),
		Queries:     queries,
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}

	w := c.App.Writer
	fmt.Fprintf(w, "target=%s concurrency=%d duration=%s queries=%d\n",
		cfg.BaseURL, cfg.Concurrency, cfg.Duration, len(cfg.Queries))

	stats, err := runLoad(c.Context, cfg)
	if err != nil {
		return err
	}
	printLoadReport(w, stats, cfg.Duration)
	if stats.total.Load() == 0 {
		return fmt.Errorf("no requests completed, is the service running at %s?", cfg.BaseURL)
	}
	return nil
}

// readQueries loads one query per non-blank line.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening queries: %w", err)
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			queries = append(queries, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return queries, nil
}

func runLoad(ctx context.Context, cfg loadConfig) (*loadStats, error) {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for worker := 0; worker < cfg.Concurrency; worker++ {
		g.Go(func() error {
			for i := worker; ctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				req, err := http.NewRequestWithContext(ctx, http.MethodGet,
					cfg.BaseURL+"/api/v1/search?q="+url.QueryEscape(query), nil)
				if err != nil {
					return err
				}
				start := time.Now()
				resp, err := client.Do(req)
				if ctx.Err() != nil {
					if resp != nil {
						resp.Body.Close()
					}
					return nil
				}
				if err == nil {
					io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
				}
				stats.record(time.Since(start), resp, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.total.Load()
	fmt.Fprintf(w, "requests=%d ok=%d errors=%d cache_hits=%d degraded=%d\n",
		total, stats.success.Load(), stats.errors.Load(), stats.cacheHits.Load(), stats.degraded.Load())
	if total > 0 {
		fmt.Fprintf(w, "rps=%.2f error_rate=%.2f%%\n",
			float64(total)/duration.Seconds(), float64(stats.errors.Load())/float64(total)*100)
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "status %d: %d\n", code, stats.statusCodes[code])
	}
	stats.mu.Unlock()

	if len(latencies) == 0 {
		return
	}
	slices.Sort(latencies)
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	fmt.Fprintf(w, "latency min=%s avg=%s p50=%s p90=%s p99=%s max=%s\n",
		latencies[0],
		sum/time.Duration(len(latencies)),
		percentile(latencies, 50),
		percentile(latencies, 90),
		percentile(latencies, 99),
		latencies[len(latencies)-1])
}

// percentile uses the nearest-rank method on sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
