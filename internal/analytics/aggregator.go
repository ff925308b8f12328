package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/SojoC/PPAM-WEB-APP/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches         int64            `json:"total_searches"`
	BrowseSearches        int64            `json:"browse_searches"`
	CacheHits             int64            `json:"cache_hits"`
	CacheMisses           int64            `json:"cache_misses"`
	ZeroResultCount       int64            `json:"zero_result_count"`
	DegradedCount         int64            `json:"degraded_count"`
	Rebuilds              int64            `json:"rebuilds"`
	FailedRebuilds        int64            `json:"failed_rebuilds"`
	AvgLatencyMs          float64          `json:"avg_latency_ms"`
	P50LatencyMs          int64            `json:"p50_latency_ms"`
	P95LatencyMs          int64            `json:"p95_latency_ms"`
	P99LatencyMs          int64            `json:"p99_latency_ms"`
	TopQueries            []QueryCount     `json:"top_queries"`
	ZeroResultQueries     []QueryCount     `json:"zero_result_queries"`
	TopCorrections        []QueryCount     `json:"top_corrections"`
	CorrectionsByStrategy map[string]int64 `json:"corrections_by_strategy"`
	QueriesPerMinute      float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds search and rebuild events into running totals. It is
// fed either by a Kafka consumer through HandleMessage or directly as a
// Tracker when Kafka is disabled.
type Aggregator struct {
	mu                sync.RWMutex
	stats             AggregatedStats
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	corrections       map[string]int64
	byStrategy        map[string]int64
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		corrections:       make(map[string]int64),
		byStrategy:        make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records event in place. Unknown event types are ignored.
func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.recordSearch(e)
	case *SearchEvent:
		a.recordSearch(*e)
	case RebuildEvent:
		a.recordRebuild(e)
	case *RebuildEvent:
		a.recordRebuild(*e)
	}
}

// HandleMessage returns a Kafka handler feeding the aggregator. Undecodable
// messages are logged and acknowledged.
func (a *Aggregator) HandleMessage() kafka.MessageHandler {
	return func(_ context.Context, msg kafka.Message) error {
		if err := a.decode(msg.Value); err != nil {
			a.logger.Error("failed to decode analytics event", "error", err)
		}
		return nil
	}
}

func (a *Aggregator) decode(value []byte) error {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("decoding event type: %w", err)
	}
	switch env.Type {
	case EventSearch:
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return err
		}
		a.recordSearch(event)
	case EventRebuild:
		event, err := kafka.DecodeJSON[RebuildEvent](value)
		if err != nil {
			return err
		}
		a.recordRebuild(event)
	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
	return nil
}

func (a *Aggregator) recordSearch(event SearchEvent) {
	query := strings.ToLower(strings.TrimSpace(event.Query))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalSearches++
	if event.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}
	if event.Degraded {
		a.stats.DegradedCount++
	}
	if len(a.latencies) == maxLatencySamples {
		a.latencies = append(a.latencies[:0], a.latencies[maxLatencySamples/2:]...)
	}
	a.latencies = append(a.latencies, event.LatencyMs)

	if event.Browse {
		a.stats.BrowseSearches++
		return
	}
	a.queryCounts[query]++
	if event.TotalHits == 0 {
		a.stats.ZeroResultCount++
		a.zeroResultQueries[query]++
	}
	for _, c := range event.Corrections {
		a.corrections[c.Input+" -> "+c.Term]++
		a.byStrategy[c.Strategy]++
	}
}

func (a *Aggregator) recordRebuild(event RebuildEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if event.Success {
		a.stats.Rebuilds++
	} else {
		a.stats.FailedRebuilds++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	stats.TopCorrections = topN(a.corrections, 10)
	stats.CorrectionsByStrategy = make(map[string]int64, len(a.byStrategy))
	for k, v := range a.byStrategy {
		stats.CorrectionsByStrategy[k] = v
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken by key.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
