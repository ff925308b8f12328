// Package engine answers contact queries. It owns the live vocabulary
// index, interprets query terms against it and runs each clause of a query
// as a filtered directory lookup, merging the clauses by person id.
//
// The index is published with an atomic pointer swap: Rebuild builds a
// complete new index off to the side and installs it, so queries never wait
// for a rebuild and never observe a partial index. Until the first
// successful rebuild, queries run in degraded mode with every term matched
// literally.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SojoC/PPAM-WEB-APP/internal/directory"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/formatter"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/interpreter"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/parser"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/ranker"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/vocabulary"
	"github.com/SojoC/PPAM-WEB-APP/pkg/config"
	apperrors "github.com/SojoC/PPAM-WEB-APP/pkg/errors"
	"github.com/SojoC/PPAM-WEB-APP/pkg/logger"
	"github.com/SojoC/PPAM-WEB-APP/pkg/metrics"
	"github.com/SojoC/PPAM-WEB-APP/pkg/tracing"
)

type Options struct {
	FuzzyThreshold     int
	MinFuzzyLength     int
	PrefixLength       int
	ExcludeNumeric     bool
	ResultLimit        int
	MaxParallelClauses int
}

func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		FuzzyThreshold:     cfg.FuzzyThreshold,
		MinFuzzyLength:     cfg.MinFuzzyLength,
		PrefixLength:       cfg.PrefixLength,
		ExcludeNumeric:     cfg.ExcludeNumeric,
		ResultLimit:        cfg.ResultLimit,
		MaxParallelClauses: cfg.MaxParallelClauses,
	}
}

// Correction records a query term the interpreter rewrote.
type Correction struct {
	Clause int `json:"clause"`
	interpreter.Resolution
}

type Result struct {
	Query       string             `json:"query"`
	Total       int                `json:"total"`
	Results     []formatter.Record `json:"results"`
	Clauses     int                `json:"clauses"`
	Corrections []Correction       `json:"corrections,omitempty"`
	Browse      bool               `json:"browse"`
	// Degraded is set when no vocabulary index was available and terms
	// were matched literally.
	Degraded bool   `json:"degraded"`
	TookMs   int64  `json:"took_ms"`
	TraceID  string `json:"trace_id,omitempty"`
}

type Engine struct {
	store   directory.Store
	interp  *interpreter.Interpreter
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger

	index     atomic.Pointer[vocabulary.Index]
	rebuildMu sync.Mutex
	// lastBuild is the start time (unix nanos) of the last successful rebuild.
	lastBuild atomic.Int64
}

// New creates an engine over store. m may be nil.
func New(store directory.Store, opts Options, m *metrics.Metrics) *Engine {
	if opts.MaxParallelClauses <= 0 {
		opts.MaxParallelClauses = 4
	}
	return &Engine{
		store: store,
		interp: interpreter.New(interpreter.Options{
			FuzzyThreshold: opts.FuzzyThreshold,
			MinFuzzyLength: opts.MinFuzzyLength,
		}),
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "search-engine"),
	}
}

// Rebuild reads every text field of the directory and installs a freshly
// built vocabulary index. Concurrent calls are serialized. On failure the
// previous index stays live.
func (e *Engine) Rebuild(ctx context.Context) (vocabulary.Stats, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	fields, err := e.store.TextFields(ctx)
	if err != nil {
		e.observeRebuild("failure", start, nil)
		e.logger.Error("vocabulary rebuild failed", "error", err)
		return vocabulary.Stats{}, fmt.Errorf("rebuilding vocabulary: %w", err)
	}

	ix := vocabulary.Build(slices.Values(fields), vocabulary.Options{
		PrefixLength:   e.opts.PrefixLength,
		ExcludeNumeric: e.opts.ExcludeNumeric,
	})
	e.index.Store(ix)
	e.lastBuild.Store(start.UnixNano())
	e.observeRebuild("success", start, ix)

	stats := ix.Stats()
	e.logger.Info("vocabulary rebuilt",
		"words", stats.Words,
		"abbreviations", stats.Abbreviations,
		"phonetic_codes", stats.PhoneticCodes,
		"fields", stats.Fields,
		"took", time.Since(start),
	)
	return stats, nil
}

// LastRebuild returns the start time of the last successful rebuild, or
// the zero time.
func (e *Engine) LastRebuild() time.Time {
	n := e.lastBuild.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Ready reports whether a vocabulary index is installed.
func (e *Engine) Ready() bool {
	return e.index.Load() != nil
}

// IndexStats describes the live index.
func (e *Engine) IndexStats() (vocabulary.Stats, error) {
	ix := e.index.Load()
	if ix == nil {
		return vocabulary.Stats{}, apperrors.ErrIndexUnavailable
	}
	return ix.Stats(), nil
}

// Interpret resolves a single token against the live index.
func (e *Engine) Interpret(token string) interpreter.Resolution {
	return e.interp.Interpret(e.index.Load(), token)
}

// Search answers query. The empty query lists the whole directory by name;
// any other query is split into clauses whose matches are merged, ranked
// and limited.
func (e *Engine) Search(ctx context.Context, query string) (*Result, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "contact-search", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Log()
	}()

	plan := parser.Parse(query)
	span.SetAttr("clauses", len(plan.Clauses))

	var (
		result *Result
		err    error
	)
	if plan.Browse {
		result, err = e.browse(ctx, plan)
	} else {
		result, err = e.search(ctx, plan)
	}
	if err != nil {
		e.countQuery("error")
		span.SetAttr("error", err.Error())
		return nil, err
	}

	result.TookMs = time.Since(start).Milliseconds()
	result.TraceID = span.TraceID
	span.SetAttr("total", result.Total)
	e.observeSearch(result)
	return result, nil
}

func (e *Engine) browse(ctx context.Context, plan *parser.Plan) (*Result, error) {
	persons, err := e.store.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing directory: %w", err)
	}
	records := formatter.FormatAll(persons, logger.FromContext(ctx))
	return &Result{
		Query:   plan.Raw,
		Total:   len(records),
		Results: records,
		Browse:  true,
	}, nil
}

// clauseQuery is one clause after interpretation.
type clauseQuery struct {
	filter directory.Filter
	found  []directory.Person
}

func (e *Engine) search(ctx context.Context, plan *parser.Plan) (*Result, error) {
	ix := e.index.Load()
	result := &Result{
		Query:    plan.Raw,
		Clauses:  len(plan.Clauses),
		Degraded: ix == nil,
	}

	queries := make([]*clauseQuery, 0, len(plan.Clauses))
	var rankTerms []string
	for i, clause := range plan.Clauses {
		q := &clauseQuery{filter: directory.Filter{Codes: clause.Codes}}
		for _, tok := range clause.Terms {
			res := e.interp.Interpret(ix, tok)
			if res.Corrected() {
				result.Corrections = append(result.Corrections, Correction{Clause: i, Resolution: res})
			}
			if !slices.Contains(q.filter.Terms, res.Term) {
				q.filter.Terms = append(q.filter.Terms, res.Term)
			}
		}
		if q.filter.Empty() {
			// Nothing left to constrain the lookup; the clause adds no
			// results rather than matching the whole directory.
			logger.FromContext(ctx).Debug("skipping clause without filters", "clause", clause.Raw)
			continue
		}
		for _, t := range slices.Concat(q.filter.Codes, q.filter.Terms) {
			if !slices.Contains(rankTerms, t) {
				rankTerms = append(rankTerms, t)
			}
		}
		queries = append(queries, q)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxParallelClauses)
	for _, q := range queries {
		g.Go(func() error {
			_, span := tracing.StartChildSpan(gctx, "clause")
			defer span.End()
			span.SetAttr("codes", q.filter.Codes)
			span.SetAttr("terms", q.filter.Terms)
			found, err := e.store.FindPersons(gctx, q.filter)
			if err != nil {
				return fmt.Errorf("finding persons: %w", err)
			}
			span.SetAttr("found", len(found))
			q.found = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[int64]directory.Person)
	for _, q := range queries {
		for _, p := range q.found {
			merged[p.ID] = p
		}
	}

	candidates := make([]ranker.Candidate, 0, len(merged))
	for _, p := range merged {
		var unitName, circuit string
		if p.Unit != nil {
			unitName, circuit = p.Unit.Name, p.Unit.Circuit
		}
		candidates = append(candidates, ranker.Candidate{
			ID:   p.ID,
			Name: p.Name,
			Text: ranker.CandidateText(p.Name, unitName, circuit),
		})
	}
	ranked := ranker.Rank(candidates, rankTerms, ranker.DefaultMatchThreshold, 0)

	ordered := make([]directory.Person, 0, len(ranked))
	for _, sc := range ranked {
		ordered = append(ordered, merged[sc.ID])
	}
	records := formatter.FormatAll(ordered, logger.FromContext(ctx))
	result.Total = len(records)
	if e.opts.ResultLimit > 0 && len(records) > e.opts.ResultLimit {
		records = records[:e.opts.ResultLimit]
	}
	result.Results = records
	return result, nil
}

func (e *Engine) observeRebuild(status string, start time.Time, ix *vocabulary.Index) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexRebuildsTotal.WithLabelValues(status).Inc()
	if ix != nil {
		e.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
		e.metrics.IndexVocabularySize.Set(float64(ix.Len()))
	}
}

func (e *Engine) countQuery(resultType string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (e *Engine) observeSearch(r *Result) {
	switch {
	case r.Browse:
		e.countQuery("browse")
	case r.Degraded:
		e.countQuery("degraded")
	case r.Total == 0:
		e.countQuery("zero_result")
	default:
		e.countQuery("hit")
	}
	if e.metrics == nil {
		return
	}
	e.metrics.SearchResultsCount.Observe(float64(len(r.Results)))
	e.metrics.SearchClausesCount.Observe(float64(r.Clauses))
	for _, c := range r.Corrections {
		e.metrics.TermCorrectionsTotal.WithLabelValues(c.Strategy).Inc()
	}
}
