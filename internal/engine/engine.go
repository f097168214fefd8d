// Package engine wires extraction, correlation, reconciliation and span
// aggregation together behind the three calls a report assembler needs.
// It does no I/O; callers hand it decoded JSON and get plain structs back.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/polematch/internal/config"
	"github.com/polematch/internal/correlate"
	"github.com/polematch/internal/debug"
	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/normalize"
	"github.com/polematch/internal/quality"
	"github.com/polematch/internal/reconcile"
	"github.com/polematch/internal/span"
)

// Engine holds compiled rules. It is safe for concurrent use.
type Engine struct {
	rules      *config.Rules
	correlator *correlate.Correlator
	extractA   *extract.Extractor
	extractB   *extract.Extractor
	aggregator *span.Aggregator
	debug      bool
}

// New compiles rules into an engine. A nil rules value uses the embedded
// defaults.
func New(rules *config.Rules, localDebug bool) (*Engine, error) {
	if rules == nil {
		var err error
		if rules, err = config.DefaultRules(); err != nil {
			return nil, err
		}
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	opts := rules.Correlation
	opts.Debug = localDebug
	classifier := span.NewClassifier(rules.Classification, &rules.Symspell)

	return &Engine{
		rules:      rules,
		correlator: correlate.New(opts),
		extractA:   extract.NewExtractor(extract.SourceA, rules.Sources.A),
		extractB:   extract.NewExtractor(extract.SourceB, rules.Sources.B),
		aggregator: span.NewAggregator(rules.Spans, classifier, span.Options{Workers: opts.Workers, Debug: localDebug}),
		debug:      localDebug,
	}, nil
}

// Rules returns the rules the engine was built with.
func (e *Engine) Rules() *config.Rules {
	return e.rules
}

// Correlate matches source A records against source B records using the
// engine's field maps.
func (e *Engine) Correlate(a, b any) (correlate.Result, error) {
	return e.correlate(a, b, e.extractA, e.extractB)
}

// CorrelateWith is Correlate with caller-supplied field maps.
func (e *Engine) CorrelateWith(a, b any, fmA, fmB extract.FieldMap) (correlate.Result, error) {
	return e.correlate(a, b, extract.NewExtractor(extract.SourceA, fmA), extract.NewExtractor(extract.SourceB, fmB))
}

// Correlate runs a one-off correlation with default thresholds.
func Correlate(a, b any, fmA, fmB extract.FieldMap) (correlate.Result, error) {
	e := &Engine{correlator: correlate.New(correlate.DefaultOptions())}
	return e.CorrelateWith(a, b, fmA, fmB)
}

func (e *Engine) correlate(a, b any, exA, exB *extract.Extractor) (correlate.Result, error) {
	start := time.Now()
	defer func() { operationDuration.WithLabelValues("correlate").Observe(time.Since(start).Seconds()) }()

	idsA, err := exA.ExtractAll(a)
	if err != nil {
		return correlate.Result{}, fmt.Errorf("source A: %w", err)
	}
	idsB, err := exB.ExtractAll(b)
	if err != nil {
		return correlate.Result{}, fmt.Errorf("source B: %w", err)
	}

	res := e.correlator.Correlate(idsA, idsB)
	observeCorrelation(res)
	logIssues("correlate", res.Warnings)
	debug.DebugOutput(e.debug, "correlated %d/%d poles: %v", res.Stats.Matched, len(idsA), res.Stats.ByStage)
	return res, nil
}

// Reconcile builds one canonical record per match. a and b must be the
// records the result was computed from.
func (e *Engine) Reconcile(res correlate.Result, a, b any) ([]reconcile.CanonicalPoleRecord, error) {
	rowsA, err := extract.Records(a)
	if err != nil {
		return nil, fmt.Errorf("source A: %w", err)
	}
	rowsB, err := extract.Records(b)
	if err != nil {
		return nil, fmt.Errorf("source B: %w", err)
	}

	out := make([]reconcile.CanonicalPoleRecord, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m.A.RawRef >= len(rowsA) || m.B.RawRef >= len(rowsB) {
			return nil, fmt.Errorf("%w: match %s/%s refers past the end of the records", extract.ErrInvalidInput, m.A.SourceID, m.B.SourceID)
		}
		out = append(out, reconcile.Reconcile(reconcile.Pair{
			Match: m,
			A:     rowsA[m.A.RawRef],
			B:     rowsB[m.B.RawRef],
		}, e.rules.Reconcile))
	}
	return out, nil
}

// AggregateSpans folds connection records into per-span wire aggregates.
// A nil correlated list disables the endpoint filter.
func (e *Engine) AggregateSpans(connections any, correlated []string) (span.Result, error) {
	start := time.Now()
	defer func() { operationDuration.WithLabelValues("aggregate_spans").Observe(time.Since(start).Seconds()) }()

	res, err := e.aggregator.AggregateRecords(connections, correlated)
	if err != nil {
		return span.Result{}, fmt.Errorf("connections: %w", err)
	}
	observeSpans(res)
	logIssues("aggregate spans", res.Issues)
	return res, nil
}

// CorrelatedPoleIDs lists every id a span may use to refer to a matched
// pole: source ids and labels of both sides, raw and normalized, sorted.
func CorrelatedPoleIDs(res correlate.Result) []string {
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" {
			seen[s] = true
		}
	}
	for _, m := range res.Matches {
		for _, id := range []extract.PoleIdentity{m.A, m.B} {
			add(id.SourceID)
			add(id.PrimaryLabel)
			add(id.NormalizedLabel)
			for _, alt := range id.AlternateLabels {
				add(alt)
				add(normalize.Label(alt))
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Input is one full run's worth of decoded data.
type Input struct {
	Label       string `json:"label"`
	A           any    `json:"a"`
	B           any    `json:"b"`
	Connections any    `json:"connections,omitempty"`
}

// Report is everything a run produced.
type Report struct {
	RunID       uuid.UUID                       `json:"run_id"`
	Label       string                          `json:"label,omitempty"`
	StartedAt   time.Time                       `json:"started_at"`
	CompletedAt time.Time                       `json:"completed_at"`
	Correlation correlate.Result                `json:"correlation"`
	Poles       []reconcile.CanonicalPoleRecord `json:"poles"`
	Spans       *span.Result                    `json:"spans,omitempty"`
	Summary     Summary                         `json:"summary"`
}

// Summary is the headline counts a reviewer looks at first.
type Summary struct {
	Matched            int                     `json:"matched"`
	ByStage            map[correlate.Stage]int `json:"by_stage"`
	UnmatchedA         int                     `json:"unmatched_a"`
	UnmatchedB         int                     `json:"unmatched_b"`
	Ambiguous          int                     `json:"ambiguous"`
	Aggregates         int                     `json:"aggregates"`
	SkippedAnnotations int                     `json:"skipped_annotations"`
	SkippedConnections int                     `json:"skipped_connections"`
	Issues             map[quality.Kind]int    `json:"issues"`
}

// Run correlates, reconciles and, when connections are given, aggregates
// spans restricted to the correlated poles.
func (e *Engine) Run(in Input) (*Report, error) {
	debug.DebugHeader(e.debug)
	defer debug.DebugFooter(e.debug)

	rep := &Report{
		RunID:     uuid.New(),
		Label:     in.Label,
		StartedAt: time.Now().UTC(),
	}

	corr, err := e.Correlate(in.A, in.B)
	if err != nil {
		return nil, err
	}
	rep.Correlation = corr

	if rep.Poles, err = e.Reconcile(corr, in.A, in.B); err != nil {
		return nil, err
	}

	issues := append([]quality.Issue{}, corr.Warnings...)
	for _, p := range rep.Poles {
		issues = append(issues, p.Issues...)
	}

	if in.Connections != nil {
		spans, err := e.AggregateSpans(in.Connections, CorrelatedPoleIDs(corr))
		if err != nil {
			return nil, err
		}
		rep.Spans = &spans
		issues = append(issues, spans.Issues...)
		rep.Summary.Aggregates = len(spans.Aggregates)
		rep.Summary.SkippedAnnotations = spans.Stats.SkippedAnnotations
		rep.Summary.SkippedConnections = spans.Stats.SkippedUncorrelated
	}

	rep.Summary.Matched = corr.Stats.Matched
	rep.Summary.ByStage = corr.Stats.ByStage
	rep.Summary.UnmatchedA = corr.Stats.UnmatchedA
	rep.Summary.UnmatchedB = corr.Stats.UnmatchedB
	rep.Summary.Ambiguous = corr.Stats.Ambiguous
	rep.Summary.Issues = quality.Count(issues)
	rep.CompletedAt = time.Now().UTC()

	slog.Info("run complete",
		slog.String("run_id", rep.RunID.String()),
		slog.Int("matched", rep.Summary.Matched),
		slog.Int("unmatched_a", rep.Summary.UnmatchedA),
		slog.Int("unmatched_b", rep.Summary.UnmatchedB),
		slog.Int("aggregates", rep.Summary.Aggregates))
	return rep, nil
}

func logIssues(operation string, issues []quality.Issue) {
	for _, is := range issues {
		if is.Severity != quality.SeverityWarning {
			continue
		}
		slog.Warn(operation, slog.String("kind", string(is.Kind)), slog.String("ref", is.Ref), slog.String("detail", is.Detail))
	}
}
