package span

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/polematch/internal/debug"
	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/normalize"
	"github.com/polematch/internal/quality"
)

// Options tunes an Aggregator.
type Options struct {
	Workers int
	Debug   bool
}

// Result is the output of one aggregation run. Aggregates are ordered by
// connection input order, then by first appearance of their key.
type Result struct {
	Aggregates []SpanWireAggregate `json:"aggregates"`
	Issues     []quality.Issue     `json:"issues,omitempty"`
	Stats      Stats               `json:"stats"`
}

// Stats counts what was folded and what was skipped.
type Stats struct {
	Connections          int `json:"connections"`
	Aggregated           int `json:"aggregated"`
	SkippedUncorrelated  int `json:"skipped_uncorrelated"`
	Annotations          int `json:"annotations"`
	SkippedAnnotations   int `json:"skipped_annotations"`
	Aggregates           int `json:"aggregates"`
	ReferenceConnections int `json:"reference_connections"`
}

// Aggregator folds span connections into per-key aggregates.
type Aggregator struct {
	parser  *parser
	workers int
	debug   bool
}

// NewAggregator prepares an aggregator for one connection schema.
func NewAggregator(fields FieldMap, classifier *Classifier, opts Options) *Aggregator {
	if classifier == nil {
		classifier = NewClassifier(Table{}, nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Aggregator{
		parser:  newParser(fields, classifier),
		workers: opts.Workers,
		debug:   opts.Debug,
	}
}

// Parse builds SpanConnections from raw records without aggregating them.
// The only error is a records value that is not an array of objects.
func (ag *Aggregator) Parse(records any) ([]SpanConnection, []quality.Issue, error) {
	rows, err := extract.Records(records)
	if err != nil {
		return nil, nil, err
	}

	type slot struct {
		conn   SpanConnection
		issues []quality.Issue
	}
	parsed := make([]slot, len(rows))

	var g errgroup.Group
	g.SetLimit(ag.workers)
	for i, r := range rows {
		g.Go(func() error {
			parsed[i].conn, parsed[i].issues = ag.parser.connection(i, r)
			return nil
		})
	}
	_ = g.Wait()

	conns := make([]SpanConnection, len(parsed))
	var issues []quality.Issue
	for i, s := range parsed {
		conns[i] = s.conn
		issues = append(issues, s.issues...)
	}
	return conns, issues, nil
}

// AggregateRecords parses and aggregates raw connection records.
func (ag *Aggregator) AggregateRecords(records any, correlated []string) (Result, error) {
	conns, issues, err := ag.Parse(records)
	if err != nil {
		return Result{}, err
	}

	res := ag.Aggregate(conns, correlated)
	res.Issues = append(issues, res.Issues...)
	res.Stats.SkippedAnnotations = len(issues)
	return res, nil
}

// Aggregate folds already-parsed connections. When correlated is non-nil,
// connections with an endpoint outside it are skipped and reported. Each
// connection is folded independently and finalized only after all of its
// sections.
func (ag *Aggregator) Aggregate(conns []SpanConnection, correlated []string) Result {
	localDebug := ag.debug
	defer debug.DebugTiming(localDebug, "aggregate spans")()

	allowed := poleSet(correlated)
	perConn := make([][]SpanWireAggregate, len(conns))
	skipped := make([]bool, len(conns))

	var g errgroup.Group
	g.SetLimit(ag.workers)
	for i, conn := range conns {
		if allowed != nil && !(allowed.has(conn.FromPoleID) && allowed.has(conn.ToPoleID)) {
			skipped[i] = true
			continue
		}
		g.Go(func() error {
			perConn[i] = foldConnection(conn)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Aggregates: []SpanWireAggregate{}}
	res.Stats.Connections = len(conns)
	for i, conn := range conns {
		if skipped[i] {
			res.Stats.SkippedUncorrelated++
			res.Issues = append(res.Issues, quality.Newf(quality.UncorrelatedEndpoint, quality.SeverityInfo,
				conn.ID, "span %s -> %s references a pole outside the correlated set", conn.FromPoleID, conn.ToPoleID))
			continue
		}
		res.Stats.Aggregated++
		if conn.IsReferenceSubgroup {
			res.Stats.ReferenceConnections++
		}
		for _, sec := range conn.Sections {
			res.Stats.Annotations += len(sec.Annotations)
		}
		res.Aggregates = append(res.Aggregates, perConn[i]...)
	}
	res.Stats.Aggregates = len(res.Aggregates)

	debug.DebugOutput(localDebug, "aggregated %d of %d connections into %d aggregates", res.Stats.Aggregated, len(conns), len(res.Aggregates))
	return res
}

// foldConnection creates aggregates lazily per key, keeps the running
// minimum heights and the maximum move, and finalizes once at the end.
func foldConnection(conn SpanConnection) []SpanWireAggregate {
	index := make(map[Key]int)
	var out []SpanWireAggregate

	for _, sec := range conn.Sections {
		for _, a := range sec.Annotations {
			key := Key{Category: a.Category, Owner: a.Owner}
			i, ok := index[key]
			if !ok {
				i = len(out)
				index[key] = i
				out = append(out, SpanWireAggregate{
					Key:                 key,
					IsReferenceSubgroup: conn.IsReferenceSubgroup,
					ConnectionID:        conn.ID,
					FromPoleID:          conn.FromPoleID,
					ToPoleID:            conn.ToPoleID,
				})
			}
			out[i].fold(a)
		}
	}

	for i := range out {
		out[i].finalize()
	}
	return out
}

func (agg *SpanWireAggregate) fold(a WireAnnotation) {
	agg.Observations++
	agg.ExistingHeight = minPtr(agg.ExistingHeight, a.HeightFeet)
	if a.IsProposed {
		agg.NewHeight = minPtr(agg.NewHeight, a.HeightFeet)
	}
	if a.MoveFeet > agg.MoveValueFeet {
		agg.MoveValueFeet = a.MoveFeet
	}
}

func (agg *SpanWireAggregate) finalize() {
	agg.ProposedHeight = nil
	if agg.MoveValueFeet > 0 && agg.ExistingHeight != nil {
		p := *agg.ExistingHeight + agg.MoveValueFeet
		agg.ProposedHeight = &p
	}
}

func minPtr(cur *float64, v float64) *float64 {
	if cur != nil && *cur <= v {
		return cur
	}
	return &v
}

type poles map[string]bool

// poleSet indexes ids both raw and normalized so a span written against
// "1-PL410620" finds the correlated "PL410620".
func poleSet(ids []string) poles {
	if ids == nil {
		return nil
	}
	set := make(poles, 2*len(ids))
	for _, id := range ids {
		set[id] = true
		if n := normalize.Label(id); n != "" {
			set[n] = true
		}
	}
	return set
}

func (p poles) has(id string) bool {
	if id == "" {
		return false
	}
	if p[id] {
		return true
	}
	n := normalize.Label(id)
	return n != "" && p[n]
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
