package correlate

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/polematch/internal/debug"
	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/geo"
	"github.com/polematch/internal/quality"
)

// Correlator runs the matching cascade. It holds no per-run state and is
// safe for concurrent use.
type Correlator struct {
	opts Options
	geo  geo.Scorer
}

// New creates a correlator; zero option fields take their defaults.
func New(opts Options) *Correlator {
	opts = opts.withDefaults()
	return &Correlator{
		opts: opts,
		geo:  geo.Scorer{CutoffMeters: opts.GeoCutoffMeters, MaxConfidence: opts.GeoMaxConfidence},
	}
}

// Options returns the effective options.
func (c *Correlator) Options() Options {
	return c.opts
}

// Correlate matches identities of source A against source B. Stages run in
// order and each only sees what earlier stages left unmatched.
func (c *Correlator) Correlate(a, b []extract.PoleIdentity) Result {
	localDebug := c.opts.Debug
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)
	defer debug.DebugTiming(localDebug, "correlate")()

	p, skippedA, skippedB := newPool(a, b)

	res := Result{
		Matches: []Match{},
		Stats: Stats{
			TotalA:      len(a),
			TotalB:      len(b),
			ByStage:     make(map[Stage]int, len(Stages)),
			IneligibleA: len(skippedA),
			IneligibleB: len(skippedB),
		},
	}
	for _, stage := range Stages {
		res.Stats.ByStage[stage] = 0
	}
	for _, id := range append(append([]extract.PoleIdentity{}, skippedA...), skippedB...) {
		res.Warnings = append(res.Warnings, quality.Newf(quality.MissingIdentifier, quality.SeverityInfo,
			ref(id), "no label and no usable coordinate"))
	}

	for _, stage := range Stages {
		if p.empty() {
			break
		}

		cands := c.scoreTable(p, c.scorer(stage))

		var accepted []candidate
		var ties []tie
		if c.opts.Assignment == AssignOptimal {
			accepted = assignOptimal(cands)
		} else {
			accepted, ties = assignGreedy(cands)
		}

		for _, t := range ties {
			res.Warnings = append(res.Warnings, ambiguity(stage, p, t))
		}
		res.Stats.Ambiguous += len(ties)

		usedA := make(map[int]bool, len(accepted))
		usedB := make(map[int]bool, len(accepted))
		matches := make([]Match, 0, len(accepted))
		for _, cand := range accepted {
			usedA[cand.ai] = true
			usedB[cand.bj] = true
			matches = append(matches, toMatch(stage, p, cand))
		}
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].A.RawRef < matches[j].A.RawRef
		})
		res.Matches = append(res.Matches, matches...)
		res.Stats.ByStage[stage] = len(matches)

		debug.DebugOutput(localDebug, "stage %s: %d candidates, %d accepted, %d ties", stage, len(cands), len(accepted), len(ties))
		p = p.without(usedA, usedB)
	}

	res.UnmatchedA = byRawRef(append(p.a, skippedA...))
	res.UnmatchedB = byRawRef(append(p.b, skippedB...))
	res.Stats.Matched = len(res.Matches)
	res.Stats.UnmatchedA = len(res.UnmatchedA)
	res.Stats.UnmatchedB = len(res.UnmatchedB)
	return res
}

// scoreTable scores every (a, b) pair of the pool in parallel, one task per
// A row writing only its own slot, and flattens the rows in order.
func (c *Correlator) scoreTable(p pool, score scoreFunc) []candidate {
	rows := make([][]candidate, len(p.a))

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for i := range p.a {
		g.Go(func() error {
			for j := range p.b {
				if cand, ok := score(p.a[i], p.b[j]); ok {
					cand.ai, cand.bj = i, j
					rows[i] = append(rows[i], cand)
				}
			}
			return nil
		})
	}
	_ = g.Wait() // scorers do not fail

	var out []candidate
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

func toMatch(stage Stage, p pool, c candidate) Match {
	m := Match{
		A:          p.a[c.ai],
		B:          p.b[c.bj],
		Confidence: c.confidence,
		Stage:      stage,
		Similarity: c.similarity,
		Features:   c.features,
	}
	if !math.IsNaN(c.distance) {
		d := c.distance
		m.DistanceMeters = &d
	}
	return m
}

func ambiguity(stage Stage, p pool, t tie) quality.Issue {
	a, b := p.a[t.winner.ai], p.b[t.winner.bj]
	if t.rival.ai == t.winner.ai {
		return quality.Newf(quality.AmbiguousMatch, quality.SeverityWarning, ref(a),
			"%s stage: matched %s, %s scored the same", stage, ref(b), ref(p.b[t.rival.bj]))
	}
	return quality.Newf(quality.AmbiguousMatch, quality.SeverityWarning, ref(b),
		"%s stage: matched %s, %s scored the same", stage, ref(a), ref(p.a[t.rival.ai]))
}

func ref(id extract.PoleIdentity) string {
	return string(id.Source) + ":" + id.SourceID
}

func byRawRef(ids []extract.PoleIdentity) []extract.PoleIdentity {
	out := make([]extract.PoleIdentity, len(ids))
	copy(out, ids)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RawRef < out[j].RawRef })
	return out
}
