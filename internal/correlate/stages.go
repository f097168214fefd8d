package correlate

import (
	"math"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/geo"
	"github.com/polematch/internal/normalize"
	"github.com/polematch/internal/symspell"
)

// candidate is one viable (a, b) pair in a stage's score table. ai and bj
// index the stage's pool.
type candidate struct {
	ai, bj     int
	confidence float64
	similarity float64
	distance   float64 // NaN when the stage does not measure distance
	features   map[string]interface{}
}

// scoreFunc reports whether a and b are a candidate pair for a stage.
type scoreFunc func(a, b extract.PoleIdentity) (candidate, bool)

func (c *Correlator) scorer(stage Stage) scoreFunc {
	switch stage {
	case StageExact:
		return scoreExact
	case StageNormalized:
		return scoreNormalized
	case StagePartial:
		return c.scorePartial
	case StageGeographic:
		return c.scoreGeographic
	}
	return nil
}

func scoreExact(a, b extract.PoleIdentity) (candidate, bool) {
	if a.PrimaryLabel == "" || a.PrimaryLabel != b.PrimaryLabel {
		return candidate{}, false
	}
	return candidate{
		confidence: ExactConfidence,
		similarity: 1,
		distance:   math.NaN(),
		features:   map[string]interface{}{"label": a.PrimaryLabel},
	}, true
}

// scoreNormalized compares normalized primaries first, then every
// normalized alternate on either side. Both sides need a primary label; a
// primary-to-primary hit ranks above one that needed an alternate.
func scoreNormalized(a, b extract.PoleIdentity) (candidate, bool) {
	if a.PrimaryLabel == "" || b.PrimaryLabel == "" {
		return candidate{}, false
	}
	if a.NormalizedLabel != "" && a.NormalizedLabel == b.NormalizedLabel {
		return candidate{
			confidence: NormalizedConfidence,
			similarity: 1,
			distance:   math.NaN(),
			features:   map[string]interface{}{"normalized_label": a.NormalizedLabel, "via": "primary"},
		}, true
	}

	keysA := make(map[string]bool, len(a.AlternateLabels)+1)
	for _, k := range labelKeys(a) {
		keysA[k] = true
	}
	for _, k := range labelKeys(b) {
		if keysA[k] {
			return candidate{
				confidence: NormalizedConfidence,
				similarity: 0.9,
				distance:   math.NaN(),
				features:   map[string]interface{}{"normalized_label": k, "via": "alternate"},
			}, true
		}
	}
	return candidate{}, false
}

// labelKeys is the sorted set of normalized primary and alternate labels.
func labelKeys(id extract.PoleIdentity) []string {
	return normalize.Labels(append([]string{id.NormalizedLabel}, id.AlternateLabels...))
}

// scorePartial accepts a containment of one normalized label in the other,
// or an edit-distance similarity at or above the configured ratio.
func (c *Correlator) scorePartial(a, b extract.PoleIdentity) (candidate, bool) {
	na, nb := a.NormalizedLabel, b.NormalizedLabel
	if na == "" || nb == "" {
		return candidate{}, false
	}

	shorter, longer := na, nb
	if len([]rune(shorter)) > len([]rune(longer)) {
		shorter, longer = longer, shorter
	}
	substring := len([]rune(shorter)) >= c.opts.PartialMinLength && strings.Contains(longer, shorter)
	similarity := symspell.Similarity(na, nb)
	if !substring && similarity < c.opts.PartialMinSimilarity {
		return candidate{}, false
	}

	return candidate{
		confidence: PartialConfidence,
		similarity: similarity,
		distance:   math.NaN(),
		features: map[string]interface{}{
			"substring":   substring,
			"similarity":  similarity,
			"label_delta": labelDelta(na, nb),
		},
	}, true
}

// labelDelta records how b differs from a as a compact diff delta
// ("=2\t-1\t+X\t=3"), for reviewers.
func labelDelta(a, b string) string {
	dmp := diffmatchpatch.New()
	return dmp.DiffToDelta(dmp.DiffMain(a, b, false))
}

func (c *Correlator) scoreGeographic(a, b extract.PoleIdentity) (candidate, bool) {
	if !a.HasCoordinate() || !b.HasCoordinate() {
		return candidate{}, false
	}
	d := geo.DistanceMeters(*a.Coordinate, *b.Coordinate)
	confidence, ok := c.geo.Confidence(d)
	if !ok {
		return candidate{}, false
	}
	return candidate{
		confidence: confidence,
		similarity: 1 - d/c.geo.CutoffMeters,
		distance:   d,
		features:   map[string]interface{}{"distance_m": d, "cutoff_m": c.geo.CutoffMeters},
	}, true
}
