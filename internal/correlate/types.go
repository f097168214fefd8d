// Package correlate decides which poles in two independently produced
// exports are the same physical pole. Matching runs as a fixed cascade of
// stages over a shrinking pool of unmatched identities; every stage scores
// all remaining pairs first and then resolves the assignment in one
// sequential pass, so each identity ends up in at most one match.
package correlate

import (
	"runtime"

	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/quality"
)

// Stage names the cascade step that produced a match.
type Stage string

const (
	StageExact      Stage = "exact"
	StageNormalized Stage = "normalized"
	StagePartial    Stage = "partial"
	StageGeographic Stage = "geographic"
)

// Stages is the fixed cascade order.
var Stages = []Stage{StageExact, StageNormalized, StagePartial, StageGeographic}

// Base confidences per stage. Geographic is scaled down by distance.
const (
	ExactConfidence      = 1.0
	NormalizedConfidence = 0.8
	PartialConfidence    = 0.6
	GeographicConfidence = 0.5
)

// Assignment selects how a stage's score table is turned into pairs.
type Assignment string

const (
	// AssignGreedy takes the best remaining pair first, breaking ties on
	// input order. Ties are reported as ambiguous.
	AssignGreedy Assignment = "greedy"
	// AssignOptimal solves a maximum-weight bipartite matching per stage.
	AssignOptimal Assignment = "optimal"
)

// Options tunes the cascade.
type Options struct {
	PartialMinSimilarity float64    `yaml:"partial_min_similarity" json:"partial_min_similarity" validate:"gt=0,lte=1"`
	PartialMinLength     int        `yaml:"partial_min_length" json:"partial_min_length" validate:"gte=1"`
	GeoCutoffMeters      float64    `yaml:"geo_cutoff_meters" json:"geo_cutoff_meters" validate:"gt=0"`
	GeoMaxConfidence     float64    `yaml:"geo_max_confidence" json:"geo_max_confidence" validate:"gt=0,lte=1"`
	Assignment           Assignment `yaml:"assignment" json:"assignment" validate:"omitempty,oneof=greedy optimal"`
	Workers              int        `yaml:"workers" json:"workers" validate:"gte=0"`
	Debug                bool       `yaml:"-" json:"-"`
}

// DefaultOptions returns the thresholds the cascade was tuned with.
func DefaultOptions() Options {
	return Options{
		PartialMinSimilarity: 0.8,
		PartialMinLength:     3,
		GeoCutoffMeters:      50,
		GeoMaxConfidence:     GeographicConfidence,
		Assignment:           AssignGreedy,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PartialMinSimilarity <= 0 {
		o.PartialMinSimilarity = d.PartialMinSimilarity
	}
	if o.PartialMinLength <= 0 {
		o.PartialMinLength = d.PartialMinLength
	}
	if o.GeoCutoffMeters <= 0 {
		o.GeoCutoffMeters = d.GeoCutoffMeters
	}
	if o.GeoMaxConfidence <= 0 {
		o.GeoMaxConfidence = d.GeoMaxConfidence
	}
	if o.Assignment == "" {
		o.Assignment = d.Assignment
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Match pairs one A identity with one B identity.
type Match struct {
	A              extract.PoleIdentity   `json:"a"`
	B              extract.PoleIdentity   `json:"b"`
	Confidence     float64                `json:"confidence"`
	Stage          Stage                  `json:"stage"`
	Similarity     float64                `json:"similarity"`
	DistanceMeters *float64               `json:"distance_m,omitempty"`
	Features       map[string]interface{} `json:"features,omitempty"` // explainability
}

// Result is the outcome of one correlation run. Every input identity is
// either in exactly one match or in its side's unmatched list.
type Result struct {
	Matches    []Match                `json:"matches"`
	UnmatchedA []extract.PoleIdentity `json:"unmatched_a"`
	UnmatchedB []extract.PoleIdentity `json:"unmatched_b"`
	Warnings   []quality.Issue        `json:"warnings,omitempty"`
	Stats      Stats                  `json:"stats"`
}

// Stats summarises a run for the reviewer.
type Stats struct {
	TotalA      int           `json:"total_a"`
	TotalB      int           `json:"total_b"`
	Matched     int           `json:"matched"`
	ByStage     map[Stage]int `json:"by_stage"`
	UnmatchedA  int           `json:"unmatched_a"`
	UnmatchedB  int           `json:"unmatched_b"`
	IneligibleA int           `json:"ineligible_a"`
	IneligibleB int           `json:"ineligible_b"`
	Ambiguous   int           `json:"ambiguous"`
}
