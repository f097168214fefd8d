package extract

import (
	"github.com/polematch/internal/geo"
)

// Source tags which export a record came from.
type Source string

const (
	// SourceA is the structural-analysis export.
	SourceA Source = "A"
	// SourceB is the field-survey export.
	SourceB Source = "B"
)

// PoleIdentity is everything the correlator needs to know about one pole
// record. It is a value: once extracted it is never modified and holds no
// reference back into the raw record.
type PoleIdentity struct {
	SourceID        string          `json:"source_id"`
	PrimaryLabel    string          `json:"primary_label"`
	NormalizedLabel string          `json:"normalized_label"`
	AlternateLabels []string        `json:"alternate_labels,omitempty"`
	Coordinate      *geo.Coordinate `json:"coordinate,omitempty"`
	Source          Source          `json:"source"`
	RawRef          int             `json:"raw_ref"`
}

// HasLabel reports whether label-based stages can consider the identity.
func (p PoleIdentity) HasLabel() bool {
	return p.PrimaryLabel != ""
}

// HasCoordinate reports whether the geographic stage can consider it.
func (p PoleIdentity) HasCoordinate() bool {
	return p.Coordinate != nil && p.Coordinate.Valid()
}

// Eligible is false for identities no stage could ever match. Alternate
// labels alone do not count: without a primary label an identity can only
// match geographically.
func (p PoleIdentity) Eligible() bool {
	return p.HasLabel() || p.HasCoordinate()
}

// DisplayLabel is the label shown to reviewers, falling back to the id.
func (p PoleIdentity) DisplayLabel() string {
	if p.PrimaryLabel != "" {
		return p.PrimaryLabel
	}
	return p.SourceID
}
