// Package reconcile merges the attributes two sources give for the same
// pole into one canonical record, field by field, using a per-field source
// precedence list.
package reconcile

import (
	"strings"

	"github.com/polematch/internal/extract"
)

// Kind says how a field's raw values are read and merged.
type Kind string

const (
	// KindText takes the first usable value as trimmed text.
	KindText Kind = "text"
	// KindHeight reads a measurement and renders it as feet-inches.
	KindHeight Kind = "height"
	// KindUnion collects every distinct value from all sources, in
	// precedence order.
	KindUnion Kind = "union"
)

// FieldRule describes one canonical field.
type FieldRule struct {
	Field      string                      `yaml:"field" json:"field" validate:"required"`
	Kind       Kind                        `yaml:"kind" json:"kind" validate:"omitempty,oneof=text height union"`
	Precedence []extract.Source            `yaml:"precedence" json:"precedence" validate:"required,min=1,dive,oneof=A B"`
	Paths      map[extract.Source][]string `yaml:"paths" json:"paths"`
}

// Rules is the whole precedence configuration.
type Rules struct {
	Fields []FieldRule `yaml:"fields" json:"fields" validate:"dive"`
	// Unknown lists values that count as empty (compared case-insensitively).
	Unknown []string `yaml:"unknown" json:"unknown"`
}

// DefaultUnknown is used when Rules.Unknown is empty.
var DefaultUnknown = []string{"unknown", "n/a", "na", "none", "?", "-"}

// IsUnknown reports whether v carries no information under these rules.
func (r Rules) IsUnknown(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	sentinels := r.Unknown
	if len(sentinels) == 0 {
		sentinels = DefaultUnknown
	}
	for _, s := range sentinels {
		if strings.EqualFold(v, strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

// Field returns the rule named field.
func (r Rules) Field(field string) (FieldRule, bool) {
	for _, f := range r.Fields {
		if f.Field == field {
			return f, true
		}
	}
	return FieldRule{}, false
}
