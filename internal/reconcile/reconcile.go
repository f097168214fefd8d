package reconcile

import (
	"github.com/polematch/internal/correlate"
	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/measure"
	"github.com/polematch/internal/normalize"
	"github.com/polematch/internal/quality"
)

// Pair is a correlated match together with the raw records it came from.
type Pair struct {
	Match correlate.Match
	A     map[string]any
	B     map[string]any
}

func (p Pair) record(s extract.Source) map[string]any {
	if s == extract.SourceB {
		return p.B
	}
	return p.A
}

// Value is one reconciled field.
type Value struct {
	Text   string           `json:"text,omitempty"`
	Feet   *float64         `json:"feet,omitempty"`
	Items  []string         `json:"items,omitempty"`
	Source extract.Source   `json:"source,omitempty"`
	From   []extract.Source `json:"from,omitempty"`
}

// Empty reports whether no source supplied a usable value.
func (v Value) Empty() bool {
	return v.Text == "" && v.Feet == nil && len(v.Items) == 0
}

// CanonicalPoleRecord is the single record a report is built from.
type CanonicalPoleRecord struct {
	PoleID     string           `json:"pole_id"`
	SourceIDA  string           `json:"source_id_a"`
	SourceIDB  string           `json:"source_id_b"`
	Stage      correlate.Stage  `json:"stage"`
	Confidence float64          `json:"confidence"`
	Fields     map[string]Value `json:"fields"`
	Missing    []string         `json:"missing,omitempty"`
	Issues     []quality.Issue  `json:"issues,omitempty"`
}

// Reconcile builds the canonical record for one pair. It reads the raw
// records and never writes to them.
func Reconcile(p Pair, rules Rules) CanonicalPoleRecord {
	rec := CanonicalPoleRecord{
		PoleID:     poleID(p.Match),
		SourceIDA:  p.Match.A.SourceID,
		SourceIDB:  p.Match.B.SourceID,
		Stage:      p.Match.Stage,
		Confidence: p.Match.Confidence,
		Fields:     make(map[string]Value, len(rules.Fields)),
	}

	for _, rule := range rules.Fields {
		var v Value
		switch rule.Kind {
		case KindUnion:
			v = rules.union(p, rule)
		case KindHeight:
			var issues []quality.Issue
			v, issues = rules.height(p, rule, rec.PoleID)
			rec.Issues = append(rec.Issues, issues...)
		default:
			v = rules.text(p, rule)
		}
		if v.Empty() {
			rec.Missing = append(rec.Missing, rule.Field)
			continue
		}
		rec.Fields[rule.Field] = v
	}
	return rec
}

// Merge is the two-value reducer behind text fields: the first value in
// precedence order that is neither empty nor an unknown sentinel.
func Merge(rules Rules, precedence []extract.Source, values map[extract.Source]string) (string, extract.Source, bool) {
	for _, s := range precedence {
		if v, ok := values[s]; ok && !rules.IsUnknown(v) {
			return normalize.Owner(v), s, true
		}
	}
	return "", "", false
}

func (r Rules) text(p Pair, rule FieldRule) Value {
	values := make(map[extract.Source]string, len(rule.Precedence))
	for _, s := range rule.Precedence {
		for _, path := range rule.Paths[s] {
			if v := extract.LookupString(p.record(s), path); !r.IsUnknown(v) {
				values[s] = v
				break
			}
		}
	}
	text, src, ok := Merge(r, rule.Precedence, values)
	if !ok {
		return Value{}
	}
	return Value{Text: text, Source: src}
}

func (r Rules) height(p Pair, rule FieldRule, poleID string) (Value, []quality.Issue) {
	var issues []quality.Issue
	for _, s := range rule.Precedence {
		for _, path := range rule.Paths[s] {
			raw, ok := extract.Lookup(p.record(s), path)
			if !ok {
				continue
			}
			if text, isText := raw.(string); isText && r.IsUnknown(text) {
				continue
			}
			feet, err := measure.Feet(raw)
			if err != nil {
				issues = append(issues, quality.Newf(quality.MalformedMeasurement, quality.SeverityWarning,
					poleID, "%s from %s: %v", rule.Field, s, err))
				continue
			}
			return Value{Text: measure.FormatFeetInches(feet), Feet: &feet, Source: s}, issues
		}
	}
	return Value{}, issues
}

func (r Rules) union(p Pair, rule FieldRule) Value {
	var v Value
	seen := make(map[string]bool)
	for _, s := range rule.Precedence {
		contributed := false
		for _, path := range rule.Paths[s] {
			for _, raw := range extract.LookupAll(p.record(s), path) {
				text, ok := extract.Scalar(raw)
				if !ok || r.IsUnknown(text) {
					continue
				}
				key := normalize.Text(text)
				if seen[key] {
					continue
				}
				seen[key] = true
				v.Items = append(v.Items, normalize.Owner(text))
				contributed = true
			}
		}
		if contributed {
			if v.Source == "" {
				v.Source = s
			}
			v.From = append(v.From, s)
		}
	}
	return v
}

func poleID(m correlate.Match) string {
	if m.A.PrimaryLabel == "" && m.B.PrimaryLabel != "" {
		return m.B.PrimaryLabel
	}
	return m.A.DisplayLabel()
}
