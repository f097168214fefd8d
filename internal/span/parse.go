package span

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/measure"
	"github.com/polematch/internal/normalize"
	"github.com/polematch/internal/quality"
)

// FieldMap locates connection data in raw span records. Connection-level
// paths are relative to the connection, annotation paths to one annotation.
type FieldMap struct {
	ID   string `yaml:"id" json:"id"`
	From string `yaml:"from" json:"from" validate:"required"`
	To   string `yaml:"to" json:"to" validate:"required"`

	// ReferenceFlag paths hold a boolean; ReferenceText paths hold text
	// searched for ReferenceKeywords. Either marks a reference subgroup.
	ReferenceFlag     []string `yaml:"reference_flag" json:"reference_flag,omitempty"`
	ReferenceText     []string `yaml:"reference_text" json:"reference_text,omitempty"`
	ReferenceKeywords []string `yaml:"reference_keywords" json:"reference_keywords,omitempty"`

	// Sections is an array, or an object keyed by section id.
	Sections    string `yaml:"sections" json:"sections" validate:"required"`
	SectionID   string `yaml:"section_id" json:"section_id,omitempty"`
	Annotations string `yaml:"annotations" json:"annotations" validate:"required"`

	Owner    []string `yaml:"owner" json:"owner" validate:"required,min=1"`
	Type     []string `yaml:"type" json:"type,omitempty"`
	Height   []string `yaml:"height" json:"height" validate:"required,min=1"`
	Proposed []string `yaml:"proposed" json:"proposed,omitempty"`
	Move     []string `yaml:"move" json:"move,omitempty"`
}

// parser builds SpanConnections from raw records.
type parser struct {
	fields     FieldMap
	classifier *Classifier
	refWords   []string
}

func newParser(fields FieldMap, classifier *Classifier) *parser {
	p := &parser{fields: fields, classifier: classifier}
	for _, kw := range fields.ReferenceKeywords {
		if kw = normalize.Text(kw); kw != "" {
			p.refWords = append(p.refWords, kw)
		}
	}
	return p
}

// connection parses one raw connection. Annotations whose height or move
// cannot be read are dropped and reported; the rest of the connection is
// kept.
func (p *parser) connection(idx int, raw map[string]any) (SpanConnection, []quality.Issue) {
	conn := SpanConnection{
		ID:         extract.LookupString(raw, p.fields.ID),
		FromPoleID: extract.LookupString(raw, p.fields.From),
		ToPoleID:   extract.LookupString(raw, p.fields.To),
	}
	if conn.ID == "" {
		conn.ID = "connection#" + strconv.Itoa(idx)
	}
	conn.IsReferenceSubgroup = p.isReference(raw)

	var issues []quality.Issue
	for i, sn := range sectionNodes(raw, p.fields.Sections) {
		sec := Section{ID: sn.key}
		if p.fields.SectionID != "" {
			if id := extract.LookupString(sn.value, p.fields.SectionID); id != "" {
				sec.ID = id
			}
		}
		if sec.ID == "" {
			sec.ID = strconv.Itoa(i)
		}

		for j, an := range annotationNodes(sn.value, p.fields.Annotations) {
			a, err := p.annotation(an)
			if err != nil {
				issues = append(issues, quality.Newf(quality.MalformedMeasurement, quality.SeverityWarning,
					fmt.Sprintf("%s/%s/%d", conn.ID, sec.ID, j), "%v", err))
				continue
			}
			a.SectionID = sec.ID
			a.ConnectionID = conn.ID
			sec.Annotations = append(sec.Annotations, a)
		}
		conn.Sections = append(conn.Sections, sec)
	}
	return conn, issues
}

func (p *parser) isReference(raw map[string]any) bool {
	for _, path := range p.fields.ReferenceFlag {
		if v, ok := extract.Lookup(raw, path); ok && extract.Bool(v) {
			return true
		}
	}
	for _, path := range p.fields.ReferenceText {
		text := " " + normalize.Text(extract.LookupString(raw, path)) + " "
		for _, kw := range p.refWords {
			if strings.Contains(text, " "+kw+" ") {
				return true
			}
		}
	}
	return false
}

func (p *parser) annotation(raw map[string]any) (WireAnnotation, error) {
	a := WireAnnotation{
		Owner: normalize.Owner(extract.FirstString(raw, p.fields.Owner)),
		Type:  extract.FirstString(raw, p.fields.Type),
	}

	heightRaw, ok := firstValue(raw, p.fields.Height)
	if !ok {
		return a, fmt.Errorf("%w: no height", measure.ErrMalformed)
	}
	h, err := measure.Feet(heightRaw)
	if err != nil {
		return a, fmt.Errorf("height: %w", err)
	}
	a.HeightFeet = h

	if moveRaw, ok := firstValue(raw, p.fields.Move); ok {
		if s, isText := moveRaw.(string); !isText || strings.TrimSpace(s) != "" {
			move, err := measure.MoveFeet(moveRaw)
			if err != nil {
				return a, fmt.Errorf("move: %w", err)
			}
			a.MoveFeet = move
		}
	}

	for _, path := range p.fields.Proposed {
		if v, ok := extract.Lookup(raw, path); ok && extract.Bool(v) {
			a.IsProposed = true
			break
		}
	}

	a.Category = p.classifier.Classify(a.Owner, a.Type).Category
	return a, nil
}

func firstValue(raw map[string]any, paths []string) (any, bool) {
	for _, path := range paths {
		if v, ok := extract.Lookup(raw, path); ok {
			if s, isText := v.(string); isText && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

type node struct {
	key   string
	value map[string]any
}

// sectionNodes accepts sections as an array or as an object keyed by id
// (walked in key order). Non-object entries are ignored.
func sectionNodes(raw map[string]any, path string) []node {
	v, ok := extract.Lookup(raw, path)
	if !ok {
		return nil
	}
	var out []node
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if m, ok := item.(map[string]any); ok {
				out = append(out, node{value: m})
			}
		}
	case map[string]any:
		for _, k := range sortedKeys(x) {
			if m, ok := x[k].(map[string]any); ok {
				out = append(out, node{key: k, value: m})
			}
		}
	}
	return out
}

func annotationNodes(section map[string]any, path string) []map[string]any {
	var out []map[string]any
	for _, n := range sectionNodes(section, path) {
		out = append(out, n.value)
	}
	return out
}
