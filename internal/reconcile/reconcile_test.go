package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polematch/internal/correlate"
	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/quality"
)

func testRules() Rules {
	return Rules{
		Fields: []FieldRule{
			{
				Field:      "owner",
				Precedence: []extract.Source{extract.SourceA, extract.SourceB},
				Paths: map[extract.Source][]string{
					extract.SourceA: {"owner"},
					extract.SourceB: {"attributes.pole_owner.value"},
				},
			},
			{
				Field:      "construction_grade",
				Precedence: []extract.Source{extract.SourceA, extract.SourceB},
				Paths: map[extract.Source][]string{
					extract.SourceA: {"grade"},
					extract.SourceB: {"attributes.grade"},
				},
			},
			{
				Field:      "height",
				Kind:       KindHeight,
				Precedence: []extract.Source{extract.SourceB, extract.SourceA},
				Paths: map[extract.Source][]string{
					extract.SourceA: {"length"},
					extract.SourceB: {"attributes.pole_height.one"},
				},
			},
			{
				Field:      "wire_owners",
				Kind:       KindUnion,
				Precedence: []extract.Source{extract.SourceA, extract.SourceB},
				Paths: map[extract.Source][]string{
					extract.SourceA: {"wires.*.owner"},
					extract.SourceB: {"attributes.wires.*.company"},
				},
			},
			{
				Field:      "structure",
				Precedence: []extract.Source{extract.SourceA},
				Paths:      map[extract.Source][]string{extract.SourceA: {"structure"}},
			},
		},
	}
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func testPair(t *testing.T) Pair {
	return Pair{
		Match: correlate.Match{
			A:          extract.PoleIdentity{SourceID: "a1", PrimaryLabel: "PL410620", Source: extract.SourceA},
			B:          extract.PoleIdentity{SourceID: "b1", PrimaryLabel: "pl410620", Source: extract.SourceB},
			Stage:      correlate.StageNormalized,
			Confidence: 0.8,
		},
		A: decode(t, `{
			"owner": "Unknown",
			"grade": "C",
			"length": 45,
			"wires": [{"owner": "AT&T"}, {"owner": "CPS  Energy"}]
		}`),
		B: decode(t, `{"attributes": {
			"pole_owner": {"value": "CPS Energy"},
			"grade": "B",
			"pole_height": {"one": "44' 6\""},
			"wires": {"-w1": {"company": "cps energy"}, "-w2": {"company": "Charter"}, "-w3": {"company": "unknown"}}
		}}`),
	}
}

func TestPoleIDFallsBackToSourceID(t *testing.T) {
	p := testPair(t)
	p.Match.A.PrimaryLabel = ""
	assert.Equal(t, "pl410620", Reconcile(p, testRules()).PoleID)

	p.Match.B.PrimaryLabel = ""
	assert.Equal(t, "a1", Reconcile(p, testRules()).PoleID)
}

func TestReconcile(t *testing.T) {
	p := testPair(t)
	rec := Reconcile(p, testRules())

	assert.Equal(t, "PL410620", rec.PoleID)
	assert.Equal(t, correlate.StageNormalized, rec.Stage)

	// A says unknown, so B supplies the owner
	assert.Equal(t, Value{Text: "CPS Energy", Source: extract.SourceB}, rec.Fields["owner"])
	assert.Equal(t, Value{Text: "C", Source: extract.SourceA}, rec.Fields["construction_grade"])

	h := rec.Fields["height"]
	require.NotNil(t, h.Feet)
	assert.InDelta(t, 44.5, *h.Feet, 1e-9)
	assert.Equal(t, `44' 6"`, h.Text)
	assert.Equal(t, extract.SourceB, h.Source)

	w := rec.Fields["wire_owners"]
	assert.Equal(t, []string{"AT&T", "CPS Energy", "Charter"}, w.Items)
	assert.Equal(t, []extract.Source{extract.SourceA, extract.SourceB}, w.From)

	assert.Equal(t, []string{"structure"}, rec.Missing)
	assert.Empty(t, rec.Issues)
}

func TestReconcileDoesNotMutateInputs(t *testing.T) {
	p := testPair(t)
	before := testPair(t)

	Reconcile(p, testRules())

	assert.Equal(t, before.A, p.A)
	assert.Equal(t, before.B, p.B)
}

func TestMalformedHeightFallsBack(t *testing.T) {
	p := testPair(t)
	p.B = decode(t, `{"attributes": {"pole_height": {"one": "forty"}}}`)

	rec := Reconcile(p, testRules())

	h := rec.Fields["height"]
	assert.Equal(t, extract.SourceA, h.Source)
	assert.Equal(t, `45' 0"`, h.Text)
	require.Len(t, rec.Issues, 1)
	assert.Equal(t, quality.MalformedMeasurement, rec.Issues[0].Kind)
}

func TestMerge(t *testing.T) {
	rules := Rules{Unknown: []string{"unknown", "TBD"}}
	ab := []extract.Source{extract.SourceA, extract.SourceB}

	tests := []struct {
		name   string
		values map[extract.Source]string
		want   string
		src    extract.Source
		ok     bool
	}{
		{"first wins", map[extract.Source]string{"A": "X", "B": "Y"}, "X", "A", true},
		{"empty skipped", map[extract.Source]string{"A": "  ", "B": "Y"}, "Y", "B", true},
		{"sentinel skipped", map[extract.Source]string{"A": "UNKNOWN", "B": "Y"}, "Y", "B", true},
		{"custom sentinel", map[extract.Source]string{"A": "tbd", "B": "Y"}, "Y", "B", true},
		{"nothing usable", map[extract.Source]string{"A": "unknown"}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src, ok := Merge(rules, ab, tt.values)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.src, src)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestIsUnknownDefaults(t *testing.T) {
	var r Rules
	assert.True(t, r.IsUnknown(""))
	assert.True(t, r.IsUnknown("N/A"))
	assert.True(t, r.IsUnknown(" Unknown "))
	assert.False(t, r.IsUnknown("CPS Energy"))
}
