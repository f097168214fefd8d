package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polematch/internal/geo"
)

func katapultFields() FieldMap {
	return FieldMap{
		ID:         "id",
		Label:      "attributes.scid.auto_button",
		Fallbacks:  []string{"attributes.pole_tag.-tag.tagtext", "name"},
		Attributes: "attributes",
		IdentifierKeys: IdentifierKeys{
			Contains:  []string{"number", "tag"},
			Tokens:    []string{"id", "no", "num"},
			Exclude:   []string{"node_type"},
			ValueKeys: []string{"tagtext", "value", "auto_button"},
		},
		Latitude:  []string{"latitude", "lat"},
		Longitude: []string{"longitude", "lon"},
	}
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestExtractPrimaryAndAlternates(t *testing.T) {
	rec := decode(t, `{
		"id": "n-1",
		"latitude": 29.4241, "longitude": -98.4936,
		"attributes": {
			"scid": {"auto_button": "1-PL410620"},
			"pole_tag": {"-Nx1": {"tagtext": "PL410620", "company": "CPS"}},
			"pole_number": "T-77",
			"width": "12",
			"node_type": {"value": "pole"}
		}
	}`)

	id := NewExtractor(SourceA, katapultFields()).Extract(0, rec)

	assert.Equal(t, "n-1", id.SourceID)
	assert.Equal(t, "1-PL410620", id.PrimaryLabel)
	assert.Equal(t, "PL410620", id.NormalizedLabel)
	assert.Equal(t, []string{"PL410620", "T-77"}, id.AlternateLabels)
	assert.Equal(t, SourceA, id.Source)
	require.NotNil(t, id.Coordinate)
	assert.InDelta(t, 29.4241, id.Coordinate.Lat, 1e-9)
}

func TestExtractFallbackLabel(t *testing.T) {
	rec := decode(t, `{"name": "PL7", "attributes": {}}`)

	id := NewExtractor(SourceB, katapultFields()).Extract(4, rec)

	assert.Equal(t, "PL7", id.PrimaryLabel)
	assert.Equal(t, "B#4", id.SourceID)
	assert.Nil(t, id.Coordinate)
	assert.Empty(t, id.AlternateLabels)
}

func TestExtractNeverFails(t *testing.T) {
	tests := []struct {
		name string
		rec  map[string]any
	}{
		{"empty", map[string]any{}},
		{"nil", nil},
		{"wrong types", map[string]any{"attributes": "flat", "latitude": true, "name": []any{1}}},
	}

	e := NewExtractor(SourceA, katapultFields())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := e.Extract(0, tt.rec)
			assert.Empty(t, id.PrimaryLabel)
			assert.False(t, id.Eligible())
		})
	}
}

func TestIsIdentifierKey(t *testing.T) {
	e := NewExtractor(SourceA, katapultFields())

	tests := []struct {
		key  string
		want bool
	}{
		{"pole_tag", true},
		{"PoleNumber", true},
		{"scid", false},
		{"pole_id", true},
		{"PoleID", true},
		{"width", false},
		{"valid", false},
		{"node_type", false},
		{"tag_no", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.IsIdentifierKey(tt.key), tt.key)
	}
}

func TestKeyWords(t *testing.T) {
	assert.Equal(t, []string{"pole", "tag", "id"}, keyWords("PoleTagID"))
	assert.Equal(t, []string{"pole", "tag", "id"}, keyWords("pole_tag-id"))
	assert.Equal(t, []string{"scid"}, keyWords("scid"))
	assert.Equal(t, []string{"html", "parser"}, keyWords("HTMLParser"))
}

func TestExtractAllRejectsBadShape(t *testing.T) {
	e := NewExtractor(SourceA, katapultFields())

	_, err := e.ExtractAll(map[string]any{"a": 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.ExtractAll([]any{map[string]any{}, "nope"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	ids, err := e.ExtractAll([]any{map[string]any{"name": "X1"}, map[string]any{}})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, 1, ids[1].RawRef)
}

func TestLocate(t *testing.T) {
	g := NewGeoLocator(FieldMap{
		Latitude:    []string{"lat"},
		Longitude:   []string{"lon"},
		Coordinates: []string{"geometry.coordinates"},
	})

	tests := []struct {
		name   string
		rec    string
		wantOK bool
		lat    float64
	}{
		{"scalars", `{"lat": 29.5, "lon": -98.5}`, true, 29.5},
		{"numeric strings", `{"lat": "29.5", "lon": "-98.5"}`, true, 29.5},
		{"geojson", `{"geometry": {"coordinates": [-98.5, 29.25]}}`, true, 29.25},
		{"zero placeholder", `{"lat": 0, "lon": 0}`, false, 0},
		{"out of range falls through", `{"lat": 129, "lon": 0, "geometry": {"coordinates": [-98.5, 29.25]}}`, true, 29.25},
		{"missing", `{}`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := g.Locate(decode(t, tt.rec))
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.lat, c.Lat, 1e-9)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	rec := decode(t, `{"a": {"b": [{"c": "x"}, {"c": 7}]}}`)

	v, ok := Lookup(rec, "a.b.1.c")
	require.True(t, ok)
	assert.Equal(t, 7.0, v)

	assert.Equal(t, "x", LookupString(rec, "a.b.0.c"))
	assert.Equal(t, "7", LookupString(rec, "a.b.1.c"))

	_, ok = Lookup(rec, "a.b.2.c")
	assert.False(t, ok)
	_, ok = Lookup(rec, "a.z")
	assert.False(t, ok)
}

func TestEligibility(t *testing.T) {
	assert.False(t, PoleIdentity{AlternateLabels: []string{"PL410620"}}.Eligible())
	assert.True(t, PoleIdentity{PrimaryLabel: "PL410620"}.Eligible())
	assert.True(t, PoleIdentity{Coordinate: &geo.Coordinate{Lat: 29.4, Lon: -98.5}}.Eligible())
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "PL1", PoleIdentity{SourceID: "n1", PrimaryLabel: "PL1"}.DisplayLabel())
	assert.Equal(t, "n1", PoleIdentity{SourceID: "n1"}.DisplayLabel())
}
