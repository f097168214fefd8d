package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVNestsDottedHeaders(t *testing.T) {
	in := "id,attributes.scid.auto_button,latitude,longitude\n" +
		"n1,PL410620,29.4241,-98.4936\n" +
		"n2,,,\n"

	records, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, map[string]any{
		"id":         "n1",
		"attributes": map[string]any{"scid": map[string]any{"auto_button": "PL410620"}},
		"latitude":   "29.4241",
		"longitude":  "-98.4936",
	}, records[0])
	assert.Equal(t, map[string]any{"id": "n2"}, records[1])
}

func TestReadCSVSkipsShortRows(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("id,label\na1,PL1\na2\na3,PL3\n"))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadCSVConflictingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("pole,pole.height\nx,40\n"))
	assert.Error(t, err)
}

func TestReadCSVEmpty(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "a.CSV")
	jsonPath := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,label\na1,PL1\n"), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id": "b1"}]`), 0o644))

	v, err := Load(csvPath)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": "a1", "label": "PL1"}}, v)

	v, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": "b1"}}, v)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
