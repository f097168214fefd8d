// Package ingest reads source exports from disk. JSON files are decoded as
// they are; CSV files become one record per row, with dotted header names
// ("attributes.scid.auto_button") expanded into nested objects so the same
// field maps apply to both formats.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Load reads records from path. ".csv" files go through ReadCSV, anything
// else is decoded as JSON. "-" reads JSON from stdin.
func Load(path string) (any, error) {
	if path == "-" {
		return ReadJSON(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		records, err := ReadCSV(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		slog.Debug("loaded csv", slog.String("path", path), slog.Int("records", len(records)))
		return records, nil
	}

	v, err := ReadJSON(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ReadJSON decodes a single JSON document.
func ReadJSON(r io.Reader) (any, error) {
	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return v, nil
}

// ReadCSV turns a CSV file with a header row into records. Empty cells are
// left out of the record. Rows with the wrong number of fields are skipped
// and logged.
func ReadCSV(r io.Reader) ([]any, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// Header
	header, err := reader.Read()
	if err == io.EOF {
		return []any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	paths := make([][]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		paths[i] = strings.Split(h, ".")
	}

	records := []any{}
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if errors.Is(err, csv.ErrFieldCount) {
			line, _ := reader.FieldPos(0)
			slog.Warn("skipping csv row", slog.Int("line", line), slog.Any("error", err))
			skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		rec := make(map[string]any)
		for i, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			if err := set(rec, paths[i], cell); err != nil {
				line, _ := reader.FieldPos(i)
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		slog.Info("csv import finished", slog.Int("records", len(records)), slog.Int("skipped", skipped))
	}
	return records, nil
}

func set(rec map[string]any, path []string, value string) error {
	node := rec
	for i, key := range path[:len(path)-1] {
		child, ok := node[key]
		if !ok {
			next := make(map[string]any)
			node[key] = next
			node = next
			continue
		}
		next, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("column %q conflicts with column %q", strings.Join(path, "."), strings.Join(path[:i+1], "."))
		}
		node = next
	}

	leaf := path[len(path)-1]
	if _, ok := node[leaf].(map[string]any); ok {
		return fmt.Errorf("column %q conflicts with a nested column", strings.Join(path, "."))
	}
	node[leaf] = value
	return nil
}
