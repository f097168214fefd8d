package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidInput marks input whose shape is wrong (not an array of JSON
// objects). It is a caller bug, not a data-quality problem.
var ErrInvalidInput = errors.New("invalid input")

// Records checks that v, as produced by encoding/json, is an array of
// objects and returns it typed.
func Records(v any) ([]map[string]any, error) {
	switch x := v.(type) {
	case []map[string]any:
		for i, r := range x {
			if r == nil {
				return nil, fmt.Errorf("%w: record %d is null", ErrInvalidInput, i)
			}
		}
		return x, nil
	case []any:
		out := make([]map[string]any, 0, len(x))
		for i, item := range x {
			m, ok := item.(map[string]any)
			if !ok || m == nil {
				return nil, fmt.Errorf("%w: record %d is %T, want object", ErrInvalidInput, i, item)
			}
			out = append(out, m)
		}
		return out, nil
	case map[string]any:
		// {"poles": {"<id>": {...}}} style exports keyed by id
		return nil, fmt.Errorf("%w: got an object, want an array of records", ErrInvalidInput)
	case nil:
		return nil, fmt.Errorf("%w: records are null", ErrInvalidInput)
	}
	return nil, fmt.Errorf("%w: records are %T, want array", ErrInvalidInput, v)
}

// Lookup walks a dotted path ("attributes.pole_tag.0.tagtext") through
// nested objects and arrays. Numeric segments index arrays.
func Lookup(record map[string]any, path string) (any, bool) {
	if record == nil || path == "" {
		return nil, false
	}

	var cur any = record
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// LookupString resolves path and renders a scalar value as text.
func LookupString(record map[string]any, path string) string {
	v, ok := Lookup(record, path)
	if !ok {
		return ""
	}
	s, _ := Scalar(v)
	return s
}

// FirstString returns the first non-empty scalar found along paths.
func FirstString(record map[string]any, paths []string) string {
	for _, p := range paths {
		if s := LookupString(record, p); s != "" {
			return s
		}
	}
	return ""
}

// Scalar renders strings and numbers as trimmed text. Booleans, objects and
// arrays are not identifiers and report false.
func Scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	}
	return "", false
}

// Float reads a number from a decoded JSON value, accepting numeric strings.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// Bool reads a flag, accepting the usual spellings survey tools emit.
func Bool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1", "x":
			return true
		}
	}
	return false
}

// LookupAll is Lookup with "*" segments fanning out over every element of
// an array or every value of an object (in key order). Missing branches
// are skipped.
func LookupAll(record map[string]any, path string) []any {
	if record == nil || path == "" {
		return nil
	}
	nodes := []any{record}
	for _, seg := range strings.Split(path, ".") {
		var next []any
		for _, n := range nodes {
			next = append(next, step(n, seg)...)
		}
		if len(next) == 0 {
			return nil
		}
		nodes = next
	}
	return nodes
}

func step(node any, seg string) []any {
	switch x := node.(type) {
	case map[string]any:
		if seg == "*" {
			keys := make([]string, 0, len(x))
			for k := range x {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out := make([]any, 0, len(keys))
			for _, k := range keys {
				if x[k] != nil {
					out = append(out, x[k])
				}
			}
			return out
		}
		if v, ok := x[seg]; ok && v != nil {
			return []any{v}
		}
	case []any:
		if seg == "*" {
			out := make([]any, 0, len(x))
			for _, v := range x {
				if v != nil {
					out = append(out, v)
				}
			}
			return out
		}
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(x) && x[i] != nil {
			return []any{x[i]}
		}
	}
	return nil
}
