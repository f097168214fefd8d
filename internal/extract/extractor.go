package extract

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/polematch/internal/debug"
	"github.com/polematch/internal/normalize"
)

const localDebug = false

const defaultMaxDepth = 3

// Extractor turns raw records of one source into PoleIdentity values.
type Extractor struct {
	source Source
	fields FieldMap
	geo    *GeoLocator

	contains  []string
	tokens    map[string]bool
	exclude   map[string]bool
	valueKeys map[string]bool
	maxDepth  int
}

// NewExtractor prepares an extractor for one source's field map.
func NewExtractor(source Source, fields FieldMap) *Extractor {
	keys := fields.IdentifierKeys
	e := &Extractor{
		source:    source,
		fields:    fields,
		geo:       NewGeoLocator(fields),
		tokens:    lowerSet(keys.Tokens),
		exclude:   lowerSet(keys.Exclude),
		valueKeys: lowerSet(keys.ValueKeys),
		maxDepth:  keys.MaxDepth,
	}
	for _, c := range keys.Contains {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			e.contains = append(e.contains, c)
		}
	}
	if e.maxDepth == 0 {
		e.maxDepth = defaultMaxDepth
	}
	return e
}

// Extract builds the identity for the record at position ref. It never
// fails: a record with nothing usable yields an identity without label or
// coordinate.
func (e *Extractor) Extract(ref int, record map[string]any) PoleIdentity {
	id := PoleIdentity{
		Source: e.source,
		RawRef: ref,
	}

	if e.fields.ID != "" {
		id.SourceID = LookupString(record, e.fields.ID)
	}
	if id.SourceID == "" {
		id.SourceID = string(e.source) + "#" + strconv.Itoa(ref)
	}

	id.PrimaryLabel = LookupString(record, e.fields.Label)
	if id.PrimaryLabel == "" {
		id.PrimaryLabel = FirstString(record, e.fields.Fallbacks)
	}
	id.NormalizedLabel = normalize.Label(id.PrimaryLabel)

	alternates := make(map[string]bool)
	for _, p := range e.fields.Aliases {
		if v, ok := Lookup(record, p); ok {
			e.collect(v, 0, true, alternates)
		}
	}
	if e.fields.Attributes != "" {
		if attrs, ok := Lookup(record, e.fields.Attributes); ok {
			e.scanAttributes(attrs, alternates)
		}
	}
	delete(alternates, id.PrimaryLabel)
	delete(alternates, "")
	if len(alternates) > 0 {
		id.AlternateLabels = make([]string, 0, len(alternates))
		for a := range alternates {
			id.AlternateLabels = append(id.AlternateLabels, a)
		}
		sort.Strings(id.AlternateLabels)
	}

	if c, ok := e.geo.Locate(record); ok {
		id.Coordinate = &c
	}

	debug.DebugOutput(localDebug, "extracted %s %s label=%q alternates=%v", e.source, id.SourceID, id.PrimaryLabel, id.AlternateLabels)
	return id
}

// ExtractAll validates the shape of records and extracts every one of them
// in input order.
func (e *Extractor) ExtractAll(records any) ([]PoleIdentity, error) {
	rows, err := Records(records)
	if err != nil {
		return nil, err
	}
	out := make([]PoleIdentity, len(rows))
	for i, r := range rows {
		out[i] = e.Extract(i, r)
	}
	return out, nil
}

// IsIdentifierKey reports whether an attribute key looks like it holds an
// identifier under this extractor's keyword table.
func (e *Extractor) IsIdentifierKey(key string) bool {
	lower := strings.ToLower(key)
	if e.exclude[lower] {
		return false
	}
	for _, c := range e.contains {
		if strings.Contains(lower, c) {
			return true
		}
	}
	for _, w := range keyWords(key) {
		if e.tokens[w] {
			return true
		}
	}
	return false
}

func (e *Extractor) scanAttributes(attrs any, into map[string]bool) {
	container, ok := attrs.(map[string]any)
	if !ok {
		return
	}
	keys := make([]string, 0, len(container))
	for k := range container {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if e.IsIdentifierKey(k) {
			e.collect(container[k], 0, true, into)
		}
	}
}

// collect gathers scalar values under v. Direct scalars of a matched key
// are taken; inside nested objects only children named in ValueKeys, or
// themselves identifier-looking, contribute scalars.
func (e *Extractor) collect(v any, depth int, matched bool, into map[string]bool) {
	if depth > e.maxDepth {
		return
	}
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch child := x[k]; {
			case e.valueKeys[strings.ToLower(k)] || e.IsIdentifierKey(k):
				e.collect(child, depth+1, true, into)
			case matched && isContainer(child):
				// entries keyed by opaque ids: {"-Nx1": {"tagtext": ...}}
				e.collect(child, depth+1, matched, into)
			}
		}
	case []any:
		for _, item := range x {
			e.collect(item, depth+1, matched, into)
		}
	default:
		if !matched {
			return
		}
		if s, ok := Scalar(x); ok {
			into[s] = true
		}
	}
}

// keyWords splits a key into lower-case words on punctuation and camelCase
// boundaries: "PoleTagID" -> [pole tag id].
func keyWords(key string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func lowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		if it = strings.ToLower(strings.TrimSpace(it)); it != "" {
			set[it] = true
		}
	}
	return set
}
