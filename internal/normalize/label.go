package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sequence prefixes such as "1-", "02_" or "3." in front of a lettered tag.
// Bare numeric labels like "12-34" are left alone.
var reSequencePrefix = regexp.MustCompile(`^\d{1,2}\s*[-_.]+\s*([\p{L}])`)

// A "P-" marker in front of a lettered tag ("P-PL1").
var reMarkerPrefix = regexp.MustCompile(`^P\s*[-_.]+\s*([\p{L}])`)

// A "P" marker in front of the pole number ("P123", "PP-123").
var rePoleMarker = regexp.MustCompile(`^P+(\d)`)

// Label folds a pole label to the form used for cross-source comparison:
// NFKC folded, upper-cased, sequence prefix and pole marker removed, and
// everything that is not a letter or digit dropped.
//
// Label is idempotent: Label(Label(x)) == Label(x).
func Label(raw string) string {
	s := fold(raw)
	if s == "" {
		return ""
	}

	for {
		next := strings.TrimLeftFunc(s, notAlnum)
		next = reSequencePrefix.ReplaceAllString(next, "$1")
		next = reMarkerPrefix.ReplaceAllString(next, "$1")
		if next == s {
			break
		}
		s = next
	}

	b := strings.Builder{}
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	s = b.String()

	return rePoleMarker.ReplaceAllString(s, "$1")
}

// Labels normalizes every entry, drops empties and duplicates and returns
// the survivors sorted.
func Labels(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		n := Label(r)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Text folds free text (owner names, wire types) for keyword lookup:
// NFKC, lower case, punctuation collapsed to single spaces.
func Text(raw string) string {
	s := strings.ToLower(norm.NFKC.String(raw))
	b := strings.Builder{}
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Owner tidies an owner name for use as a grouping key without changing
// its case: whitespace is trimmed and collapsed.
func Owner(raw string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(raw)), " ")
}

func fold(raw string) string {
	s := norm.NFKC.String(strings.TrimSpace(raw))
	return norm.NFKC.String(strings.ToUpper(s))
}

func notAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
