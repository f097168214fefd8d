// Package quality names the data-quality problems the engine reports
// instead of failing. None of them abort a run; they are collected and
// counted so a reviewer can see how complete a correlation is.
package quality

import "fmt"

// Kind classifies an Issue.
type Kind string

const (
	// MissingIdentifier: a pole has neither a usable label nor a coordinate.
	MissingIdentifier Kind = "missing_identifier"
	// MalformedMeasurement: a height or move value could not be read; the
	// annotation was dropped.
	MalformedMeasurement Kind = "malformed_measurement"
	// AmbiguousMatch: several equally good candidates existed and one was
	// picked by the tie-break order.
	AmbiguousMatch Kind = "ambiguous_match"
	// UncorrelatedEndpoint: a span references a pole outside the correlated set.
	UncorrelatedEndpoint Kind = "uncorrelated_endpoint"
)

// Severity is informational only; nothing in the engine branches on it.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Issue is one data-quality finding.
type Issue struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Ref      string   `json:"ref"`
	Detail   string   `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", i.Kind, i.Severity, i.Ref, i.Detail)
}

// Newf builds an Issue with a formatted detail string.
func Newf(kind Kind, severity Severity, ref, format string, args ...interface{}) Issue {
	return Issue{Kind: kind, Severity: severity, Ref: ref, Detail: fmt.Sprintf(format, args...)}
}

// Count tallies issues by kind.
func Count(issues []Issue) map[Kind]int {
	counts := make(map[Kind]int)
	for _, i := range issues {
		counts[i.Kind]++
	}
	return counts
}
