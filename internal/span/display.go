package span

import (
	"github.com/polematch/internal/measure"
)

// DisplayRow is an aggregate rendered for a report.
type DisplayRow struct {
	Category Category `json:"category"`
	Owner    string   `json:"owner"`
	Existing string   `json:"existing"`
	Proposed string   `json:"proposed"`
	New      string   `json:"new,omitempty"`
}

// Display renders heights as feet-inches. Existing heights of reference
// subgroups are wrapped in parentheses; proposed heights never are.
func Display(agg SpanWireAggregate) DisplayRow {
	row := DisplayRow{Category: agg.Category, Owner: agg.Owner}
	if agg.ExistingHeight != nil {
		row.Existing = measure.FormatFeetInches(*agg.ExistingHeight)
		if agg.IsReferenceSubgroup {
			row.Existing = "(" + row.Existing + ")"
		}
	}
	if agg.ProposedHeight != nil {
		row.Proposed = measure.FormatFeetInches(*agg.ProposedHeight)
	}
	if agg.NewHeight != nil {
		row.New = measure.FormatFeetInches(*agg.NewHeight)
	}
	return row
}
