// Package span folds the wire measurements recorded along each span into
// one figure per (category, owner): the lowest existing attachment height,
// the largest requested move and the height that move projects to.
package span

// Category is the wire class an annotation is filed under.
type Category string

const (
	Communication Category = "communication"
	Electrical    Category = "electrical"
	Other         Category = "other"
)

// WireAnnotation is one measured wire at one section of a span. Heights and
// moves are decimal feet whatever the source wrote.
type WireAnnotation struct {
	Category     Category `json:"category"`
	Owner        string   `json:"owner"`
	Type         string   `json:"type,omitempty"`
	HeightFeet   float64  `json:"height_ft"`
	IsProposed   bool     `json:"is_proposed"`
	MoveFeet     float64  `json:"move_ft"`
	SectionID    string   `json:"section_id"`
	ConnectionID string   `json:"connection_id"`
}

// Section is one measurement point along a span.
type Section struct {
	ID          string           `json:"id"`
	Annotations []WireAnnotation `json:"annotations"`
}

// SpanConnection is the cable run between two poles. IsReferenceSubgroup is
// fixed when the connection is built.
type SpanConnection struct {
	ID                  string    `json:"id"`
	FromPoleID          string    `json:"from_pole_id"`
	ToPoleID            string    `json:"to_pole_id"`
	IsReferenceSubgroup bool      `json:"is_reference_subgroup"`
	Sections            []Section `json:"sections"`
}

// Key identifies an aggregate within a connection.
type Key struct {
	Category Category `json:"category"`
	Owner    string   `json:"owner"`
}

// SpanWireAggregate is the folded result for one key on one connection.
//
// ExistingHeight is the minimum over every annotation of the key. NewHeight
// is the minimum over the annotations flagged as proposed attachments.
// ProposedHeight is ExistingHeight + MoveValueFeet, set only when the move
// is positive and an existing height was seen.
type SpanWireAggregate struct {
	Key
	ExistingHeight      *float64 `json:"existing_height_ft"`
	ProposedHeight      *float64 `json:"proposed_height_ft"`
	NewHeight           *float64 `json:"new_height_ft,omitempty"`
	MoveValueFeet       float64  `json:"move_ft"`
	IsReferenceSubgroup bool     `json:"is_reference_subgroup"`
	ConnectionID        string   `json:"connection_id"`
	FromPoleID          string   `json:"from_pole_id"`
	ToPoleID            string   `json:"to_pole_id"`
	Observations        int      `json:"observations"`
}
