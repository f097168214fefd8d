package extract

// FieldMap tells the extractor where one source keeps its identity data.
// Paths are dotted (see Lookup); every list is tried in order.
type FieldMap struct {
	// ID is the record's own key, used for traceability only.
	ID string `yaml:"id" json:"id"`

	// Label is the primary label path; Fallbacks are tried when it is empty.
	Label     string   `yaml:"label" json:"label" validate:"required"`
	Fallbacks []string `yaml:"fallbacks" json:"fallbacks,omitempty"`

	// Aliases are extra paths whose values become alternate labels.
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`

	// Attributes is the container scanned for identifier-looking keys.
	Attributes     string         `yaml:"attributes" json:"attributes,omitempty"`
	IdentifierKeys IdentifierKeys `yaml:"identifier_keys" json:"identifier_keys"`

	// Latitude/Longitude are scalar paths; Coordinates are [lon, lat]
	// arrays as in GeoJSON geometries.
	Latitude    []string `yaml:"latitude" json:"latitude,omitempty"`
	Longitude   []string `yaml:"longitude" json:"longitude,omitempty"`
	Coordinates []string `yaml:"coordinates" json:"coordinates,omitempty"`
}

// IdentifierKeys is the declarative table deciding which attribute keys
// hold identifiers.
type IdentifierKeys struct {
	// Contains: key matches when its lower-cased name contains the substring.
	Contains []string `yaml:"contains" json:"contains,omitempty"`
	// Tokens: key matches when one of its words (split on punctuation and
	// camelCase) equals the entry. Keeps "id" from matching "width".
	Tokens []string `yaml:"tokens" json:"tokens,omitempty"`
	// Exclude: keys never taken, even if they match.
	Exclude []string `yaml:"exclude" json:"exclude,omitempty"`
	// ValueKeys: inside a matched object, scalar children with these keys
	// carry the identifier ("tagtext", "value").
	ValueKeys []string `yaml:"value_keys" json:"value_keys,omitempty"`
	// MaxDepth bounds the descent into matched objects.
	MaxDepth int `yaml:"max_depth" json:"max_depth,omitempty" validate:"gte=0,lte=8"`
}
