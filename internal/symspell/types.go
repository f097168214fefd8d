// Package symspell implements the Symmetric Delete spelling correction
// algorithm over small keyword vocabularies (wire owners, wire types) and
// the Damerau-Levenshtein distance used by label similarity scoring.
//
// SymSpell pre-computes a "delete dictionary" so a misspelt keyword such as
// "VERIZN" resolves to "VERIZON" without scanning the whole vocabulary.
package symspell

// Config holds SymSpell configuration parameters.
type Config struct {
	// MaxEditDistance is the maximum Damerau-Levenshtein distance for corrections.
	// Default: 1 (keyword vocabularies are short and dense)
	MaxEditDistance int `yaml:"max_edit_distance" validate:"gte=0,lte=3"`

	// Enabled controls whether fuzzy keyword lookup is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// MinTermLength is the minimum token length to attempt correction.
	// Default: 5 (avoids turning "AEP" into "ATT")
	MinTermLength int `yaml:"min_term_length" validate:"gte=1"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxEditDistance: 1,
		Enabled:         true,
		MinTermLength:   5,
	}
}

// Suggestion represents a spelling correction suggestion.
type Suggestion struct {
	// Term is the suggested correct spelling.
	Term string

	// Distance is the edit distance from the input to this suggestion.
	Distance int

	// Frequency is the weight of the term in the dictionary.
	// Higher frequency terms are preferred when distances are equal.
	Frequency int64
}

// DictionaryEntry represents a term with its frequency for dictionary building.
type DictionaryEntry struct {
	Term      string
	Frequency int64
}

// DictionaryStats holds statistics about the built dictionary.
type DictionaryStats struct {
	TermCount   int `json:"term_count"`
	DeleteCount int `json:"delete_count"`
}
