package symspell

import (
	"regexp"
	"strings"
	"sync"
)

// Index maps single-word keywords to a value (a wire category, say) and
// resolves misspelt tokens to the closest keyword.
type Index struct {
	symspell *SymSpell
	values   map[string]string
	config   *Config
	mu       sync.RWMutex
}

// Resolution tracks what a token was resolved to, for explainability.
type Resolution struct {
	// Token is the input token after upper-casing.
	Token string

	// Term is the dictionary keyword the token resolved to.
	Term string

	// Value is the payload registered for Term.
	Value string

	// Distance is the edit distance (0 for an exact hit).
	Distance int

	// Confidence is 1 - distance/(maxEditDistance+1).
	Confidence float64
}

// NewIndex creates an empty keyword index.
func NewIndex(config *Config) *Index {
	if config == nil {
		config = DefaultConfig()
	}
	return &Index{
		symspell: New(config),
		values:   make(map[string]string),
		config:   config,
	}
}

// Add registers keyword with its value. The first value registered for a
// keyword wins, so callers add higher-precedence vocabularies first.
func (ix *Index) Add(keyword, value string, weight int64) {
	term := strings.ToUpper(strings.TrimSpace(keyword))
	if term == "" || strings.ContainsAny(term, " \t") {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.values[term]; !exists {
		ix.values[term] = value
	}
	ix.symspell.AddTerm(term, weight)
}

// Resolve looks token up exactly, then within the configured edit distance.
func (ix *Index) Resolve(token string) (Resolution, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if ix == nil || token == "" || isNumeric(token) {
		return Resolution{Token: token}, false
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if value, ok := ix.values[token]; ok {
		return Resolution{Token: token, Term: token, Value: value, Confidence: 1}, true
	}

	suggestion := ix.symspell.LookupBest(token, ix.config.MaxEditDistance)
	if suggestion == nil {
		return Resolution{Token: token}, false
	}
	value, ok := ix.values[suggestion.Term]
	if !ok {
		return Resolution{Token: token}, false
	}

	return Resolution{
		Token:      token,
		Term:       suggestion.Term,
		Value:      value,
		Distance:   suggestion.Distance,
		Confidence: 1 - float64(suggestion.Distance)/float64(ix.config.MaxEditDistance+1),
	}, true
}

// Stats returns dictionary statistics.
func (ix *Index) Stats() DictionaryStats {
	if ix == nil {
		return DictionaryStats{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return ix.symspell.Stats()
}

var numericPattern = regexp.MustCompile(`^\d+[A-Z]?$`)

func isNumeric(token string) bool {
	return numericPattern.MatchString(token)
}
