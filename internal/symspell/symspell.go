package symspell

import (
	"sort"
	"strings"
)

// SymSpell implements the Symmetric Delete spelling correction algorithm.
// It pre-computes all possible deletions within max edit distance for O(1) lookup.
type SymSpell struct {
	// dictionary maps terms to their frequencies
	dictionary map[string]int64

	// deletes maps delete variants to their original terms
	deletes map[string][]string

	// config holds algorithm parameters
	config *Config
}

// New creates a new SymSpell instance with the given configuration.
func New(config *Config) *SymSpell {
	if config == nil {
		config = DefaultConfig()
	}
	return &SymSpell{
		dictionary: make(map[string]int64),
		deletes:    make(map[string][]string),
		config:     config,
	}
}

// BuildFromEntries creates a SymSpell instance holding the given entries.
func BuildFromEntries(entries []DictionaryEntry, config *Config) *SymSpell {
	s := New(config)
	s.AddTerms(entries)
	return s
}

// AddTerm adds a term to the dictionary with its frequency.
// It also generates and indexes all delete variants.
func (s *SymSpell) AddTerm(term string, frequency int64) {
	term = strings.ToUpper(strings.TrimSpace(term))
	if len([]rune(term)) < s.config.MinTermLength {
		return
	}
	if _, exists := s.dictionary[term]; exists {
		if frequency > s.dictionary[term] {
			s.dictionary[term] = frequency
		}
		return
	}

	s.dictionary[term] = frequency

	for _, del := range s.generateDeletes(term, s.config.MaxEditDistance) {
		s.deletes[del] = append(s.deletes[del], term)
	}
}

// AddTerms adds multiple terms to the dictionary.
func (s *SymSpell) AddTerms(entries []DictionaryEntry) {
	for _, entry := range entries {
		s.AddTerm(entry.Term, entry.Frequency)
	}
}

// Lookup finds spelling suggestions for the input term.
// Returns suggestions sorted by edit distance (ascending), then frequency
// (descending), then term for a stable order.
func (s *SymSpell) Lookup(input string, maxDistance int) []Suggestion {
	input = strings.ToUpper(strings.TrimSpace(input))
	if input == "" {
		return nil
	}

	if maxDistance > s.config.MaxEditDistance {
		maxDistance = s.config.MaxEditDistance
	}

	if freq, ok := s.dictionary[input]; ok {
		return []Suggestion{{Term: input, Distance: 0, Frequency: freq}}
	}
	if !s.config.Enabled || len([]rune(input)) < s.config.MinTermLength {
		return nil
	}

	seen := make(map[string]bool)
	var candidates []Suggestion
	consider := func(term string) {
		if seen[term] {
			return
		}
		seen[term] = true
		if dist := boundedDistance([]rune(input), []rune(term), maxDistance); dist >= 0 {
			candidates = append(candidates, Suggestion{Term: term, Distance: dist, Frequency: s.dictionary[term]})
		}
	}

	// The input itself may be a delete of a dictionary term
	variants := append(s.generateDeletes(input, maxDistance), input)
	for _, del := range variants {
		for _, term := range s.deletes[del] {
			consider(term)
		}
		// Input with extra characters
		if _, ok := s.dictionary[del]; ok {
			consider(del)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		if candidates[i].Frequency != candidates[j].Frequency {
			return candidates[i].Frequency > candidates[j].Frequency
		}
		return candidates[i].Term < candidates[j].Term
	})

	return candidates
}

// LookupBest returns the single best suggestion, or nil if none found.
func (s *SymSpell) LookupBest(input string, maxDistance int) *Suggestion {
	suggestions := s.Lookup(input, maxDistance)
	if len(suggestions) == 0 {
		return nil
	}
	return &suggestions[0]
}

// Stats returns statistics about the dictionary.
func (s *SymSpell) Stats() DictionaryStats {
	return DictionaryStats{
		TermCount:   len(s.dictionary),
		DeleteCount: len(s.deletes),
	}
}

// generateDeletes generates all delete variants of a term within maxDistance.
func (s *SymSpell) generateDeletes(term string, maxDistance int) []string {
	if maxDistance <= 0 || term == "" {
		return nil
	}

	deletes := make(map[string]bool)
	generateDeletesRecursive([]rune(term), maxDistance, deletes)

	result := make([]string, 0, len(deletes))
	for del := range deletes {
		result = append(result, del)
	}
	sort.Strings(result)
	return result
}

func generateDeletesRecursive(term []rune, distance int, deletes map[string]bool) {
	if distance <= 0 || len(term) <= 1 {
		return
	}

	for i := range term {
		del := make([]rune, 0, len(term)-1)
		del = append(del, term[:i]...)
		del = append(del, term[i+1:]...)
		key := string(del)
		if !deletes[key] {
			deletes[key] = true
			generateDeletesRecursive(del, distance-1, deletes)
		}
	}
}

// Distance returns the Damerau-Levenshtein (optimal string alignment)
// distance between a and b, counted in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	return boundedDistance(ra, rb, max(len(ra), len(rb)))
}

// Similarity maps Distance onto [0,1]: 1 for identical strings, 0 when every
// rune of the longer string had to change. Two empty strings are identical.
func Similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(Distance(a, b))/float64(longest)
}

// boundedDistance calculates the Damerau-Levenshtein distance between two
// rune slices. Returns -1 if distance exceeds maxDistance (early exit).
func boundedDistance(a, b []rune, maxDistance int) int {
	lenA, lenB := len(a), len(b)

	if abs(lenA-lenB) > maxDistance {
		return -1
	}
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	// Keep a as the shorter string
	if lenA > lenB {
		a, b = b, a
		lenA, lenB = lenB, lenA
	}

	// Three rolling rows: two for Levenshtein, one more for transpositions
	prev := make([]int, lenA+1)
	curr := make([]int, lenA+1)
	prevPrev := make([]int, lenA+1)

	for i := 0; i <= lenA; i++ {
		prev[i] = i
	}

	for j := 1; j <= lenB; j++ {
		curr[0] = j
		minDist := j

		for i := 1; i <= lenA; i++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}

			curr[i] = min(
				prev[i]+1,      // deletion
				curr[i-1]+1,    // insertion
				prev[i-1]+cost, // substitution
			)

			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				curr[i] = min(curr[i], prevPrev[i-2]+cost)
			}

			if curr[i] < minDist {
				minDist = curr[i]
			}
		}

		if minDist > maxDistance {
			return -1
		}

		prevPrev, prev, curr = prev, curr, prevPrev
	}

	if prev[lenA] > maxDistance {
		return -1
	}
	return prev[lenA]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
