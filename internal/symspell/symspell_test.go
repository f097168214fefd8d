package symspell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test dictionary with wire owners and wire types
func buildTestDictionary() *SymSpell {
	entries := []DictionaryEntry{
		{Term: "VERIZON", Frequency: 500},
		{Term: "CHARTER", Frequency: 400},
		{Term: "SPECTRUM", Frequency: 300},
		{Term: "GRANDE", Frequency: 200},
		{Term: "PRIMARY", Frequency: 1000},
		{Term: "SECONDARY", Frequency: 900},
		{Term: "NEUTRAL", Frequency: 800},
		{Term: "FIBER", Frequency: 700},
	}

	config := &Config{
		MaxEditDistance: 2,
		MinTermLength:   4,
		Enabled:         true,
	}

	return BuildFromEntries(entries, config)
}

func TestSymSpellLookup(t *testing.T) {
	symspell := buildTestDictionary()

	tests := []struct {
		name         string
		input        string
		wantTerm     string
		wantDistance int
	}{
		{
			name:         "exact match owner",
			input:        "VERIZON",
			wantTerm:     "VERIZON",
			wantDistance: 0,
		},
		{
			name:         "lower case input",
			input:        "primary",
			wantTerm:     "PRIMARY",
			wantDistance: 0,
		},
		{
			name:         "missing letter",
			input:        "VERIZN",
			wantTerm:     "VERIZON",
			wantDistance: 1,
		},
		{
			name:         "extra letter",
			input:        "NEUTRALL",
			wantTerm:     "NEUTRAL",
			wantDistance: 1,
		},
		{
			name:         "transposition",
			input:        "FIEBR",
			wantTerm:     "FIBER",
			wantDistance: 1,
		},
		{
			name:         "two errors",
			input:        "SECNDRY",
			wantTerm:     "SECONDARY",
			wantDistance: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suggestions := symspell.Lookup(tt.input, 2)
			require.NotEmpty(t, suggestions, "Lookup(%q) returned no suggestions", tt.input)

			best := suggestions[0]
			assert.Equal(t, tt.wantTerm, best.Term)
			assert.Equal(t, tt.wantDistance, best.Distance)
		})
	}
}

func TestSymSpellNoMatch(t *testing.T) {
	symspell := buildTestDictionary()

	for _, input := range []string{"TELEPHONE", "XYZXYZ", ""} {
		assert.Empty(t, symspell.Lookup(input, 2), "Lookup(%q)", input)
	}
}

func TestSymSpellDisabledOnlyExact(t *testing.T) {
	symspell := BuildFromEntries([]DictionaryEntry{{Term: "VERIZON", Frequency: 1}},
		&Config{MaxEditDistance: 2, MinTermLength: 4, Enabled: false})

	assert.Len(t, symspell.Lookup("VERIZON", 2), 1)
	assert.Empty(t, symspell.Lookup("VERIZN", 2))
}

func TestIndexResolve(t *testing.T) {
	ix := NewIndex(&Config{MaxEditDistance: 1, MinTermLength: 5, Enabled: true})
	ix.Add("primary", "electrical", 10)
	ix.Add("verizon", "communication", 10)
	ix.Add("aep", "electrical", 10)
	ix.Add("primary", "communication", 10) // later registration does not override

	tests := []struct {
		token     string
		wantOK    bool
		wantValue string
		wantDist  int
	}{
		{"PRIMARY", true, "electrical", 0},
		{"Verizn", true, "communication", 1},
		{"AEP", true, "electrical", 0},
		{"AEX", false, "", 0}, // shorter than MinTermLength, exact only
		{"12A", false, "", 0},
		{"", false, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			res, ok := ix.Resolve(tt.token)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantValue, res.Value)
			assert.Equal(t, tt.wantDist, res.Distance)
		})
	}
}

func TestIndexIgnoresPhrases(t *testing.T) {
	ix := NewIndex(nil)
	ix.Add("street light", "electrical", 1)

	_, ok := ix.Resolve("STREET LIGHT")
	assert.False(t, ok)
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "a", 1},
		{"abc", "abc", 0},
		{"abc", "ab", 1},  // deletion
		{"ab", "abc", 1},  // insertion
		{"abc", "adc", 1}, // substitution
		{"abc", "acb", 1}, // transposition (Damerau)
		{"abc", "def", 3}, // all different
		{"kitten", "sitting", 3},
		{"PL410620", "PL410602", 1},
		{"ÉTÉ", "ETE", 2}, // counted in runes, not bytes
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Distance(tt.a, tt.b), "Distance(%q, %q)", tt.a, tt.b)
		assert.Equal(t, tt.want, Distance(tt.b, tt.a), "Distance(%q, %q)", tt.b, tt.a)
	}
}

func TestEditDistanceEarlyExit(t *testing.T) {
	assert.Equal(t, -1, boundedDistance([]rune("abc"), []rune("xyz"), 1))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("PL410620", "PL410620"))
	assert.InDelta(t, 0.875, Similarity("PL410620", "PL410621"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}

func TestGenerateDeletes(t *testing.T) {
	symspell := New(&Config{MaxEditDistance: 2})

	deletes := symspell.generateDeletes("ABC", 1)
	assert.ElementsMatch(t, []string{"AB", "AC", "BC"}, deletes)
}

func TestDictionaryStats(t *testing.T) {
	stats := buildTestDictionary().Stats()

	assert.Equal(t, 8, stats.TermCount)
	assert.Positive(t, stats.DeleteCount)
}

func BenchmarkSymSpellLookup(b *testing.B) {
	symspell := buildTestDictionary()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		symspell.Lookup("SECNDRY", 2)
	}
}

func BenchmarkDistance(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Distance("PL410620", "1PL41062O")
	}
}
