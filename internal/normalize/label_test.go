package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"PL410620", "PL410620"},
		{"pl410620", "PL410620"},
		{"1-PL410620", "PL410620"},
		{"02_pl410620", "PL410620"},
		{" 3. PL-410620 ", "PL410620"},
		{"P-PL1", "PL1"},
		{"P123", "123"},
		{"PP-123", "123"},
		{"12-34", "1234"},
		{"ＰＬ４１０", "PL410"},
		{"#SC 1181/B", "SC1181B"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.in))
		})
	}
}

func TestLabelIdempotent(t *testing.T) {
	inputs := []string{
		"PL410620", "1-PL410620", "P-PL1", "PP-123", "1-2-PL3", "p1-p2",
		"12-34", "ＰＬ４１０", "Ⅻ-7", "ß-tag", "  ", "1-P-PL9", "P", "P-", "1-",
	}
	for _, in := range inputs {
		once := Label(in)
		assert.Equal(t, once, Label(once), "input %q", in)
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{"PL1", "SC9"}, Labels([]string{"sc-9", "1-PL1", "pl1", "", "--"}))
	assert.Empty(t, Labels(nil))
}

func TestText(t *testing.T) {
	assert.Equal(t, "at t", Text("AT&T"))
	assert.Equal(t, "cps energy", Text("  CPS   Energy "))
	assert.Equal(t, "power guy 2", Text("Power-Guy (2)"))
}

func TestOwner(t *testing.T) {
	assert.Equal(t, "CPS Energy", Owner("  CPS \t Energy "))
	assert.Equal(t, "AT&T", Owner("AT&T"))
}
