package measure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeet(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"28.5", 28.5},
		{"28", 28},
		{`28' 6"`, 28.5},
		{`28'6"`, 28.5},
		{"28'6", 28.5},
		{"28 ft 6 in", 28.5},
		{"28ft", 28},
		{`28' 6 1/2"`, 28 + 6.5/12},
		{"28-6", 28.5},
		{`6"`, 0.5},
		{"6 in", 0.5},
		{"28′ 6″", 28.5},
		{"+3", 3},
		{`-1' 6"`, -1.5},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFeet(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseFeetMalformed(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", `28' 13"`, "28' 6 1/0\"", "NaN", "Inf", "28''6'"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseFeet(in)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseMoveFeet(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"24", 2},
		{"6", 0.5},
		{`6"`, 0.5},
		{"6 in", 0.5},
		{"-12", -1},
		{`1' 6"`, 1.5},
		{"2 ft", 2},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoveFeet(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := ParseMoveFeet("lots")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFeetAndMoveFeetValues(t *testing.T) {
	f, err := Feet(30.0)
	require.NoError(t, err)
	assert.Equal(t, 30.0, f)

	f, err = Feet(`28' 6"`)
	require.NoError(t, err)
	assert.Equal(t, 28.5, f)

	_, err = Feet(nil)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Feet(true)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Feet(math.NaN())
	assert.ErrorIs(t, err, ErrMalformed)

	m, err := MoveFeet(24.0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, m)
}

func TestFormatFeetInches(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{28.5, `28' 6"`},
		{30, `30' 0"`},
		{28.99, `29' 0"`},
		{0.5, `0' 6"`},
		{-1.5, `-1' 6"`},
		{math.NaN(), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFeetInches(tt.in))
	}
}

func TestRoundTripWithinAnInch(t *testing.T) {
	for _, s := range []string{`28' 6"`, `0' 11"`, `45' 0"`, `17' 3"`, `102' 10"`} {
		feet, err := ParseFeet(s)
		require.NoError(t, err)
		assert.Equal(t, s, FormatFeetInches(feet))
	}

	for feet := 0.0; feet < 60; feet += 0.37 {
		back, err := ParseFeet(FormatFeetInches(feet))
		require.NoError(t, err)
		assert.LessOrEqual(t, math.Abs(back-feet), 1.0/12)
	}
}
