package audit

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polematch/internal/correlate"
	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/span"
)

func TestMatchArgs(t *testing.T) {
	runID := uuid.MustParse("6f1c2b1e-8a55-4c0e-9d0b-1f2e3d4c5b6a")
	d := 4.5
	m := correlate.Match{
		A:              extract.PoleIdentity{SourceID: "a1", PrimaryLabel: "PL1"},
		B:              extract.PoleIdentity{SourceID: "n1", PrimaryLabel: "pl1", AlternateLabels: []string{"T9"}},
		Stage:          correlate.StageGeographic,
		Confidence:     0.455,
		DistanceMeters: &d,
		Features:       map[string]interface{}{"distance_m": d},
	}

	args, err := matchArgs(runID, m)
	require.NoError(t, err)
	require.Len(t, args, 12)
	assert.Equal(t, runID.String(), args[0])
	assert.Equal(t, "geographic", args[1])
	assert.Equal(t, sql.NullFloat64{Float64: 4.5, Valid: true}, args[4])
	assert.JSONEq(t, `{"distance_m": 4.5}`, string(args[11].([]byte)))
}

func TestAggregateArgs(t *testing.T) {
	h := 28.5
	args := aggregateArgs(uuid.Nil, span.SpanWireAggregate{
		Key:            span.Key{Category: span.Electrical, Owner: "CPS Energy"},
		ExistingHeight: &h,
		ConnectionID:   "c1",
	})

	require.Len(t, args, 12)
	assert.Equal(t, "electrical", args[4])
	assert.Equal(t, sql.NullFloat64{Float64: 28.5, Valid: true}, args[6])
	assert.Equal(t, sql.NullFloat64{}, args[7])
}

func TestSchemaIsEmbedded(t *testing.T) {
	for _, table := range []string{"pole_match_run", "pole_match", "pole_unmatched", "pole_record", "span_aggregate"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
