package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/polematch/internal/correlate"
	"github.com/polematch/internal/debug"
	"github.com/polematch/internal/engine"
	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/span"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Tracker keeps an audit trail of correlation runs in Postgres
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a new audit tracker
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// EnsureSchema creates the audit tables if they do not exist.
func (t *Tracker) EnsureSchema(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// RecordRun saves a report: the run row, every match, every unmatched
// pole, the canonical records and the span aggregates, in one transaction.
func (t *Tracker) RecordRun(ctx context.Context, localDebug bool, rep *engine.Report) error {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	summaryJSON, err := json.Marshal(rep.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	// Start transaction
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pole_match_run (
			run_id, run_label, started_at, completed_at,
			matched, unmatched_a, unmatched_b, ambiguous, summary_json
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rep.RunID.String(), rep.Label, rep.StartedAt, rep.CompletedAt,
		rep.Summary.Matched, rep.Summary.UnmatchedA, rep.Summary.UnmatchedB, rep.Summary.Ambiguous, summaryJSON)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, m := range rep.Correlation.Matches {
		args, err := matchArgs(rep.RunID, m)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pole_match (
				run_id, stage, confidence, similarity, distance_m,
				a_source_id, a_label, a_alternates, b_source_id, b_label, b_alternates, features_json
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, args...); err != nil {
			return fmt.Errorf("failed to insert match %s/%s: %w", m.A.SourceID, m.B.SourceID, err)
		}
	}
	debug.DebugOutput(localDebug, "Recorded %d matches for run %s", len(rep.Correlation.Matches), rep.RunID)

	for _, group := range [][]extract.PoleIdentity{rep.Correlation.UnmatchedA, rep.Correlation.UnmatchedB} {
		for _, id := range group {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pole_unmatched (run_id, source, source_id, label) VALUES ($1, $2, $3, $4)
			`, rep.RunID.String(), string(id.Source), id.SourceID, id.PrimaryLabel); err != nil {
				return fmt.Errorf("failed to insert unmatched %s: %w", id.SourceID, err)
			}
		}
	}

	for _, p := range rep.Poles {
		fieldsJSON, err := json.Marshal(p.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal pole %s: %w", p.PoleID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pole_record (run_id, pole_id, fields_json, missing) VALUES ($1, $2, $3, $4)
		`, rep.RunID.String(), p.PoleID, fieldsJSON, pq.Array(nonNil(p.Missing))); err != nil {
			return fmt.Errorf("failed to insert pole %s: %w", p.PoleID, err)
		}
	}

	if rep.Spans != nil && len(rep.Spans.Aggregates) > 0 {
		if err := copyAggregates(ctx, tx, rep.RunID, rep.Spans.Aggregates); err != nil {
			return err
		}
		debug.DebugOutput(localDebug, "Copied %d span aggregates", len(rep.Spans.Aggregates))
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// copyAggregates bulk-loads span aggregates with COPY.
func copyAggregates(ctx context.Context, tx *sql.Tx, runID uuid.UUID, aggs []span.SpanWireAggregate) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("span_aggregate",
		"run_id", "connection_id", "from_pole_id", "to_pole_id", "category", "owner",
		"existing_ft", "proposed_ft", "new_ft", "move_ft", "is_reference", "observations"))
	if err != nil {
		return fmt.Errorf("failed to prepare aggregate copy: %w", err)
	}
	defer stmt.Close()

	for _, a := range aggs {
		if _, err := stmt.ExecContext(ctx, aggregateArgs(runID, a)...); err != nil {
			return fmt.Errorf("failed to copy aggregate %s/%s: %w", a.ConnectionID, a.Owner, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush aggregate copy: %w", err)
	}
	return nil
}

func matchArgs(runID uuid.UUID, m correlate.Match) ([]interface{}, error) {
	featuresJSON, err := json.Marshal(m.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal features: %w", err)
	}
	return []interface{}{
		runID.String(), string(m.Stage), m.Confidence, m.Similarity, nullFloat(m.DistanceMeters),
		m.A.SourceID, m.A.PrimaryLabel, pq.Array(nonNil(m.A.AlternateLabels)),
		m.B.SourceID, m.B.PrimaryLabel, pq.Array(nonNil(m.B.AlternateLabels)),
		featuresJSON,
	}, nil
}

func aggregateArgs(runID uuid.UUID, a span.SpanWireAggregate) []interface{} {
	return []interface{}{
		runID.String(), a.ConnectionID, a.FromPoleID, a.ToPoleID, string(a.Category), a.Owner,
		nullFloat(a.ExistingHeight), nullFloat(a.ProposedHeight), nullFloat(a.NewHeight),
		a.MoveValueFeet, a.IsReferenceSubgroup, a.Observations,
	}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RunRecord is a stored run as read back for review.
type RunRecord struct {
	RunID       uuid.UUID       `json:"run_id"`
	Label       string          `json:"label"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Summary     json.RawMessage `json:"summary"`
	Matches     []MatchRecord   `json:"matches"`
}

// MatchRecord is one stored match.
type MatchRecord struct {
	Stage          string   `json:"stage"`
	Confidence     float64  `json:"confidence"`
	DistanceMeters *float64 `json:"distance_m,omitempty"`
	ASourceID      string   `json:"a_source_id"`
	ALabel         string   `json:"a_label"`
	AAlternates    []string `json:"a_alternates,omitempty"`
	BSourceID      string   `json:"b_source_id"`
	BLabel         string   `json:"b_label"`
}

// GetRun retrieves a stored run with its matches.
func (t *Tracker) GetRun(ctx context.Context, localDebug bool, runID uuid.UUID) (*RunRecord, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	run := &RunRecord{RunID: runID}
	var summary []byte
	err := t.db.QueryRowContext(ctx, `
		SELECT run_label, started_at, completed_at, summary_json
		FROM pole_match_run
		WHERE run_id = $1
	`, runID.String()).Scan(&run.Label, &run.StartedAt, &run.CompletedAt, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.Summary = summary

	rows, err := t.db.QueryContext(ctx, `
		SELECT stage, confidence, distance_m, a_source_id, a_label, a_alternates, b_source_id, b_label
		FROM pole_match
		WHERE run_id = $1
		ORDER BY match_id
	`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m MatchRecord
		var dist sql.NullFloat64
		if err := rows.Scan(&m.Stage, &m.Confidence, &dist, &m.ASourceID, &m.ALabel,
			pq.Array(&m.AAlternates), &m.BSourceID, &m.BLabel); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if dist.Valid {
			d := dist.Float64
			m.DistanceMeters = &d
		}
		run.Matches = append(run.Matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matches: %w", err)
	}

	debug.DebugOutput(localDebug, "Loaded run %s with %d matches", runID, len(run.Matches))
	return run, nil
}
