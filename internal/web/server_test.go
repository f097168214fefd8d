package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polematch/internal/audit"
	"github.com/polematch/internal/config"
	"github.com/polematch/internal/correlate"
	"github.com/polematch/internal/engine"
	"github.com/polematch/internal/span"
)

const body = `{
	"label": "web",
	"a": [
		{"id": "a1", "label": "PL410620"},
		{"id": "a2", "label": "PL777"}
	],
	"b": [
		{"id": "n1", "attributes": {"scid": {"auto_button": "PL410620"}}},
		{"id": "n2", "attributes": {"scid": {"auto_button": "pl-410621"}}}
	]
}`

type memoryStore struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*engine.Report
}

func (m *memoryStore) RecordRun(ctx context.Context, localDebug bool, rep *engine.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs == nil {
		m.runs = make(map[uuid.UUID]*engine.Report)
	}
	m.runs[rep.RunID] = rep
	return nil
}

func (m *memoryStore) GetRun(ctx context.Context, localDebug bool, runID uuid.UUID) (*audit.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.runs[runID]
	if !ok {
		return nil, audit.ErrRunNotFound
	}
	return &audit.RunRecord{RunID: rep.RunID, Label: rep.Label}, nil
}

func newTestServer(t *testing.T, store *memoryStore) http.Handler {
	t.Helper()
	eng, err := engine.New(nil, false)
	require.NoError(t, err)
	if store == nil {
		return NewServer(DefaultConfig(), eng, nil).Handler()
	}
	return NewServer(DefaultConfig(), eng, store).Handler()
}

func do(t *testing.T, h http.Handler, method, path, payload string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "store": false}`, rec.Body.String())
}

func TestCorrelateEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/correlate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res correlate.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, correlate.StageExact, res.Matches[0].Stage)
	assert.Equal(t, "a1", res.Matches[0].A.SourceID)
	assert.Equal(t, 1, res.Stats.UnmatchedA)
	assert.Equal(t, 1, res.Stats.UnmatchedB)
}

func TestCorrelateRejectsBadInput(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/correlate", `{"a": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/correlate", `{"a": {"id": "x"}, "b": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid input")
}

func TestSpansEndpointFilter(t *testing.T) {
	h := newTestServer(t, nil)
	conns := `[{"id": "c1", "node_id_1": "n1", "node_id_2": "n2", "sections": [
		{"annotations": [{"owner": "AT&T", "type": "Fiber", "height": 22}]}
	]}]`

	rec := do(t, h, http.MethodPost, "/api/spans", `{"connections": `+conns+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res span.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Aggregates, 1)

	rec = do(t, h, http.MethodPost, "/api/spans", `{"connections": `+conns+`, "correlated_poles": []}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res = span.Result{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Empty(t, res.Aggregates)
	assert.Equal(t, 1, res.Stats.SkippedUncorrelated)
}

func TestRunIsRecordedAndRetrievable(t *testing.T) {
	store := &memoryStore{}
	h := newTestServer(t, store)

	rec := do(t, h, http.MethodPost, "/api/runs", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var rep engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 1, rep.Summary.Matched)
	require.Contains(t, store.runs, rep.RunID)

	rec = do(t, h, http.MethodGet, "/api/runs/"+rep.RunID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"label":"web"`)

	rec = do(t, h, http.MethodGet, "/api/runs/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunLookupNeedsStore(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/api/runs/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRulesEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/api/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "geo_cutoff_meters: 50")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("POLEMATCH_WEB_PORT", "9090")
	t.Setenv("POLEMATCH_DATABASE_URL", "postgres://x@localhost/pm")

	cfg := ConfigFromEnv()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "postgres://x@localhost/pm", cfg.Database.URL)
}

func TestSetEngineSwapsRules(t *testing.T) {
	eng, err := engine.New(nil, false)
	require.NoError(t, err)
	server := NewServer(DefaultConfig(), eng, nil)

	rules, err := config.DefaultRules()
	require.NoError(t, err)
	rules.Correlation.GeoCutoffMeters = 75
	next, err := engine.New(rules, false)
	require.NoError(t, err)
	server.SetEngine(next)

	rec := do(t, server.Handler(), http.MethodGet, "/api/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "geo_cutoff_meters: 75")
}

func TestAPIRateLimit(t *testing.T) {
	eng, err := engine.New(nil, false)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Server.RateLimit = 0.001
	cfg.Server.RateBurst = 1
	h := NewServer(cfg, eng, nil).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/rules", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/rules", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}
