package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/matchpulse/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthCheckAllHealthy(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"redis":    fakePinger{},
		"postgres": fakePinger{},
	}, testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", checks["redis"])
	assert.Equal(t, "ok", checks["postgres"])
}

func TestHealthCheckDegradedDependency(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"redis":    fakePinger{},
		"postgres": fakePinger{err: context.DeadlineExceeded},
	}, testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestHealthCheckNoDependencies(t *testing.T) {
	h := NewHealthHandler(nil, testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "checks")
}

type fakeAgentStats struct {
	epsilon float64
	states  int
	pending int
}

func (f fakeAgentStats) Epsilon() float64  { return f.epsilon }
func (f fakeAgentStats) StateCount() int   { return f.states }
func (f fakeAgentStats) PendingCount() int { return f.pending }

type fakeClockStats struct{ tracked int }

func (f fakeClockStats) Tracked() int { return f.tracked }

func TestStatusWithPipeline(t *testing.T) {
	h := NewStatusHandler("full", time.Now().Add(-90*time.Second),
		fakeAgentStats{epsilon: 0.12, states: 340, pending: 7},
		fakeClockStats{tracked: 15},
	)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "full", body["mode"])
	assert.GreaterOrEqual(t, body["uptime_seconds"].(float64), float64(90))
	assert.Equal(t, float64(15), body["tracked_clocks"])

	agent, ok := body["agent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.12, agent["epsilon"])
	assert.Equal(t, float64(7), agent["pending_evaluations"])
}

func TestStatusServerModeOmitsPipelineGauges(t *testing.T) {
	h := NewStatusHandler("server", time.Now(), nil, nil)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "server", body["mode"])
	assert.NotContains(t, body, "agent")
	assert.NotContains(t, body, "tracked_clocks")
}

type fakeSnapshots struct {
	snap domain.SignalSnapshot
	err  error
}

func (f fakeSnapshots) SetSnapshot(context.Context, domain.SignalSnapshot) error { return nil }
func (f fakeSnapshots) GetSnapshot(context.Context) (domain.SignalSnapshot, error) {
	return f.snap, f.err
}

type fakeReporter struct {
	got domain.SignalOutcome
	err error
}

func (f *fakeReporter) ReportOutcome(_ context.Context, o domain.SignalOutcome) error {
	f.got = o
	return f.err
}

type fakeStream struct {
	msgs []domain.StreamMessage
	err  error

	lastID string
	count  int
}

func (f *fakeStream) StreamRead(_ context.Context, _ string, lastID string, count int) ([]domain.StreamMessage, error) {
	f.lastID = lastID
	f.count = count
	return f.msgs, f.err
}

func TestListSignalsEmptyBeforeFirstTick(t *testing.T) {
	h := NewSignalsHandler(fakeSnapshots{err: domain.ErrNotFound}, nil, nil, "stream:signals", testLogger())

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.SignalSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Empty(t, snap.Active)
	assert.NotNil(t, snap.Counts)
}

func TestListSignalsReturnsSnapshot(t *testing.T) {
	h := NewSignalsHandler(fakeSnapshots{snap: domain.SignalSnapshot{
		Active: []domain.SignalSummary{{ID: "m1:ou:over_2.5", Market: "over_2.5", Confidence: 81}},
		Counts: map[domain.SignalState]int{domain.StateActive: 1},
	}}, nil, nil, "stream:signals", testLogger())

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.SignalSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Active, 1)
	assert.Equal(t, "over_2.5", snap.Active[0].Market)
}

func TestReadStreamDefaultsAndClamping(t *testing.T) {
	stream := &fakeStream{msgs: []domain.StreamMessage{
		{ID: "1-0", Payload: []byte(`{"active":[]}`)},
	}}
	h := NewSignalsHandler(fakeSnapshots{}, nil, stream, "stream:signals", testLogger())

	rec := httptest.NewRecorder()
	h.ReadStream(rec, httptest.NewRequest(http.MethodGet, "/api/signals/stream?count=9999", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", stream.lastID)
	assert.Equal(t, 500, stream.count)

	var body struct {
		Entries []map[string]string `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "1-0", body.Entries[0]["id"])
}

func TestReadStreamUnavailableWithoutBus(t *testing.T) {
	h := NewSignalsHandler(fakeSnapshots{}, nil, nil, "stream:signals", testLogger())

	rec := httptest.NewRecorder()
	h.ReadStream(rec, httptest.NewRequest(http.MethodGet, "/api/signals/stream", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReportOutcomeAccepted(t *testing.T) {
	reporter := &fakeReporter{}
	h := NewSignalsHandler(fakeSnapshots{}, reporter, nil, "stream:signals", testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/signals/outcome",
		strings.NewReader(`{"evaluation_id":"ev-1","outcome":"won","profit":1.4}`))
	rec := httptest.NewRecorder()
	h.ReportOutcome(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ev-1", reporter.got.EvaluationID)
	assert.Equal(t, domain.OutcomeWon, reporter.got.Outcome)
	assert.Equal(t, 1.4, reporter.got.Profit)
}

func TestReportOutcomeErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		reporter   *fakeReporter
		wantStatus int
	}{
		{
			name:       "invalid outcome kind",
			body:       `{"evaluation_id":"ev-1","outcome":"maybe"}`,
			reporter:   &fakeReporter{err: domain.ErrUnknownOutcome},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown evaluation id",
			body:       `{"evaluation_id":"ev-missing","outcome":"lost"}`,
			reporter:   &fakeReporter{err: domain.ErrEvaluationUnknown},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing evaluation id",
			body:       `{"outcome":"won"}`,
			reporter:   &fakeReporter{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field rejected",
			body:       `{"evaluation_id":"ev-1","outcome":"won","bogus":true}`,
			reporter:   &fakeReporter{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSignalsHandler(fakeSnapshots{}, tt.reporter, nil, "stream:signals", testLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/signals/outcome", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ReportOutcome(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestReportOutcomeUnavailableWithoutPipeline(t *testing.T) {
	h := NewSignalsHandler(fakeSnapshots{}, nil, nil, "stream:signals", testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/signals/outcome",
		strings.NewReader(`{"evaluation_id":"ev-1","outcome":"won"}`))
	rec := httptest.NewRecorder()
	h.ReportOutcome(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
