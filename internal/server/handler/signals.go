package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// OutcomeReporter ingests external outcome feedback for a signal.
type OutcomeReporter interface {
	ReportOutcome(ctx context.Context, outcome domain.SignalOutcome) error
}

// StreamReader replays the durable signal stream.
type StreamReader interface {
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error)
}

// SignalsHandler serves the signal snapshot, the durable stream, and the
// outcome feedback endpoint.
type SignalsHandler struct {
	snapshots domain.SnapshotCache
	reporter  OutcomeReporter // nil when no pipeline runs in this process
	stream    StreamReader    // nil when no bus is configured
	streamKey string
	logger    *slog.Logger
}

// NewSignalsHandler creates a SignalsHandler. reporter and stream may be nil;
// the corresponding endpoints then answer 503.
func NewSignalsHandler(
	snapshots domain.SnapshotCache,
	reporter OutcomeReporter,
	stream StreamReader,
	streamKey string,
	logger *slog.Logger,
) *SignalsHandler {
	return &SignalsHandler{
		snapshots: snapshots,
		reporter:  reporter,
		stream:    stream,
		streamKey: streamKey,
		logger:    logHandler(logger, "signals"),
	}
}

// ListSignals responds with the latest snapshot: the bounded active view plus
// per-state counts. Before the first tick there is no snapshot yet; that is
// an empty result, not an error.
// GET /api/signals
func (h *SignalsHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.GetSnapshot(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, domain.SignalSnapshot{
				Active: []domain.SignalSummary{},
				Counts: map[domain.SignalState]int{},
			})
			return
		}
		h.logger.Error("snapshot read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "snapshot unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ReadStream replays snapshot history from the durable stream.
// GET /api/signals/stream?after=<id>&count=<n>
func (h *SignalsHandler) ReadStream(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream not configured")
		return
	}

	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	count := queryInt(r, "count", 50, 500)

	messages, err := h.stream.StreamRead(r.Context(), h.streamKey, after, count)
	if err != nil {
		h.logger.Error("stream read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "stream read failed")
		return
	}

	entries := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, map[string]any{
			"id":      msg.ID,
			"payload": string(msg.Payload),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// outcomeRequest is the POST body for outcome feedback.
type outcomeRequest struct {
	EvaluationID string  `json:"evaluation_id"`
	Outcome      string  `json:"outcome"`
	Profit       float64 `json:"profit"`
}

// ReportOutcome ingests won/lost/expired feedback for an issued evaluation.
// POST /api/signals/outcome
func (h *SignalsHandler) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		writeError(w, http.StatusServiceUnavailable, "outcome feedback not available in this mode")
		return
	}

	var req outcomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EvaluationID == "" {
		writeError(w, http.StatusBadRequest, "evaluation_id is required")
		return
	}

	err := h.reporter.ReportOutcome(r.Context(), domain.SignalOutcome{
		EvaluationID: req.EvaluationID,
		Outcome:      domain.OutcomeKind(req.Outcome),
		Profit:       req.Profit,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	case errors.Is(err, domain.ErrUnknownOutcome):
		writeError(w, http.StatusBadRequest, "outcome must be won, lost, or expired")
	case errors.Is(err, domain.ErrEvaluationUnknown):
		writeError(w, http.StatusNotFound, "unknown evaluation id")
	default:
		h.logger.Error("outcome report failed",
			slog.String("evaluation_id", req.EvaluationID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "outcome report failed")
	}
}
