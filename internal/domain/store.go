package domain

import (
	"context"
	"time"
)

// SignalRecord is the persisted form of a signal, written best-effort once
// per tick. Persistence failures are logged and never abort the pipeline;
// state is reconstructed from scratch on restart.
type SignalRecord struct {
	Key          string
	MatchID      string
	Market       string
	Selection    string
	Confidence   float64
	Minute       int
	State        SignalState
	Reasoning    string
	EvaluationID string
	Odds         float64
	ValuePercent float64
	Outcome      OutcomeKind // empty until feedback arrives
	Profit       float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SignalStore persists signal history.
type SignalStore interface {
	// UpsertBatch writes the current live set; existing keys are updated in
	// place so a record tracks its signal across state changes.
	UpsertBatch(ctx context.Context, records []SignalRecord) error
	// MarkOutcome attaches outcome feedback to the record carrying the
	// evaluation id. Unknown ids return ErrNotFound.
	MarkOutcome(ctx context.Context, outcome SignalOutcome) error
	// ListExpiredBefore returns up to limit expired records last updated
	// before cutoff, oldest first. Used by the archiver.
	ListExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]SignalRecord, error)
	// DeleteExpiredBefore removes expired records last updated before cutoff
	// and returns the number deleted.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
