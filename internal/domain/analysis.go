package domain

import "time"

// MarketAnalysis is one heuristic market-scoring record supplied by the
// upstream analyzer. The core treats the score as opaque input; it never
// recomputes it.
type MarketAnalysis struct {
	Market      string             `json:"market"`
	Selection   string             `json:"selection"`
	Confidence  float64            `json:"confidence"` // 0-100
	Reasoning   string             `json:"reasoning"`
	LiquidityOK bool               `json:"liquidity_ok"`
	Data        map[string]float64 `json:"data"` // auxiliary metrics (odds, fair_odd, ...)
}

// Evaluation is the confidence agent's verdict on one analysis record.
type Evaluation struct {
	ShouldGenerate     bool
	AdjustedConfidence float64
	Reasoning          string
	EvaluationID       string
}

// OutcomeKind classifies how a signal resolved.
type OutcomeKind string

const (
	OutcomeWon     OutcomeKind = "won"
	OutcomeLost    OutcomeKind = "lost"
	OutcomeExpired OutcomeKind = "expired"
)

// Valid reports whether the outcome is one of the known kinds.
func (o OutcomeKind) Valid() bool {
	switch o {
	case OutcomeWon, OutcomeLost, OutcomeExpired:
		return true
	}
	return false
}

// SignalOutcome is asynchronous feedback for a previously issued evaluation.
// Profit is optional and zero when unknown.
type SignalOutcome struct {
	EvaluationID string      `json:"evaluation_id"`
	Outcome      OutcomeKind `json:"outcome"`
	Profit       float64     `json:"profit"`
	ReportedAt   time.Time   `json:"reported_at"`
}
