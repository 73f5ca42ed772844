package domain

import (
	"fmt"
	"time"
)

// SignalState is the lifecycle state of a signal candidate. Transitions only
// move forward: PRE -> CANDIDATE -> ACTIVE -> EXPIRED. EXPIRED is terminal
// and removes the candidate from the live set.
type SignalState string

const (
	StatePre       SignalState = "PRE"
	StateCandidate SignalState = "CANDIDATE"
	StateActive    SignalState = "ACTIVE"
	StateExpired   SignalState = "EXPIRED"
)

// SignalCandidate is one in-flight betting signal, keyed by (match, market).
// The selection may change between ticks; the identity key does not.
type SignalCandidate struct {
	MatchID     string
	Market      string
	Selection   string
	Confidence  float64 // 0-100, post-agent adjustment
	Minute      int     // informational, minute at last update
	LiquidityOK bool
	TTLSeconds  int // fixed at creation
	State       SignalState
	Reasoning   string

	// CreatedAt is fixed at first creation of this identity and preserved
	// across merges. UpdatedAt moves on every tick the identity recurs.
	CreatedAt time.Time
	UpdatedAt time.Time

	// EvaluationID links back to the confidence agent's pending evaluation
	// so outcome feedback can be attributed.
	EvaluationID string

	// Odds enrichment pass-through; zero when the analyzer supplied no odds.
	Odds         float64
	FairOdd      float64
	Bookmaker    string
	ValuePercent float64

	Meta map[string]string
}

// Key returns the identity key for this candidate.
func (s SignalCandidate) Key() string {
	return SignalKey(s.MatchID, s.Market)
}

// SignalKey builds the (match, market) identity key.
func SignalKey(matchID, market string) string {
	return fmt.Sprintf("%s:%s", matchID, market)
}

// Age returns the time elapsed since first creation.
func (s SignalCandidate) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// RemainingTTL returns how long the candidate has left before expiry.
// Negative values mean the candidate is overdue for removal.
func (s SignalCandidate) RemainingTTL(now time.Time) time.Duration {
	return time.Duration(s.TTLSeconds)*time.Second - s.Age(now)
}

// SignalSummary is the externally visible shape of an active signal, stripped
// of internal bookkeeping.
type SignalSummary struct {
	ID           string            `json:"id"`
	MatchID      string            `json:"match_id"`
	Market       string            `json:"market"`
	Selection    string            `json:"selection"`
	Confidence   float64           `json:"confidence"`
	Minute       int               `json:"minute"`
	State        SignalState       `json:"state"`
	Reasoning    string            `json:"reasoning"`
	TTLSeconds   int               `json:"ttl_seconds"`
	TTLLeft      int               `json:"ttl_left_seconds"`
	Odds         float64           `json:"odds,omitempty"`
	Bookmaker    string            `json:"bookmaker,omitempty"`
	ValuePercent float64           `json:"value_percent,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// SignalSnapshot is the broadcast payload: the bounded, prioritized active
// view plus total per-state counts over the entire live set.
type SignalSnapshot struct {
	Active      []SignalSummary     `json:"active"`
	Counts      map[SignalState]int `json:"counts"`
	GeneratedAt time.Time           `json:"generated_at"`
}
