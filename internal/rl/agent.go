// Package rl implements the online confidence agent: a tabular Q-learning
// estimator that adjusts raw heuristic confidence scores from accumulated
// outcome feedback. Fresh evaluations are treated as terminal transitions;
// bootstrapping only happens during batched experience replay. That split is
// deliberate and must not be "fixed".
package rl

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// Action is one of the agent's five discrete decisions.
type Action int

const (
	ActionReject Action = iota
	ActionVeryLow
	ActionLow
	ActionMedium
	ActionHigh

	numActions = 5
)

// actionParams defines the multiplicative scale and hard cap per
// confidence-adjustment tier. ActionReject has no parameters.
var actionParams = [numActions]struct {
	Scale float64
	Cap   float64
}{
	ActionReject:  {0, 0},
	ActionVeryLow: {0.60, 50},
	ActionLow:     {0.80, 65},
	ActionMedium:  {0.95, 80},
	ActionHigh:    {1.15, 95},
}

// String returns a short rationale label for the action.
func (a Action) String() string {
	switch a {
	case ActionReject:
		return "reject"
	case ActionVeryLow:
		return "very_low"
	case ActionLow:
		return "low"
	case ActionMedium:
		return "medium"
	case ActionHigh:
		return "high"
	}
	return "unknown"
}

// Config holds the agent's hyperparameters.
type Config struct {
	LearningRate     float64
	Epsilon          float64
	EpsilonDecay     float64
	EpsilonMin       float64
	EpsilonMax       float64
	Discount         float64
	BufferSize       int
	BatchSize        int
	TargetSyncEvery  int
	DoubleQ          bool
	PrioritizedReplay bool
	PriorityExponent float64
	// MaxStates caps the Q-table size; least-recently-touched entries are
	// evicted by SweepStates once the cap is exceeded.
	MaxStates int
	// PendingTTL is how long an unconsumed evaluation is tracked before it
	// is swept as abandoned.
	PendingTTL time.Duration
	// RewardWindow is the size of the rolling outcome window that drives
	// adaptive epsilon decay.
	RewardWindow int
}

// DefaultConfig returns the production hyperparameters.
func DefaultConfig() Config {
	return Config{
		LearningRate:      0.1,
		Epsilon:           0.25,
		EpsilonDecay:      0.995,
		EpsilonMin:        0.02,
		EpsilonMax:        0.40,
		Discount:          0.95,
		BufferSize:        5000,
		BatchSize:         32,
		TargetSyncEvery:   100,
		DoubleQ:           true,
		PrioritizedReplay: true,
		PriorityExponent:  0.6,
		MaxStates:         50000,
		PendingTTL:        24 * time.Hour,
		RewardWindow:      50,
	}
}

// qEntry is one Q-table row: a value per action plus the last-touched
// timestamp used for eviction.
type qEntry struct {
	values  [numActions]float64
	touched time.Time
}

// pendingEval maps an issued evaluation id back to the transition it came
// from so outcome feedback can be applied later.
type pendingEval struct {
	state      string
	action     Action
	issuedAt   time.Time
	matchID    string
	confidence float64 // original heuristic confidence
	market     string
}

// Agent is the online confidence estimator. It is safe for concurrent
// evaluate/update calls.
type Agent struct {
	mu sync.Mutex

	cfg     Config
	q       map[string]*qEntry
	target  map[string]*qEntry // double-Q target table
	buffer  *ReplayBuffer
	pending map[string]pendingEval

	epsilon       float64
	updates       int
	recentRewards []float64

	rng    *rand.Rand
	now    func() time.Time
	logger *slog.Logger
}

// NewAgent creates an Agent with the given hyperparameters.
func NewAgent(cfg Config, logger *slog.Logger) *Agent {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 16
	}
	if cfg.TargetSyncEvery < 1 {
		cfg.TargetSyncEvery = 100
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 24 * time.Hour
	}
	if cfg.RewardWindow < 1 {
		cfg.RewardWindow = 50
	}
	return &Agent{
		cfg:     cfg,
		q:       make(map[string]*qEntry),
		target:  make(map[string]*qEntry),
		buffer:  NewReplayBuffer(cfg.BufferSize),
		pending: make(map[string]pendingEval),
		epsilon: cfg.Epsilon,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		logger:  logger.With(slog.String("component", "confidence_agent")),
	}
}

// EvaluateSignal decides whether a heuristic analysis should become a signal
// and adjusts its confidence. It records a pending evaluation for later
// outcome attribution but never mutates Q-values. Internal failures degrade
// to "generate at original confidence" so a scoring bug cannot stall the
// pipeline.
func (a *Agent) EvaluateSignal(analysis domain.MarketAnalysis, match domain.MatchContext, trends *domain.TeamTrends) (ev domain.Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("evaluation panicked, failing open",
				slog.String("match_id", match.MatchID),
				slog.String("market", analysis.Market),
				slog.Any("panic", r),
			)
			ev = domain.Evaluation{
				ShouldGenerate:     true,
				AdjustedConfidence: analysis.Confidence,
				Reasoning:          analysis.Reasoning,
				EvaluationID:       uuid.NewString(),
			}
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()

	features := Features(analysis, match, trends, a.recentPerformanceLocked())
	key := features.StateKey()
	action := a.selectActionLocked(key)

	ev = domain.Evaluation{
		EvaluationID: uuid.NewString(),
		Reasoning:    fmt.Sprintf("%s | agent: %s", analysis.Reasoning, action),
	}

	if action == ActionReject {
		ev.ShouldGenerate = false
		ev.AdjustedConfidence = 0
	} else {
		p := actionParams[action]
		ev.ShouldGenerate = true
		ev.AdjustedConfidence = math.Min(p.Cap, analysis.Confidence*p.Scale)
	}

	a.pending[ev.EvaluationID] = pendingEval{
		state:      key,
		action:     action,
		issuedAt:   a.now(),
		matchID:    match.MatchID,
		confidence: analysis.Confidence,
		market:     analysis.Market,
	}
	a.sweepPendingLocked()

	return ev
}

// UpdateFromResult applies outcome feedback for a previously issued
// evaluation. Orphaned feedback is a logged no-op; internal failures are
// swallowed so no bad update reaches the tables.
func (a *Agent) UpdateFromResult(evaluationID string, outcome domain.OutcomeKind, profit float64) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("outcome update panicked, skipping",
				slog.String("evaluation_id", evaluationID),
				slog.Any("panic", r),
			)
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()

	pe, ok := a.pending[evaluationID]
	if !ok {
		a.logger.Warn("outcome for untracked evaluation",
			slog.String("evaluation_id", evaluationID),
			slog.String("outcome", string(outcome)),
		)
		return
	}
	delete(a.pending, evaluationID)

	reward := shapeReward(outcome, profit, pe.confidence)

	// Terminal transition: the target is the reward itself, no bootstrap.
	entry := a.ensureLocked(a.q, pe.state)
	td := reward - entry.values[pe.action]
	entry.values[pe.action] += a.cfg.LearningRate * td
	entry.touched = a.now()

	a.updates++
	if a.cfg.DoubleQ && a.updates%a.cfg.TargetSyncEvery == 0 {
		a.syncTargetLocked()
	}

	priority := math.Abs(reward-expectedReward(pe.confidence)) + 0.01
	a.buffer.Add(Experience{
		State:     pe.state,
		Action:    pe.action,
		Reward:    reward,
		Done:      true,
		Priority:  priority,
		Timestamp: a.now(),
		MatchID:   pe.matchID,
		Profit:    profit,
	})

	a.recordRewardLocked(reward)
	a.adaptEpsilonLocked()

	if a.updates%a.cfg.BatchSize == 0 {
		a.replayLocked()
	}

	a.logger.Debug("agent updated",
		slog.String("evaluation_id", evaluationID),
		slog.String("outcome", string(outcome)),
		slog.Float64("reward", reward),
		slog.Float64("epsilon", a.epsilon),
	)
}

// PendingCount returns the number of tracked, unconsumed evaluations.
func (a *Agent) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// StateCount returns the number of known Q-table states.
func (a *Agent) StateCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.q)
}

// Epsilon returns the current exploration rate.
func (a *Agent) Epsilon() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epsilon
}

// SweepStates evicts least-recently-touched Q-table rows once the table
// exceeds its configured cap, and returns the number evicted. Called once
// per tick by the pipeline.
func (a *Agent) SweepStates() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg.MaxStates < 1 || len(a.q) <= a.cfg.MaxStates {
		return 0
	}

	type aged struct {
		key     string
		touched time.Time
	}
	entries := make([]aged, 0, len(a.q))
	for k, e := range a.q {
		entries = append(entries, aged{k, e.touched})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].touched.Before(entries[j].touched)
	})

	evict := len(a.q) - a.cfg.MaxStates
	for _, e := range entries[:evict] {
		delete(a.q, e.key)
		delete(a.target, e.key)
	}
	return evict
}

// selectActionLocked is epsilon-greedy over the state's Q-values, ties
// broken by first index.
func (a *Agent) selectActionLocked(key string) Action {
	if a.rng.Float64() < a.epsilon {
		return Action(a.rng.Intn(numActions))
	}
	entry := a.ensureLocked(a.q, key)
	best := Action(0)
	for i := 1; i < numActions; i++ {
		if entry.values[i] > entry.values[best] {
			best = Action(i)
		}
	}
	return best
}

// ensureLocked lazily creates a Q-table row on first visit.
func (a *Agent) ensureLocked(table map[string]*qEntry, key string) *qEntry {
	e, ok := table[key]
	if !ok {
		e = &qEntry{touched: a.now()}
		table[key] = e
	}
	return e
}

// syncTargetLocked hard-copies the main table into the target table.
func (a *Agent) syncTargetLocked() {
	a.target = make(map[string]*qEntry, len(a.q))
	for k, e := range a.q {
		cp := *e
		a.target[k] = &cp
	}
	a.logger.Debug("target table synced", slog.Int("states", len(a.target)))
}

// replayLocked re-estimates a sampled batch. Unlike the terminal update
// path, replay bootstraps a discounted next-state value when one was
// recorded, and refreshes each experience's priority from its new TD error.
func (a *Agent) replayLocked() {
	var batch []*Experience
	if a.cfg.PrioritizedReplay {
		batch = a.buffer.SamplePrioritized(a.rng, a.cfg.BatchSize, a.cfg.PriorityExponent)
	} else {
		batch = a.buffer.Sample(a.rng, a.cfg.BatchSize)
	}

	for _, e := range batch {
		target := e.Reward
		if !e.Done && e.NextState != "" {
			target += a.cfg.Discount * a.nextValueLocked(e.NextState)
		}
		entry := a.ensureLocked(a.q, e.State)
		td := target - entry.values[e.Action]
		entry.values[e.Action] += a.cfg.LearningRate * td
		entry.touched = a.now()
		e.Priority = math.Abs(td) + 0.01
	}
}

// nextValueLocked returns the bootstrapped next-state value. With double-Q
// the greedy action comes from the main table but its value from the target
// table, which damps overestimation.
func (a *Agent) nextValueLocked(state string) float64 {
	main := a.ensureLocked(a.q, state)
	best := Action(0)
	for i := 1; i < numActions; i++ {
		if main.values[i] > main.values[best] {
			best = Action(i)
		}
	}
	if !a.cfg.DoubleQ {
		return main.values[best]
	}
	if t, ok := a.target[state]; ok {
		return t.values[best]
	}
	return main.values[best]
}

// recordRewardLocked pushes a reward into the rolling window.
func (a *Agent) recordRewardLocked(reward float64) {
	a.recentRewards = append(a.recentRewards, reward)
	if overflow := len(a.recentRewards) - a.cfg.RewardWindow; overflow > 0 {
		a.recentRewards = append([]float64(nil), a.recentRewards[overflow:]...)
	}
}

// recentPerformanceLocked is the positive-outcome share of the rolling
// window, 0.5 when no history exists. Doubles as a feature input.
func (a *Agent) recentPerformanceLocked() float64 {
	if len(a.recentRewards) == 0 {
		return 0.5
	}
	positive := 0
	for _, r := range a.recentRewards {
		if r > 0 {
			positive++
		}
	}
	return float64(positive) / float64(len(a.recentRewards))
}

// adaptEpsilonLocked tunes exploration from recent results: decay faster
// when the agent is winning, back off toward exploration when it is not.
func (a *Agent) adaptEpsilonLocked() {
	perf := a.recentPerformanceLocked()
	switch {
	case perf > 0.6:
		a.epsilon *= a.cfg.EpsilonDecay * a.cfg.EpsilonDecay
	case perf < 0.4:
		a.epsilon *= 1.01
	default:
		a.epsilon *= a.cfg.EpsilonDecay
	}
	if a.epsilon < a.cfg.EpsilonMin {
		a.epsilon = a.cfg.EpsilonMin
	}
	if a.cfg.EpsilonMax > 0 && a.epsilon > a.cfg.EpsilonMax {
		a.epsilon = a.cfg.EpsilonMax
	}
}

// sweepPendingLocked drops evaluations that never received feedback within
// the pending TTL.
func (a *Agent) sweepPendingLocked() {
	cutoff := a.now().Add(-a.cfg.PendingTTL)
	for id, pe := range a.pending {
		if pe.issuedAt.Before(cutoff) {
			delete(a.pending, id)
		}
	}
}

// shapeReward converts an outcome into the learning signal. Profit scales a
// bonus/penalty capped at 0.5 either way; the overconfidence corrections
// reward calibration and punish confident misses.
func shapeReward(outcome domain.OutcomeKind, profit, originalConfidence float64) float64 {
	var reward float64
	switch outcome {
	case domain.OutcomeWon:
		reward = 1.0
		if profit > 0 {
			reward += math.Min(0.5, profit*0.05)
		}
		if originalConfidence < 60 {
			reward += 0.2
		}
	case domain.OutcomeLost:
		reward = -1.0
		if profit < 0 {
			reward -= math.Min(0.5, -profit*0.05)
		}
		if originalConfidence > 80 {
			reward -= 0.3
		}
	case domain.OutcomeExpired:
		reward = -0.2
	}
	return reward
}

// expectedReward maps the original heuristic confidence onto the reward
// scale: 100% confidence expects +1, 0% expects -1.
func expectedReward(confidence float64) float64 {
	return confidence/100*2 - 1
}
