package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matchpulse/matchpulse/internal/clock"
	"github.com/matchpulse/matchpulse/internal/domain"
	"github.com/matchpulse/matchpulse/internal/enrich"
	"github.com/matchpulse/matchpulse/internal/lifecycle"
	"github.com/matchpulse/matchpulse/internal/metrics"
	"github.com/matchpulse/matchpulse/internal/notify"
	"github.com/matchpulse/matchpulse/internal/rl"
)

// Broadcast channels and streams.
const (
	ChannelSignals  = "ch:signals"
	ChannelSnapshot = "ch:snapshot"
	StreamSignals   = "stream:signals"
)

// EngineOptions wires the engine's collaborators. Store, cache, bus, and
// notifier are optional; a nil value disables that side effect.
type EngineOptions struct {
	Feed       domain.MatchFeed
	Builder    *ContextBuilder
	Normalizer *clock.Normalizer
	Trends     domain.TrendProvider
	Analyzer   domain.MarketAnalyzer
	Agent      *rl.Agent
	Manager    *lifecycle.Manager
	Store      domain.SignalStore
	Cache      domain.SnapshotCache
	Bus        domain.SignalBus
	Notifier   *notify.Notifier
	Metrics    *metrics.EngineMetrics

	// SignalTTL is the fixed lifetime stamped onto every new candidate.
	SignalTTL time.Duration
	// Bookmaker labels enriched pricing.
	Bookmaker string
}

// Engine executes one full evaluation per tick: feed poll, context build,
// market analysis, agent evaluation, lifecycle update, persistence, and
// broadcast. A tick is self-contained; failures affect only the current tick.
type Engine struct {
	opts   EngineOptions
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions, logger *slog.Logger) *Engine {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default()
	}
	if opts.SignalTTL <= 0 {
		opts.SignalTTL = 10 * time.Minute
	}
	return &Engine{
		opts:   opts,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// Tick runs one evaluation pass. Feed unavailability is returned so the
// caller can count it, but all downstream side effects are best-effort.
func (e *Engine) Tick(ctx context.Context) error {
	start := time.Now()

	raws, err := e.opts.Feed.FetchLive(ctx)
	if err != nil {
		e.opts.Metrics.RecordFeedError("inplay")
		e.opts.Metrics.RecordTick("feed_error", time.Since(start).Seconds(), 0)
		return fmt.Errorf("tick: %w", err)
	}

	matches := e.opts.Builder.Build(ctx, raws)
	candidates := e.evaluate(ctx, matches)

	res := e.opts.Manager.Update(candidates)

	// Expiry is the engine's own terminal outcome: signals that ran out of
	// TTL without external feedback are reported back to the agent here.
	for _, ex := range res.Expired {
		if ex.EvaluationID == "" {
			continue
		}
		e.opts.Agent.UpdateFromResult(ex.EvaluationID, domain.OutcomeExpired, 0)
		e.opts.Metrics.RecordAgentUpdate(string(domain.OutcomeExpired))
	}
	e.opts.Metrics.RecordExpiries(len(res.Expired))

	for _, act := range res.Activated {
		bucket := lifecycle.ResolveBucket(act.Market)
		e.opts.Metrics.RecordActivation(bucket, act.Confidence)
		e.notifyActivated(ctx, act)
	}

	snap := e.opts.Manager.Snapshot()
	e.persist(ctx, res.Expired)
	e.broadcast(ctx, snap)

	counts := make(map[string]int, len(snap.Counts))
	for state, n := range snap.Counts {
		counts[string(state)] = n
	}
	e.opts.Metrics.UpdateSignalCounts(counts)
	e.opts.Metrics.UpdateAgentGauges(e.opts.Agent.Epsilon(), e.opts.Agent.StateCount(), e.opts.Agent.PendingCount())
	e.sweep()
	e.opts.Metrics.RecordTick("ok", time.Since(start).Seconds(), len(matches))

	e.logger.Info("tick complete",
		slog.Int("live_matches", len(matches)),
		slog.Int("candidates", len(candidates)),
		slog.Int("activated", len(res.Activated)),
		slog.Int("expired", len(res.Expired)),
		slog.Int("active_view", len(res.Active)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// evaluate scores every market of every live match and returns the tick's
// candidate set. Per-match analysis failures skip that match only.
func (e *Engine) evaluate(ctx context.Context, matches []domain.MatchContext) []domain.SignalCandidate {
	var candidates []domain.SignalCandidate
	for _, match := range matches {
		var trends *domain.TeamTrends
		if e.opts.Trends != nil {
			trends, _ = e.opts.Trends.FetchTrends(ctx, match.HomeTeam, match.AwayTeam)
		}

		analyses, err := e.opts.Analyzer.Analyze(ctx, match, trends)
		if err != nil {
			e.logger.Warn("analysis failed, skipping match",
				slog.String("match_id", match.MatchID),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, analysis := range analyses {
			ev := e.opts.Agent.EvaluateSignal(analysis, match, trends)
			if !ev.ShouldGenerate {
				continue
			}
			cand := domain.SignalCandidate{
				MatchID:      match.MatchID,
				Market:       analysis.Market,
				Selection:    analysis.Selection,
				Confidence:   ev.AdjustedConfidence,
				Minute:       match.Minute,
				LiquidityOK:  analysis.LiquidityOK,
				TTLSeconds:   int(e.opts.SignalTTL.Seconds()),
				Reasoning:    ev.Reasoning,
				EvaluationID: ev.EvaluationID,
			}
			enrich.Apply(&cand, analysis, e.opts.Bookmaker)
			candidates = append(candidates, cand)
		}
	}
	return candidates
}

// ReportOutcome ingests external outcome feedback: it updates the persisted
// record and feeds the agent. Unknown evaluation ids surface ErrNotFound from
// the store but still reach the agent, which no-ops on orphans.
func (e *Engine) ReportOutcome(ctx context.Context, outcome domain.SignalOutcome) error {
	if !outcome.Outcome.Valid() {
		return fmt.Errorf("report outcome: %q: %w", outcome.Outcome, domain.ErrUnknownOutcome)
	}

	if e.opts.Store != nil {
		if err := e.opts.Store.MarkOutcome(ctx, outcome); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("report outcome %s: %w", outcome.EvaluationID, domain.ErrEvaluationUnknown)
			}
			e.logger.Error("outcome persistence failed",
				slog.String("evaluation_id", outcome.EvaluationID),
				slog.String("error", err.Error()),
			)
		}
	}

	e.opts.Agent.UpdateFromResult(outcome.EvaluationID, outcome.Outcome, outcome.Profit)
	e.opts.Metrics.RecordAgentUpdate(string(outcome.Outcome))
	return nil
}

// persist writes the live set plus this tick's expiries, best-effort.
func (e *Engine) persist(ctx context.Context, expired []domain.SignalCandidate) {
	if e.opts.Store == nil {
		return
	}

	live := e.opts.Manager.Live()
	records := make([]domain.SignalRecord, 0, len(live)+len(expired))
	for _, sig := range live {
		records = append(records, toRecord(sig))
	}
	for _, sig := range expired {
		records = append(records, toRecord(sig))
	}
	if len(records) == 0 {
		return
	}

	if err := e.opts.Store.UpsertBatch(ctx, records); err != nil {
		e.logger.Error("signal persistence failed",
			slog.Int("records", len(records)),
			slog.String("error", err.Error()),
		)
	}
}

// broadcast pushes the snapshot to the cache, the pub/sub channel, and the
// durable stream, each best-effort.
func (e *Engine) broadcast(ctx context.Context, snap domain.SignalSnapshot) {
	if e.opts.Cache != nil {
		if err := e.opts.Cache.SetSnapshot(ctx, snap); err != nil {
			e.logger.Error("snapshot cache write failed", slog.String("error", err.Error()))
		}
	}
	if e.opts.Bus == nil {
		return
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		e.logger.Error("snapshot encode failed", slog.String("error", err.Error()))
		return
	}
	if err := e.opts.Bus.Publish(ctx, ChannelSnapshot, payload); err != nil {
		e.logger.Error("snapshot publish failed", slog.String("error", err.Error()))
	}
	if err := e.opts.Bus.StreamAppend(ctx, StreamSignals, payload); err != nil {
		e.logger.Error("snapshot stream append failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) notifyActivated(ctx context.Context, sig domain.SignalCandidate) {
	if e.opts.Notifier == nil {
		return
	}
	title := fmt.Sprintf("Signal: %s %s", sig.Market, sig.Selection)
	msg := fmt.Sprintf("match %s | minute %d | confidence %.1f%%", sig.MatchID, sig.Minute, sig.Confidence)
	if sig.Odds > 0 {
		msg += fmt.Sprintf(" | odds %.2f (%+.1f%%)", sig.Odds, sig.ValuePercent)
	}
	if err := e.opts.Notifier.Notify(ctx, notify.EventSignalActivated, title, msg); err != nil {
		e.logger.Warn("activation notification failed", slog.String("error", err.Error()))
	}
}

// sweep runs the periodic eviction passes that keep long-lived state bounded.
func (e *Engine) sweep() {
	if e.opts.Normalizer != nil {
		e.opts.Normalizer.Sweep()
		e.opts.Metrics.UpdateTrackedClocks(e.opts.Normalizer.Tracked())
	}
	e.opts.Agent.SweepStates()
}

func toRecord(sig domain.SignalCandidate) domain.SignalRecord {
	return domain.SignalRecord{
		Key:          sig.Key(),
		MatchID:      sig.MatchID,
		Market:       sig.Market,
		Selection:    sig.Selection,
		Confidence:   sig.Confidence,
		Minute:       sig.Minute,
		State:        sig.State,
		Reasoning:    sig.Reasoning,
		EvaluationID: sig.EvaluationID,
		Odds:         sig.Odds,
		ValuePercent: sig.ValuePercent,
		CreatedAt:    sig.CreatedAt,
		UpdatedAt:    sig.UpdatedAt,
	}
}
