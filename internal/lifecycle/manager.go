// Package lifecycle owns the authoritative set of in-flight signal
// candidates and advances each through its state machine: PRE -> CANDIDATE
// -> ACTIVE -> EXPIRED. States only move forward; an entity that never
// promotes simply expires from wherever it sits.
package lifecycle

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// candidateMargin is how far below the market threshold a signal may sit and
// still advance from PRE to CANDIDATE, in confidence points.
const candidateMargin = 15.0

// Config holds the lifecycle manager's policy knobs.
type Config struct {
	// Markets maps bucket name to its admission policy; missing buckets use
	// Markets[BucketDefault].
	Markets map[string]MarketConfig
	// MaturationWindow is the minimum dwell time at CANDIDATE before ACTIVE
	// promotion.
	MaturationWindow time.Duration
	// Cooldown is the minimum gap between ACTIVE promotions of the same
	// identity.
	Cooldown time.Duration
	// MaxActiveDisplay bounds the globally broadcast active list.
	MaxActiveDisplay int
}

// DefaultConfig returns the production lifecycle policy.
func DefaultConfig() Config {
	return Config{
		Markets:          DefaultMarkets(),
		MaturationWindow: 90 * time.Second,
		Cooldown:         5 * time.Minute,
		MaxActiveDisplay: 10,
	}
}

// TickResult is what one Update call produced: the bounded active view plus
// the transitions that happened during the tick.
type TickResult struct {
	Active    []domain.SignalSummary
	Activated []domain.SignalCandidate
	Expired   []domain.SignalCandidate
}

// Manager is the signal lifecycle state machine. Safe for concurrent use;
// Snapshot may be called at any time independent of Update.
type Manager struct {
	mu       sync.Mutex
	live     map[string]*domain.SignalCandidate
	cooldown *CooldownLedger

	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager with the given policy.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if cfg.Markets == nil {
		cfg.Markets = DefaultMarkets()
	}
	if cfg.MaxActiveDisplay < 1 {
		cfg.MaxActiveDisplay = 10
	}
	return &Manager{
		live:     make(map[string]*domain.SignalCandidate),
		cooldown: NewCooldownLedger(cfg.Cooldown),
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "signal_lifecycle")),
	}
}

// marketFor resolves the admission policy for a raw market identifier.
func (m *Manager) marketFor(market string) MarketConfig {
	if cfg, ok := m.cfg.Markets[ResolveBucket(market)]; ok {
		return cfg
	}
	return m.cfg.Markets[BucketDefault]
}

// Update ingests the tick's freshly derived candidates, merges them into the
// live set, advances state machines, sweeps expired entities, and returns
// the bounded prioritized active view. Candidates are processed in input
// order so capacity decisions are deterministic for identical inputs.
func (m *Manager) Update(candidates []domain.SignalCandidate) TickResult {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var activated []domain.SignalCandidate

	for i := range candidates {
		cand := candidates[i]
		key := cand.Key()

		if existing, ok := m.live[key]; ok {
			// Merge: identity bookkeeping survives, payload is refreshed.
			cand.CreatedAt = existing.CreatedAt
			cand.State = existing.State
		} else {
			cand.CreatedAt = now
			cand.State = domain.StatePre
		}
		cand.UpdatedAt = now
		m.live[key] = &cand

		if cand.State == domain.StatePre || cand.State == domain.StateCandidate {
			if m.promoteLocked(&cand, now) {
				activated = append(activated, cand)
			}
		}
	}

	var expired []domain.SignalCandidate
	for key, sig := range m.live {
		if sig.RemainingTTL(now) <= 0 {
			sig.State = domain.StateExpired
			expired = append(expired, *sig)
			delete(m.live, key)
		}
	}
	// Deterministic expiry order for downstream consumers.
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].Key() < expired[j].Key()
	})

	m.cooldown.Sweep(now)

	return TickResult{
		Active:    m.activeViewLocked(now),
		Activated: activated,
		Expired:   expired,
	}
}

// Admissible reports whether candidates in market's bucket may be promoted
// at all; disabled buckets return ErrMarketDisabled.
func (m *Manager) Admissible(market string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.marketFor(market).Enabled {
		return fmt.Errorf("market %s: %w", market, domain.ErrMarketDisabled)
	}
	return nil
}

// promoteLocked advances one candidate as far as the rules allow this tick
// and reports whether it reached ACTIVE.
func (m *Manager) promoteLocked(sig *domain.SignalCandidate, now time.Time) bool {
	policy := m.marketFor(sig.Market)
	if !policy.Enabled {
		m.logger.Debug("promotion blocked",
			slog.String("key", sig.Key()),
			slog.String("error", fmt.Errorf("market %s: %w", sig.Market, domain.ErrMarketDisabled).Error()),
		)
		return false
	}

	if sig.State == domain.StatePre {
		if sig.Confidence >= policy.MinConfidence-candidateMargin && sig.LiquidityOK {
			sig.State = domain.StateCandidate
			sig.UpdatedAt = now
			m.logger.Debug("signal promoted to candidate",
				slog.String("key", sig.Key()),
				slog.Float64("confidence", sig.Confidence),
			)
		}
	}

	if sig.State == domain.StateCandidate {
		if sig.Confidence >= policy.MinConfidence &&
			sig.Age(now) >= m.cfg.MaturationWindow &&
			sig.LiquidityOK &&
			!m.cooldown.InCooldown(sig.Key(), now) {
			sig.State = domain.StateActive
			sig.UpdatedAt = now
			m.cooldown.MarkActive(sig.Key(), now)
			m.logger.Info("signal activated",
				slog.String("key", sig.Key()),
				slog.String("selection", sig.Selection),
				slog.Float64("confidence", sig.Confidence),
				slog.Int("minute", sig.Minute),
			)
			return true
		}
	}
	return false
}

// Snapshot returns the bounded active view plus per-state counts over the
// entire live set. It runs the identical grouping/limiting pipeline as
// Update so out-of-band readers see consistent results, and performs no
// mutation.
func (m *Manager) Snapshot() domain.SignalSnapshot {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[domain.SignalState]int{
		domain.StatePre:       0,
		domain.StateCandidate: 0,
		domain.StateActive:    0,
	}
	for _, sig := range m.live {
		counts[sig.State]++
	}

	return domain.SignalSnapshot{
		Active:      m.activeViewLocked(now),
		Counts:      counts,
		GeneratedAt: now,
	}
}

// Live returns a copy of every in-flight candidate, in deterministic key
// order. Used for best-effort persistence of the full live set.
func (m *Manager) Live() []domain.SignalCandidate {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.SignalCandidate, 0, len(m.live))
	for _, sig := range m.live {
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}

// activeViewLocked applies the selection pipeline: collect ACTIVE entities,
// group by match, rank within each match, cap each market bucket per match,
// then rank and cap globally.
func (m *Manager) activeViewLocked(now time.Time) []domain.SignalSummary {
	byMatch := make(map[string][]*domain.SignalCandidate)
	matchOrder := make([]string, 0)
	for _, sig := range m.live {
		if sig.State != domain.StateActive {
			continue
		}
		if _, seen := byMatch[sig.MatchID]; !seen {
			matchOrder = append(matchOrder, sig.MatchID)
		}
		byMatch[sig.MatchID] = append(byMatch[sig.MatchID], sig)
	}
	sort.Strings(matchOrder)

	var selected []*domain.SignalCandidate
	for _, matchID := range matchOrder {
		group := byMatch[matchID]
		sortByPriority(group, now)

		taken := make(map[string]int)
		for _, sig := range group {
			bucket := ResolveBucket(sig.Market)
			limit := m.marketFor(sig.Market).MaxSignalsPerMatch
			if limit < 1 {
				limit = 1
			}
			if taken[bucket] >= limit {
				continue
			}
			taken[bucket]++
			selected = append(selected, sig)
		}
	}

	sortByPriority(selected, now)
	if len(selected) > m.cfg.MaxActiveDisplay {
		selected = selected[:m.cfg.MaxActiveDisplay]
	}

	out := make([]domain.SignalSummary, 0, len(selected))
	for _, sig := range selected {
		out = append(out, summarize(sig, now))
	}
	return out
}

// sortByPriority orders by confidence descending, then remaining TTL
// ascending (urgency first), with the identity key as a stable final
// tie-break.
func sortByPriority(sigs []*domain.SignalCandidate, now time.Time) {
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].Confidence != sigs[j].Confidence {
			return sigs[i].Confidence > sigs[j].Confidence
		}
		ti, tj := sigs[i].RemainingTTL(now), sigs[j].RemainingTTL(now)
		if ti != tj {
			return ti < tj
		}
		return sigs[i].Key() < sigs[j].Key()
	})
}

// summarize strips a candidate down to its externally visible shape.
func summarize(sig *domain.SignalCandidate, now time.Time) domain.SignalSummary {
	ttlLeft := int(sig.RemainingTTL(now).Seconds())
	if ttlLeft < 0 {
		ttlLeft = 0
	}
	var meta map[string]string
	if len(sig.Meta) > 0 {
		meta = make(map[string]string, len(sig.Meta))
		for k, v := range sig.Meta {
			meta[k] = v
		}
	}
	return domain.SignalSummary{
		ID:           sig.Key(),
		MatchID:      sig.MatchID,
		Market:       sig.Market,
		Selection:    sig.Selection,
		Confidence:   sig.Confidence,
		Minute:       sig.Minute,
		State:        sig.State,
		Reasoning:    sig.Reasoning,
		TTLSeconds:   sig.TTLSeconds,
		TTLLeft:      ttlLeft,
		Odds:         sig.Odds,
		Bookmaker:    sig.Bookmaker,
		ValuePercent: sig.ValuePercent,
		CreatedAt:    sig.CreatedAt,
		UpdatedAt:    sig.UpdatedAt,
		Meta:         meta,
	}
}
