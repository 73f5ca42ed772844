// Package clock derives a monotonically progressing match minute from an
// unreliable upstream feed. The raw clock can freeze, vanish, or reset to
// zero mid-match; the normalizer layers staleness detection, cache-based
// extrapolation, and an override guard on top of the raw value so the
// reported minute keeps advancing and never regresses.
package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// MaxMinute is the hard cap on any normalized minute. Extra time in cup
// matches can run long, but nothing legitimate passes this.
const MaxMinute = 130

// recentEventScan is how many of the most recent events are inspected when
// falling back to event minutes.
const recentEventScan = 5

// Config holds the normalizer's tuning knobs.
type Config struct {
	// StalenessThreshold is how long the raw minute may stay unchanged (while
	// still > 0) before the match is considered stale.
	StalenessThreshold time.Duration
	// CacheTTL bounds how old the minute cache may be and still drive
	// extrapolation. Past the TTL the normalizer falls through to raw.
	CacheTTL time.Duration
	// FallbackEnabled turns on the secondary fixture-detail fetch when a
	// match goes stale.
	FallbackEnabled bool
	// FallbackTimeout bounds each fixture-detail fetch.
	FallbackTimeout time.Duration
	// IdleEviction is how long a match's tracking state may go untouched
	// before Sweep removes it.
	IdleEviction time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		StalenessThreshold: 120 * time.Second,
		CacheTTL:           90 * time.Second,
		FallbackEnabled:    false,
		FallbackTimeout:    4 * time.Second,
		IdleEviction:       6 * time.Hour,
	}
}

// trackingState is the per-match clock bookkeeping. The rawChangedAt and
// cachedAt timestamps move only when their value changes/increases; that
// anchoring is what makes elapsed-time extrapolation possible.
type trackingState struct {
	lastRaw      int
	rawChangedAt time.Time

	cachedMinute int
	cachedAt     time.Time

	normalized   int
	normalizedAt time.Time

	touchedAt time.Time
}

// Normalizer owns the per-match tracking states. It is safe for concurrent
// use, although the pipeline drives it from a single tick at a time.
type Normalizer struct {
	mu     sync.Mutex
	states map[string]*trackingState

	cfg    Config
	detail domain.FixtureDetailFetcher // optional
	now    func() time.Time
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. detail may be nil, in which case the
// fixture fallback is skipped regardless of config.
func NewNormalizer(cfg Config, detail domain.FixtureDetailFetcher, logger *slog.Logger) *Normalizer {
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 120 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 90 * time.Second
	}
	if cfg.IdleEviction <= 0 {
		cfg.IdleEviction = 6 * time.Hour
	}
	return &Normalizer{
		states: make(map[string]*trackingState),
		cfg:    cfg,
		detail: detail,
		now:    time.Now,
		logger: logger.With(slog.String("component", "minute_normalizer")),
	}
}

// Normalize derives the minute for one raw match payload. The returned value
// is non-negative, capped at MaxMinute, and never lower than what was
// previously reported for the same match.
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawMatch) int {
	matchID := raw.Key()
	now := n.now()

	n.mu.Lock()
	st, ok := n.states[matchID]
	if !ok {
		st = &trackingState{rawChangedAt: now}
		n.states[matchID] = st
	}
	n.mu.Unlock()

	rawMinute := ExtractMinute(raw, now)

	n.mu.Lock()
	if rawMinute != st.lastRaw {
		st.lastRaw = rawMinute
		st.rawChangedAt = now
	}
	stale := rawMinute > 0 && now.Sub(st.rawChangedAt) > n.cfg.StalenessThreshold
	n.mu.Unlock()

	if stale && n.cfg.FallbackEnabled && n.detail != nil {
		if m, ok := n.fetchDetailMinute(ctx, matchID); ok && m > rawMinute {
			rawMinute = m
			n.mu.Lock()
			st.lastRaw = m
			st.rawChangedAt = now
			n.mu.Unlock()
			stale = false
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	minute := rawMinute
	if rawMinute == 0 || stale {
		candidate := 0
		if st.cachedMinute > 0 && now.Sub(st.cachedAt) <= n.cfg.CacheTTL {
			elapsed := int(now.Sub(st.cachedAt).Minutes())
			if elapsed < 0 {
				elapsed = 0
			}
			candidate = min(MaxMinute, st.cachedMinute+elapsed)
		}
		// Override guard: project from the last normalized value so the
		// clock never reports below what was already shown.
		if st.normalized > 0 {
			elapsed := int(now.Sub(st.normalizedAt).Minutes())
			if elapsed < 0 {
				elapsed = 0
			}
			projection := min(MaxMinute, st.normalized+elapsed)
			if projection > candidate {
				candidate = projection
			}
		}
		if candidate > 0 {
			minute = candidate
		}
	}

	if minute > MaxMinute {
		minute = MaxMinute
	}
	if minute < st.normalized {
		minute = st.normalized
	}

	// Cache timestamps anchor on increases, not observations.
	if minute > st.cachedMinute {
		st.cachedMinute = minute
		st.cachedAt = now
	}
	if minute > st.normalized {
		st.normalized = minute
		st.normalizedAt = now
	}
	st.touchedAt = now

	return minute
}

// fetchDetailMinute issues the bounded secondary fetch and re-runs minute
// extraction on the richer payload. Any failure is "no improvement".
func (n *Normalizer) fetchDetailMinute(ctx context.Context, matchID string) (int, bool) {
	timeout := n.cfg.FallbackTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	detail, err := n.detail.FetchDetail(fctx, matchID)
	if err != nil || detail == nil {
		if err != nil {
			n.logger.Debug("fixture fallback fetch failed",
				slog.String("match_id", matchID),
				slog.String("error", err.Error()),
			)
		}
		return 0, false
	}
	m := ExtractMinute(*detail, n.now())
	if m <= 0 {
		return 0, false
	}
	return m, true
}

// Sweep evicts tracking states that have gone untouched longer than the idle
// window and returns how many were removed. Called once per tick.
func (n *Normalizer) Sweep() int {
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()

	removed := 0
	for id, st := range n.states {
		if now.Sub(st.touchedAt) > n.cfg.IdleEviction {
			delete(n.states, id)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of matches currently tracked.
func (n *Normalizer) Tracked() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.states)
}

// ExtractMinute walks the known payload shapes in priority order and returns
// the first usable minute, or 0 when nothing fits.
func ExtractMinute(raw domain.RawMatch, now time.Time) int {
	if raw.Minute != nil && *raw.Minute > 0 {
		return clampMinute(*raw.Minute)
	}
	if raw.TimerMinute != nil && *raw.TimerMinute > 0 {
		return clampMinute(*raw.TimerMinute)
	}
	for _, c := range []*domain.RawClock{raw.Time, raw.Timer} {
		if c == nil {
			continue
		}
		if c.Minute != nil && *c.Minute > 0 {
			return clampMinute(*c.Minute)
		}
		if c.TM != nil && *c.TM > 0 {
			return clampMinute(*c.TM)
		}
	}
	if len(raw.Periods) > 0 {
		if m := raw.Periods[0].Minute; m != nil && *m > 0 {
			return clampMinute(*m)
		}
	}
	// Scan only the most recent few events; older ones are long out of date.
	start := len(raw.Events) - recentEventScan
	if start < 0 {
		start = 0
	}
	for i := len(raw.Events) - 1; i >= start; i-- {
		if m := raw.Events[i].Minute; m != nil && *m > 0 {
			return clampMinute(*m)
		}
	}
	if m := kickoffEstimate(raw, now); m > 0 {
		return m
	}
	return 0
}

// kickoffEstimate derives elapsed minutes from the kickoff timestamp. It is
// only used when the status looks live, or is absent entirely - missing
// status fields must not silently suppress signal generation.
func kickoffEstimate(raw domain.RawMatch, now time.Time) int {
	if raw.KickoffTS <= 0 {
		return 0
	}
	if !LiveLikeStatus(raw.Status) {
		return 0
	}
	elapsed := int(now.Sub(time.Unix(raw.KickoffTS, 0)).Minutes())
	if elapsed < 0 {
		return 0
	}
	return clampMinute(elapsed)
}

// liveStatuses are the upstream status values treated as in-play phases.
var liveStatuses = map[string]bool{
	"LIVE":        true,
	"INPLAY":      true,
	"IN_PLAY":     true,
	"1H":          true,
	"2H":          true,
	"FIRST_HALF":  true,
	"SECOND_HALF": true,
	"HT":          true,
	"HALFTIME":    true,
	"ET":          true,
	"EXTRA_TIME":  true,
	"PEN":         true,
}

// LiveLikeStatus reports whether the status indicates a live phase. An empty
// status is treated as possibly live.
func LiveLikeStatus(status string) bool {
	s := NormalizeStatus(status)
	if s == "" {
		return true
	}
	return liveStatuses[s]
}

func clampMinute(m int) int {
	if m < 0 {
		return 0
	}
	if m > MaxMinute {
		return MaxMinute
	}
	return m
}
