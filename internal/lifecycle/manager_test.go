package lifecycle

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/matchpulse/internal/domain"
)

func testManager(cfg Config) (*Manager, *time.Time) {
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	m := NewManager(cfg, slog.Default())
	m.now = func() time.Time { return now }
	return m, &now
}

func cand(matchID, market string, confidence float64) domain.SignalCandidate {
	return domain.SignalCandidate{
		MatchID:     matchID,
		Market:      market,
		Selection:   "over_2.5",
		Confidence:  confidence,
		Minute:      60,
		LiquidityOK: true,
		TTLSeconds:  600,
	}
}

func stateOf(m *Manager, key string) domain.SignalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sig, ok := m.live[key]; ok {
		return sig.State
	}
	return domain.StateExpired
}

func TestStateMachineForwardOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 60 * time.Second
	m, now := testManager(cfg)
	key := domain.SignalKey("m1", "over_2.5")

	// Below even the candidate margin: stays PRE.
	m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 40)})
	require.Equal(t, domain.StatePre, stateOf(m, key))

	// Within margin of the 70 threshold: CANDIDATE.
	*now = now.Add(10 * time.Second)
	m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 60)})
	require.Equal(t, domain.StateCandidate, stateOf(m, key))

	// Confidence collapses again: no demotion back to PRE.
	*now = now.Add(10 * time.Second)
	m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 30)})
	require.Equal(t, domain.StateCandidate, stateOf(m, key))

	// Full threshold met but maturation not yet served from creation.
	*now = now.Add(10 * time.Second)
	m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 85)})
	require.Equal(t, domain.StateCandidate, stateOf(m, key))

	// Maturation served: ACTIVE.
	*now = now.Add(45 * time.Second)
	res := m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 85)})
	require.Equal(t, domain.StateActive, stateOf(m, key))
	require.Len(t, res.Activated, 1)
	assert.Equal(t, key, res.Activated[0].Key())
}

func TestCreatedAtPreservedAcrossMerges(t *testing.T) {
	m, now := testManager(DefaultConfig())
	created := *now

	m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 50)})

	*now = now.Add(2 * time.Minute)
	m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 90)})

	m.mu.Lock()
	sig := m.live[domain.SignalKey("m1", "over_2.5")]
	m.mu.Unlock()
	require.NotNil(t, sig)
	assert.Equal(t, created, sig.CreatedAt)
	assert.Equal(t, *now, sig.UpdatedAt)
}

func TestCooldownSuppressesReactivation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 0
	cfg.Cooldown = 300 * time.Second
	m, now := testManager(cfg)
	key := domain.SignalKey("m1", "over_2.5")

	// First activation at t=0 with a short TTL so the identity frees up
	// while the cooldown is still running.
	first := cand("m1", "over_2.5", 85)
	first.TTLSeconds = 60
	res := m.Update([]domain.SignalCandidate{first})
	require.Len(t, res.Activated, 1)

	*now = now.Add(70 * time.Second)
	res = m.Update(nil)
	require.Len(t, res.Expired, 1)

	// New candidate with the same identity at t=120s: all promotion
	// criteria hold but the cooldown must pin it at CANDIDATE.
	*now = now.Add(50 * time.Second)
	res = m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 90)})
	assert.Empty(t, res.Activated)
	assert.Equal(t, domain.StateCandidate, stateOf(m, key))

	// At t=320s the window has elapsed and re-activation is allowed.
	*now = now.Add(200 * time.Second)
	res = m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 90)})
	require.Len(t, res.Activated, 1)
	assert.Equal(t, domain.StateActive, stateOf(m, key))
}

func TestCooldownOutlivesExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 0
	cfg.Cooldown = 10 * time.Minute
	m, now := testManager(cfg)

	short := cand("m1", "over_2.5", 85)
	short.TTLSeconds = 60
	res := m.Update([]domain.SignalCandidate{short})
	require.Len(t, res.Activated, 1)

	// Signal expires well before the cooldown does.
	*now = now.Add(2 * time.Minute)
	res = m.Update(nil)
	require.Len(t, res.Expired, 1)

	// A brand-new candidate with the same identity is still held back.
	*now = now.Add(1 * time.Minute)
	res = m.Update([]domain.SignalCandidate{cand("m1", "over_2.5", 95)})
	assert.Empty(t, res.Activated)
	assert.Equal(t, domain.StateCandidate, stateOf(m, domain.SignalKey("m1", "over_2.5")))
}

func TestPerMatchCapacityEnforcement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 0
	cfg.Markets[BucketOverUnder] = MarketConfig{Enabled: true, MinConfidence: 70, MaxSignalsPerMatch: 2}
	m, now := testManager(cfg)

	var batch []domain.SignalCandidate
	markets := []string{"over_1.5", "over_2.5", "over_3.5", "under_2.5", "under_3.5"}
	confidences := []float64{71, 88, 75, 92, 80}
	for i, market := range markets {
		c := cand("m1", market, confidences[i])
		c.TTLSeconds = 600 - i*30 // distinct remaining TTLs
		batch = append(batch, c)
	}

	res := m.Update(batch)
	require.Len(t, res.Activated, 5)
	require.Len(t, res.Active, 2, "only top-2 in the ou bucket may surface")

	assert.Equal(t, "under_2.5", res.Active[0].Market) // 92
	assert.Equal(t, "over_2.5", res.Active[1].Market)  // 88

	// Snapshot must agree with Update's view.
	snap := m.Snapshot()
	require.Len(t, snap.Active, 2)
	assert.Equal(t, res.Active[0].ID, snap.Active[0].ID)
	assert.Equal(t, res.Active[1].ID, snap.Active[1].ID)
	assert.Equal(t, 5, snap.Counts[domain.StateActive])
	_ = now
}

func TestGlobalDisplayCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 0
	cfg.MaxActiveDisplay = 3
	m, _ := testManager(cfg)

	var batch []domain.SignalCandidate
	for i, matchID := range []string{"m1", "m2", "m3", "m4", "m5"} {
		batch = append(batch, cand(matchID, "over_2.5", 75+float64(i)))
	}

	res := m.Update(batch)
	require.Len(t, res.Activated, 5)
	require.Len(t, res.Active, 3)

	// Highest confidence first.
	assert.Equal(t, float64(79), res.Active[0].Confidence)
	assert.Equal(t, float64(78), res.Active[1].Confidence)
	assert.Equal(t, float64(77), res.Active[2].Confidence)
}

func TestPriorityTieBreakByRemainingTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 0
	m, _ := testManager(cfg)

	urgent := cand("m1", "over_2.5", 80)
	urgent.TTLSeconds = 120
	relaxed := cand("m2", "over_2.5", 80)
	relaxed.TTLSeconds = 600

	res := m.Update([]domain.SignalCandidate{relaxed, urgent})
	require.Len(t, res.Active, 2)
	assert.Equal(t, "m1", res.Active[0].MatchID, "less TTL left surfaces first on equal confidence")
}

func TestTTLExpirySweep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 0
	m, now := testManager(cfg)

	c := cand("m1", "over_2.5", 85)
	c.TTLSeconds = 120
	m.Update([]domain.SignalCandidate{c})

	*now = now.Add(121 * time.Second)
	res := m.Update(nil)
	require.Len(t, res.Expired, 1)
	assert.Equal(t, domain.StateExpired, res.Expired[0].State)
	assert.Empty(t, res.Active)

	snap := m.Snapshot()
	assert.Zero(t, snap.Counts[domain.StateActive])
}

func TestSnapshotIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 0
	m, _ := testManager(cfg)

	m.Update([]domain.SignalCandidate{
		cand("m1", "over_2.5", 85),
		cand("m2", "btts_yes", 78),
	})

	first := m.Snapshot()
	second := m.Snapshot()
	assert.Equal(t, first.Active, second.Active)
	assert.Equal(t, first.Counts, second.Counts)
}

func TestDisabledMarketNeverPromotes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 0
	cfg.Markets[BucketDefault] = MarketConfig{Enabled: false, MinConfidence: 50, MaxSignalsPerMatch: 1}
	m, _ := testManager(cfg)

	res := m.Update([]domain.SignalCandidate{cand("m1", "corners_race", 99)})
	assert.Empty(t, res.Activated)
	assert.Equal(t, domain.StatePre, stateOf(m, domain.SignalKey("m1", "corners_race")))
}

func TestAdmissibleReportsDisabledMarkets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Markets[BucketDefault] = MarketConfig{Enabled: false, MinConfidence: 50, MaxSignalsPerMatch: 1}
	m, _ := testManager(cfg)

	require.NoError(t, m.Admissible("over_2.5"))

	err := m.Admissible("corners_race")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMarketDisabled)
	assert.Contains(t, err.Error(), "corners_race")
}

func TestDeterministicOrderingForIdenticalInputs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaturationWindow = 0

	build := func() []domain.SignalSummary {
		m, _ := testManager(cfg)
		res := m.Update([]domain.SignalCandidate{
			cand("m2", "over_2.5", 80),
			cand("m1", "over_2.5", 80),
			cand("m3", "btts_yes", 80),
		})
		return res.Active
	}

	assert.Equal(t, build(), build())
}

func TestResolveBucket(t *testing.T) {
	tests := map[string]string{
		"over_2.5":       BucketOverUnder,
		"under_3.5":      BucketOverUnder,
		"btts_yes":       BucketBTTS,
		"btts":           BucketBTTS,
		"next_goal_home": BucketNextGoal,
		"corners_race":   BucketDefault,
		"":               BucketDefault,
	}
	for market, want := range tests {
		assert.Equal(t, want, ResolveBucket(market), market)
	}
}
