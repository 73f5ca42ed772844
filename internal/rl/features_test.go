package rl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/matchpulse/internal/domain"
)

func TestFeaturesNeutralWhenTrendsAbsent(t *testing.T) {
	f := Features(analysisFixture(70), matchFixture(), nil, 0.5)
	for i := 16; i < len(f); i++ {
		assert.InDelta(t, 0.5, f[i], 1e-9, "trend slot %d", i)
	}
}

func TestFeaturesTrendValuesClipped(t *testing.T) {
	trends := &domain.TeamTrends{
		BTTSRate:    0.8,
		OverRate:    1.7, // out of range, clips to 1
		HomeForm:    -0.2,
		Reliability: 0.9,
	}
	f := Features(analysisFixture(70), matchFixture(), trends, 0.5)
	assert.InDelta(t, 0.8, f[16], 1e-9)
	assert.InDelta(t, 1.0, f[17], 1e-9)
	assert.InDelta(t, 0.5, f[18], 1e-9, "non-positive reads as no data")
	assert.InDelta(t, 0.5, f[20], 1e-9, "zero head-to-head reads as no data")
	assert.InDelta(t, 0.9, f[24], 1e-9)
}

func TestFeaturesAllWithinUnitInterval(t *testing.T) {
	match := domain.MatchContext{
		MatchID:   "m1",
		Minute:    500, // absurd inputs still clip
		HomeScore: 9,
		AwayScore: 0,
		Stats:     domain.MatchStats{Shots: 90, Corners: 40, Fouls: 70},
	}
	f := Features(analysisFixture(250), match, nil, 2.0)
	for i, v := range f {
		assert.GreaterOrEqual(t, v, 0.0, "slot %d", i)
		assert.LessOrEqual(t, v, 1.0, "slot %d", i)
	}
}

func TestStateKeyShapeAndDiscretization(t *testing.T) {
	f := Features(analysisFixture(70), matchFixture(), nil, 0.5)
	key := f.StateKey()

	parts := strings.Split(key, "|")
	require.Len(t, parts, 25)
	for _, p := range parts {
		require.Regexp(t, `^\d\.\d{2}$`, p)
	}

	// Sub-centesimal jitter must land in the same state.
	a := analysisFixture(70)
	b := analysisFixture(70.2)
	assert.Equal(t,
		Features(a, matchFixture(), nil, 0.5).StateKey(),
		Features(b, matchFixture(), nil, 0.5).StateKey(),
	)

	// A real change in context must not.
	other := matchFixture()
	other.HomeScore = 3
	assert.NotEqual(t, key, Features(analysisFixture(70), other, nil, 0.5).StateKey())
}

func TestValueRatio(t *testing.T) {
	assert.InDelta(t, 0.5, valueRatio(nil), 1e-9)
	assert.InDelta(t, 0.5, valueRatio(map[string]float64{"odds": 2.1}), 1e-9)
	// odds 2.2 vs fair 2.0: ratio 1.1, scaled to 0.55.
	assert.InDelta(t, 0.55, valueRatio(map[string]float64{"odds": 2.2, "fair_odd": 2.0}), 1e-9)
}

func TestScoreDifferentialClamps(t *testing.T) {
	level := domain.MatchContext{HomeScore: 1, AwayScore: 1}
	assert.InDelta(t, 0.5, scoreDifferential(level), 1e-9)

	rout := domain.MatchContext{HomeScore: 7, AwayScore: 0}
	assert.InDelta(t, 1.0, scoreDifferential(rout), 1e-9)

	collapse := domain.MatchContext{HomeScore: 0, AwayScore: 5}
	assert.InDelta(t, 0.0, scoreDifferential(collapse), 1e-9)
}

func TestTimeWeightPhases(t *testing.T) {
	assert.InDelta(t, 0.3, timeWeight(0), 1e-9)
	assert.InDelta(t, 0.7, timeWeight(45), 1e-9)
	assert.Greater(t, timeWeight(85), timeWeight(60))
	assert.InDelta(t, 1.0, timeWeight(130), 1e-9)
	assert.InDelta(t, 1.0, timeWeight(900), 1e-9)
}

func TestMarketAndSelectionIndicators(t *testing.T) {
	assert.InDelta(t, 0.0, marketIndicator("over_2.5"), 1e-9)
	assert.InDelta(t, 0.25, marketIndicator("btts_yes"), 1e-9)
	assert.InDelta(t, 0.75, marketIndicator("corners_race"), 1e-9)

	assert.InDelta(t, 3.0/7, selectionIndicator("over_3.5"), 1e-9)
	assert.InDelta(t, 0.0, selectionIndicator("home_win"), 1e-9)
	assert.InDelta(t, 1.0, selectionIndicator("exact_2_1"), 1e-9)
}
