package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matchpulse/matchpulse/internal/domain"
)

func TestValuePercent(t *testing.T) {
	assert.InDelta(t, 10, ValuePercent(2.2, 2.0), 1e-9)
	assert.InDelta(t, -5, ValuePercent(1.9, 2.0), 1e-9)
	assert.Zero(t, ValuePercent(0, 2.0))
	assert.Zero(t, ValuePercent(2.0, 0))
	assert.Zero(t, ValuePercent(-1, -1))
}

func TestApplyFillsPricing(t *testing.T) {
	cand := domain.SignalCandidate{MatchID: "m1", Market: "over_2.5"}
	analysis := domain.MarketAnalysis{
		Data: map[string]float64{"odds": 2.15, "fair_odd": 2.0},
	}

	Apply(&cand, analysis, "bet365")

	assert.InDelta(t, 2.15, cand.Odds, 1e-9)
	assert.InDelta(t, 2.0, cand.FairOdd, 1e-9)
	assert.Equal(t, "bet365", cand.Bookmaker)
	assert.InDelta(t, 7.5, cand.ValuePercent, 1e-9)
}

func TestApplyPassthroughWithoutPricing(t *testing.T) {
	cand := domain.SignalCandidate{MatchID: "m1", Market: "over_2.5", Confidence: 80}
	Apply(&cand, domain.MarketAnalysis{Data: map[string]float64{"odds": 2.1}}, "bet365")

	assert.Zero(t, cand.Odds)
	assert.Empty(t, cand.Bookmaker)
	assert.InDelta(t, 80, cand.Confidence, 1e-9)
}
