// Package enrich decorates signal candidates with bookmaker pricing context.
// It is a passthrough layer: enrichment never changes whether a signal exists,
// only what pricing metadata rides along with it.
package enrich

import (
	"math"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// ValuePercent computes the relative edge of the offered odds over the fair
// odds, in percent. Zero when either side is missing or non-positive.
func ValuePercent(odds, fairOdd float64) float64 {
	if odds <= 0 || fairOdd <= 0 {
		return 0
	}
	return (odds/fairOdd - 1) * 100
}

// Apply fills the pricing fields on a candidate from its analysis data. The
// analyzer reports odds under "odds" and its modelled fair price under
// "fair_odd"; absent either, the candidate passes through untouched.
func Apply(cand *domain.SignalCandidate, analysis domain.MarketAnalysis, bookmaker string) {
	odds, fair := analysis.Data["odds"], analysis.Data["fair_odd"]
	if odds <= 0 || fair <= 0 {
		return
	}
	cand.Odds = odds
	cand.FairOdd = fair
	cand.Bookmaker = bookmaker
	cand.ValuePercent = math.Round(ValuePercent(odds, fair)*100) / 100
}
