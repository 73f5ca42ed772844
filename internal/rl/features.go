package rl

import (
	"math"
	"strconv"
	"strings"

	"github.com/matchpulse/matchpulse/internal/domain"
	"github.com/matchpulse/matchpulse/internal/lifecycle"
)

// neutralTrend is the default for any absent historical-trend field.
const neutralTrend = 0.5

// marketLiquidity is a static liquidity weight per market bucket, used as a
// feature rather than a gate.
var marketLiquidity = map[string]float64{
	"ou":        0.9,
	"btts":      0.7,
	"next_goal": 0.5,
	"default":   0.4,
}

// selectionKinds maps selection prefixes to a small indicator enum.
var selectionKinds = []string{"home", "away", "draw", "over", "under", "yes", "no"}

// FeatureVector is the fixed-length numeric state representation fed to the
// agent. Block one is the raw context, block two the engineered composites,
// block three the historical-trend composites.
type FeatureVector [25]float64

// Features derives the feature vector from one analysis record, the match
// context, and optional trend data. All components are scaled into [0,1]
// (give or take clipping) so the discretized state space stays compact.
func Features(analysis domain.MarketAnalysis, match domain.MatchContext, trends *domain.TeamTrends, recentPerformance float64) FeatureVector {
	var f FeatureVector

	// Block one: raw context.
	f[0] = clip01(analysis.Confidence / 100)
	f[1] = clip01(float64(match.Minute) / 130)
	f[2] = clip01(float64(match.Goals()) / 10)
	f[3] = clip01(float64(match.Stats.Shots) / 30)
	f[4] = clip01(float64(match.Stats.Corners) / 20)
	f[5] = clip01(float64(match.Stats.Fouls) / 30)
	f[6] = marketIndicator(analysis.Market)
	f[7] = selectionIndicator(analysis.Selection)

	// Block two: engineered composites.
	f[8] = gameIntensity(match)
	f[9] = momentum(match)
	f[10] = valueRatio(analysis.Data)
	f[11] = timeWeight(match.Minute)
	f[12] = scoreDifferential(match)
	f[13] = clip01(recentPerformance)
	f[14] = liquidityLookup(analysis.Market)
	f[15] = confidenceStability(analysis.Confidence)

	// Block three: historical trend composites, neutral when absent.
	f[16] = trendField(trends, func(t *domain.TeamTrends) float64 { return t.BTTSRate })
	f[17] = trendField(trends, func(t *domain.TeamTrends) float64 { return t.OverRate })
	f[18] = trendField(trends, func(t *domain.TeamTrends) float64 { return t.HomeForm })
	f[19] = trendField(trends, func(t *domain.TeamTrends) float64 { return t.AwayForm })
	f[20] = trendField(trends, func(t *domain.TeamTrends) float64 { return t.HeadToHead })
	f[21] = trendField(trends, func(t *domain.TeamTrends) float64 { return t.CornersAvg })
	f[22] = trendField(trends, func(t *domain.TeamTrends) float64 { return t.CardsAvg })
	f[23] = trendField(trends, func(t *domain.TeamTrends) float64 { return t.QualityGap })
	f[24] = trendField(trends, func(t *domain.TeamTrends) float64 { return t.Reliability })

	return f
}

// StateKey discretizes the feature vector to two decimal places and joins it
// into the Q-table lookup key.
func (f FeatureVector) StateKey() string {
	var b strings.Builder
	for i, v := range f {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64))
	}
	return b.String()
}

func marketIndicator(market string) float64 {
	buckets := []string{"ou", "btts", "next_goal", "default"}
	bucket := lifecycle.ResolveBucket(market)
	for i, b := range buckets {
		if b == bucket {
			return float64(i) / float64(len(buckets))
		}
	}
	return 1
}

func selectionIndicator(selection string) float64 {
	s := strings.ToLower(selection)
	for i, kind := range selectionKinds {
		if strings.HasPrefix(s, kind) {
			return float64(i) / float64(len(selectionKinds))
		}
	}
	return 1
}

// gameIntensity blends shots, corners, and fouls into one activity score.
func gameIntensity(m domain.MatchContext) float64 {
	raw := float64(m.Stats.Shots)*1.5 + float64(m.Stats.Corners)*2 + float64(m.Stats.Fouls)*0.5
	return clip01(raw / 80)
}

// momentum approximates scoring pace: goals relative to elapsed time.
func momentum(m domain.MatchContext) float64 {
	if m.Minute <= 0 {
		return 0
	}
	return clip01(float64(m.Goals()) * 30 / float64(m.Minute) / 3)
}

// valueRatio compares the offered odds against the fair odd when the
// analyzer supplied both; 0.5 means no edge either way.
func valueRatio(data map[string]float64) float64 {
	odds, fair := data["odds"], data["fair_odd"]
	if odds <= 0 || fair <= 0 {
		return neutralTrend
	}
	return clip01(odds / fair / 2)
}

// timeWeight emphasizes the phases where in-play markets resolve: weight
// grows through each half and dips around the interval.
func timeWeight(minute int) float64 {
	m := float64(clampFeatureMinute(minute))
	if m <= 45 {
		return 0.3 + 0.4*(m/45)
	}
	return clip01(0.5 + 0.5*((m-45)/85))
}

// scoreDifferential maps the goal difference onto [0,1] with 0.5 = level.
func scoreDifferential(m domain.MatchContext) float64 {
	diff := float64(m.HomeScore - m.AwayScore)
	if diff > 3 {
		diff = 3
	}
	if diff < -3 {
		diff = -3
	}
	return diff/6 + 0.5
}

func liquidityLookup(market string) float64 {
	if w, ok := marketLiquidity[lifecycle.ResolveBucket(market)]; ok {
		return w
	}
	return marketLiquidity["default"]
}

// confidenceStability penalizes extreme heuristic scores: values near 0 or
// 100 are historically the least calibrated.
func confidenceStability(confidence float64) float64 {
	return clip01(math.Abs(confidence-50) / 50)
}

func trendField(t *domain.TeamTrends, get func(*domain.TeamTrends) float64) float64 {
	if t == nil {
		return neutralTrend
	}
	v := get(t)
	if v <= 0 {
		return neutralTrend
	}
	return clip01(v)
}

func clip01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFeatureMinute(m int) int {
	if m < 0 {
		return 0
	}
	if m > 130 {
		return 130
	}
	return m
}
