package lifecycle

import "strings"

// Market bucket names. Raw market identifiers are mapped onto buckets by
// string prefix; anything unrecognized lands in the default bucket.
const (
	BucketOverUnder = "ou"
	BucketBTTS      = "btts"
	BucketNextGoal  = "next_goal"
	BucketDefault   = "default"
)

// MarketConfig is the per-market-bucket admission policy.
type MarketConfig struct {
	Enabled            bool
	MinConfidence      float64
	MaxSignalsPerMatch int
}

// ResolveBucket maps a raw market identifier onto its configuration bucket.
func ResolveBucket(market string) string {
	m := strings.ToLower(strings.TrimSpace(market))
	switch {
	case strings.HasPrefix(m, "over_"), strings.HasPrefix(m, "under_"), strings.HasPrefix(m, "ou_"):
		return BucketOverUnder
	case strings.HasPrefix(m, "btts"):
		return BucketBTTS
	case strings.HasPrefix(m, "next_goal"):
		return BucketNextGoal
	default:
		return BucketDefault
	}
}

// DefaultMarkets returns the stock per-bucket policies.
func DefaultMarkets() map[string]MarketConfig {
	return map[string]MarketConfig{
		BucketOverUnder: {Enabled: true, MinConfidence: 70, MaxSignalsPerMatch: 2},
		BucketBTTS:      {Enabled: true, MinConfidence: 72, MaxSignalsPerMatch: 1},
		BucketNextGoal:  {Enabled: true, MinConfidence: 75, MaxSignalsPerMatch: 1},
		BucketDefault:   {Enabled: false, MinConfidence: 80, MaxSignalsPerMatch: 1},
	}
}
