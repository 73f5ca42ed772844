package domain

// TeamTrends is the opaque historical-trend object for a team pairing. All
// rates are in [0,1]; consumers must treat a nil *TeamTrends, or any zero
// Reliability, as "no data" and fall back to neutral defaults.
type TeamTrends struct {
	BTTSRate    float64 `json:"btts_rate"`
	OverRate    float64 `json:"over_rate"` // over 2.5 goals rate
	HomeForm    float64 `json:"home_form"` // recency-weighted result+performance
	AwayForm    float64 `json:"away_form"`
	HeadToHead  float64 `json:"head_to_head"` // composite, 0.5 = even
	CornersAvg  float64 `json:"corners_avg"`  // normalized composite
	CardsAvg    float64 `json:"cards_avg"`    // normalized composite
	QualityGap  float64 `json:"quality_gap"`  // team-quality composite, 0.5 = even
	Reliability float64 `json:"reliability"`  // data-reliability composite
}
