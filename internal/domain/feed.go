package domain

import "context"

// MatchFeed is the polled upstream source of raw live-match payloads.
type MatchFeed interface {
	FetchLive(ctx context.Context) ([]RawMatch, error)
}

// FixtureDetailFetcher fetches a richer single-match payload, used as a
// secondary clock source when the live feed goes stale. Implementations must
// bound the call with a timeout; a failure means "no improvement", never a
// pipeline error.
type FixtureDetailFetcher interface {
	FetchDetail(ctx context.Context, matchID string) (*RawMatch, error)
}

// TrendProvider returns historical trend data for a team pairing. A nil
// result with a nil error means the provider has nothing for this pairing.
type TrendProvider interface {
	FetchTrends(ctx context.Context, homeTeam, awayTeam string) (*TeamTrends, error)
}

// MarketAnalyzer is the upstream heuristic scorer. It returns zero or more
// market analyses per match per tick; the core never recomputes its scores.
type MarketAnalyzer interface {
	Analyze(ctx context.Context, match MatchContext, trends *TeamTrends) ([]MarketAnalysis, error)
}
