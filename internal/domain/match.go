package domain

import "encoding/json"

// MatchContext is the normalized, per-tick view of one live match. It is
// rebuilt from the raw provider payload on every poll and is never persisted
// by the core.
type MatchContext struct {
	MatchID   string
	LeagueID  int
	HomeTeam  string
	AwayTeam  string
	Minute    int // normalized, 0-130, monotonic per match
	HomeScore int
	AwayScore int
	Status    string // normalized to upper case
	RawTime   string // opaque debug payload from the provider
	Stats     MatchStats
}

// MatchStats carries the in-play statistics used for feature extraction.
// Providers that do not report a statistic leave it at zero.
type MatchStats struct {
	Shots   int
	Corners int
	Fouls   int
}

// Goals returns the total goal count.
func (m MatchContext) Goals() int {
	return m.HomeScore + m.AwayScore
}

// RawMatch is the provider match payload. Upstream feeds disagree on where
// the clock, score, and team names live, so every known shape is modelled as
// an explicit optional field; extraction walks them in a fixed priority
// order (see internal/clock).
type RawMatch struct {
	// Identity. Some feeds send a string id, others a numeric one.
	MatchID  string      `json:"match_id"`
	ID       json.Number `json:"id"`
	LeagueID int         `json:"league_id"`

	// Clock shapes, most explicit first.
	Minute      *int       `json:"minute"`
	TimerMinute *int       `json:"timer_minute"`
	Time        *RawClock  `json:"time"`
	Timer       *RawClock  `json:"timer"`
	Periods     []RawPeriod `json:"periods"`
	Events      []RawEvent  `json:"events"`

	// KickoffTS is the kickoff time as a unix timestamp in seconds. Used for
	// the elapsed-time estimate when no clock field is usable.
	KickoffTS int64  `json:"kickoff_ts"`
	Status    string `json:"status"`

	// Score shapes.
	HomeScore *int      `json:"home_score"`
	AwayScore *int      `json:"away_score"`
	Score     *RawScore `json:"score"`

	// Team-name shapes.
	Participants []RawParticipant `json:"participants"`
	HomeName     string           `json:"home_name"`
	AwayName     string           `json:"away_name"`
	Teams        []RawTeam        `json:"teams"`

	Stats *RawStats `json:"stats"`
}

// RawClock is a nested clock object ({"minute": 37} or {"tm": 37}).
type RawClock struct {
	Minute *int `json:"minute"`
	TM     *int `json:"tm"`
}

// RawPeriod is one period entry; the first period's minute is a clock
// fallback on feeds that only report per-period timing.
type RawPeriod struct {
	Number int  `json:"number"`
	Minute *int `json:"minute"`
}

// RawEvent is a match event (goal, card, ...). Recent events carry the
// minute they occurred at, which serves as a last-resort clock source.
type RawEvent struct {
	Type   string `json:"type"`
	Minute *int   `json:"minute"`
}

// RawScore is the nested score shape ("2-1" style feeds are normalized by
// the provider client before they reach the core).
type RawScore struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// RawParticipant is a structured participant entry with a home/away marker.
type RawParticipant struct {
	Name     string `json:"name"`
	Location string `json:"location"` // "home" or "away"
}

// RawTeam is the generic positional team shape (index 0 = home).
type RawTeam struct {
	Name string `json:"name"`
}

// RawStats carries whatever in-play statistics the feed exposes. Fields may
// be zero when the provider omits them.
type RawStats struct {
	ShotsHome   int `json:"shots_home"`
	ShotsAway   int `json:"shots_away"`
	CornersHome int `json:"corners_home"`
	CornersAway int `json:"corners_away"`
	FoulsHome   int `json:"fouls_home"`
	FoulsAway   int `json:"fouls_away"`
}

// Key returns the canonical match identifier: the string id when present,
// otherwise the numeric id rendered as a string.
func (r RawMatch) Key() string {
	if r.MatchID != "" {
		return r.MatchID
	}
	return r.ID.String()
}
