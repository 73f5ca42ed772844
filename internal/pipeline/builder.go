// Package pipeline drives the evaluation loop: poll the feed, normalize each
// match, score markets, run the confidence agent, and advance the signal
// lifecycle.
package pipeline

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/matchpulse/matchpulse/internal/clock"
	"github.com/matchpulse/matchpulse/internal/domain"
)

// ContextBuilder turns raw feed payloads into normalized match contexts.
type ContextBuilder struct {
	normalizer *clock.Normalizer
	// leagues is the allow-list of league IDs; empty admits everything. The
	// provider filter is best-effort, so the builder enforces it again.
	leagues map[int]bool
	logger  *slog.Logger
}

// NewContextBuilder creates a builder over the given normalizer.
func NewContextBuilder(normalizer *clock.Normalizer, leagues []string, logger *slog.Logger) *ContextBuilder {
	allow := make(map[int]bool, len(leagues))
	for _, l := range leagues {
		if id, err := strconv.Atoi(l); err == nil {
			allow[id] = true
		}
	}
	return &ContextBuilder{
		normalizer: normalizer,
		leagues:    allow,
		logger:     logger.With(slog.String("component", "context_builder")),
	}
}

// Build converts one tick's raw matches into match contexts, dropping entries
// that are out of the league allow-list, finished, or unidentifiable.
func (b *ContextBuilder) Build(ctx context.Context, raws []domain.RawMatch) []domain.MatchContext {
	out := make([]domain.MatchContext, 0, len(raws))
	for i := range raws {
		raw := raws[i]
		matchID := raw.Key()
		if matchID == "" {
			b.logger.Debug("dropping payload without id")
			continue
		}
		if len(b.leagues) > 0 && !b.leagues[raw.LeagueID] {
			continue
		}
		if !clock.LiveLikeStatus(raw.Status) {
			continue
		}

		home, away := clock.ExtractTeams(raw)
		homeScore, awayScore := extractScore(raw)

		mc := domain.MatchContext{
			MatchID:   matchID,
			LeagueID:  raw.LeagueID,
			HomeTeam:  home,
			AwayTeam:  away,
			Minute:    b.normalizer.Normalize(ctx, raw),
			HomeScore: homeScore,
			AwayScore: awayScore,
			Status:    clock.NormalizeStatus(raw.Status),
			RawTime:   rawTimeDebug(raw),
		}
		if raw.Stats != nil {
			mc.Stats = domain.MatchStats{
				Shots:   raw.Stats.ShotsHome + raw.Stats.ShotsAway,
				Corners: raw.Stats.CornersHome + raw.Stats.CornersAway,
				Fouls:   raw.Stats.FoulsHome + raw.Stats.FoulsAway,
			}
		}
		out = append(out, mc)
	}
	return out
}

// extractScore walks the known score shapes: explicit fields first, then the
// nested object.
func extractScore(raw domain.RawMatch) (home, away int) {
	if raw.HomeScore != nil || raw.AwayScore != nil {
		if raw.HomeScore != nil {
			home = *raw.HomeScore
		}
		if raw.AwayScore != nil {
			away = *raw.AwayScore
		}
		return home, away
	}
	if raw.Score != nil {
		return raw.Score.Home, raw.Score.Away
	}
	return 0, 0
}

// rawTimeDebug renders whichever clock field the payload carried, for logs
// and stored records only.
func rawTimeDebug(raw domain.RawMatch) string {
	switch {
	case raw.Minute != nil:
		return strconv.Itoa(*raw.Minute)
	case raw.TimerMinute != nil:
		return strconv.Itoa(*raw.TimerMinute)
	case raw.Timer != nil && raw.Timer.TM != nil:
		return strconv.Itoa(*raw.Timer.TM)
	case raw.Time != nil && raw.Time.Minute != nil:
		return strconv.Itoa(*raw.Time.Minute)
	default:
		return ""
	}
}
