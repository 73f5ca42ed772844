package clock

import (
	"fmt"
	"strings"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// UnknownTeam is the sentinel used when no team name can be recovered at all.
const UnknownTeam = "Unknown"

// ExtractTeams recovers home and away team names from the raw payload,
// walking the same kind of multi-shape fallback chain as the clock: a
// structured participant list with home/away markers, the legacy dual-field
// shape, a generic positional list, and finally a placeholder derived from
// the match id.
func ExtractTeams(raw domain.RawMatch) (home, away string) {
	for _, p := range raw.Participants {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		switch strings.ToLower(p.Location) {
		case "home":
			if home == "" {
				home = name
			}
		case "away":
			if away == "" {
				away = name
			}
		}
	}
	if home != "" && away != "" {
		return home, away
	}

	if home == "" {
		home = strings.TrimSpace(raw.HomeName)
	}
	if away == "" {
		away = strings.TrimSpace(raw.AwayName)
	}
	if home != "" && away != "" {
		return home, away
	}

	if home == "" && len(raw.Teams) > 0 {
		home = strings.TrimSpace(raw.Teams[0].Name)
	}
	if away == "" && len(raw.Teams) > 1 {
		away = strings.TrimSpace(raw.Teams[1].Name)
	}

	if home == "" {
		home = placeholderName("Home", raw.Key())
	}
	if away == "" {
		away = placeholderName("Away", raw.Key())
	}
	return home, away
}

func placeholderName(side, matchID string) string {
	if matchID == "" {
		return UnknownTeam
	}
	return fmt.Sprintf("%s %s", side, matchID)
}

// NormalizeStatus upper-cases and trims a provider status for comparison.
func NormalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}
