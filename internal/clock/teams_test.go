package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matchpulse/matchpulse/internal/domain"
)

func TestExtractTeams(t *testing.T) {
	tests := []struct {
		name     string
		raw      domain.RawMatch
		wantHome string
		wantAway string
	}{
		{
			name: "participants with markers",
			raw: domain.RawMatch{Participants: []domain.RawParticipant{
				{Name: "Arsenal", Location: "home"},
				{Name: "Spurs", Location: "away"},
			}},
			wantHome: "Arsenal",
			wantAway: "Spurs",
		},
		{
			name:     "legacy dual fields",
			raw:      domain.RawMatch{HomeName: "Betis", AwayName: "Sevilla"},
			wantHome: "Betis",
			wantAway: "Sevilla",
		},
		{
			name: "generic list by position",
			raw: domain.RawMatch{Teams: []domain.RawTeam{
				{Name: "Lyon"}, {Name: "Marseille"},
			}},
			wantHome: "Lyon",
			wantAway: "Marseille",
		},
		{
			name: "participants take precedence over legacy",
			raw: domain.RawMatch{
				Participants: []domain.RawParticipant{
					{Name: "Porto", Location: "home"},
					{Name: "Benfica", Location: "away"},
				},
				HomeName: "Wrong",
				AwayName: "Wrong",
			},
			wantHome: "Porto",
			wantAway: "Benfica",
		},
		{
			name: "partial participants fill from legacy",
			raw: domain.RawMatch{
				Participants: []domain.RawParticipant{{Name: "Ajax", Location: "home"}},
				AwayName:     "PSV",
			},
			wantHome: "Ajax",
			wantAway: "PSV",
		},
		{
			name:     "placeholder from match id",
			raw:      domain.RawMatch{MatchID: "f123"},
			wantHome: "Home f123",
			wantAway: "Away f123",
		},
		{
			name:     "unknown when nothing at all",
			raw:      domain.RawMatch{},
			wantHome: UnknownTeam,
			wantAway: UnknownTeam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home, away := ExtractTeams(tt.raw)
			assert.Equal(t, tt.wantHome, home)
			assert.Equal(t, tt.wantAway, away)
		})
	}
}
