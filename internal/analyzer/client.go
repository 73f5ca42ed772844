// Package analyzer adapts the external heuristic market-analysis service.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// Options configures the analyzer client.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Client posts normalized match context to the analysis service and maps its
// verdicts onto domain analyses. The engine treats the analyzer as an oracle:
// scores are consumed as-is and never recomputed locally.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.MarketAnalyzer = (*Client)(nil)

// NewClient creates an analyzer client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "analyzer_client")),
	}
}

// analyzeRequest is the wire shape posted to the analysis service.
type analyzeRequest struct {
	MatchID   string             `json:"match_id"`
	LeagueID  int                `json:"league_id"`
	HomeTeam  string             `json:"home_team"`
	AwayTeam  string             `json:"away_team"`
	Minute    int                `json:"minute"`
	HomeScore int                `json:"home_score"`
	AwayScore int                `json:"away_score"`
	Shots     int                `json:"shots"`
	Corners   int                `json:"corners"`
	Fouls     int                `json:"fouls"`
	Trends    *domain.TeamTrends `json:"trends,omitempty"`
}

// analyzeVerdict is one market verdict in the service response.
type analyzeVerdict struct {
	Market      string             `json:"market"`
	Selection   string             `json:"selection"`
	Confidence  float64            `json:"confidence"`
	Reasoning   string             `json:"reasoning"`
	LiquidityOK bool               `json:"liquidity_ok"`
	Data        map[string]float64 `json:"data"`
}

// Analyze scores every market the service covers for one match.
func (c *Client) Analyze(ctx context.Context, match domain.MatchContext, trends *domain.TeamTrends) ([]domain.MarketAnalysis, error) {
	payload, err := json.Marshal(analyzeRequest{
		MatchID:   match.MatchID,
		LeagueID:  match.LeagueID,
		HomeTeam:  match.HomeTeam,
		AwayTeam:  match.AwayTeam,
		Minute:    match.Minute,
		HomeScore: match.HomeScore,
		AwayScore: match.AwayScore,
		Shots:     match.Stats.Shots,
		Corners:   match.Stats.Corners,
		Fouls:     match.Stats.Fouls,
		Trends:    trends,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer: analyze %s: %w", match.MatchID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("analyzer: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer: analyze %s: status %d", match.MatchID, resp.StatusCode)
	}

	var verdicts []analyzeVerdict
	if err := json.Unmarshal(body, &verdicts); err != nil {
		return nil, fmt.Errorf("analyzer: decode response: %w", err)
	}

	out := make([]domain.MarketAnalysis, 0, len(verdicts))
	for _, v := range verdicts {
		if v.Market == "" {
			continue
		}
		out = append(out, domain.MarketAnalysis{
			Market:      v.Market,
			Selection:   v.Selection,
			Confidence:  v.Confidence,
			Reasoning:   v.Reasoning,
			LiquidityOK: v.LiquidityOK,
			Data:        v.Data,
		})
	}
	return out, nil
}
