// Package feed implements the polled live-score provider client.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// Options configures the provider client.
type Options struct {
	BaseURL string
	APIKey  string
	// Leagues restricts FetchLive to the listed league IDs; empty means all.
	Leagues           []string
	RequestsPerSecond float64
	RequestTimeout    time.Duration
}

// Client is the REST client for the live-score provider. All calls share one
// token-bucket limiter so burst polling cannot exhaust the provider quota.
type Client struct {
	baseURL    string
	apiKey     string
	leagues    []string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var (
	_ domain.MatchFeed            = (*Client)(nil)
	_ domain.FixtureDetailFetcher = (*Client)(nil)
)

// NewClient creates a provider client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		leagues:    opts.Leagues,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger.With(slog.String("component", "provider_feed")),
	}
}

// liveResponse is the provider's list envelope.
type liveResponse struct {
	Success int               `json:"success"`
	Results []domain.RawMatch `json:"results"`
}

// detailResponse is the provider's single-fixture envelope.
type detailResponse struct {
	Success int               `json:"success"`
	Results []domain.RawMatch `json:"results"`
}

// FetchLive returns the current in-play matches, filtered to the configured
// league allow-list.
func (c *Client) FetchLive(ctx context.Context) ([]domain.RawMatch, error) {
	params := url.Values{}
	params.Set("token", c.apiKey)
	if len(c.leagues) > 0 {
		params.Set("league_id", strings.Join(c.leagues, ","))
	}

	body, err := c.doGet(ctx, "/v1/events/inplay?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("feed: fetch live: %w", err)
	}

	var resp liveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("feed: decode live: %w", err)
	}
	if resp.Success != 1 {
		return nil, fmt.Errorf("feed: fetch live: %w", domain.ErrFeedUnavailable)
	}
	return resp.Results, nil
}

// FetchDetail returns the richer single-fixture payload, or ErrNotFound when
// the provider has nothing for the id.
func (c *Client) FetchDetail(ctx context.Context, matchID string) (*domain.RawMatch, error) {
	params := url.Values{}
	params.Set("token", c.apiKey)
	params.Set("event_id", matchID)

	body, err := c.doGet(ctx, "/v1/event/view?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("feed: fetch detail %s: %w", matchID, err)
	}

	var resp detailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("feed: decode detail %s: %w", matchID, err)
	}
	if resp.Success != 1 || len(resp.Results) == 0 {
		return nil, fmt.Errorf("feed: detail %s: %w", matchID, domain.ErrNotFound)
	}
	return &resp.Results[0], nil
}

// doGet executes one rate-limited GET and returns the response body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("provider returned non-200",
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrFeedUnavailable)
	}
	return body, nil
}
