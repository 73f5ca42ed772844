// Package trend implements the historical team-trends client. Trend data is
// strictly advisory: every failure path degrades to "no data" so a flaky
// trends service can never block signal evaluation.
package trend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// Options configures the trends client.
type Options struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	// CacheTTL is how long a fetched pairing stays served from memory.
	// Pairings change slowly; re-fetching every tick would be wasteful.
	CacheTTL time.Duration
}

// Client fetches team-pairing trend statistics with an in-process TTL cache.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cacheTTL   time.Duration
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedTrends

	now func() time.Time
}

var _ domain.TrendProvider = (*Client)(nil)

type cachedTrends struct {
	trends    *domain.TeamTrends
	fetchedAt time.Time
}

// NewClient creates a trends client. An empty base URL produces a client
// whose lookups always return no data.
func NewClient(opts Options, logger *slog.Logger) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		cacheTTL:   ttl,
		logger:     logger.With(slog.String("component", "trend_client")),
		cache:      make(map[string]cachedTrends),
		now:        time.Now,
	}
}

// FetchTrends returns trend data for a pairing, nil when the service is
// disabled, has nothing, or fails.
func (c *Client) FetchTrends(ctx context.Context, homeTeam, awayTeam string) (*domain.TeamTrends, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	key := pairKey(homeTeam, awayTeam)
	now := c.now()

	c.mu.Lock()
	if entry, ok := c.cache[key]; ok && now.Sub(entry.fetchedAt) < c.cacheTTL {
		c.mu.Unlock()
		return entry.trends, nil
	}
	c.mu.Unlock()

	trends, err := c.fetch(ctx, homeTeam, awayTeam)
	if err != nil {
		c.logger.Warn("trend lookup failed, proceeding without",
			slog.String("home", homeTeam),
			slog.String("away", awayTeam),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	c.mu.Lock()
	c.cache[key] = cachedTrends{trends: trends, fetchedAt: now}
	c.mu.Unlock()
	return trends, nil
}

// Sweep drops cache entries past their TTL and returns the number removed.
func (c *Client) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, entry := range c.cache {
		if now.Sub(entry.fetchedAt) >= c.cacheTTL {
			delete(c.cache, k)
			removed++
		}
	}
	return removed
}

func (c *Client) fetch(ctx context.Context, homeTeam, awayTeam string) (*domain.TeamTrends, error) {
	params := url.Values{}
	params.Set("home", homeTeam)
	params.Set("away", awayTeam)
	if c.apiKey != "" {
		params.Set("token", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/trends?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trend: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var trends domain.TeamTrends
	if err := json.Unmarshal(body, &trends); err != nil {
		return nil, fmt.Errorf("trend: decode: %w", err)
	}
	return &trends, nil
}

func pairKey(home, away string) string {
	return strings.ToLower(home) + "|" + strings.ToLower(away)
}
