package trend

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchTrendsDisabledWithoutBaseURL(t *testing.T) {
	c := NewClient(Options{}, slog.Default())
	trends, err := c.FetchTrends(context.Background(), "Arsenal", "Spurs")
	assert.NoError(t, err)
	assert.Nil(t, trends)
}

func TestFetchTrendsCachesPairings(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"btts_rate":0.65,"over_rate":0.7,"reliability":0.8}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL, CacheTTL: time.Hour}, slog.Default())

	first, err := c.FetchTrends(context.Background(), "Arsenal", "Spurs")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.InDelta(t, 0.65, first.BTTSRate, 1e-9)

	second, err := c.FetchTrends(context.Background(), "arsenal", "spurs")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load(), "case-insensitive pairing served from cache")
}

func TestFetchTrendsFailureDegradesToNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL}, slog.Default())
	trends, err := c.FetchTrends(context.Background(), "A", "B")
	assert.NoError(t, err, "trend failures never surface as errors")
	assert.Nil(t, trends)
}

func TestFetchTrendsNotFoundCachesNil(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL, CacheTTL: time.Hour}, slog.Default())

	trends, err := c.FetchTrends(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Nil(t, trends)

	_, _ = c.FetchTrends(context.Background(), "A", "B")
	assert.Equal(t, int32(1), hits.Load(), "known-empty pairing is not re-fetched")
}

func TestSweepExpiresCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"over_rate":0.6}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL, CacheTTL: time.Minute}, slog.Default())
	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.FetchTrends(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Zero(t, c.Sweep())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, c.Sweep())
}
