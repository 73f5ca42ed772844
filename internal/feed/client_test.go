package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/matchpulse/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:           srv.URL,
		APIKey:            "test-token",
		RequestsPerSecond: 1000,
	}, slog.Default())
}

func TestFetchLive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/events/inplay", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		w.Write([]byte(`{"success":1,"results":[
			{"id":"101","league_id":94,"minute":37,"status":"1"},
			{"id":"102","league_id":851,"timer":{"tm":58}}
		]}`))
	})

	matches, err := c.FetchLive(context.Background())
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "101", matches[0].Key())
	require.NotNil(t, matches[0].Minute)
	assert.Equal(t, 37, *matches[0].Minute)
	require.NotNil(t, matches[1].Timer)
	assert.Equal(t, 58, *matches[1].Timer.TM)
}

func TestFetchLivePassesLeagueFilter(t *testing.T) {
	var gotLeagues string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLeagues = r.URL.Query().Get("league_id")
		w.Write([]byte(`{"success":1,"results":[]}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{
		BaseURL:           srv.URL,
		APIKey:            "k",
		Leagues:           []string{"94", "851"},
		RequestsPerSecond: 1000,
	}, slog.Default())

	_, err := c.FetchLive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "94,851", gotLeagues)
}

func TestFetchLiveProviderFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":0,"results":null}`))
	})

	_, err := c.FetchLive(context.Background())
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
}

func TestFetchLiveHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.FetchLive(context.Background())
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
}

func TestFetchDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/event/view", r.URL.Path)
		assert.Equal(t, "f1", r.URL.Query().Get("event_id"))
		w.Write([]byte(`{"success":1,"results":[{"id":"f1","minute":63}]}`))
	})

	raw, err := c.FetchDetail(context.Background(), "f1")
	require.NoError(t, err)
	require.NotNil(t, raw.Minute)
	assert.Equal(t, 63, *raw.Minute)
}

func TestFetchDetailNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":1,"results":[]}`))
	})

	_, err := c.FetchDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type slowFetcher struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *slowFetcher) FetchDetail(ctx context.Context, matchID string) (*domain.RawMatch, error) {
	s.calls.Add(1)
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		prev := s.maxSeen.Load()
		if cur <= prev || s.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	m := 50
	return &domain.RawMatch{MatchID: matchID, Minute: &m}, nil
}

func TestBoundedDetailFetcherLimitsConcurrency(t *testing.T) {
	inner := &slowFetcher{}
	b := NewBoundedDetailFetcher(inner, 2, time.Second)

	done := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			_, err := b.FetchDetail(context.Background(), "m")
			done <- err
		}()
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, <-done)
	}

	assert.Equal(t, int32(6), inner.calls.Load())
	assert.LessOrEqual(t, inner.maxSeen.Load(), int32(2))
}

func TestBoundedDetailFetcherRespectsCancellation(t *testing.T) {
	inner := &slowFetcher{}
	b := NewBoundedDetailFetcher(inner, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.FetchDetail(ctx, "m")
	assert.True(t, errors.Is(err, context.Canceled))
}
