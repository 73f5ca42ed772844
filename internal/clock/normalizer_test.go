package clock

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/matchpulse/internal/domain"
)

func intPtr(v int) *int { return &v }

func testNormalizer(cfg Config) (*Normalizer, *time.Time) {
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	n := NewNormalizer(cfg, nil, slog.Default())
	n.now = func() time.Time { return now }
	return n, &now
}

func rawWithMinute(id string, minute int) domain.RawMatch {
	return domain.RawMatch{MatchID: id, Minute: intPtr(minute), Status: "LIVE"}
}

func TestNormalizeMonotonic(t *testing.T) {
	n, now := testNormalizer(DefaultConfig())
	ctx := context.Background()

	require.Equal(t, 30, n.Normalize(ctx, rawWithMinute("m1", 30)))

	// Feed drops to zero; cache keeps the clock where it was.
	*now = now.Add(20 * time.Second)
	assert.Equal(t, 30, n.Normalize(ctx, domain.RawMatch{MatchID: "m1", Status: "LIVE"}))

	// Feed recovers but regresses; the guard holds the previous value.
	*now = now.Add(10 * time.Second)
	assert.Equal(t, 30, n.Normalize(ctx, rawWithMinute("m1", 28)))

	// Normal progress resumes.
	*now = now.Add(30 * time.Second)
	assert.Equal(t, 31, n.Normalize(ctx, rawWithMinute("m1", 31)))
}

func TestNormalizeStaleInflation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StalenessThreshold = 30 * time.Second
	n, now := testNormalizer(cfg)
	ctx := context.Background()

	start := *now
	require.Equal(t, 27, n.Normalize(ctx, rawWithMinute("m1", 27)))

	seq := []int{27}
	for _, offset := range []time.Duration{33 * time.Second, 63 * time.Second, 93 * time.Second} {
		*now = start.Add(offset)
		seq = append(seq, n.Normalize(ctx, rawWithMinute("m1", 27)))
	}

	for i := 1; i < len(seq); i++ {
		assert.GreaterOrEqual(t, seq[i], seq[i-1], "minute must never decrease")
	}
	// 93s after the last genuine increase the clock must have moved past 27.
	assert.Greater(t, seq[3], 27)
}

func TestNormalizeCap(t *testing.T) {
	n, now := testNormalizer(DefaultConfig())
	ctx := context.Background()

	require.Equal(t, 130, n.Normalize(ctx, rawWithMinute("m1", 500)))

	// Extrapolation can never push past the cap either.
	*now = now.Add(80 * time.Second)
	assert.Equal(t, 130, n.Normalize(ctx, domain.RawMatch{MatchID: "m1", Status: "LIVE"}))
}

func TestNormalizeCacheTTLExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheTTL = 90 * time.Second
	n, now := testNormalizer(cfg)
	ctx := context.Background()

	require.Equal(t, 40, n.Normalize(ctx, rawWithMinute("m1", 40)))

	// Within the TTL the cache extrapolates past a zero raw value. The
	// override guard then remembers the inflated value even after the cache
	// itself ages out.
	*now = now.Add(70 * time.Second)
	assert.Equal(t, 41, n.Normalize(ctx, domain.RawMatch{MatchID: "m1", Status: "LIVE"}))
}

func TestNormalizeIndependentMatches(t *testing.T) {
	n, _ := testNormalizer(DefaultConfig())
	ctx := context.Background()

	assert.Equal(t, 10, n.Normalize(ctx, rawWithMinute("m1", 10)))
	assert.Equal(t, 75, n.Normalize(ctx, rawWithMinute("m2", 75)))
	assert.Equal(t, 2, n.Tracked())
}

func TestExtractMinutePriorityChain(t *testing.T) {
	now := time.Date(2026, 3, 14, 19, 45, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  domain.RawMatch
		want int
	}{
		{"explicit minute wins", domain.RawMatch{Minute: intPtr(12), Time: &domain.RawClock{Minute: intPtr(40)}}, 12},
		{"timer minute field", domain.RawMatch{TimerMinute: intPtr(33)}, 33},
		{"nested time object", domain.RawMatch{Time: &domain.RawClock{Minute: intPtr(55)}}, 55},
		{"nested timer tm variant", domain.RawMatch{Timer: &domain.RawClock{TM: intPtr(61)}}, 61},
		{"first period", domain.RawMatch{Periods: []domain.RawPeriod{{Number: 1, Minute: intPtr(38)}}}, 38},
		{"most recent event", domain.RawMatch{Events: []domain.RawEvent{
			{Type: "goal", Minute: intPtr(14)},
			{Type: "card", Minute: intPtr(52)},
		}}, 52},
		{"kickoff estimate while live", domain.RawMatch{
			KickoffTS: now.Add(-47 * time.Minute).Unix(),
			Status:    "LIVE",
		}, 47},
		{"kickoff estimate with missing status", domain.RawMatch{
			KickoffTS: now.Add(-20 * time.Minute).Unix(),
		}, 20},
		{"kickoff ignored when finished", domain.RawMatch{
			KickoffTS: now.Add(-47 * time.Minute).Unix(),
			Status:    "FT",
		}, 0},
		{"nothing usable", domain.RawMatch{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMinute(tt.raw, now))
		})
	}
}

type fakeDetailFetcher struct {
	minute int
	err    error
	calls  int
}

func (f *fakeDetailFetcher) FetchDetail(_ context.Context, _ string) (*domain.RawMatch, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RawMatch{Minute: &f.minute, Status: "LIVE"}, nil
}

func TestFixtureFallbackOnStaleness(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StalenessThreshold = 30 * time.Second
	cfg.FallbackEnabled = true

	fetcher := &fakeDetailFetcher{minute: 35}
	n := NewNormalizer(cfg, fetcher, slog.Default())
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }
	ctx := context.Background()

	require.Equal(t, 27, n.Normalize(ctx, rawWithMinute("m1", 27)))
	require.Zero(t, fetcher.calls)

	now = now.Add(45 * time.Second)
	assert.Equal(t, 35, n.Normalize(ctx, rawWithMinute("m1", 27)))
	assert.Equal(t, 1, fetcher.calls)
}

func TestFixtureFallbackFailureFallsThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StalenessThreshold = 30 * time.Second
	cfg.FallbackEnabled = true

	fetcher := &fakeDetailFetcher{err: errors.New("upstream 503")}
	n := NewNormalizer(cfg, fetcher, slog.Default())
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }
	ctx := context.Background()

	require.Equal(t, 27, n.Normalize(ctx, rawWithMinute("m1", 27)))

	now = now.Add(70 * time.Second)
	got := n.Normalize(ctx, rawWithMinute("m1", 27))
	assert.GreaterOrEqual(t, got, 27)
	assert.Equal(t, 1, fetcher.calls)
}

func TestSweepEvictsIdleStates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleEviction = time.Hour
	n, now := testNormalizer(cfg)
	ctx := context.Background()

	n.Normalize(ctx, rawWithMinute("m1", 10))
	*now = now.Add(30 * time.Minute)
	n.Normalize(ctx, rawWithMinute("m2", 20))
	require.Equal(t, 2, n.Tracked())

	*now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, n.Sweep())
	assert.Equal(t, 1, n.Tracked())
}
