package feed

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// BoundedDetailFetcher wraps a FixtureDetailFetcher with a concurrency bound
// and per-call timeout. The clock normalizer may request a detail fetch for
// every stale match in a tick; this keeps those lookups from piling onto the
// provider.
type BoundedDetailFetcher struct {
	inner   domain.FixtureDetailFetcher
	sem     *semaphore.Weighted
	timeout time.Duration
}

var _ domain.FixtureDetailFetcher = (*BoundedDetailFetcher)(nil)

// NewBoundedDetailFetcher wraps inner with at most maxConcurrent in-flight
// calls, each bounded by timeout.
func NewBoundedDetailFetcher(inner domain.FixtureDetailFetcher, maxConcurrent int64, timeout time.Duration) *BoundedDetailFetcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &BoundedDetailFetcher{
		inner:   inner,
		sem:     semaphore.NewWeighted(maxConcurrent),
		timeout: timeout,
	}
}

// FetchDetail acquires a slot and delegates under a deadline. A slot that
// cannot be acquired before ctx expires reports the ctx error; the caller
// treats any error as "no improvement".
func (b *BoundedDetailFetcher) FetchDetail(ctx context.Context, matchID string) (*domain.RawMatch, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.FetchDetail(callCtx, matchID)
}
