package pipeline

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

type fakeBlobArchiver struct {
	cutoff   time.Time
	archived int
	err      error
	calls    int
}

func (f *fakeBlobArchiver) ArchiveBefore(_ context.Context, cutoff time.Time) (int, error) {
	f.calls++
	f.cutoff = cutoff
	return f.archived, f.err
}

type fakeLocks struct {
	err      error
	acquired int
	released int
}

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func() { f.released++ }, nil
}

func TestArchiverRunUsesRetentionCutoff(t *testing.T) {
	blob := &fakeBlobArchiver{archived: 12}
	a := NewArchiver(blob, nil, 90, slog.Default())

	require.NoError(t, a.Run(context.Background()))
	require.Equal(t, 1, blob.calls)

	wantCutoff := time.Now().UTC().Add(-90 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, blob.cutoff, 5*time.Second)
}

func TestArchiverRunAcquiresAndReleasesLock(t *testing.T) {
	blob := &fakeBlobArchiver{}
	locks := &fakeLocks{}
	a := NewArchiver(blob, locks, 30, slog.Default())

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, 1, locks.acquired)
	assert.Equal(t, 1, locks.released)
	assert.Equal(t, 1, blob.calls)
}

func TestArchiverSkipsPassWhenLockHeld(t *testing.T) {
	blob := &fakeBlobArchiver{}
	locks := &fakeLocks{err: domain.ErrLockHeld}
	a := NewArchiver(blob, locks, 30, slog.Default())

	require.NoError(t, a.Run(context.Background()))
	assert.Zero(t, blob.calls)
}

func TestArchiverSurfacesLockErrors(t *testing.T) {
	lockErr := errors.New("redis down")
	a := NewArchiver(&fakeBlobArchiver{}, &fakeLocks{err: lockErr}, 30, slog.Default())

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lockErr)
}

func TestArchiverSurfacesArchiveErrors(t *testing.T) {
	blob := &fakeBlobArchiver{err: errors.New("bucket unavailable")}
	a := NewArchiver(blob, nil, 30, slog.Default())

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
}
