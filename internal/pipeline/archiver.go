package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// archiveLockKey guards archive passes across replicas.
const archiveLockKey = "archive"

// LockAcquirer grants exclusive, TTL-bounded ownership of a named resource.
type LockAcquirer interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Archiver ships aged-out signal history from the database to cold storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	locks         LockAcquirer // optional
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver. locks may be nil for single-instance
// deployments.
func NewArchiver(blobArchiver domain.Archiver, locks LockAcquirer, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		locks:         locks,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive pass over records older than the retention
// window. When another replica holds the archive lock the pass is skipped.
func (a *Archiver) Run(ctx context.Context) error {
	if a.locks != nil {
		unlock, err := a.locks.Acquire(ctx, archiveLockKey, 30*time.Minute)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.Info("archive pass skipped, lock held elsewhere")
				return nil
			}
			return fmt.Errorf("acquiring archive lock: %w", err)
		}
		defer unlock()
	}

	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	archived, err := a.blobArchiver.ArchiveBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving signals before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete", slog.Int("signals_archived", archived))
	return nil
}

// RunLoop runs the archiver on a fixed interval until ctx is cancelled. A
// failed pass is logged and retried on the next interval.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
