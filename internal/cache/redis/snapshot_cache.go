package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// snapshotKey is where the latest broadcast snapshot lives. A TTL slightly
// above the tick interval keeps a dead pipeline from serving stale state
// forever.
const (
	snapshotKey = "signals:snapshot"
	snapshotTTL = 2 * time.Minute
)

// SnapshotCache implements domain.SnapshotCache as a single JSON value.
type SnapshotCache struct {
	rdb *redis.Client
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

// SetSnapshot overwrites the stored snapshot.
func (sc *SnapshotCache) SetSnapshot(ctx context.Context, snap domain.SignalSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: encode snapshot: %w", err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey, payload, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot, or domain.ErrNotFound when none
// exists or it has aged out.
func (sc *SnapshotCache) GetSnapshot(ctx context.Context) (domain.SignalSnapshot, error) {
	payload, err := sc.rdb.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SignalSnapshot{}, domain.ErrNotFound
		}
		return domain.SignalSnapshot{}, fmt.Errorf("redis: get snapshot: %w", err)
	}

	var snap domain.SignalSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.SignalSnapshot{}, fmt.Errorf("redis: decode snapshot: %w", err)
	}
	return snap, nil
}
