// Package redis carries the engine's broadcast plumbing: the snapshot cache
// serving API reads, the signal bus fanning snapshots out over pub/sub and
// streams, and the lock manager coordinating archive passes across replicas.
// All of it shares one go-redis client.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the shared Redis client.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
	// PoolSize sizes the connection pool; every tick touches Redis several
	// times (snapshot write, publish, stream append) plus one subscription
	// per ws hub channel.
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client wraps the go-redis client the snapshot cache, signal bus, and lock
// manager are built over.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and verifies connectivity with a ping. The engine
// treats Redis as mandatory in every mode, so a failed ping fails startup.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping checks connectivity; the health endpoint reports it per dependency.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying hands the raw driver to the cache, bus, and lock constructors
// in this package.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
