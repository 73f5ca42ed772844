package domain

import "context"

// SnapshotCache stores the latest broadcast snapshot so newly connecting
// clients can be served without waiting for the next tick.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snap SignalSnapshot) error
	GetSnapshot(ctx context.Context) (SignalSnapshot, error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out plus durable streams for signal
// broadcast. The core only publishes; transport concerns live downstream.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
