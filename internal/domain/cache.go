package domain

import (
	"context"
	"time"
)

// ClaimCache is a read-through cache in front of the ledger's reverse index,
// keyed by underlying position identifier.
type ClaimCache interface {
	SetClaim(ctx context.Context, pos PositionID, claim ClaimID) error
	// GetClaim fails with ErrNotFound on a cache miss.
	GetClaim(ctx context.Context, pos PositionID) (ClaimID, error)
	InvalidateClaim(ctx context.Context, pos PositionID) error
}

// StreamMessage is a single durable message read from the signal bus.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides ephemeral pub/sub plus durable ordered streams for the
// event log's observable feed.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter enforces a sliding-window request budget per key.
type RateLimiter interface {
	// Allow reports whether another request fits inside the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager hands out distributed mutual-exclusion locks. Acquire returns
// ErrLockHeld when the lock is already taken.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
