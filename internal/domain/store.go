package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LockStore is the durable mirror of the in-memory ledger. The ledger remains
// authoritative during operation; the store exists for restart hydration and
// audit. Writes happen inside the per-operation atomicity boundary, so a
// failed Put rolls the whole operation back.
type LockStore interface {
	// Put inserts or fully replaces the record for its claim identifier.
	Put(ctx context.Context, pos LockedPosition) error
	Delete(ctx context.Context, id ClaimID) error
	Get(ctx context.Context, id ClaimID) (LockedPosition, error)
	// LoadAll returns every persisted record, used at startup.
	LoadAll(ctx context.Context) ([]LockedPosition, error)
}

// EventStore persists the append-only event log.
type EventStore interface {
	Append(ctx context.Context, evt Event) error
	List(ctx context.Context, opts ListOpts) ([]Event, error)
	// ListBefore returns events created strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]Event, error)
}
