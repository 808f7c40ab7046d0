// Package memory provides in-process implementations of the persistence
// interfaces for development mode and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/veloralabs/liqlock/internal/domain"
)

// LockStore implements domain.LockStore in process memory.
type LockStore struct {
	mu        sync.RWMutex
	positions map[domain.ClaimID]domain.LockedPosition
}

// NewLockStore returns an empty LockStore.
func NewLockStore() *LockStore {
	return &LockStore{positions: make(map[domain.ClaimID]domain.LockedPosition)}
}

// Put inserts or fully replaces the record for its claim identifier.
func (s *LockStore) Put(_ context.Context, pos domain.LockedPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.ClaimID] = pos.Clone()
	return nil
}

// Delete removes the record for the claim identifier.
func (s *LockStore) Delete(_ context.Context, id domain.ClaimID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[id]; !ok {
		return fmt.Errorf("memory: locked position %d: %w", id, domain.ErrNotFound)
	}
	delete(s.positions, id)
	return nil
}

// Get returns the record for the claim identifier.
func (s *LockStore) Get(_ context.Context, id domain.ClaimID) (domain.LockedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[id]
	if !ok {
		return domain.LockedPosition{}, fmt.Errorf("memory: locked position %d: %w", id, domain.ErrNotFound)
	}
	return pos.Clone(), nil
}

// LoadAll returns every record ordered by claim identifier.
func (s *LockStore) LoadAll(_ context.Context) ([]domain.LockedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]domain.LockedPosition, 0, len(s.positions))
	for _, pos := range s.positions {
		positions = append(positions, pos.Clone())
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].ClaimID < positions[j].ClaimID
	})
	return positions, nil
}

// EventStore implements domain.EventStore in process memory.
type EventStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewEventStore returns an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Append adds an event to the log.
func (s *EventStore) Append(_ context.Context, evt domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

// List returns events with pagination and optional time filtering, newest
// first.
func (s *EventStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]domain.Event, 0, len(s.events))
	for _, evt := range s.events {
		if opts.Since != nil && evt.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && evt.CreatedAt.After(*opts.Until) {
			continue
		}
		filtered = append(filtered, evt)
	}

	// Newest first.
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(filtered) {
			return nil, nil
		}
		filtered = filtered[opts.Offset:]
	}
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}

// ListBefore returns events created strictly before the cutoff, oldest first.
func (s *EventStore) ListBefore(_ context.Context, before time.Time) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Event
	for _, evt := range s.events {
		if evt.CreatedAt.Before(before) {
			out = append(out, evt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

var (
	_ domain.LockStore  = (*LockStore)(nil)
	_ domain.EventStore = (*EventStore)(nil)
)
