// Package ledger holds the authoritative in-memory state of the locked
// position ledger: the claim records, the reverse index from underlying
// position to claim, and the claim identifier sequence.
//
// Protocol invariant: services mutate the ledger BEFORE issuing any external
// collaborator call, and restore a snapshot taken at operation entry if the
// operation fails afterwards. Reentrant callbacks therefore always observe
// the in-progress state, while failed operations leave no observable effect.
package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/veloralabs/liqlock/internal/domain"
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu         sync.RWMutex
	records    map[domain.ClaimID]domain.LockedPosition
	byPosition map[domain.PositionID]domain.ClaimID
	seq        Sequence
}

// New creates an empty Ledger drawing claim identifiers from seq.
func New(seq Sequence) *Ledger {
	return &Ledger{
		records:    make(map[domain.ClaimID]domain.LockedPosition),
		byPosition: make(map[domain.PositionID]domain.ClaimID),
		seq:        seq,
	}
}

// Create assigns a fresh claim identifier to the record, stores it, and
// updates the reverse index. At most one live claim may exist per underlying
// position; a duplicate is a consistency failure.
func (l *Ledger) Create(pos domain.LockedPosition) (domain.ClaimID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.byPosition[pos.PositionID]; ok {
		return domain.NilClaimID, fmt.Errorf("ledger: underlying %d already locked under claim %d: %w",
			pos.PositionID, existing, domain.ErrAlreadyExists)
	}

	id := l.seq.Next()
	pos.ClaimID = id
	l.records[id] = pos.Clone()
	l.byPosition[pos.PositionID] = id
	return id, nil
}

// Get returns a copy of the record for the claim identifier.
func (l *Ledger) Get(id domain.ClaimID) (domain.LockedPosition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.records[id]
	if !ok {
		return domain.LockedPosition{}, fmt.Errorf("ledger: claim %d: %w", id, domain.ErrNotFound)
	}
	return pos.Clone(), nil
}

// RecordWithdrawal adds amount to the record's cumulative withdrawn total and
// returns the updated record. The caller must already have bounded amount via
// the vesting calculator; exceeding the initial amount here trips the
// defensive Overflow guard and leaves the record unchanged.
func (l *Ledger) RecordWithdrawal(id domain.ClaimID, amount *big.Int) (domain.LockedPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.records[id]
	if !ok {
		return domain.LockedPosition{}, fmt.Errorf("ledger: claim %d: %w", id, domain.ErrNotFound)
	}

	updated := new(big.Int).Add(pos.WithdrawnAmount, amount)
	if updated.Cmp(pos.InitialAmount) > 0 {
		return domain.LockedPosition{}, fmt.Errorf("ledger: claim %d withdrawal %s exceeds initial %s: %w",
			id, updated, pos.InitialAmount, domain.ErrOverflow)
	}

	pos.WithdrawnAmount = updated
	l.records[id] = pos
	return pos.Clone(), nil
}

// Remove deletes the record and its reverse-index entry. The claim identifier
// is never reused afterwards.
func (l *Ledger) Remove(id domain.ClaimID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.records[id]
	if !ok {
		return fmt.Errorf("ledger: claim %d: %w", id, domain.ErrNotFound)
	}

	delete(l.records, id)
	delete(l.byPosition, pos.PositionID)
	return nil
}

// ClaimForPosition resolves the reverse index.
func (l *Ledger) ClaimForPosition(pos domain.PositionID) (domain.ClaimID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byPosition[pos]
	if !ok {
		return domain.NilClaimID, fmt.Errorf("ledger: underlying %d: %w", pos, domain.ErrNotFound)
	}
	return id, nil
}

// Len reports the number of live claims.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Hydrate loads persisted records into an empty ledger and advances the
// sequence past the highest claim identifier seen, so restarts never recycle
// identifiers.
func (l *Ledger) Hydrate(records []domain.LockedPosition) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) != 0 {
		return fmt.Errorf("ledger: hydrate on non-empty ledger: %w", domain.ErrAlreadyExists)
	}

	var maxID domain.ClaimID
	for _, pos := range records {
		if _, ok := l.records[pos.ClaimID]; ok {
			return fmt.Errorf("ledger: duplicate claim %d in hydration set: %w", pos.ClaimID, domain.ErrAlreadyExists)
		}
		if _, ok := l.byPosition[pos.PositionID]; ok {
			return fmt.Errorf("ledger: duplicate underlying %d in hydration set: %w", pos.PositionID, domain.ErrAlreadyExists)
		}
		l.records[pos.ClaimID] = pos.Clone()
		l.byPosition[pos.PositionID] = pos.ClaimID
		if pos.ClaimID > maxID {
			maxID = pos.ClaimID
		}
	}
	l.seq.Advance(uint64(maxID))
	return nil
}

// Snapshot captures the full ledger state. The sequence is deliberately not
// captured: identifiers burned by a rolled-back operation stay burned.
type Snapshot struct {
	records    map[domain.ClaimID]domain.LockedPosition
	byPosition map[domain.PositionID]domain.ClaimID
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		records:    make(map[domain.ClaimID]domain.LockedPosition, len(l.records)),
		byPosition: make(map[domain.PositionID]domain.ClaimID, len(l.byPosition)),
	}
	for id, pos := range l.records {
		snap.records[id] = pos.Clone()
	}
	for pos, id := range l.byPosition {
		snap.byPosition[pos] = id
	}
	return snap
}

// Restore replaces the ledger state with the snapshot's.
func (l *Ledger) Restore(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[domain.ClaimID]domain.LockedPosition, len(snap.records))
	l.byPosition = make(map[domain.PositionID]domain.ClaimID, len(snap.byPosition))
	for id, pos := range snap.records {
		l.records[id] = pos.Clone()
	}
	for pos, id := range snap.byPosition {
		l.byPosition[pos] = id
	}
}
