// Package token implements the claim-token registry: a unique-ownership
// token facility whose only job is to prove who may operate on a claim.
package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veloralabs/liqlock/internal/domain"
)

// Registry is an in-process implementation of domain.ClaimTokenRegistry.
// It participates in the per-operation snapshot/restore boundary alongside
// the ledger, so a failed intake or release also unwinds its mint or burn.
type Registry struct {
	mu     sync.RWMutex
	owners map[domain.ClaimID]common.Address
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[domain.ClaimID]common.Address)}
}

// Mint issues the claim token for id to the given holder.
func (r *Registry) Mint(id domain.ClaimID, to common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[id]; ok {
		return fmt.Errorf("token: claim %d: %w", id, domain.ErrAlreadyExists)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("token: mint claim %d to zero address: %w", id, domain.ErrInvalidAsset)
	}
	r.owners[id] = to
	return nil
}

// Burn retires the claim token for id.
func (r *Registry) Burn(id domain.ClaimID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[id]; !ok {
		return fmt.Errorf("token: claim %d: %w", id, domain.ErrNotFound)
	}
	delete(r.owners, id)
	return nil
}

// Transfer moves the claim token from its current holder to another identity.
func (r *Registry) Transfer(id domain.ClaimID, from, to common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[id]
	if !ok {
		return fmt.Errorf("token: claim %d: %w", id, domain.ErrNotFound)
	}
	if owner != from {
		return fmt.Errorf("token: claim %d held by %s, not %s: %w", id, owner, from, domain.ErrNotAuthorized)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("token: transfer claim %d to zero address: %w", id, domain.ErrInvalidAsset)
	}
	r.owners[id] = to
	return nil
}

// OwnerOf returns the current holder of the claim token.
func (r *Registry) OwnerOf(id domain.ClaimID) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[id]
	if !ok {
		return common.Address{}, fmt.Errorf("token: claim %d: %w", id, domain.ErrNotFound)
	}
	return owner, nil
}

// Snapshot captures current ownership.
type Snapshot struct {
	owners map[domain.ClaimID]common.Address
}

// Snapshot returns a copy of the ownership table.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{owners: make(map[domain.ClaimID]common.Address, len(r.owners))}
	for id, owner := range r.owners {
		snap.owners[id] = owner
	}
	return snap
}

// Restore replaces the ownership table with the snapshot's.
func (r *Registry) Restore(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.owners = make(map[domain.ClaimID]common.Address, len(snap.owners))
	for id, owner := range snap.owners {
		r.owners[id] = owner
	}
}

var _ domain.ClaimTokenRegistry = (*Registry)(nil)
