// Package domain defines the core types, collaborator interfaces, and
// sentinel errors shared across the liqlock services.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimID identifies a locked position in the ledger. IDs are assigned from a
// monotonically increasing sequence starting at 1 and are never reused, even
// after the record is deleted.
type ClaimID uint64

// NilClaimID is the reserved null claim identifier.
const NilClaimID ClaimID = 0

// PositionID identifies the underlying position within the external custodian.
type PositionID uint64

// LockedPosition is the ledger record for a custodied liquidity position.
// AssetA, AssetB, InitialAmount, UnlockStart, and UnlockEnd are fixed at
// intake; only WithdrawnAmount is mutated afterwards, and only by the
// withdrawal orchestrator.
type LockedPosition struct {
	ClaimID    ClaimID
	Custodian  common.Address
	PositionID PositionID
	Depositor  common.Address

	AssetA common.Address
	AssetB common.Address

	// InitialAmount is the liquidity snapshot taken once at intake.
	InitialAmount *big.Int
	// WithdrawnAmount is the cumulative principal already released. It is
	// monotonically non-decreasing and bounded above by InitialAmount.
	WithdrawnAmount *big.Int

	// UnlockStart and UnlockEnd bound the linear vesting schedule, in seconds
	// since epoch. UnlockEnd > UnlockStart always holds.
	UnlockStart uint64
	UnlockEnd   uint64

	CreatedAt time.Time
}

// Clone returns a deep copy of the record. Ledger snapshots and reads hand out
// clones so callers can never alias the authoritative big.Int values.
func (p LockedPosition) Clone() LockedPosition {
	out := p
	if p.InitialAmount != nil {
		out.InitialAmount = new(big.Int).Set(p.InitialAmount)
	}
	if p.WithdrawnAmount != nil {
		out.WithdrawnAmount = new(big.Int).Set(p.WithdrawnAmount)
	}
	return out
}

// Remaining returns InitialAmount - WithdrawnAmount.
func (p LockedPosition) Remaining() *big.Int {
	return new(big.Int).Sub(p.InitialAmount, p.WithdrawnAmount)
}

// Clock supplies the current time to services; injectable for tests.
type Clock func() time.Time

// SystemClock is the production clock.
var SystemClock Clock = time.Now

// Unix returns the clock reading as seconds since epoch.
func (c Clock) Unix() uint64 {
	return uint64(c().Unix())
}
