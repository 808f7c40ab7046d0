// Package vesting computes the linearly unlocked share of a locked position.
// It is pure: no state, no side effects.
package vesting

import (
	"fmt"
	"math/big"

	"github.com/veloralabs/liqlock/internal/domain"
)

// fractionScale is the parts-per-thousand fixed-point scale applied to the
// elapsed fraction. Without it, integer division would truncate the whole
// vested amount to zero for any schedule shorter than the initial amount's
// granularity; the scale-then-unscale order must not change.
const fractionScale = 1000

// Available returns the amount currently withdrawable: the vested share of
// initial, net of what has already been withdrawn. Timestamps are in seconds
// since epoch.
//
//	now <  unlockStart: 0
//	now >= unlockEnd:   initial - withdrawn
//	otherwise:          initial * elapsed * 1000 / span / 1000 - withdrawn
//
// Each division truncates toward zero. A negative result cannot occur while
// the ledger invariants hold; it is reported as an ErrOverflow consistency
// failure rather than clamped.
func Available(initial, withdrawn *big.Int, unlockStart, unlockEnd, now uint64) (*big.Int, error) {
	if now < unlockStart {
		return new(big.Int), nil
	}

	if now >= unlockEnd {
		remaining := new(big.Int).Sub(initial, withdrawn)
		if remaining.Sign() < 0 {
			return nil, fmt.Errorf("vesting: withdrawn %s exceeds initial %s: %w",
				withdrawn, initial, domain.ErrOverflow)
		}
		return remaining, nil
	}

	elapsed := new(big.Int).SetUint64(now - unlockStart)
	span := new(big.Int).SetUint64(unlockEnd - unlockStart)

	vested := new(big.Int).Mul(initial, elapsed)
	vested.Mul(vested, big.NewInt(fractionScale))
	vested.Quo(vested, span)
	vested.Quo(vested, big.NewInt(fractionScale))

	available := vested.Sub(vested, withdrawn)
	if available.Sign() < 0 {
		return nil, fmt.Errorf("vesting: withdrawn %s exceeds vested share of %s: %w",
			withdrawn, initial, domain.ErrOverflow)
	}
	return available, nil
}

// AvailableFor is Available applied to a ledger record.
func AvailableFor(pos domain.LockedPosition, now uint64) (*big.Int, error) {
	return Available(pos.InitialAmount, pos.WithdrawnAmount, pos.UnlockStart, pos.UnlockEnd, now)
}
