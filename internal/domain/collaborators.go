package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PositionInfo is the custodian's view of an underlying position's
// composition.
type PositionInfo struct {
	AssetA    common.Address
	AssetB    common.Address
	Liquidity *big.Int
}

// PositionCustodian is the external position-management service that holds
// and manipulates the underlying liquidity positions. Its operations are
// consumed as-is; correctness of the custodian itself is assumed.
type PositionCustodian interface {
	// PositionInfo returns the current composition of a position.
	PositionInfo(ctx context.Context, id PositionID) (PositionInfo, error)

	// DecreaseLiquidity reduces the position's liquidity by amount, subject to
	// caller-supplied minimum-output guards and an expiration deadline (epoch
	// seconds). The custodian fails the call when the deadline has passed or
	// the outputs would under-fill the minimums.
	DecreaseLiquidity(ctx context.Context, id PositionID, amount, minA, minB *big.Int, deadline uint64) (withdrawnA, withdrawnB *big.Int, err error)

	// Collect sweeps owed proceeds for the position to recipient, bounded by
	// maxA and maxB per asset.
	Collect(ctx context.Context, id PositionID, recipient common.Address, maxA, maxB *big.Int) (collectedA, collectedB *big.Int, err error)

	// TransferOwnership hands the position itself to a new owner.
	TransferOwnership(ctx context.Context, id PositionID, to common.Address) error

	// NativeWrapper reports the address of the wrapped native settlement
	// asset.
	NativeWrapper(ctx context.Context) (common.Address, error)
}

// AssetTransfer is the fungible-asset movement primitive used to disburse
// collected proceeds to depositors.
type AssetTransfer interface {
	// Transfer moves amount of asset to the recipient.
	Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error

	// UnwrapNative converts amount of the wrapped native asset and delivers
	// the native settlement asset to the recipient.
	UnwrapNative(ctx context.Context, wrapper, to common.Address, amount *big.Int) error
}

// ClaimTokenRegistry is the unique-ownership token facility backing claim
// tokens. Ownership of claim id N is the authorization key for every mutating
// operation on claim N.
type ClaimTokenRegistry interface {
	Mint(id ClaimID, to common.Address) error
	Burn(id ClaimID) error
	Transfer(id ClaimID, from, to common.Address) error
	OwnerOf(id ClaimID) (common.Address, error)
}
