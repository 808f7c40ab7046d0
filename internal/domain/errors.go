package domain

import "errors"

var (
	// ErrNotAuthorized is returned when the caller does not hold the claim
	// token for the operation's claim identifier.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotFound is returned when a claim or underlying identifier is unknown.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSchedule is returned for malformed or illogical unlock bounds.
	ErrInvalidSchedule = errors.New("invalid unlock schedule")
	// ErrEmptyPosition is returned at intake when the custodied position holds
	// no liquidity.
	ErrEmptyPosition = errors.New("empty position")
	// ErrInvalidAsset is returned at intake when either underlying asset is
	// the zero identity.
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrUnavailable is returned when a requested withdrawal exceeds the
	// currently vested amount.
	ErrUnavailable = errors.New("amount not available")
	// ErrNotFullyVested is returned when release is requested before the
	// schedule's unlock end.
	ErrNotFullyVested = errors.New("not fully vested")
	// ErrOverflow is the defensive ledger-consistency guard.
	ErrOverflow = errors.New("ledger overflow")

	// ErrAlreadyExists is an infrastructure-level duplicate guard.
	ErrAlreadyExists = errors.New("already exists")
	// ErrLockHeld is returned when a distributed lock is held by another
	// process.
	ErrLockHeld = errors.New("lock held")
)
