package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names an entry in the observable, ordered, append-only event log.
type EventType string

const (
	// EventPositionLocked records a successful intake.
	EventPositionLocked EventType = "position_locked"
	// EventWithdrawal records a partial-principal withdrawal.
	EventWithdrawal EventType = "withdrawal"
	// EventProceedsCollected records a yield sweep with no principal change.
	EventProceedsCollected EventType = "proceeds_collected"
	// EventUnderlyingReturned records the terminal release of the underlying
	// position.
	EventUnderlyingReturned EventType = "underlying_returned"
)

// Event is one row of the event log. The JSON field names match the REST
// representation so the signal bus and websocket feeds agree with the API.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	ClaimID    ClaimID        `json:"claim_id"`
	PositionID PositionID     `json:"position_id"`
	Recipient  common.Address `json:"recipient"`
	// Amount is the withdrawn principal for withdrawal events; nil otherwise.
	Amount    *big.Int  `json:"amount,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
