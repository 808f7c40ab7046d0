package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/ledger"
	"github.com/veloralabs/liqlock/internal/token"
	"github.com/veloralabs/liqlock/internal/vesting"
)

// WithdrawRequest carries the caller-supplied parameters for a partial
// withdrawal. Deadline is epoch seconds.
type WithdrawRequest struct {
	ClaimID   domain.ClaimID
	Caller    common.Address
	Recipient common.Address
	Amount    *big.Int
	MinA      *big.Int
	MinB      *big.Int
	Deadline  uint64
}

// CollectRequest carries the parameters for a yield sweep.
type CollectRequest struct {
	ClaimID   domain.ClaimID
	Caller    common.Address
	Recipient common.Address
	MinA      *big.Int
	MinB      *big.Int
}

// WithdrawService orchestrates partial-principal withdrawals and yield
// sweeps. The ledger is written before any custodian call is issued, so a
// collaborator that calls back into the engine can never observe a stale
// withdrawn amount.
type WithdrawService struct {
	ledger    *ledger.Ledger
	registry  *token.Registry
	custodian domain.PositionCustodian
	transfer  domain.AssetTransfer
	locks     domain.LockStore
	sink      eventSink
	clock     domain.Clock
	// holding is the engine's settlement account: proceeds are collected
	// here before disbursement to the recipient.
	holding common.Address
	logger  *slog.Logger
}

// NewWithdrawService creates a WithdrawService.
func NewWithdrawService(
	led *ledger.Ledger,
	registry *token.Registry,
	custodian domain.PositionCustodian,
	transfer domain.AssetTransfer,
	locks domain.LockStore,
	events domain.EventStore,
	bus domain.SignalBus,
	clock domain.Clock,
	holding common.Address,
	logger *slog.Logger,
) *WithdrawService {
	return &WithdrawService{
		ledger:    led,
		registry:  registry,
		custodian: custodian,
		transfer:  transfer,
		locks:     locks,
		sink:      eventSink{events: events, bus: bus, logger: logger},
		clock:     clock,
		holding:   holding,
		logger:    logger,
	}
}

// Available returns the amount currently withdrawable for the claim at the
// present time.
func (s *WithdrawService) Available(ctx context.Context, id domain.ClaimID) (*big.Int, error) {
	rec, err := s.ledger.Get(id)
	if err != nil {
		return nil, err
	}
	return vesting.AvailableFor(rec, s.clock.Unix())
}

// Withdraw releases part of the vested principal to the recipient. The
// withdrawal is recorded in the ledger first; custodian failures restore the
// ledger, the registry, and the durable mirror to their pre-call state.
func (s *WithdrawService) Withdraw(ctx context.Context, req WithdrawRequest) error {
	if err := authorize(s.registry, req.ClaimID, req.Caller); err != nil {
		return err
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return fmt.Errorf("service: withdraw claim %d: non-positive amount: %w", req.ClaimID, domain.ErrUnavailable)
	}

	rec, err := s.ledger.Get(req.ClaimID)
	if err != nil {
		return err
	}
	available, err := vesting.AvailableFor(rec, s.clock.Unix())
	if err != nil {
		return err
	}
	if req.Amount.Cmp(available) > 0 {
		return fmt.Errorf("service: withdraw claim %d: requested %s exceeds available %s: %w",
			req.ClaimID, req.Amount, available, domain.ErrUnavailable)
	}

	cp := takeCheckpoint(s.ledger, s.registry)

	updated, err := s.ledger.RecordWithdrawal(req.ClaimID, req.Amount)
	if err != nil {
		cp.rollback()
		return err
	}
	if err := s.locks.Put(ctx, updated); err != nil {
		cp.rollback()
		return fmt.Errorf("service: persist withdrawal %d: %w", req.ClaimID, err)
	}

	if _, _, err := s.custodian.DecreaseLiquidity(ctx, rec.PositionID, req.Amount, req.MinA, req.MinB, req.Deadline); err != nil {
		s.restoreDurable(ctx, cp, rec)
		return fmt.Errorf("service: decrease liquidity %d: %w", rec.PositionID, err)
	}

	collectedA, collectedB, err := s.custodian.Collect(ctx, rec.PositionID, s.holding, maxCollect, maxCollect)
	if err != nil {
		s.restoreDurable(ctx, cp, rec)
		return fmt.Errorf("service: collect %d: %w", rec.PositionID, err)
	}

	if err := s.disburse(ctx, rec, req.Recipient, collectedA, collectedB); err != nil {
		s.restoreDurable(ctx, cp, rec)
		return err
	}

	s.sink.emit(ctx, domain.Event{
		Type:       domain.EventWithdrawal,
		ClaimID:    req.ClaimID,
		PositionID: rec.PositionID,
		Recipient:  req.Recipient,
		Amount:     new(big.Int).Set(req.Amount),
	})

	s.logger.InfoContext(ctx, "withdrawal executed",
		"claim_id", req.ClaimID,
		"recipient", req.Recipient.Hex(),
		"amount", req.Amount.String(),
	)

	return nil
}

// CollectAndWithdraw sweeps accrued yield to the recipient without touching
// principal. The ledger record is unchanged by design.
func (s *WithdrawService) CollectAndWithdraw(ctx context.Context, req CollectRequest) error {
	if err := authorize(s.registry, req.ClaimID, req.Caller); err != nil {
		return err
	}
	rec, err := s.ledger.Get(req.ClaimID)
	if err != nil {
		return err
	}

	collectedA, collectedB, err := s.custodian.Collect(ctx, rec.PositionID, s.holding, maxCollect, maxCollect)
	if err != nil {
		return fmt.Errorf("service: collect %d: %w", rec.PositionID, err)
	}
	if req.MinA != nil && collectedA.Cmp(req.MinA) < 0 {
		return fmt.Errorf("service: collect claim %d: asset A %s under minimum %s: %w",
			req.ClaimID, collectedA, req.MinA, domain.ErrUnavailable)
	}
	if req.MinB != nil && collectedB.Cmp(req.MinB) < 0 {
		return fmt.Errorf("service: collect claim %d: asset B %s under minimum %s: %w",
			req.ClaimID, collectedB, req.MinB, domain.ErrUnavailable)
	}

	if err := s.disburse(ctx, rec, req.Recipient, collectedA, collectedB); err != nil {
		return err
	}

	s.sink.emit(ctx, domain.Event{
		Type:       domain.EventProceedsCollected,
		ClaimID:    req.ClaimID,
		PositionID: rec.PositionID,
		Recipient:  req.Recipient,
	})

	s.logger.InfoContext(ctx, "proceeds collected",
		"claim_id", req.ClaimID,
		"recipient", req.Recipient.Hex(),
	)

	return nil
}

// disburse delivers the collected balances of both underlying assets to the
// recipient, unwrapping whichever side is the native wrapper.
func (s *WithdrawService) disburse(ctx context.Context, rec domain.LockedPosition, recipient common.Address, amountA, amountB *big.Int) error {
	wrapper, err := s.custodian.NativeWrapper(ctx)
	if err != nil {
		return fmt.Errorf("service: native wrapper: %w", err)
	}

	send := func(asset common.Address, amount *big.Int) error {
		if amount == nil || amount.Sign() == 0 {
			return nil
		}
		if asset == wrapper {
			if err := s.transfer.UnwrapNative(ctx, wrapper, recipient, amount); err != nil {
				return fmt.Errorf("service: unwrap native %s: %w", amount, err)
			}
			return nil
		}
		if err := s.transfer.Transfer(ctx, asset, recipient, amount); err != nil {
			return fmt.Errorf("service: transfer %s of %s: %w", amount, asset.Hex(), err)
		}
		return nil
	}

	if err := send(rec.AssetA, amountA); err != nil {
		return err
	}
	return send(rec.AssetB, amountB)
}

// restoreDurable rolls back the in-memory checkpoint and rewrites the
// pre-operation record to the durable mirror. A failed rewrite is logged;
// startup hydration repairs the mirror from the next successful write.
func (s *WithdrawService) restoreDurable(ctx context.Context, cp checkpoint, rec domain.LockedPosition) {
	cp.rollback()
	if err := s.locks.Put(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "durable rollback failed",
			"claim_id", rec.ClaimID, "error", err)
	}
}
