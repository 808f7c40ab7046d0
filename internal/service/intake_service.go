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
)

// DepositNotice is the inbound custody notification: an underlying position
// has been transferred to the engine's custody account, with the unlock
// schedule encoded in the transfer payload.
type DepositNotice struct {
	Custodian  common.Address
	PositionID domain.PositionID
	Depositor  common.Address
	// Payload carries unlockStart and unlockEnd as two big-endian uint64s.
	Payload []byte
}

// IntakeService establishes custody of deposited positions and issues the
// matching claim token.
type IntakeService struct {
	ledger    *ledger.Ledger
	registry  *token.Registry
	custodian domain.PositionCustodian
	locks     domain.LockStore
	cache     domain.ClaimCache
	sink      eventSink
	clock     domain.Clock
	logger    *slog.Logger
}

// NewIntakeService creates an IntakeService. cache may be nil.
func NewIntakeService(
	led *ledger.Ledger,
	registry *token.Registry,
	custodian domain.PositionCustodian,
	locks domain.LockStore,
	cache domain.ClaimCache,
	events domain.EventStore,
	bus domain.SignalBus,
	clock domain.Clock,
	logger *slog.Logger,
) *IntakeService {
	return &IntakeService{
		ledger:    led,
		registry:  registry,
		custodian: custodian,
		locks:     locks,
		cache:     cache,
		sink:      eventSink{events: events, bus: bus, logger: logger},
		clock:     clock,
		logger:    logger,
	}
}

// Lock processes a deposit notice end to end: decode and validate the unlock
// schedule, snapshot the position composition, create the ledger record, and
// mint the claim token to the depositor. Any failure rolls the ledger and
// registry back, so no partial custody is possible.
func (s *IntakeService) Lock(ctx context.Context, notice DepositNotice) (domain.LockedPosition, error) {
	sched, err := domain.DecodeSchedule(notice.Payload)
	if err != nil {
		return domain.LockedPosition{}, err
	}
	now := s.clock.Unix()
	if err := sched.Validate(now); err != nil {
		return domain.LockedPosition{}, err
	}

	info, err := s.custodian.PositionInfo(ctx, notice.PositionID)
	if err != nil {
		return domain.LockedPosition{}, fmt.Errorf("service: position info %d: %w", notice.PositionID, err)
	}
	if info.Liquidity == nil || info.Liquidity.Sign() == 0 {
		return domain.LockedPosition{}, fmt.Errorf("service: position %d: %w", notice.PositionID, domain.ErrEmptyPosition)
	}
	if info.AssetA == (common.Address{}) || info.AssetB == (common.Address{}) {
		return domain.LockedPosition{}, fmt.Errorf("service: position %d: %w", notice.PositionID, domain.ErrInvalidAsset)
	}

	cp := takeCheckpoint(s.ledger, s.registry)

	rec := domain.LockedPosition{
		Custodian:       notice.Custodian,
		PositionID:      notice.PositionID,
		Depositor:       notice.Depositor,
		AssetA:          info.AssetA,
		AssetB:          info.AssetB,
		InitialAmount:   new(big.Int).Set(info.Liquidity),
		WithdrawnAmount: new(big.Int),
		UnlockStart:     sched.UnlockStart,
		UnlockEnd:       sched.UnlockEnd,
		CreatedAt:       s.clock().UTC(),
	}

	id, err := s.ledger.Create(rec)
	if err != nil {
		cp.rollback()
		return domain.LockedPosition{}, err
	}
	rec.ClaimID = id

	if err := s.registry.Mint(id, notice.Depositor); err != nil {
		cp.rollback()
		return domain.LockedPosition{}, err
	}

	if err := s.locks.Put(ctx, rec); err != nil {
		cp.rollback()
		return domain.LockedPosition{}, fmt.Errorf("service: persist lock %d: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.SetClaim(ctx, notice.PositionID, id); err != nil {
			s.logger.WarnContext(ctx, "claim cache set failed",
				"position_id", notice.PositionID, "error", err)
		}
	}

	s.sink.emit(ctx, domain.Event{
		Type:       domain.EventPositionLocked,
		ClaimID:    id,
		PositionID: notice.PositionID,
		Recipient:  notice.Depositor,
	})

	s.logger.InfoContext(ctx, "position locked",
		"claim_id", id,
		"position_id", notice.PositionID,
		"depositor", notice.Depositor.Hex(),
		"unlock_start", sched.UnlockStart,
		"unlock_end", sched.UnlockEnd,
	)

	return rec, nil
}
