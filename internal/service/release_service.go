package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/ledger"
	"github.com/veloralabs/liqlock/internal/token"
)

// ReleaseService hands the underlying position back to the claim holder once
// the schedule has fully elapsed. Release is terminal: the record is deleted
// and the claim token is burned, so every later operation on the claim fails
// with ErrNotFound.
type ReleaseService struct {
	ledger    *ledger.Ledger
	registry  *token.Registry
	custodian domain.PositionCustodian
	locks     domain.LockStore
	cache     domain.ClaimCache
	sink      eventSink
	clock     domain.Clock
	logger    *slog.Logger
}

// NewReleaseService creates a ReleaseService. cache may be nil.
func NewReleaseService(
	led *ledger.Ledger,
	registry *token.Registry,
	custodian domain.PositionCustodian,
	locks domain.LockStore,
	cache domain.ClaimCache,
	events domain.EventStore,
	bus domain.SignalBus,
	clock domain.Clock,
	logger *slog.Logger,
) *ReleaseService {
	return &ReleaseService{
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

// ReturnUnderlying transfers the underlying position back to the caller. The
// gate is purely time-based: the schedule must have fully elapsed, whether or
// not all principal was withdrawn. Record deletion and token burn happen
// before the custodian transfer; a failed transfer restores everything.
func (s *ReleaseService) ReturnUnderlying(ctx context.Context, id domain.ClaimID, caller common.Address) error {
	if err := authorize(s.registry, id, caller); err != nil {
		return err
	}

	rec, err := s.ledger.Get(id)
	if err != nil {
		return err
	}
	if now := s.clock.Unix(); now < rec.UnlockEnd {
		return fmt.Errorf("service: release claim %d at %d before unlock end %d: %w",
			id, now, rec.UnlockEnd, domain.ErrNotFullyVested)
	}

	cp := takeCheckpoint(s.ledger, s.registry)

	if err := s.ledger.Remove(id); err != nil {
		cp.rollback()
		return err
	}
	if err := s.registry.Burn(id); err != nil {
		cp.rollback()
		return err
	}
	if err := s.locks.Delete(ctx, id); err != nil {
		cp.rollback()
		return fmt.Errorf("service: delete lock %d: %w", id, err)
	}

	if err := s.custodian.TransferOwnership(ctx, rec.PositionID, caller); err != nil {
		cp.rollback()
		if perr := s.locks.Put(ctx, rec); perr != nil {
			s.logger.ErrorContext(ctx, "durable rollback failed",
				"claim_id", id, "error", perr)
		}
		return fmt.Errorf("service: transfer ownership %d: %w", rec.PositionID, err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateClaim(ctx, rec.PositionID); err != nil {
			s.logger.WarnContext(ctx, "claim cache invalidate failed",
				"position_id", rec.PositionID, "error", err)
		}
	}

	s.sink.emit(ctx, domain.Event{
		Type:       domain.EventUnderlyingReturned,
		ClaimID:    id,
		PositionID: rec.PositionID,
		Recipient:  caller,
	})

	s.logger.InfoContext(ctx, "underlying returned",
		"claim_id", id,
		"position_id", rec.PositionID,
		"recipient", caller.Hex(),
	)

	return nil
}
