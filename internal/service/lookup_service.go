package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/ledger"
	"github.com/veloralabs/liqlock/internal/token"
)

// LookupService answers reverse-index queries, with a read-through cache in
// front of the ledger. Cache trouble degrades to a ledger read, never to an
// error.
type LookupService struct {
	ledger   *ledger.Ledger
	registry *token.Registry
	cache    domain.ClaimCache
	logger   *slog.Logger
}

// NewLookupService creates a LookupService. cache may be nil.
func NewLookupService(led *ledger.Ledger, registry *token.Registry, cache domain.ClaimCache, logger *slog.Logger) *LookupService {
	return &LookupService{ledger: led, registry: registry, cache: cache, logger: logger}
}

// ClaimForUnderlying returns the live claim bound to an underlying position.
func (s *LookupService) ClaimForUnderlying(ctx context.Context, pos domain.PositionID) (domain.ClaimID, error) {
	if s.cache != nil {
		id, err := s.cache.GetClaim(ctx, pos)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "claim cache get failed", "position_id", pos, "error", err)
		}
	}

	id, err := s.ledger.ClaimForPosition(pos)
	if err != nil {
		return domain.NilClaimID, err
	}

	if s.cache != nil {
		if err := s.cache.SetClaim(ctx, pos, id); err != nil {
			s.logger.WarnContext(ctx, "claim cache set failed", "position_id", pos, "error", err)
		}
	}
	return id, nil
}

// UnderlyingForClaim returns the custodied position backing a claim.
func (s *LookupService) UnderlyingForClaim(ctx context.Context, id domain.ClaimID) (domain.PositionID, error) {
	rec, err := s.ledger.Get(id)
	if err != nil {
		return 0, err
	}
	return rec.PositionID, nil
}

// HolderOfUnderlying returns the current claim-token holder for an
// underlying position.
func (s *LookupService) HolderOfUnderlying(ctx context.Context, pos domain.PositionID) (common.Address, error) {
	id, err := s.ClaimForUnderlying(ctx, pos)
	if err != nil {
		return common.Address{}, err
	}
	return s.registry.OwnerOf(id)
}

// Get returns the ledger record for a claim.
func (s *LookupService) Get(ctx context.Context, id domain.ClaimID) (domain.LockedPosition, error) {
	return s.ledger.Get(id)
}
