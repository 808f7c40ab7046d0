// Package service implements the custody intake handler, the withdrawal
// orchestrator, the release handler, and the lookup facade. Each mutating
// operation snapshots the ledger and the claim registry on entry and restores
// both on any failure, so a half-completed operation leaves no observable
// state behind.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/ledger"
	"github.com/veloralabs/liqlock/internal/token"
)

const (
	// EventChannel is the Pub/Sub channel carrying ledger events.
	EventChannel = "liqlock:events"
	// EventStream is the durable Redis stream mirroring EventChannel.
	EventStream = "liqlock:events:stream"
)

// maxCollect is passed as the per-asset cap when sweeping all owed proceeds.
var maxCollect = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// eventSink records events in the durable store and fans them out on the
// signal bus. Fan-out failures are logged, never surfaced: by the time an
// event is emitted the operation's external effects have already happened.
type eventSink struct {
	events domain.EventStore
	bus    domain.SignalBus
	logger *slog.Logger
}

func (s *eventSink) emit(ctx context.Context, ev domain.Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	if s.events != nil {
		if err := s.events.Append(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "event append failed",
				"type", ev.Type, "claim_id", ev.ClaimID, "error", err)
		}
	}

	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.WarnContext(ctx, "event marshal failed", "type", ev.Type, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, EventChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "type", ev.Type, "error", err)
	}
	if err := s.bus.StreamAppend(ctx, EventStream, payload); err != nil {
		s.logger.WarnContext(ctx, "event stream append failed", "type", ev.Type, "error", err)
	}
}

// checkpoint captures ledger and registry state so a failing operation can
// roll both back together. Claim identifiers consumed before the rollback
// stay consumed.
type checkpoint struct {
	ledger   *ledger.Ledger
	registry *token.Registry
	ledSnap  ledger.Snapshot
	regSnap  token.Snapshot
}

func takeCheckpoint(l *ledger.Ledger, r *token.Registry) checkpoint {
	return checkpoint{
		ledger:   l,
		registry: r,
		ledSnap:  l.Snapshot(),
		regSnap:  r.Snapshot(),
	}
}

func (c checkpoint) rollback() {
	c.ledger.Restore(c.ledSnap)
	c.registry.Restore(c.regSnap)
}

// authorize fails with ErrNotAuthorized unless caller currently holds the
// claim token. An unknown claim surfaces as ErrNotFound.
func authorize(registry *token.Registry, id domain.ClaimID, caller common.Address) error {
	holder, err := registry.OwnerOf(id)
	if err != nil {
		return err
	}
	if holder != caller {
		return fmt.Errorf("service: claim %d held by %s: %w", id, holder.Hex(), domain.ErrNotAuthorized)
	}
	return nil
}
