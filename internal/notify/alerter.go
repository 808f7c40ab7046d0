package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/veloralabs/liqlock/internal/domain"
)

// Alerter subscribes to the ledger event channel and turns each event into an
// operator alert.
type Alerter struct {
	bus      domain.SignalBus
	notifier *Notifier
	channel  string
	logger   *slog.Logger
}

// NewAlerter creates an Alerter reading from the given Pub/Sub channel.
func NewAlerter(bus domain.SignalBus, notifier *Notifier, channel string, logger *slog.Logger) *Alerter {
	return &Alerter{
		bus:      bus,
		notifier: notifier,
		channel:  channel,
		logger:   logger.With(slog.String("component", "alerter")),
	}
}

// Run consumes events until the context is cancelled. Malformed payloads are
// logged and skipped.
func (a *Alerter) Run(ctx context.Context) error {
	msgs, err := a.bus.Subscribe(ctx, a.channel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", a.channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev domain.Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				a.logger.WarnContext(ctx, "malformed event payload", "error", err)
				continue
			}
			if err := a.notifier.Notify(ctx, ev.Type, title(ev), body(ev)); err != nil {
				a.logger.WarnContext(ctx, "alert delivery failed",
					"type", ev.Type, "claim_id", ev.ClaimID, "error", err)
			}
		}
	}
}

func title(ev domain.Event) string {
	switch ev.Type {
	case domain.EventPositionLocked:
		return fmt.Sprintf("Position locked (claim %d)", ev.ClaimID)
	case domain.EventWithdrawal:
		return fmt.Sprintf("Withdrawal (claim %d)", ev.ClaimID)
	case domain.EventProceedsCollected:
		return fmt.Sprintf("Proceeds collected (claim %d)", ev.ClaimID)
	case domain.EventUnderlyingReturned:
		return fmt.Sprintf("Underlying returned (claim %d)", ev.ClaimID)
	default:
		return fmt.Sprintf("Ledger event (claim %d)", ev.ClaimID)
	}
}

func body(ev domain.Event) string {
	msg := fmt.Sprintf("position %d, recipient %s", ev.PositionID, ev.Recipient.Hex())
	if ev.Amount != nil {
		msg += ", amount " + ev.Amount.String()
	}
	return msg
}
