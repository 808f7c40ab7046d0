package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/veloralabs/liqlock/internal/domain"
)

// EventsHandler serves the persisted event log.
type EventsHandler struct {
	events domain.EventStore
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(events domain.EventStore, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{events: events, logger: logger}
}

type eventResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	ClaimID    uint64 `json:"claim_id"`
	PositionID uint64 `json:"position_id"`
	Recipient  string `json:"recipient"`
	Amount     string `json:"amount,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ListEvents returns recent events, newest first.
// GET /api/events
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := h.events.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]eventResponse, 0, len(evts))
	for _, ev := range evts {
		resp := eventResponse{
			ID:         ev.ID,
			Type:       string(ev.Type),
			ClaimID:    uint64(ev.ClaimID),
			PositionID: uint64(ev.PositionID),
			Recipient:  ev.Recipient.Hex(),
			CreatedAt:  ev.CreatedAt.UTC().Format(time.RFC3339),
		}
		if ev.Amount != nil {
			resp.Amount = ev.Amount.String()
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
