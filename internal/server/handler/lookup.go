package handler

import (
	"log/slog"
	"net/http"

	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/service"
)

// LookupHandler serves reverse-index queries.
type LookupHandler struct {
	lookup *service.LookupService
	logger *slog.Logger
}

// NewLookupHandler creates a LookupHandler.
func NewLookupHandler(lookup *service.LookupService, logger *slog.Logger) *LookupHandler {
	return &LookupHandler{lookup: lookup, logger: logger}
}

// ByUnderlying returns the live claim and its holder for an underlying
// position.
// GET /api/lookup/underlying/{positionId}
func (h *LookupHandler) ByUnderlying(w http.ResponseWriter, r *http.Request) {
	pos, err := pathUint64(r, "positionId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}

	id, err := h.lookup.ClaimForUnderlying(r.Context(), domain.PositionID(pos))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	holder, err := h.lookup.HolderOfUnderlying(r.Context(), domain.PositionID(pos))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"position_id": pos,
		"claim_id":    uint64(id),
		"holder":      holder.Hex(),
	})
}
