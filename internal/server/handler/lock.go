package handler

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veloralabs/liqlock/internal/crypto"
	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/service"
)

// LockHandler serves the lock lifecycle endpoints: intake, inspection,
// withdrawal, yield collection, and release.
type LockHandler struct {
	intake   *service.IntakeService
	withdraw *service.WithdrawService
	release  *service.ReleaseService
	lookup   *service.LookupService
	clock    domain.Clock
	// verifySignatures gates EIP-191 holder-signature checks on mutating
	// endpoints. When disabled (dev mode), the caller field is trusted.
	verifySignatures bool
	logger           *slog.Logger
}

// NewLockHandler creates a LockHandler.
func NewLockHandler(
	intake *service.IntakeService,
	withdraw *service.WithdrawService,
	release *service.ReleaseService,
	lookup *service.LookupService,
	clock domain.Clock,
	verifySignatures bool,
	logger *slog.Logger,
) *LockHandler {
	return &LockHandler{
		intake:           intake,
		withdraw:         withdraw,
		release:          release,
		lookup:           lookup,
		clock:            clock,
		verifySignatures: verifySignatures,
		logger:           logger,
	}
}

type lockResponse struct {
	ClaimID         uint64 `json:"claim_id"`
	Custodian       string `json:"custodian"`
	PositionID      uint64 `json:"position_id"`
	Depositor       string `json:"depositor"`
	AssetA          string `json:"asset_a"`
	AssetB          string `json:"asset_b"`
	InitialAmount   string `json:"initial_amount"`
	WithdrawnAmount string `json:"withdrawn_amount"`
	UnlockStart     uint64 `json:"unlock_start"`
	UnlockEnd       uint64 `json:"unlock_end"`
	CreatedAt       string `json:"created_at"`
	Available       string `json:"available,omitempty"`
}

func toLockResponse(rec domain.LockedPosition, available *big.Int) lockResponse {
	resp := lockResponse{
		ClaimID:         uint64(rec.ClaimID),
		Custodian:       rec.Custodian.Hex(),
		PositionID:      uint64(rec.PositionID),
		Depositor:       rec.Depositor.Hex(),
		AssetA:          rec.AssetA.Hex(),
		AssetB:          rec.AssetB.Hex(),
		InitialAmount:   rec.InitialAmount.String(),
		WithdrawnAmount: rec.WithdrawnAmount.String(),
		UnlockStart:     rec.UnlockStart,
		UnlockEnd:       rec.UnlockEnd,
		CreatedAt:       rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if available != nil {
		resp.Available = available.String()
	}
	return resp
}

type createLockRequest struct {
	Custodian  string `json:"custodian"`
	PositionID uint64 `json:"position_id"`
	Depositor  string `json:"depositor"`
	// Payload is the 16-byte hex-encoded schedule. When absent, UnlockStart
	// and UnlockEnd are used instead.
	Payload     string `json:"payload"`
	UnlockStart uint64 `json:"unlock_start"`
	UnlockEnd   uint64 `json:"unlock_end"`
}

// CreateLock handles the deposit notification.
// POST /api/locks
func (h *LockHandler) CreateLock(w http.ResponseWriter, r *http.Request) {
	var req createLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Depositor) {
		writeError(w, http.StatusBadRequest, "invalid depositor address")
		return
	}

	payload := domain.EncodeSchedule(domain.Schedule{
		UnlockStart: req.UnlockStart,
		UnlockEnd:   req.UnlockEnd,
	})
	if req.Payload != "" {
		raw, err := hex.DecodeString(strings.TrimPrefix(req.Payload, "0x"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload encoding")
			return
		}
		payload = raw
	}

	rec, err := h.intake.Lock(r.Context(), service.DepositNotice{
		Custodian:  common.HexToAddress(req.Custodian),
		PositionID: domain.PositionID(req.PositionID),
		Depositor:  common.HexToAddress(req.Depositor),
		Payload:    payload,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLockResponse(rec, nil))
}

// GetLock returns the ledger record plus the currently available amount.
// GET /api/locks/{claimId}
func (h *LockHandler) GetLock(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint64(r, "claimId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	rec, err := h.lookup.Get(r.Context(), domain.ClaimID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	available, err := h.withdraw.Available(r.Context(), domain.ClaimID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLockResponse(rec, available))
}

// GetAvailable returns only the currently withdrawable amount.
// GET /api/locks/{claimId}/available
func (h *LockHandler) GetAvailable(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint64(r, "claimId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	available, err := h.withdraw.Available(r.Context(), domain.ClaimID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id":  id,
		"available": available.String(),
		"as_of":     h.clock.Unix(),
	})
}

type withdrawRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	MinA      string `json:"min_a"`
	MinB      string `json:"min_b"`
	Deadline  uint64 `json:"deadline"`
	Signature string `json:"signature"`
}

// Withdraw executes a partial withdrawal.
// POST /api/locks/{claimId}/withdraw
func (h *LockHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint64(r, "claimId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.Recipient) {
		writeError(w, http.StatusBadRequest, "invalid caller or recipient address")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	minA, okA := optionalAmount(req.MinA)
	minB, okB := optionalAmount(req.MinB)
	if !okA || !okB {
		writeError(w, http.StatusBadRequest, "invalid minimum output")
		return
	}
	if minA == nil {
		minA = new(big.Int)
	}
	if minB == nil {
		minB = new(big.Int)
	}

	caller := common.HexToAddress(req.Caller)
	recipient := common.HexToAddress(req.Recipient)

	if h.verifySignatures {
		msg := crypto.WithdrawMessage(domain.ClaimID(id), recipient, amount, minA, minB, req.Deadline)
		if err := crypto.VerifyCaller(caller, msg, req.Signature); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	err = h.withdraw.Withdraw(r.Context(), service.WithdrawRequest{
		ClaimID:   domain.ClaimID(id),
		Caller:    caller,
		Recipient: recipient,
		Amount:    amount,
		MinA:      minA,
		MinB:      minB,
		Deadline:  req.Deadline,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id": id,
		"amount":   amount.String(),
		"status":   "withdrawn",
	})
}

type collectRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	MinA      string `json:"min_a"`
	MinB      string `json:"min_b"`
	Signature string `json:"signature"`
}

// Collect sweeps accrued yield without touching principal.
// POST /api/locks/{claimId}/collect
func (h *LockHandler) Collect(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint64(r, "claimId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.Recipient) {
		writeError(w, http.StatusBadRequest, "invalid caller or recipient address")
		return
	}
	minA, okA := optionalAmount(req.MinA)
	minB, okB := optionalAmount(req.MinB)
	if !okA || !okB {
		writeError(w, http.StatusBadRequest, "invalid minimum output")
		return
	}
	if minA == nil {
		minA = new(big.Int)
	}
	if minB == nil {
		minB = new(big.Int)
	}

	caller := common.HexToAddress(req.Caller)
	recipient := common.HexToAddress(req.Recipient)

	if h.verifySignatures {
		msg := crypto.CollectMessage(domain.ClaimID(id), recipient, minA, minB)
		if err := crypto.VerifyCaller(caller, msg, req.Signature); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	err = h.withdraw.CollectAndWithdraw(r.Context(), service.CollectRequest{
		ClaimID:   domain.ClaimID(id),
		Caller:    caller,
		Recipient: recipient,
		MinA:      minA,
		MinB:      minB,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id": id,
		"status":   "collected",
	})
}

type releaseRequest struct {
	Caller    string `json:"caller"`
	Signature string `json:"signature"`
}

// Release hands the underlying position back to the claim holder.
// POST /api/locks/{claimId}/release
func (h *LockHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint64(r, "claimId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	caller := common.HexToAddress(req.Caller)

	if h.verifySignatures {
		msg := crypto.ReleaseMessage(domain.ClaimID(id))
		if err := crypto.VerifyCaller(caller, msg, req.Signature); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	if err := h.release.ReturnUnderlying(r.Context(), domain.ClaimID(id), caller); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id": id,
		"status":   "released",
	})
}
