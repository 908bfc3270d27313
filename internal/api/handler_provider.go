package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/entries"
	"github.com/fastprodman/cratecore/internal/repos/users"
	"github.com/fastprodman/cratecore/internal/repos/withdrawals"
	"github.com/fastprodman/cratecore/internal/services/ledger"
	"github.com/fastprodman/cratecore/internal/services/purchase"
	"github.com/fastprodman/cratecore/internal/services/settlement"
	"github.com/fastprodman/cratecore/internal/services/withdrawal"
)

// PurchaseFlow is the slice of the purchase service the handlers need.
type PurchaseFlow interface {
	Process(ctx context.Context, input purchase.Input) (*purchase.Result, error)
}

// WithdrawalFlow is the slice of the withdrawal service the handlers need.
type WithdrawalFlow interface {
	Quote(ctx context.Context, credits int64) (*withdrawal.Quote, error)
	Submit(ctx context.Context, input withdrawal.SubmitInput) (*withdrawals.Withdrawal, error)
	SetStatus(ctx context.Context, id uuid.UUID, to withdrawals.Status, payoutTxHash string) (*withdrawals.Withdrawal, error)
	Get(ctx context.Context, id uuid.UUID) (*withdrawals.Withdrawal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]withdrawals.Withdrawal, error)
}

// SettlementFlow is the slice of the settlement service the handlers need.
type SettlementFlow interface {
	SettleWin(ctx context.Context, input settlement.SettleInput) (*settlement.SettleResult, error)
	PlaceStake(ctx context.Context, input settlement.StakeInput) (*settlement.StakeResult, error)
}

// LedgerReader covers the read side of the ledger service.
type LedgerReader interface {
	UserByWallet(ctx context.Context, wallet string) (*users.User, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (users.Balance, error)
	Entries(ctx context.Context, userID uuid.UUID, limit int) ([]entries.Entry, error)
}

// Services bundles everything the API exposes.
type Services struct {
	Purchases   PurchaseFlow
	Withdrawals WithdrawalFlow
	Settlement  SettlementFlow
	Ledger      LedgerReader
}

var (
	_ PurchaseFlow   = (*purchase.PurchaseService)(nil)
	_ WithdrawalFlow = (*withdrawal.WithdrawalService)(nil)
	_ SettlementFlow = (*settlement.SettlementService)(nil)
	_ LedgerReader   = (*ledger.LedgerService)(nil)
)

// HandlerProvider wraps the services and exposes HTTP handlers.
type HandlerProvider struct {
	svc Services
}

// NewHandler returns a new Handler provider.
func NewHandler(svc Services) *HandlerProvider {
	return &HandlerProvider{svc: svc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		// The status line is already out, nothing useful can be
		// written anymore.
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// errorJSON is the error body shape: a human-readable message plus a
// stable snake_case code clients can switch on.
type errorJSON struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorJSON{Error: msg, Code: code})
}

// decodeBody reads a JSON body of at most 1MB into dst, rejecting unknown
// fields. It writes the error response itself and reports whether decoding
// succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty_body", "empty body")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return false
	}

	return true
}

// lookupUser resolves a wallet address to its user, writing the error
// response itself when that fails.
func (h *HandlerProvider) lookupUser(w http.ResponseWriter, r *http.Request, wallet string) (*users.User, bool) {
	u, err := h.svc.Ledger.UserByWallet(r.Context(), wallet)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_wallet_address", "invalid wallet address")
		case errors.Is(err, users.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user_not_found", "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		}

		return nil, false
	}

	return u, true
}

// parseLimit reads the optional ?limit= query parameter. Zero means the
// service default.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, false
	}

	return limit, true
}

func parseWithdrawalID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "withdrawalId"))
}
