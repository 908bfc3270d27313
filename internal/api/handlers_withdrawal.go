package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fastprodman/cratecore/internal/repos/users"
	"github.com/fastprodman/cratecore/internal/repos/withdrawals"
	"github.com/fastprodman/cratecore/internal/services/ledger"
	"github.com/fastprodman/cratecore/internal/services/verifier"
	"github.com/fastprodman/cratecore/internal/services/withdrawal"
)

type quoteRequest struct {
	Credits int64 `json:"credits,string"`
}

// QuoteWithdrawalHandler handles POST /withdrawal/quote
func (h *HandlerProvider) QuoteWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	quote, err := h.svc.Withdrawals.Quote(r.Context(), req.Credits)
	if err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrInvalidWithdrawal):
			writeError(w, http.StatusBadRequest, "invalid_quote", "invalid quote request")
		case errors.Is(err, withdrawal.ErrAmountTooSmall):
			writeError(w, http.StatusBadRequest, "amount_too_small", "amount too small to cover fees")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		}

		return
	}

	writeJSON(w, http.StatusOK, toQuoteJSON(quote))
}

type submitWithdrawalRequest struct {
	WalletAddress string `json:"walletAddress"`
	Credits       int64  `json:"credits,string"`
	// DestinationAddress is optional; empty pays out to the user's own
	// wallet.
	DestinationAddress string `json:"destinationAddress"`
}

// SubmitWithdrawalHandler handles POST /withdrawal
func (h *HandlerProvider) SubmitWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var req submitWithdrawalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, ok := h.lookupUser(w, r, req.WalletAddress)
	if !ok {
		return
	}

	wd, err := h.svc.Withdrawals.Submit(r.Context(), withdrawal.SubmitInput{
		UserID:             u.ID,
		Credits:            req.Credits,
		DestinationAddress: req.DestinationAddress,
	})
	if err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrInvalidWithdrawal):
			writeError(w, http.StatusBadRequest, "invalid_withdrawal", "invalid withdrawal request")
		case errors.Is(err, withdrawal.ErrAmountTooSmall):
			writeError(w, http.StatusBadRequest, "amount_too_small", "amount too small to cover fees")
		case errors.Is(err, ledger.ErrInsufficientWithdrawable):
			writeError(w, http.StatusConflict, "insufficient_withdrawable", "insufficient withdrawable balance")
		case errors.Is(err, users.ErrInsufficientFunds):
			writeError(w, http.StatusConflict, "insufficient_funds", "insufficient funds")
		case errors.Is(err, users.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user_not_found", "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		}

		return
	}

	writeJSON(w, http.StatusOK, toWithdrawalJSON(wd))
}

// GetWithdrawalHandler handles GET /withdrawal/{withdrawalId}
func (h *HandlerProvider) GetWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseWithdrawalID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_withdrawal_id", "invalid withdrawal id")
		return
	}

	wd, err := h.svc.Withdrawals.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, withdrawals.ErrWithdrawalNotFound) {
			writeError(w, http.StatusNotFound, "withdrawal_not_found", "withdrawal not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toWithdrawalJSON(wd))
}

type setStatusRequest struct {
	Status string `json:"status"`
	// PayoutTxHash is required when moving to completed.
	PayoutTxHash string `json:"payoutTxHash"`
}

func parseWithdrawalStatus(s string) (withdrawals.Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return withdrawals.StatusPending, nil
	case "processing":
		return withdrawals.StatusProcessing, nil
	case "completed":
		return withdrawals.StatusCompleted, nil
	case "cancelled":
		return withdrawals.StatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid status")
	}
}

// SetWithdrawalStatusHandler handles POST /withdrawal/{withdrawalId}/status
func (h *HandlerProvider) SetWithdrawalStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseWithdrawalID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_withdrawal_id", "invalid withdrawal id")
		return
	}

	var req setStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	status, err := parseWithdrawalStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status", "invalid status")
		return
	}

	wd, err := h.svc.Withdrawals.SetStatus(r.Context(), id, status, req.PayoutTxHash)
	if err != nil {
		switch {
		case errors.Is(err, withdrawals.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid_transition", "invalid status transition")
		case errors.Is(err, verifier.ErrInvalidTxHash):
			writeError(w, http.StatusBadRequest, "invalid_payout_tx_hash", "invalid payout transaction hash")
		case errors.Is(err, withdrawals.ErrWithdrawalNotFound):
			writeError(w, http.StatusNotFound, "withdrawal_not_found", "withdrawal not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		}

		return
	}

	writeJSON(w, http.StatusOK, toWithdrawalJSON(wd))
}
