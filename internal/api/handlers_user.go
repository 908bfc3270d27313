package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type balanceResponse struct {
	UserID        uuid.UUID   `json:"userId"`
	WalletAddress string      `json:"walletAddress"`
	Balance       balanceJSON `json:"balance"`
	// Withdrawable is what a cashout can draw on: winnings plus
	// purchased, never bonus.
	Withdrawable int64 `json:"withdrawable,string"`
}

// GetBalanceHandler handles GET /user/{wallet}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := h.lookupUser(w, r, chi.URLParam(r, "wallet"))
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		UserID:        u.ID,
		WalletAddress: u.WalletAddress,
		Balance:       toBalanceJSON(u.Balance),
		Withdrawable:  u.Balance.Winnings + u.Balance.Purchased,
	})
}

// ListEntriesHandler handles GET /user/{wallet}/ledger?limit=
func (h *HandlerProvider) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit", "invalid limit query parameter")
		return
	}

	u, ok := h.lookupUser(w, r, chi.URLParam(r, "wallet"))
	if !ok {
		return
	}

	list, err := h.svc.Ledger.Entries(r.Context(), u.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	out := make([]entryJSON, 0, len(list))
	for _, e := range list {
		out = append(out, toEntryJSON(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  u.ID,
		"entries": out,
	})
}

// ListWithdrawalsHandler handles GET /user/{wallet}/withdrawals?limit=
func (h *HandlerProvider) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit", "invalid limit query parameter")
		return
	}

	u, ok := h.lookupUser(w, r, chi.URLParam(r, "wallet"))
	if !ok {
		return
	}

	list, err := h.svc.Withdrawals.ListByUser(r.Context(), u.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	out := make([]withdrawalJSON, 0, len(list))
	for i := range list {
		out = append(out, toWithdrawalJSON(&list[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":      u.ID,
		"withdrawals": out,
	})
}
