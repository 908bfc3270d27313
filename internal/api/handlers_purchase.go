package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/cratecore/internal/services/purchase"
	"github.com/fastprodman/cratecore/internal/services/verifier"
)

type purchaseRequest struct {
	WalletAddress   string          `json:"walletAddress"`
	TxHash          string          `json:"txHash"`
	Credits         int64           `json:"credits,string"`
	ExpectedAmount  decimal.Decimal `json:"expectedAmount"`
	ExpectedAddress string          `json:"expectedAddress"`
}

type purchaseResponse struct {
	UserID           uuid.UUID   `json:"userId"`
	TransactionID    uuid.UUID   `json:"transactionId"`
	CreditsAdded     int64       `json:"creditsAdded,string"`
	BonusAwarded     int64       `json:"bonusAwarded,string"`
	AlreadyProcessed bool        `json:"alreadyProcessed"`
	OldBalance       balanceJSON `json:"oldBalance"`
	NewBalance       balanceJSON `json:"newBalance"`
}

// duplicatePurchaseResponse is the 409 body for a replayed tx hash: the
// error envelope plus the original receipt, so the client can tell the
// credits were granted the first time around.
type duplicatePurchaseResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	purchaseResponse
}

func toPurchaseResponse(result *purchase.Result) purchaseResponse {
	return purchaseResponse{
		UserID:           result.UserID,
		TransactionID:    result.TransactionID,
		CreditsAdded:     result.CreditsAdded,
		BonusAwarded:     result.BonusAwarded,
		AlreadyProcessed: result.AlreadyProcessed,
		OldBalance:       toBalanceJSON(result.OldBalance),
		NewBalance:       toBalanceJSON(result.NewBalance),
	}
}

// ProcessPurchaseHandler handles POST /purchase
func (h *HandlerProvider) ProcessPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.Purchases.Process(r.Context(), purchase.Input{
		WalletAddress:   req.WalletAddress,
		TxHash:          req.TxHash,
		Credits:         req.Credits,
		ExpectedAmount:  req.ExpectedAmount,
		ExpectedAddress: req.ExpectedAddress,
	})
	if err != nil {
		switch {
		case errors.Is(err, verifier.ErrInvalidTxHash):
			writeError(w, http.StatusBadRequest, "invalid_tx_hash", "invalid transaction hash")
		case errors.Is(err, purchase.ErrInvalidPurchase):
			writeError(w, http.StatusBadRequest, "invalid_purchase", "invalid purchase request")
		case errors.Is(err, purchase.ErrAlreadyProcessed):
			if result != nil {
				writeJSON(w, http.StatusConflict, duplicatePurchaseResponse{
					Error:            "transaction already processed",
					Code:             "duplicate_transaction",
					purchaseResponse: toPurchaseResponse(result),
				})
				return
			}

			writeError(w, http.StatusConflict, "duplicate_transaction", "transaction already processed")
		case errors.Is(err, purchase.ErrPurchaseRolledBack):
			writeError(w, http.StatusConflict, "purchase_rolled_back", "transaction was rolled back")
		case errors.Is(err, purchase.ErrVerificationPending):
			// Not confirmed yet; the client retries with the same hash.
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "verification_pending"})
		case errors.Is(err, purchase.ErrVerificationFailed):
			writeError(w, http.StatusUnprocessableEntity, "verification_failed", "payment verification failed")
		case errors.Is(err, purchase.ErrTransactionLogFailed):
			writeError(w, http.StatusInternalServerError, "transaction_log_failed", "purchase failed and was rolled back")
		case errors.Is(err, purchase.ErrCompensationFailed):
			writeError(w, http.StatusInternalServerError, "compensation_failed", "purchase is in an inconsistent state")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		}

		return
	}

	writeJSON(w, http.StatusOK, toPurchaseResponse(result))
}
