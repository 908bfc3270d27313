package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/sessions"
	"github.com/fastprodman/cratecore/internal/repos/users"
	"github.com/fastprodman/cratecore/internal/services/ledger"
	"github.com/fastprodman/cratecore/internal/services/settlement"
)

type settleRequest struct {
	SessionID     string `json:"sessionId"`
	Game          string `json:"game"`
	UserID        string `json:"userId"`
	PayoutCredits int64  `json:"payoutCredits,string"`
}

type settleResponse struct {
	EntryID       int64       `json:"entryId,string"`
	PayoutCredits int64       `json:"payoutCredits,string"`
	Balance       balanceJSON `json:"balance"`
}

// SettleWinHandler handles POST /settlement
func (h *HandlerProvider) SettleWinHandler(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "invalid userId")
		return
	}

	result, err := h.svc.Settlement.SettleWin(r.Context(), settlement.SettleInput{
		SessionID:     req.SessionID,
		Game:          req.Game,
		UserID:        userID,
		PayoutCredits: req.PayoutCredits,
	})
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrInvalidSettlement):
			writeError(w, http.StatusBadRequest, "invalid_settlement", "invalid settlement request")
		case errors.Is(err, sessions.ErrAlreadySettled):
			writeError(w, http.StatusConflict, "already_settled", "session already settled")
		case errors.Is(err, users.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user_not_found", "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		}

		return
	}

	writeJSON(w, http.StatusOK, settleResponse{
		EntryID:       result.EntryID,
		PayoutCredits: result.PayoutCredits,
		Balance:       toBalanceJSON(result.New),
	})
}

type stakeRequest struct {
	SessionID string `json:"sessionId"`
	Game      string `json:"game"`
	UserID    string `json:"userId"`
	Credits   int64  `json:"credits,string"`
}

type stakeResponse struct {
	EntryID       int64       `json:"entryId,string"`
	FromBonus     int64       `json:"fromBonus,string"`
	FromPurchased int64       `json:"fromPurchased,string"`
	FromWinnings  int64       `json:"fromWinnings,string"`
	Replayed      bool        `json:"replayed"`
	Balance       balanceJSON `json:"balance"`
}

// PlaceStakeHandler handles POST /stake
func (h *HandlerProvider) PlaceStakeHandler(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "invalid userId")
		return
	}

	result, err := h.svc.Settlement.PlaceStake(r.Context(), settlement.StakeInput{
		SessionID: req.SessionID,
		Game:      req.Game,
		UserID:    userID,
		Credits:   req.Credits,
	})
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrInvalidSettlement):
			writeError(w, http.StatusBadRequest, "invalid_stake", "invalid stake request")
		case errors.Is(err, users.ErrInsufficientFunds):
			writeError(w, http.StatusConflict, "insufficient_funds", "insufficient funds")
		case errors.Is(err, ledger.ErrIdempotencyConflict):
			writeError(w, http.StatusConflict, "stake_conflict", "session id reused with a different stake")
		case errors.Is(err, users.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user_not_found", "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		}

		return
	}

	writeJSON(w, http.StatusOK, stakeResponse{
		EntryID:       result.EntryID,
		FromBonus:     result.FromBonus,
		FromPurchased: result.FromPurchased,
		FromWinnings:  result.FromWinnings,
		Replayed:      result.Replayed,
		Balance:       toBalanceJSON(result.New),
	})
}
