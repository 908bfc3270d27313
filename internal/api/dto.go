package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/cratecore/internal/repos/entries"
	"github.com/fastprodman/cratecore/internal/repos/users"
	"github.com/fastprodman/cratecore/internal/repos/withdrawals"
	"github.com/fastprodman/cratecore/internal/services/withdrawal"
)

// Credit amounts ride as decimal strings in every payload. The browser
// client keeps them in BigInt, and a bare JSON number would lose precision
// past 2^53.

type balanceJSON struct {
	Purchased int64 `json:"purchased,string"`
	Winnings  int64 `json:"winnings,string"`
	Bonus     int64 `json:"bonus,string"`
	Total     int64 `json:"total,string"`
}

func toBalanceJSON(b users.Balance) balanceJSON {
	return balanceJSON{
		Purchased: b.Purchased,
		Winnings:  b.Winnings,
		Bonus:     b.Bonus,
		Total:     b.Total(),
	}
}

type entryJSON struct {
	ID             int64       `json:"id,string"`
	DeltaPurchased int64       `json:"deltaPurchased,string"`
	DeltaWinnings  int64       `json:"deltaWinnings,string"`
	DeltaBonus     int64       `json:"deltaBonus,string"`
	After          balanceJSON `json:"after"`
	Reason         string      `json:"reason"`
	CreatedAt      time.Time   `json:"createdAt"`
}

func toEntryJSON(e entries.Entry) entryJSON {
	return entryJSON{
		ID:             e.ID,
		DeltaPurchased: e.DeltaPurchased,
		DeltaWinnings:  e.DeltaWinnings,
		DeltaBonus:     e.DeltaBonus,
		After:          toBalanceJSON(e.After),
		Reason:         e.Reason,
		CreatedAt:      e.CreatedAt,
	}
}

type quoteJSON struct {
	Credits        int64           `json:"credits,string"`
	EffectiveRate  decimal.Decimal `json:"effectiveRate"`
	GrossAmountWei decimal.Decimal `json:"grossAmountWei"`
	PlatformFeeWei decimal.Decimal `json:"platformFeeWei"`
	NetworkFeeWei  decimal.Decimal `json:"networkFeeWei"`
	NetAmountWei   decimal.Decimal `json:"netAmountWei"`
}

func toQuoteJSON(q *withdrawal.Quote) quoteJSON {
	return quoteJSON{
		Credits:        q.Credits,
		EffectiveRate:  q.EffectiveRate,
		GrossAmountWei: q.GrossAmountWei,
		PlatformFeeWei: q.PlatformFeeWei,
		NetworkFeeWei:  q.NetworkFeeWei,
		NetAmountWei:   q.NetAmountWei,
	}
}

type withdrawalJSON struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"userId"`
	Credits            int64           `json:"credits,string"`
	FromWinnings       int64           `json:"fromWinnings,string"`
	FromPurchased      int64           `json:"fromPurchased,string"`
	DestinationAddress string          `json:"destinationAddress"`
	GrossAmountWei     decimal.Decimal `json:"grossAmountWei"`
	PlatformFeeWei     decimal.Decimal `json:"platformFeeWei"`
	NetworkFeeWei      decimal.Decimal `json:"networkFeeWei"`
	NetAmountWei       decimal.Decimal `json:"netAmountWei"`
	Status             string          `json:"status"`
	PayoutTxHash       string          `json:"payoutTxHash,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func toWithdrawalJSON(wd *withdrawals.Withdrawal) withdrawalJSON {
	return withdrawalJSON{
		ID:                 wd.ID,
		UserID:             wd.UserID,
		Credits:            wd.Credits,
		FromWinnings:       wd.FromWinnings,
		FromPurchased:      wd.FromPurchased,
		DestinationAddress: wd.DestinationAddress,
		GrossAmountWei:     wd.GrossAmountWei,
		PlatformFeeWei:     wd.PlatformFeeWei,
		NetworkFeeWei:      wd.NetworkFeeWei,
		NetAmountWei:       wd.NetAmountWei,
		Status:             string(wd.Status),
		PayoutTxHash:       wd.PayoutTxHash,
		CreatedAt:          wd.CreatedAt,
		UpdatedAt:          wd.UpdatedAt,
	}
}
