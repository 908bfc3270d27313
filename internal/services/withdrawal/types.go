package withdrawal

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidWithdrawal = errors.New("invalid withdrawal request")
	// ErrAmountTooSmall means the fees eat the whole payout.
	ErrAmountTooSmall = errors.New("amount too small to cover fees")
)

// Quote prices a credit amount into an on-chain payout. All wei amounts
// are rounded down.
type Quote struct {
	Credits int64
	// EffectiveRate is credits per token with the spread applied.
	EffectiveRate  decimal.Decimal
	GrossAmountWei decimal.Decimal
	PlatformFeeWei decimal.Decimal
	NetworkFeeWei  decimal.Decimal
	NetAmountWei   decimal.Decimal
}

type SubmitInput struct {
	UserID  uuid.UUID
	Credits int64
	// DestinationAddress is optional; empty pays out to the user's own
	// wallet.
	DestinationAddress string
}
