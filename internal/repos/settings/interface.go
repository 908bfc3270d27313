package settings

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrSettingMissing = errors.New("setting missing")

// Pricing holds the operator-tunable numbers behind purchases and
// withdrawals. Rates are credits per whole token, fees are fractions,
// NetworkFeeWei is an absolute wei amount.
type Pricing struct {
	CreditsPerToken     decimal.Decimal
	CashoutRate         decimal.Decimal
	SpreadPct           decimal.Decimal
	PlatformFeePct      decimal.Decimal
	NetworkFeeWei       decimal.Decimal
	WelcomeBonusCredits int64
}

type Settings interface {
	LoadPricing(ctx context.Context) (*Pricing, error)
}
