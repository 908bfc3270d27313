package withdrawal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/cratecore/internal/repos/settings"
)

// ComputeQuote converts credits to wei at the cashout rate with the spread
// applied, then deducts the platform and network fees. It reads nothing
// and writes nothing; callers pass the pricing they want to quote at.
func ComputeQuote(credits int64, prc *settings.Pricing) (*Quote, error) {
	if credits <= 0 {
		return nil, fmt.Errorf("%w: credits must be positive", ErrInvalidWithdrawal)
	}

	rate := prc.CashoutRate.Mul(decimal.NewFromInt(1).Add(prc.SpreadPct))
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("%w: cashout rate %s", ErrInvalidWithdrawal, rate)
	}

	gross := decimal.NewFromInt(credits).Shift(18).Div(rate).Floor()
	platformFee := gross.Mul(prc.PlatformFeePct).Floor()
	net := gross.Sub(platformFee).Sub(prc.NetworkFeeWei)

	if net.Sign() <= 0 {
		return nil, fmt.Errorf("%w: net %s wei", ErrAmountTooSmall, net)
	}

	return &Quote{
		Credits:        credits,
		EffectiveRate:  rate,
		GrossAmountWei: gross,
		PlatformFeeWei: platformFee,
		NetworkFeeWei:  prc.NetworkFeeWei,
		NetAmountWei:   net,
	}, nil
}
