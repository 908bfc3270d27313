package purchases

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

func (r *purchasesRepo) BumpStats(ctx context.Context, credits, bonusCredits int64, amountWei decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE purchase_stats
		SET total_purchases     = total_purchases + 1,
		    total_credits       = total_credits + $1,
		    total_bonus_credits = total_bonus_credits + $2,
		    total_amount_wei    = total_amount_wei + $3,
		    updated_at          = now()
		WHERE id = 1
	`, credits, bonusCredits, amountWei)
	if err != nil {
		return fmt.Errorf("bump purchase stats: %w", err)
	}

	return nil
}
