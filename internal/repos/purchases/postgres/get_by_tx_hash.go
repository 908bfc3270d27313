package purchases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/cratecore/internal/repos/purchases"
)

func (r *purchasesRepo) GetByTxHash(ctx context.Context, txHash string) (*purchases.Purchase, error) {
	p := &purchases.Purchase{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, tx_hash, amount_wei, credits, bonus_credits,
		       COALESCE(ledger_entry_id, 0), created_at
		FROM credit_transactions
		WHERE tx_hash = $1
	`, txHash).Scan(
		&p.ID,
		&p.UserID,
		&p.TxHash,
		&p.AmountWei,
		&p.Credits,
		&p.BonusCredits,
		&p.LedgerEntryID,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, purchases.ErrPurchaseNotFound
		}

		return nil, fmt.Errorf("get purchase by tx hash: %w", err)
	}

	return p, nil
}
