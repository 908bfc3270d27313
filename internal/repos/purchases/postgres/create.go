package purchases

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastprodman/cratecore/internal/repos/purchases"
)

func (r *purchasesRepo) Create(tx *sql.Tx, p *purchases.Purchase) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	err := tx.QueryRow(`
		INSERT INTO credit_transactions (id, user_id, tx_hash, amount_wei,
		                                 credits, bonus_credits, ledger_entry_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, p.ID, p.UserID, p.TxHash, p.AmountWei, p.Credits, p.BonusCredits, p.LedgerEntryID).
		Scan(&p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return purchases.ErrDuplicateTransaction
			}
		}

		return fmt.Errorf("insert purchase: %w", err)
	}

	return nil
}
