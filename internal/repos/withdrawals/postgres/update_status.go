package withdrawals

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/withdrawals"
)

func (r *withdrawalsRepo) UpdateStatus(tx *sql.Tx, id uuid.UUID, from, to withdrawals.Status) error {
	res, err := tx.Exec(`
		UPDATE withdrawals
		SET status     = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return withdrawals.ErrInvalidTransition
	}

	return nil
}

func (r *withdrawalsRepo) CompleteWithProof(tx *sql.Tx, id uuid.UUID, payoutTxHash string) error {
	res, err := tx.Exec(`
		UPDATE withdrawals
		SET status         = $2,
		    payout_tx_hash = $3,
		    updated_at     = now()
		WHERE id = $1
		  AND status = $4
	`, id, withdrawals.StatusCompleted, payoutTxHash, withdrawals.StatusProcessing)
	if err != nil {
		return fmt.Errorf("complete withdrawal: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return withdrawals.ErrInvalidTransition
	}

	return nil
}
