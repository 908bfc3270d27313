package withdrawals

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/withdrawals"
)

func (r *withdrawalsRepo) Create(tx *sql.Tx, w *withdrawals.Withdrawal) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Status == "" {
		w.Status = withdrawals.StatusPending
	}

	err := tx.QueryRow(`
		INSERT INTO withdrawals (id, user_id, credits, from_winnings, from_purchased,
		                         destination_address, gross_amount_wei, platform_fee_wei,
		                         network_fee_wei, net_amount_wei, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`,
		w.ID, w.UserID, w.Credits, w.FromWinnings, w.FromPurchased,
		w.DestinationAddress, w.GrossAmountWei, w.PlatformFeeWei,
		w.NetworkFeeWei, w.NetAmountWei, w.Status,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}

	return nil
}
