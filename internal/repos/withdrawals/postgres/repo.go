package withdrawals

import (
	"database/sql"

	"github.com/fastprodman/cratecore/internal/repos/withdrawals"
)

var _ withdrawals.Withdrawals = (*withdrawalsRepo)(nil)

type withdrawalsRepo struct{ db *sql.DB }

func New(db *sql.DB) *withdrawalsRepo {
	return &withdrawalsRepo{db: db}
}

const columns = `id, user_id, credits, from_winnings, from_purchased,
       destination_address, gross_amount_wei, platform_fee_wei,
       network_fee_wei, net_amount_wei, status, COALESCE(payout_tx_hash, ''),
       created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWithdrawal(row rowScanner, w *withdrawals.Withdrawal) error {
	return row.Scan(
		&w.ID,
		&w.UserID,
		&w.Credits,
		&w.FromWinnings,
		&w.FromPurchased,
		&w.DestinationAddress,
		&w.GrossAmountWei,
		&w.PlatformFeeWei,
		&w.NetworkFeeWei,
		&w.NetAmountWei,
		&w.Status,
		&w.PayoutTxHash,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
}
