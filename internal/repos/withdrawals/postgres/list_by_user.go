package withdrawals

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/withdrawals"
)

func (r *withdrawalsRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]withdrawals.Withdrawal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []withdrawals.Withdrawal
	for rows.Next() {
		var w withdrawals.Withdrawal

		if err := scanWithdrawal(rows, &w); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}

		out = append(out, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawals: %w", err)
	}

	return out, nil
}
