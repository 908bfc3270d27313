package entries

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/entries"
)

func (r *entriesRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entries.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id,
		       delta_purchased, delta_winnings, delta_bonus,
		       after_purchased, after_winnings, after_bonus,
		       reason, COALESCE(idempotency_key, ''), created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []entries.Entry
	for rows.Next() {
		var entry entries.Entry

		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.DeltaPurchased, &entry.DeltaWinnings, &entry.DeltaBonus,
			&entry.After.Purchased, &entry.After.Winnings, &entry.After.Bonus,
			&entry.Reason, &entry.IdempotencyKey, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		out = append(out, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return out, nil
}
