package entries

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/cratecore/internal/repos/entries"
)

func (r *entriesRepo) FindByKey(tx *sql.Tx, key string) (*entries.Entry, error) {
	entry := &entries.Entry{}

	err := tx.QueryRow(`
		SELECT id, user_id,
		       delta_purchased, delta_winnings, delta_bonus,
		       after_purchased, after_winnings, after_bonus,
		       reason, COALESCE(idempotency_key, ''), created_at
		FROM ledger_entries
		WHERE idempotency_key = $1
	`, key).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.DeltaPurchased, &entry.DeltaWinnings, &entry.DeltaBonus,
		&entry.After.Purchased, &entry.After.Winnings, &entry.After.Bonus,
		&entry.Reason, &entry.IdempotencyKey, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entries.ErrEntryNotFound
		}

		return nil, fmt.Errorf("find entry by key: %w", err)
	}

	return entry, nil
}
