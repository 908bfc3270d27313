package entries

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastprodman/cratecore/internal/repos/entries"
)

func (r *entriesRepo) Insert(tx *sql.Tx, entry *entries.Entry) error {
	err := tx.QueryRow(`
		INSERT INTO ledger_entries (user_id,
		                            delta_purchased, delta_winnings, delta_bonus,
		                            after_purchased, after_winnings, after_bonus,
		                            reason, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		RETURNING id, created_at
	`,
		entry.UserID,
		entry.DeltaPurchased, entry.DeltaWinnings, entry.DeltaBonus,
		entry.After.Purchased, entry.After.Winnings, entry.After.Bonus,
		entry.Reason, entry.IdempotencyKey,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return entries.ErrDuplicateKey
		}

		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return nil
}
