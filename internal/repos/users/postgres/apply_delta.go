package users

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/users"
)

func (r *usersRepo) ApplyDelta(tx *sql.Tx, userID uuid.UUID, deltaPurchased, deltaWinnings, deltaBonus int64) (users.Balance, error) {
	var balance users.Balance

	err := tx.QueryRow(`
		UPDATE users
		SET purchased_credits = purchased_credits + $2,
		    winnings_credits  = winnings_credits + $3,
		    bonus_credits     = bonus_credits + $4,
		    updated_at        = now()
		WHERE id = $1
		  AND purchased_credits + $2 >= 0
		  AND winnings_credits + $3 >= 0
		  AND bonus_credits + $4 >= 0
		RETURNING purchased_credits, winnings_credits, bonus_credits
	`, userID, deltaPurchased, deltaWinnings, deltaBonus).Scan(
		&balance.Purchased,
		&balance.Winnings,
		&balance.Bonus,
	)
	if err != nil {
		// Callers lock the row first, so a filtered-out update means a
		// guard failed, not a missing user.
		if errors.Is(err, sql.ErrNoRows) {
			return users.Balance{}, users.ErrInsufficientFunds
		}

		return users.Balance{}, fmt.Errorf("apply delta: %w", err)
	}

	return balance, nil
}
