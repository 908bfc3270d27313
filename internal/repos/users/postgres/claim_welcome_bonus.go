package users

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

func (r *usersRepo) ClaimWelcomeBonus(tx *sql.Tx, userID uuid.UUID) (bool, error) {
	res, err := tx.Exec(`
		UPDATE users
		SET welcome_bonus_claimed = TRUE,
		    updated_at            = now()
		WHERE id = $1
		  AND welcome_bonus_claimed = FALSE
	`, userID)
	if err != nil {
		return false, fmt.Errorf("claim welcome bonus: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
