package users

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/users"
)

func (r *usersRepo) LockAndGet(tx *sql.Tx, userID uuid.UUID) (*users.User, error) {
	u := &users.User{}

	err := tx.QueryRow(`
		SELECT id, wallet_address, welcome_bonus_claimed,
		       purchased_credits, winnings_credits, bonus_credits, created_at
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID).Scan(
		&u.ID,
		&u.WalletAddress,
		&u.WelcomeBonusClaimed,
		&u.Balance.Purchased,
		&u.Balance.Winnings,
		&u.Balance.Bonus,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}

		return nil, fmt.Errorf("lock/get user: %w", err)
	}

	return u, nil
}
