package users

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/users"
)

func (r *usersRepo) Ensure(tx *sql.Tx, walletAddress string) (*users.User, error) {
	u := &users.User{}

	// The no-op DO UPDATE makes RETURNING yield the row on conflict too.
	err := tx.QueryRow(`
		INSERT INTO users (id, wallet_address)
		VALUES ($1, $2)
		ON CONFLICT (wallet_address) DO UPDATE
		SET wallet_address = EXCLUDED.wallet_address
		RETURNING id, wallet_address, welcome_bonus_claimed,
		          purchased_credits, winnings_credits, bonus_credits, created_at
	`, uuid.New(), walletAddress).Scan(
		&u.ID,
		&u.WalletAddress,
		&u.WelcomeBonusClaimed,
		&u.Balance.Purchased,
		&u.Balance.Winnings,
		&u.Balance.Bonus,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	return u, nil
}
