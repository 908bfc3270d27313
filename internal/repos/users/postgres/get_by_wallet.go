package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/cratecore/internal/repos/users"
)

func (r *usersRepo) GetByWallet(ctx context.Context, walletAddress string) (*users.User, error) {
	u := &users.User{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, wallet_address, welcome_bonus_claimed,
		       purchased_credits, winnings_credits, bonus_credits, created_at
		FROM users
		WHERE wallet_address = $1
	`, walletAddress).Scan(
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

		return nil, fmt.Errorf("get user by wallet: %w", err)
	}

	return u, nil
}
