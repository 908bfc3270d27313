package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/users"
)

func (r *usersRepo) GetBalance(ctx context.Context, userID uuid.UUID) (users.Balance, error) {
	var balance users.Balance

	err := r.db.QueryRowContext(ctx, `
		SELECT purchased_credits, winnings_credits, bonus_credits
		FROM users
		WHERE id = $1
	`, userID).Scan(&balance.Purchased, &balance.Winnings, &balance.Bonus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.Balance{}, users.ErrUserNotFound
		}

		return users.Balance{}, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}
