package withdrawals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/withdrawals"
)

func (r *withdrawalsRepo) GetByID(ctx context.Context, id uuid.UUID) (*withdrawals.Withdrawal, error) {
	w := &withdrawals.Withdrawal{}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM withdrawals WHERE id = $1`, id)
	if err := scanWithdrawal(row, w); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, withdrawals.ErrWithdrawalNotFound
		}

		return nil, fmt.Errorf("get withdrawal: %w", err)
	}

	return w, nil
}

func (r *withdrawalsRepo) LockAndGet(tx *sql.Tx, id uuid.UUID) (*withdrawals.Withdrawal, error) {
	w := &withdrawals.Withdrawal{}

	row := tx.QueryRow(
		`SELECT `+columns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id)
	if err := scanWithdrawal(row, w); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, withdrawals.ErrWithdrawalNotFound
		}

		return nil, fmt.Errorf("lock/get withdrawal: %w", err)
	}

	return w, nil
}
