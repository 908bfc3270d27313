package sessions

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/sessions"
)

var _ sessions.Sessions = (*sessionsRepo)(nil)

type sessionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *sessionsRepo {
	return &sessionsRepo{db: db}
}

func (r *sessionsRepo) MarkSettled(tx *sql.Tx, sessionID, game string, userID uuid.UUID, payoutCredits int64) error {
	res, err := tx.Exec(`
		INSERT INTO settled_sessions (session_id, game, user_id, payout_credits)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, game, userID, payoutCredits)
	if err != nil {
		return fmt.Errorf("mark settled: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return sessions.ErrAlreadySettled
	}

	return nil
}
