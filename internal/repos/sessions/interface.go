package sessions

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

var ErrAlreadySettled = errors.New("session already settled")

// Sessions records which game sessions have paid out. The insert guard is
// what makes settlement idempotent: the row must be written before the
// ledger credit in the same transaction.
type Sessions interface {
	MarkSettled(tx *sql.Tx, sessionID, game string, userID uuid.UUID, payoutCredits int64) error
}
