package entries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/users"
)

var ErrDuplicateKey = errors.New("duplicate idempotency key")
var ErrEntryNotFound = errors.New("ledger entry not found")

// Entry is one immutable ledger line. After holds the balance snapshot
// taken right after the deltas were applied. IdempotencyKey is empty for
// entries recorded without one.
type Entry struct {
	ID             int64
	UserID         uuid.UUID
	DeltaPurchased int64
	DeltaWinnings  int64
	DeltaBonus     int64
	After          users.Balance
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
}

type Entries interface {
	// Insert appends the entry and fills ID and CreatedAt. A reused
	// idempotency key reports ErrDuplicateKey.
	Insert(tx *sql.Tx, entry *Entry) error
	FindByKey(tx *sql.Tx, key string) (*Entry, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Entry, error)
}
