package purchases

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrDuplicateTransaction = errors.New("duplicate transaction")
var ErrPurchaseNotFound = errors.New("purchase not found")

// Purchase links one on-chain payment to the credits it funded. TxHash is
// stored lowercase without the 0x prefix and is unique.
type Purchase struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	TxHash        string
	AmountWei     decimal.Decimal
	Credits       int64
	BonusCredits  int64
	LedgerEntryID int64
	CreatedAt     time.Time
}

type Purchases interface {
	// Create inserts the purchase row. A tx hash that was already
	// recorded reports ErrDuplicateTransaction.
	Create(tx *sql.Tx, p *Purchase) error
	GetByTxHash(ctx context.Context, txHash string) (*Purchase, error)
	// BumpStats folds one purchase into the running totals.
	BumpStats(ctx context.Context, credits, bonusCredits int64, amountWei decimal.Decimal) error
}
