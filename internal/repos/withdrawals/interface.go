package withdrawals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrWithdrawalNotFound = errors.New("withdrawal not found")
var ErrInvalidTransition = errors.New("invalid status transition")

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Withdrawal snapshots the quote it was submitted under, so later rate
// changes never affect an accepted request. FromWinnings and FromPurchased
// record which buckets funded it; a cancellation refunds exactly that split.
type Withdrawal struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Credits            int64
	FromWinnings       int64
	FromPurchased      int64
	DestinationAddress string
	GrossAmountWei     decimal.Decimal
	PlatformFeeWei     decimal.Decimal
	NetworkFeeWei      decimal.Decimal
	NetAmountWei       decimal.Decimal
	Status             Status
	PayoutTxHash       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Withdrawals interface {
	Create(tx *sql.Tx, w *Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Withdrawal, error)
	LockAndGet(tx *sql.Tx, id uuid.UUID) (*Withdrawal, error)
	// UpdateStatus moves id from one status to another. It reports
	// ErrInvalidTransition when the row is not currently in from.
	UpdateStatus(tx *sql.Tx, id uuid.UUID, from, to Status) error
	// CompleteWithProof marks a processing withdrawal completed and
	// records the payout transaction hash.
	CompleteWithProof(tx *sql.Tx, id uuid.UUID, payoutTxHash string) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Withdrawal, error)
}
