package purchase

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/cratecore/internal/repos/users"
)

var (
	ErrInvalidPurchase = errors.New("invalid purchase request")
	// ErrAlreadyProcessed means this tx hash funded credits before. The
	// returned Result carries the prior purchase.
	ErrAlreadyProcessed = errors.New("transaction already processed")
	// ErrVerificationPending means the chain has not confirmed the
	// transaction yet; the client should retry later.
	ErrVerificationPending = errors.New("verification pending")
	ErrVerificationFailed  = errors.New("verification failed")
	// ErrTransactionLogFailed means the credits were applied but the
	// purchase row could not be written; the apply was rolled back.
	ErrTransactionLogFailed = errors.New("transaction log failed")
	// ErrCompensationFailed means the rollback itself failed and the
	// books are off until someone reconciles them by hand.
	ErrCompensationFailed = errors.New("compensation failed")
	// ErrPurchaseRolledBack means this hash was applied and compensated
	// earlier; re-crediting it needs manual review.
	ErrPurchaseRolledBack = errors.New("purchase was rolled back")
)

type Input struct {
	WalletAddress string
	TxHash        string
	// Credits the client expects for this payment. Must match what the
	// paid amount buys at the current rate.
	Credits int64
	// ExpectedAmount is the payment size in wei.
	ExpectedAmount decimal.Decimal
	// ExpectedAddress is the deposit address the payment must have gone
	// to. It has to match the configured one.
	ExpectedAddress string
}

type Result struct {
	UserID           uuid.UUID
	TransactionID    uuid.UUID
	OldBalance       users.Balance
	NewBalance       users.Balance
	CreditsAdded     int64
	BonusAwarded     int64
	AlreadyProcessed bool
}
