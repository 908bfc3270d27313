package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrUserNotFound = errors.New("user not found")

// Balance is the bucketed credit balance of one user. Buckets never go
// negative.
type Balance struct {
	Purchased int64
	Winnings  int64
	Bonus     int64
}

func (b Balance) Total() int64 {
	return b.Purchased + b.Winnings + b.Bonus
}

func (b Balance) IsZero() bool {
	return b == Balance{}
}

type User struct {
	ID                  uuid.UUID
	WalletAddress       string
	WelcomeBonusClaimed bool
	Balance             Balance
	CreatedAt           time.Time
}

type Users interface {
	// Ensure returns the user for walletAddress, creating it with a zero
	// balance when it does not exist yet.
	Ensure(tx *sql.Tx, walletAddress string) (*User, error)
	GetByWallet(ctx context.Context, walletAddress string) (*User, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (Balance, error)
	// LockAndGet takes the row lock that serializes all balance mutations
	// for one user.
	LockAndGet(tx *sql.Tx, userID uuid.UUID) (*User, error)
	// ApplyDelta adjusts all three buckets at once. The update is guarded
	// so no bucket can pass below zero; a failed guard reports
	// ErrInsufficientFunds.
	ApplyDelta(tx *sql.Tx, userID uuid.UUID, deltaPurchased, deltaWinnings, deltaBonus int64) (Balance, error)
	// ClaimWelcomeBonus flips the claimed flag and reports whether this
	// call was the one that claimed it.
	ClaimWelcomeBonus(tx *sql.Tx, userID uuid.UUID) (bool, error)
}
