package ledger

import (
	"errors"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/users"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrIdempotencyConflict means a key was reused with a different
	// user, delta or reason than the entry it originally produced.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	// ErrInsufficientWithdrawable means the withdrawable buckets
	// (winnings plus purchased) cannot cover the requested amount, even
	// if the bonus bucket could.
	ErrInsufficientWithdrawable = errors.New("insufficient withdrawable balance")
	ErrStoreUnavailable         = errors.New("ledger store unavailable")
)

// Delta is a signed adjustment across the three balance buckets.
type Delta struct {
	Purchased int64
	Winnings  int64
	Bonus     int64
}

func (d Delta) IsZero() bool {
	return d == Delta{}
}

func (d Delta) Negate() Delta {
	return Delta{Purchased: -d.Purchased, Winnings: -d.Winnings, Bonus: -d.Bonus}
}

type ApplyInput struct {
	UserID uuid.UUID
	Delta  Delta
	Reason string
	// IdempotencyKey, when set, makes the apply at-most-once: a repeat
	// call with the same key returns the original result instead of
	// mutating again.
	IdempotencyKey string
}

type ApplyResult struct {
	EntryID int64
	Old     users.Balance
	New     users.Balance
	// Replayed is true when the key matched an existing entry and no new
	// mutation happened. Callers that pair an apply with a compensation
	// must never compensate a replayed result.
	Replayed bool
}

// WithdrawResult reports how a withdrawable decrement was funded.
type WithdrawResult struct {
	EntryID       int64
	FromWinnings  int64
	FromPurchased int64
	New           users.Balance
	Replayed      bool
}
