package settlement

import (
	"errors"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/repos/users"
)

var ErrInvalidSettlement = errors.New("invalid settlement request")

type SettleInput struct {
	SessionID string
	Game      string
	UserID    uuid.UUID
	// PayoutCredits may be zero for a losing session; the session is
	// still marked settled so it cannot pay out later.
	PayoutCredits int64
}

type SettleResult struct {
	// EntryID is zero when the payout was zero and no entry was written.
	EntryID       int64
	PayoutCredits int64
	New           users.Balance
}

type StakeInput struct {
	SessionID string
	Game      string
	UserID    uuid.UUID
	Credits   int64
}

// StakeResult reports which buckets funded the stake. Bonus credits burn
// first, then purchased, then winnings.
type StakeResult struct {
	EntryID       int64
	FromBonus     int64
	FromPurchased int64
	FromWinnings  int64
	New           users.Balance
	Replayed      bool
}
