package verifier

import (
	"errors"
	"time"
)

var ErrInvalidTxHash = errors.New("invalid transaction hash")

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusNotFound  Status = "not_found"
	StatusError     Status = "error"
)

// Outcome is the normalized result of one verification, whatever the RPC
// node answered. Verified is true only for a confirmed transaction that
// matches the expected amount and destination.
type Outcome struct {
	Verified bool
	Status   Status
	Detail   string
}

// Backoff is the retry policy for transactions the chain has not surfaced
// yet. Delay grows exponentially from BaseDelay and is capped at MaxDelay.
type Backoff struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt >= 63 {
		return b.MaxDelay
	}

	d := b.BaseDelay << attempt
	if d <= 0 || d > b.MaxDelay {
		return b.MaxDelay
	}

	return d
}
