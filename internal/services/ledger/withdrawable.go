package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/infra/metrics"
	"github.com/fastprodman/cratecore/internal/infra/pgutils"
	"github.com/fastprodman/cratecore/internal/repos/entries"
)

// DecrementWithdrawable debits credits from the withdrawable buckets,
// winnings first, then purchased. Bonus credits are never withdrawable.
func (s *LedgerService) DecrementWithdrawable(ctx context.Context, userID uuid.UUID, credits int64, reason, idempotencyKey string) (*WithdrawResult, error) {
	var result *WithdrawResult

	run := func() error {
		return pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			r, err := s.DecrementWithdrawableTx(tx, userID, credits, reason, idempotencyKey)
			if err != nil {
				return err
			}

			result = r

			return nil
		})
	}

	err := run()
	if errors.Is(err, entries.ErrDuplicateKey) {
		err = run()
	}
	if err != nil {
		metrics.LedgerAppliesTotal.WithLabelValues(applyOutcome(err)).Inc()
		return nil, s.classify(err)
	}

	if result.Replayed {
		metrics.LedgerAppliesTotal.WithLabelValues("replayed").Inc()
	} else {
		metrics.LedgerAppliesTotal.WithLabelValues("applied").Inc()
	}

	return result, nil
}

// DecrementWithdrawableTx is the caller-owned-transaction variant, used by
// the withdrawal flow to bundle the debit with the withdrawal row insert.
func (s *LedgerService) DecrementWithdrawableTx(tx *sql.Tx, userID uuid.UUID, credits int64, reason, idempotencyKey string) (*WithdrawResult, error) {
	if userID == uuid.Nil || reason == "" {
		return nil, fmt.Errorf("%w: user id and reason are required", ErrInvalidInput)
	}
	if credits <= 0 {
		return nil, fmt.Errorf("%w: credits must be positive", ErrInvalidInput)
	}

	u, err := s.users.LockAndGet(tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}

	if idempotencyKey != "" {
		prior, err := s.entries.FindByKey(tx, idempotencyKey)
		if err != nil && !errors.Is(err, entries.ErrEntryNotFound) {
			return nil, fmt.Errorf("find by key: %w", err)
		}
		if prior != nil {
			return replayWithdrawResult(prior, userID, credits, reason, idempotencyKey)
		}
	}

	if u.Balance.Winnings+u.Balance.Purchased < credits {
		return nil, fmt.Errorf("withdrawable %d of %d: %w",
			u.Balance.Winnings+u.Balance.Purchased, credits, ErrInsufficientWithdrawable)
	}

	fromWinnings := credits
	if u.Balance.Winnings < credits {
		fromWinnings = u.Balance.Winnings
	}
	fromPurchased := credits - fromWinnings

	newBalance, err := s.users.ApplyDelta(tx, userID, -fromPurchased, -fromWinnings, 0)
	if err != nil {
		return nil, fmt.Errorf("apply delta: %w", err)
	}

	entry := &entries.Entry{
		UserID:         userID,
		DeltaPurchased: -fromPurchased,
		DeltaWinnings:  -fromWinnings,
		After:          newBalance,
		Reason:         reason,
		IdempotencyKey: idempotencyKey,
	}
	if err := s.entries.Insert(tx, entry); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return &WithdrawResult{
		EntryID:       entry.ID,
		FromWinnings:  fromWinnings,
		FromPurchased: fromPurchased,
		New:           newBalance,
	}, nil
}

func replayWithdrawResult(prior *entries.Entry, userID uuid.UUID, credits int64, reason, key string) (*WithdrawResult, error) {
	sameRequest := prior.UserID == userID &&
		prior.DeltaWinnings+prior.DeltaPurchased == -credits &&
		prior.DeltaBonus == 0 &&
		prior.Reason == reason
	if !sameRequest {
		return nil, fmt.Errorf("%w: key %q", ErrIdempotencyConflict, key)
	}

	return &WithdrawResult{
		EntryID:       prior.ID,
		FromWinnings:  -prior.DeltaWinnings,
		FromPurchased: -prior.DeltaPurchased,
		New:           prior.After,
		Replayed:      true,
	}, nil
}
