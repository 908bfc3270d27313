package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/infra/metrics"
	"github.com/fastprodman/cratecore/internal/infra/pgutils"
	"github.com/fastprodman/cratecore/internal/repos/entries"
	pgentries "github.com/fastprodman/cratecore/internal/repos/entries/postgres"
	"github.com/fastprodman/cratecore/internal/repos/users"
	pgusers "github.com/fastprodman/cratecore/internal/repos/users/postgres"
)

// LedgerService is the only writer of user balances. Every accepted
// mutation applies the delta and appends exactly one ledger entry inside
// one DB transaction, serialized per user by the row lock.
type LedgerService struct {
	db      *sql.DB
	users   users.Users
	entries entries.Entries
}

func New(dbx *sql.DB) *LedgerService {
	return &LedgerService{
		db:      dbx,
		users:   pgusers.New(dbx),
		entries: pgentries.New(dbx),
	}
}

// Apply adjusts one user's balance in its own DB transaction.
func (s *LedgerService) Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	result, err := s.applyOnce(ctx, input)
	if errors.Is(err, entries.ErrDuplicateKey) {
		// Another transaction committed the same key while ours was in
		// flight, which aborted ours. Re-running takes the replay path.
		result, err = s.applyOnce(ctx, input)
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

func (s *LedgerService) applyOnce(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	var result *ApplyResult

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		r, err := s.ApplyTx(tx, input)
		if err != nil {
			return err
		}

		result = r

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ApplyTx runs the apply inside a caller-owned transaction, so flows can
// bundle it with their own writes:
//
// 1) Lock the user row (serializes all mutations for this user).
// 2) Look up the idempotency key; a hit replays the original result.
// 3) Pre-check that no bucket would go negative.
// 4) Apply the guarded delta.
// 5) Append the ledger entry with the post-apply snapshot.
func (s *LedgerService) ApplyTx(tx *sql.Tx, input ApplyInput) (*ApplyResult, error) {
	if input.UserID == uuid.Nil || input.Reason == "" {
		return nil, fmt.Errorf("%w: user id and reason are required", ErrInvalidInput)
	}

	// 1) Lock user row
	u, err := s.users.LockAndGet(tx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}

	// 2) Idempotency replay. The lookup happens after the lock, so a
	// concurrent apply with the same key for this user cannot slip in
	// between check and write.
	if input.IdempotencyKey != "" {
		prior, err := s.entries.FindByKey(tx, input.IdempotencyKey)
		if err != nil && !errors.Is(err, entries.ErrEntryNotFound) {
			return nil, fmt.Errorf("find by key: %w", err)
		}
		if prior != nil {
			return replayResult(prior, input)
		}
	}

	delta := input.Delta

	// 3) Pre-check against the locked balance
	if u.Balance.Purchased+delta.Purchased < 0 ||
		u.Balance.Winnings+delta.Winnings < 0 ||
		u.Balance.Bonus+delta.Bonus < 0 {
		return nil, fmt.Errorf("pre-check delta: %w", users.ErrInsufficientFunds)
	}

	// 4) Apply the guarded delta
	newBalance, err := s.users.ApplyDelta(tx, input.UserID, delta.Purchased, delta.Winnings, delta.Bonus)
	if err != nil {
		return nil, fmt.Errorf("apply delta: %w", err)
	}

	// 5) Append the entry
	entry := &entries.Entry{
		UserID:         input.UserID,
		DeltaPurchased: delta.Purchased,
		DeltaWinnings:  delta.Winnings,
		DeltaBonus:     delta.Bonus,
		After:          newBalance,
		Reason:         input.Reason,
		IdempotencyKey: input.IdempotencyKey,
	}
	if err := s.entries.Insert(tx, entry); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return &ApplyResult{
		EntryID: entry.ID,
		Old:     u.Balance,
		New:     newBalance,
	}, nil
}

// GetBalance reads the current buckets without locking.
func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (users.Balance, error) {
	balance, err := s.users.GetBalance(ctx, userID)
	if err != nil {
		return users.Balance{}, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// UserByWallet resolves a wallet address to its user. The address is
// case-normalized the same way the purchase flow stores it.
func (s *LedgerService) UserByWallet(ctx context.Context, wallet string) (*users.User, error) {
	if !common.IsHexAddress(wallet) {
		return nil, fmt.Errorf("%w: bad wallet address", ErrInvalidInput)
	}

	u, err := s.users.GetByWallet(ctx, strings.ToLower(common.HexToAddress(wallet).Hex()))
	if err != nil {
		return nil, fmt.Errorf("get by wallet: %w", err)
	}

	return u, nil
}

// Entries lists a user's ledger history, newest first.
func (s *LedgerService) Entries(ctx context.Context, userID uuid.UUID, limit int) ([]entries.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	list, err := s.entries.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	return list, nil
}

func replayResult(prior *entries.Entry, input ApplyInput) (*ApplyResult, error) {
	sameRequest := prior.UserID == input.UserID &&
		prior.DeltaPurchased == input.Delta.Purchased &&
		prior.DeltaWinnings == input.Delta.Winnings &&
		prior.DeltaBonus == input.Delta.Bonus &&
		prior.Reason == input.Reason
	if !sameRequest {
		return nil, fmt.Errorf("%w: key %q", ErrIdempotencyConflict, input.IdempotencyKey)
	}

	return &ApplyResult{
		EntryID: prior.ID,
		Old: users.Balance{
			Purchased: prior.After.Purchased - prior.DeltaPurchased,
			Winnings:  prior.After.Winnings - prior.DeltaWinnings,
			Bonus:     prior.After.Bonus - prior.DeltaBonus,
		},
		New:      prior.After,
		Replayed: true,
	}, nil
}

// classify keeps domain sentinels intact and folds everything else into
// ErrStoreUnavailable, so callers can tell a business rejection from a
// storage problem.
func (s *LedgerService) classify(err error) error {
	if isDomainErr(err) {
		return err
	}

	return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
}

func isDomainErr(err error) bool {
	return errors.Is(err, users.ErrUserNotFound) ||
		errors.Is(err, users.ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientWithdrawable) ||
		errors.Is(err, ErrIdempotencyConflict) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func applyOutcome(err error) string {
	switch {
	case errors.Is(err, users.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientWithdrawable):
		return "insufficient_withdrawable"
	case errors.Is(err, ErrIdempotencyConflict):
		return "conflict"
	case errors.Is(err, users.ErrUserNotFound):
		return "user_not_found"
	default:
		return "error"
	}
}
