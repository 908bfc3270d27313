// Package settlement moves game outcomes onto the ledger: stakes burn
// credits when a session starts, wins credit the winnings bucket when it
// ends. Each session settles at most once.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/infra/pgutils"
	"github.com/fastprodman/cratecore/internal/repos/entries"
	pgentries "github.com/fastprodman/cratecore/internal/repos/entries/postgres"
	"github.com/fastprodman/cratecore/internal/repos/sessions"
	pgsessions "github.com/fastprodman/cratecore/internal/repos/sessions/postgres"
	"github.com/fastprodman/cratecore/internal/repos/users"
	pgusers "github.com/fastprodman/cratecore/internal/repos/users/postgres"
	"github.com/fastprodman/cratecore/internal/services/ledger"
)

type SettlementService struct {
	db       *sql.DB
	ledger   *ledger.LedgerService
	users    users.Users
	entries  entries.Entries
	sessions sessions.Sessions
}

func New(dbx *sql.DB, ledgerSvc *ledger.LedgerService) *SettlementService {
	return &SettlementService{
		db:       dbx,
		ledger:   ledgerSvc,
		users:    pgusers.New(dbx),
		entries:  pgentries.New(dbx),
		sessions: pgsessions.New(dbx),
	}
}

// SettleWin pays out a finished session. The settled-session guard row is
// written before the ledger credit, in the same transaction, so a session
// that already paid out reports sessions.ErrAlreadySettled and changes
// nothing.
func (s *SettlementService) SettleWin(ctx context.Context, input SettleInput) (*SettleResult, error) {
	if input.SessionID == "" || input.Game == "" {
		return nil, fmt.Errorf("%w: session id and game are required", ErrInvalidSettlement)
	}
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidSettlement)
	}
	if input.PayoutCredits < 0 {
		return nil, fmt.Errorf("%w: payout cannot be negative", ErrInvalidSettlement)
	}

	var applied *ledger.ApplyResult

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// 1) Claim the session. Losing the claim aborts before any credit.
		if err := s.sessions.MarkSettled(tx, input.SessionID, input.Game, input.UserID, input.PayoutCredits); err != nil {
			return err
		}

		if input.PayoutCredits == 0 {
			return nil
		}

		// 2) Credit the win
		var err error
		applied, err = s.ledger.ApplyTx(tx, ledger.ApplyInput{
			UserID:         input.UserID,
			Delta:          ledger.Delta{Winnings: input.PayoutCredits},
			Reason:         "win:" + input.Game,
			IdempotencyKey: settleKey(input.SessionID),
		})
		if err != nil {
			return fmt.Errorf("credit win: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &SettleResult{PayoutCredits: input.PayoutCredits}
	if applied != nil {
		result.EntryID = applied.EntryID
		result.New = applied.New
	} else {
		result.New, err = s.ledger.GetBalance(ctx, input.UserID)
		if err != nil {
			return nil, fmt.Errorf("read balance: %w", err)
		}
	}

	slog.Info("session settled",
		"session_id", input.SessionID,
		"game", input.Game,
		"user_id", input.UserID,
		"payout_credits", input.PayoutCredits)

	return result, nil
}

// PlaceStake burns the stake, bonus credits first, then purchased, then
// winnings. The session id keys the entry, so replaying the same stake
// reports the original burn instead of burning again.
func (s *SettlementService) PlaceStake(ctx context.Context, input StakeInput) (*StakeResult, error) {
	if input.SessionID == "" || input.Game == "" {
		return nil, fmt.Errorf("%w: session id and game are required", ErrInvalidSettlement)
	}
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidSettlement)
	}
	if input.Credits <= 0 {
		return nil, fmt.Errorf("%w: stake must be positive", ErrInvalidSettlement)
	}

	var result *StakeResult
	reason := "stake:" + input.Game
	key := stakeKey(input.SessionID)

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		u, err := s.users.LockAndGet(tx, input.UserID)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		prior, err := s.entries.FindByKey(tx, key)
		if err != nil && !errors.Is(err, entries.ErrEntryNotFound) {
			return fmt.Errorf("find by key: %w", err)
		}
		if prior != nil {
			result, err = replayStakeResult(prior, input, reason, key)
			return err
		}

		if u.Balance.Total() < input.Credits {
			return fmt.Errorf("balance %d of %d: %w", u.Balance.Total(), input.Credits, users.ErrInsufficientFunds)
		}

		fromBonus := input.Credits
		if u.Balance.Bonus < fromBonus {
			fromBonus = u.Balance.Bonus
		}
		fromPurchased := input.Credits - fromBonus
		if u.Balance.Purchased < fromPurchased {
			fromPurchased = u.Balance.Purchased
		}
		fromWinnings := input.Credits - fromBonus - fromPurchased

		applied, err := s.ledger.ApplyTx(tx, ledger.ApplyInput{
			UserID: input.UserID,
			Delta: ledger.Delta{
				Purchased: -fromPurchased,
				Winnings:  -fromWinnings,
				Bonus:     -fromBonus,
			},
			Reason:         reason,
			IdempotencyKey: key,
		})
		if err != nil {
			return fmt.Errorf("burn stake: %w", err)
		}

		result = &StakeResult{
			EntryID:       applied.EntryID,
			FromBonus:     fromBonus,
			FromPurchased: fromPurchased,
			FromWinnings:  fromWinnings,
			New:           applied.New,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func replayStakeResult(prior *entries.Entry, input StakeInput, reason, key string) (*StakeResult, error) {
	sameRequest := prior.UserID == input.UserID &&
		prior.DeltaPurchased+prior.DeltaWinnings+prior.DeltaBonus == -input.Credits &&
		prior.Reason == reason
	if !sameRequest {
		return nil, fmt.Errorf("%w: key %q", ledger.ErrIdempotencyConflict, key)
	}

	return &StakeResult{
		EntryID:       prior.ID,
		FromBonus:     -prior.DeltaBonus,
		FromPurchased: -prior.DeltaPurchased,
		FromWinnings:  -prior.DeltaWinnings,
		New:           prior.After,
		Replayed:      true,
	}, nil
}

func settleKey(sessionID string) string { return "settle:" + sessionID }

func stakeKey(sessionID string) string { return "stake:" + sessionID }
