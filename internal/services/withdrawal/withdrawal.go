// Package withdrawal turns credits back into on-chain payouts and walks
// each request through its status machine.
package withdrawal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/infra/metrics"
	"github.com/fastprodman/cratecore/internal/infra/pgutils"
	"github.com/fastprodman/cratecore/internal/repos/users"
	pgusers "github.com/fastprodman/cratecore/internal/repos/users/postgres"
	"github.com/fastprodman/cratecore/internal/repos/withdrawals"
	pgwithdrawals "github.com/fastprodman/cratecore/internal/repos/withdrawals/postgres"
	"github.com/fastprodman/cratecore/internal/services/ledger"
	"github.com/fastprodman/cratecore/internal/services/pricing"
	"github.com/fastprodman/cratecore/internal/services/verifier"
)

type WithdrawalService struct {
	db          *sql.DB
	ledger      *ledger.LedgerService
	pricing     pricing.Provider
	users       users.Users
	withdrawals withdrawals.Withdrawals
}

func New(dbx *sql.DB, ledgerSvc *ledger.LedgerService, priceSrc pricing.Provider) *WithdrawalService {
	return &WithdrawalService{
		db:          dbx,
		ledger:      ledgerSvc,
		pricing:     priceSrc,
		users:       pgusers.New(dbx),
		withdrawals: pgwithdrawals.New(dbx),
	}
}

// Quote prices a withdrawal at the current rate without reserving anything.
func (s *WithdrawalService) Quote(ctx context.Context, credits int64) (*Quote, error) {
	prc, err := s.pricing.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}

	return ComputeQuote(credits, prc)
}

// Submit reserves the credits and opens a pending withdrawal. The debit and
// the withdrawal row commit together; the row snapshots the quote and the
// winnings/purchased split so a later cancel can refund it exactly.
func (s *WithdrawalService) Submit(ctx context.Context, input SubmitInput) (*withdrawals.Withdrawal, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidWithdrawal)
	}
	if input.DestinationAddress != "" && !common.IsHexAddress(input.DestinationAddress) {
		return nil, fmt.Errorf("%w: bad destination address", ErrInvalidWithdrawal)
	}

	prc, err := s.pricing.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}

	quote, err := ComputeQuote(input.Credits, prc)
	if err != nil {
		return nil, err
	}

	w := &withdrawals.Withdrawal{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Credits:        input.Credits,
		GrossAmountWei: quote.GrossAmountWei,
		PlatformFeeWei: quote.PlatformFeeWei,
		NetworkFeeWei:  quote.NetworkFeeWei,
		NetAmountWei:   quote.NetAmountWei,
		Status:         withdrawals.StatusPending,
	}

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// 1) Lock the user; this also resolves the payout wallet.
		u, err := s.users.LockAndGet(tx, input.UserID)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		w.DestinationAddress = u.WalletAddress
		if input.DestinationAddress != "" {
			w.DestinationAddress = strings.ToLower(common.HexToAddress(input.DestinationAddress).Hex())
		}

		// 2) Debit winnings first, then purchased. Bonus credits never
		// leave the house.
		res, err := s.ledger.DecrementWithdrawableTx(tx, input.UserID, input.Credits, "withdrawal", withdrawKey(w.ID))
		if err != nil {
			return err
		}
		w.FromWinnings = res.FromWinnings
		w.FromPurchased = res.FromPurchased

		// 3) Open the request
		return s.withdrawals.Create(tx, w)
	})
	if err != nil {
		return nil, err
	}

	metrics.WithdrawalTransitionsTotal.WithLabelValues(string(withdrawals.StatusPending)).Inc()
	slog.Info("withdrawal submitted",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"credits", w.Credits,
		"net_wei", w.NetAmountWei)

	return w, nil
}

// SetStatus moves a withdrawal along pending -> processing -> completed.
// Processing can fall back to pending, and a pending request can be
// cancelled, which refunds the debit to the buckets it came from.
// Completing requires the payout transaction hash as proof.
func (s *WithdrawalService) SetStatus(ctx context.Context, id uuid.UUID, to withdrawals.Status, payoutTxHash string) (*withdrawals.Withdrawal, error) {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		w, err := s.withdrawals.LockAndGet(tx, id)
		if err != nil {
			return err
		}

		switch {
		case w.Status == withdrawals.StatusPending && to == withdrawals.StatusProcessing:
			return s.withdrawals.UpdateStatus(tx, id, w.Status, to)

		case w.Status == withdrawals.StatusProcessing && to == withdrawals.StatusPending:
			return s.withdrawals.UpdateStatus(tx, id, w.Status, to)

		case w.Status == withdrawals.StatusProcessing && to == withdrawals.StatusCompleted:
			proof, err := verifier.NormalizeTxHash(payoutTxHash)
			if err != nil {
				return fmt.Errorf("payout proof: %w", err)
			}

			return s.withdrawals.CompleteWithProof(tx, id, proof)

		case w.Status == withdrawals.StatusPending && to == withdrawals.StatusCancelled:
			if err := s.withdrawals.UpdateStatus(tx, id, w.Status, to); err != nil {
				return err
			}

			_, err := s.ledger.ApplyTx(tx, ledger.ApplyInput{
				UserID: w.UserID,
				Delta: ledger.Delta{
					Purchased: w.FromPurchased,
					Winnings:  w.FromWinnings,
				},
				Reason:         "withdrawal_refund",
				IdempotencyKey: refundKey(id),
			})
			if err != nil {
				return fmt.Errorf("refund: %w", err)
			}

			return nil

		default:
			return fmt.Errorf("%w: %s to %s", withdrawals.ErrInvalidTransition, w.Status, to)
		}
	})
	if err != nil {
		return nil, err
	}

	metrics.WithdrawalTransitionsTotal.WithLabelValues(string(to)).Inc()

	updated, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload withdrawal: %w", err)
	}

	if to == withdrawals.StatusCancelled {
		slog.Info("withdrawal cancelled and refunded",
			"withdrawal_id", id,
			"user_id", updated.UserID,
			"from_winnings", updated.FromWinnings,
			"from_purchased", updated.FromPurchased)
	}

	return updated, nil
}

func (s *WithdrawalService) Get(ctx context.Context, id uuid.UUID) (*withdrawals.Withdrawal, error) {
	return s.withdrawals.GetByID(ctx, id)
}

func (s *WithdrawalService) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]withdrawals.Withdrawal, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	return s.withdrawals.ListByUser(ctx, userID, limit)
}

func withdrawKey(id uuid.UUID) string { return "withdraw:" + id.String() }

func refundKey(id uuid.UUID) string { return withdrawKey(id) + ":refund" }
