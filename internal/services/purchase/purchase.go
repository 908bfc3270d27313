package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/cratecore/internal/infra/metrics"
	"github.com/fastprodman/cratecore/internal/infra/pgutils"
	"github.com/fastprodman/cratecore/internal/repos/entries"
	pgentries "github.com/fastprodman/cratecore/internal/repos/entries/postgres"
	"github.com/fastprodman/cratecore/internal/repos/purchases"
	pgpurchases "github.com/fastprodman/cratecore/internal/repos/purchases/postgres"
	"github.com/fastprodman/cratecore/internal/repos/settings"
	"github.com/fastprodman/cratecore/internal/repos/users"
	pgusers "github.com/fastprodman/cratecore/internal/repos/users/postgres"
	"github.com/fastprodman/cratecore/internal/services/ledger"
	"github.com/fastprodman/cratecore/internal/services/pricing"
	"github.com/fastprodman/cratecore/internal/services/verifier"
)

// Verifier is the slice of the verification service the purchase flow
// needs; tests swap in a scripted one.
type Verifier interface {
	Verify(ctx context.Context, txHash string, expectedAmount *big.Int, expectedAddress common.Address) (verifier.Outcome, error)
}

// PurchaseService turns a verified on-chain payment into credits. The
// flow is a saga: the ledger apply and the purchase row live in separate
// DB transactions, and a failed row write is compensated by an inverse
// apply.
type PurchaseService struct {
	db        *sql.DB
	ledger    *ledger.LedgerService
	verifier  Verifier
	pricing   pricing.Provider
	users     users.Users
	entries   entries.Entries
	purchases purchases.Purchases
	deposit   common.Address
}

func New(dbx *sql.DB, ledgerSvc *ledger.LedgerService, v Verifier, priceSrc pricing.Provider, depositAddress common.Address) *PurchaseService {
	return &PurchaseService{
		db:        dbx,
		ledger:    ledgerSvc,
		verifier:  v,
		pricing:   priceSrc,
		users:     pgusers.New(dbx),
		entries:   pgentries.New(dbx),
		purchases: pgpurchases.New(dbx),
		deposit:   depositAddress,
	}
}

// Process runs the full purchase flow:
//
// 1) Validate the request against the current pricing.
// 2) Duplicate guard on the tx hash.
// 3) Verify the payment on chain (the only step that may block on retries).
// 4) Ensure the user exists.
// 5) Decide the welcome bonus under the user row lock.
// 6) Apply credits plus bonus through the ledger (idempotent by tx hash).
// 7) Record the purchase row; on failure compensate the apply.
// 8) Fold the purchase into the aggregate stats, best effort.
func (s *PurchaseService) Process(ctx context.Context, input Input) (*Result, error) {
	// 1) Validate
	hash, prc, amountWei, err := s.validate(ctx, input)
	if err != nil {
		metrics.PurchasesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	// 2) Duplicate guard. The unique index on tx_hash is the real
	// barrier; this read just answers the common case without touching
	// the chain.
	prior, err := s.purchases.GetByTxHash(ctx, hash)
	if err != nil && !errors.Is(err, purchases.ErrPurchaseNotFound) {
		return nil, fmt.Errorf("duplicate guard: %w", err)
	}
	if prior != nil {
		metrics.PurchasesTotal.WithLabelValues("already_processed").Inc()
		return s.priorResult(ctx, prior)
	}

	// 3) Verify the payment
	outcome, err := s.verifier.Verify(ctx, hash, amountWei, s.deposit)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if !outcome.Verified {
		if outcome.Status == verifier.StatusPending || outcome.Status == verifier.StatusNotFound {
			metrics.PurchasesTotal.WithLabelValues("verification_pending").Inc()
			return nil, fmt.Errorf("%w: %s", ErrVerificationPending, outcome.Status)
		}

		metrics.PurchasesTotal.WithLabelValues("verification_failed").Inc()
		return nil, fmt.Errorf("%w: %s", ErrVerificationFailed, outcome.Detail)
	}

	// 4-6) Credit the user
	applied, bonus, userID, err := s.credit(ctx, input, hash, prc.WelcomeBonusCredits)
	if errors.Is(err, entries.ErrDuplicateKey) {
		// A concurrent request committed the same hash while ours was in
		// flight, which aborted ours. Re-running takes the replay path.
		applied, bonus, userID, err = s.credit(ctx, input, hash, prc.WelcomeBonusCredits)
	}
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, ErrPurchaseRolledBack) {
			metrics.PurchasesTotal.WithLabelValues("already_processed").Inc()
		}
		return nil, err
	}

	// 7) Record the purchase row. It mirrors the applied entry, which on
	// the replay path may predate the current pricing.
	row := &purchases.Purchase{
		UserID:        userID,
		TxHash:        hash,
		AmountWei:     input.ExpectedAmount,
		Credits:       applied.New.Purchased - applied.Old.Purchased,
		BonusCredits:  bonus,
		LedgerEntryID: applied.EntryID,
	}
	if err := s.recordPurchase(ctx, row, applied); err != nil {
		return nil, err
	}

	// 8) Aggregate stats, best effort
	if err := s.purchases.BumpStats(ctx, row.Credits, row.BonusCredits, row.AmountWei); err != nil {
		slog.Warn("purchase stats update failed",
			"tx_hash", hash, "error", err)
	}

	metrics.PurchasesTotal.WithLabelValues("completed").Inc()

	return &Result{
		UserID:           userID,
		TransactionID:    row.ID,
		OldBalance:       applied.Old,
		NewBalance:       applied.New,
		CreditsAdded:     row.Credits + row.BonusCredits,
		BonusAwarded:     bonus,
		AlreadyProcessed: applied.Replayed,
	}, nil
}

func (s *PurchaseService) validate(ctx context.Context, input Input) (string, *settings.Pricing, *big.Int, error) {
	hash, err := verifier.NormalizeTxHash(input.TxHash)
	if err != nil {
		return "", nil, nil, err
	}

	if !common.IsHexAddress(input.WalletAddress) {
		return "", nil, nil, fmt.Errorf("%w: bad wallet address", ErrInvalidPurchase)
	}
	if !common.IsHexAddress(input.ExpectedAddress) {
		return "", nil, nil, fmt.Errorf("%w: bad deposit address", ErrInvalidPurchase)
	}
	if common.HexToAddress(input.ExpectedAddress) != s.deposit {
		return "", nil, nil, fmt.Errorf("%w: unknown deposit address", ErrInvalidPurchase)
	}
	if input.Credits <= 0 {
		return "", nil, nil, fmt.Errorf("%w: credits must be positive", ErrInvalidPurchase)
	}
	if !input.ExpectedAmount.IsInteger() || input.ExpectedAmount.Sign() <= 0 {
		return "", nil, nil, fmt.Errorf("%w: amount must be a positive integer wei value", ErrInvalidPurchase)
	}

	prc, err := s.pricing.Current(ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("load pricing: %w", err)
	}

	// Shift is exact, so no division rounding can sneak in.
	wantCredits := input.ExpectedAmount.Mul(prc.CreditsPerToken).Shift(-18).Floor()
	if !decimal.NewFromInt(input.Credits).Equal(wantCredits) {
		return "", nil, nil, fmt.Errorf("%w: %s wei buys %s credits, not %d",
			ErrInvalidPurchase, input.ExpectedAmount, wantCredits, input.Credits)
	}

	return hash, prc, input.ExpectedAmount.BigInt(), nil
}

// credit runs steps 4-6 in one DB transaction: resolve the user, decide
// the welcome bonus under the row lock, apply the delta. A hash that was
// applied before takes the replay path without touching the bonus flag.
func (s *PurchaseService) credit(ctx context.Context, input Input, hash string, welcomeBonus int64) (*ledger.ApplyResult, int64, uuid.UUID, error) {
	var (
		applied *ledger.ApplyResult
		bonus   int64
		userID  uuid.UUID
	)

	key := purchaseKey(hash)

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// 4) Resolve or create the user. The upsert locks the row, so
		// everything below is serialized per user.
		u, err := s.users.Ensure(tx, normalizeWallet(input.WalletAddress))
		if err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		userID = u.ID

		// A rollback entry means this hash was credited and compensated
		// before; re-crediting it silently would undo the compensation.
		if _, err := s.entries.FindByKey(tx, rollbackKey(hash)); err == nil {
			return fmt.Errorf("%w: %s", ErrPurchaseRolledBack, hash)
		} else if !errors.Is(err, entries.ErrEntryNotFound) {
			return fmt.Errorf("check rollback entry: %w", err)
		}

		prior, err := s.entries.FindByKey(tx, key)
		if err != nil && !errors.Is(err, entries.ErrEntryNotFound) {
			return fmt.Errorf("check prior entry: %w", err)
		}
		if prior != nil {
			if prior.UserID != u.ID {
				// Someone else's purchase already spent this hash.
				return fmt.Errorf("%w: %s", ErrAlreadyProcessed, hash)
			}

			// 6-replay) Re-apply with the original delta; the ledger
			// returns the recorded result without mutating.
			applied, err = s.ledger.ApplyTx(tx, ledger.ApplyInput{
				UserID: u.ID,
				Delta: ledger.Delta{
					Purchased: prior.DeltaPurchased,
					Winnings:  prior.DeltaWinnings,
					Bonus:     prior.DeltaBonus,
				},
				Reason:         prior.Reason,
				IdempotencyKey: key,
			})
			if err != nil {
				return fmt.Errorf("replay apply: %w", err)
			}

			bonus = prior.DeltaBonus

			return nil
		}

		// 5) Welcome bonus: only for a never-claimed user sitting at an
		// exactly zero balance, decided while the row lock is held.
		if !u.WelcomeBonusClaimed && u.Balance.IsZero() && welcomeBonus > 0 {
			claimed, err := s.users.ClaimWelcomeBonus(tx, u.ID)
			if err != nil {
				return fmt.Errorf("claim welcome bonus: %w", err)
			}
			if claimed {
				bonus = welcomeBonus
			}
		}

		// 6) Apply credits plus bonus as one ledger entry
		applied, err = s.ledger.ApplyTx(tx, ledger.ApplyInput{
			UserID: u.ID,
			Delta: ledger.Delta{
				Purchased: input.Credits,
				Bonus:     bonus,
			},
			Reason:         "credit_purchase",
			IdempotencyKey: key,
		})
		if err != nil {
			return fmt.Errorf("apply purchase: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, 0, uuid.Nil, err
	}

	return applied, bonus, userID, nil
}

// recordPurchase is step 7. A failure here compensates the apply from
// step 6 so the user does not keep credits the books cannot explain.
func (s *PurchaseService) recordPurchase(ctx context.Context, row *purchases.Purchase, applied *ledger.ApplyResult) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.purchases.Create(tx, row)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, purchases.ErrDuplicateTransaction) {
		if !applied.Replayed {
			// A row with no matching ledger entry should not exist; put
			// the fresh apply back before reporting the duplicate.
			if cerr := s.compensate(ctx, row, applied); cerr != nil {
				return cerr
			}
		}

		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, row.TxHash)
	}

	if applied.Replayed {
		// Nothing was freshly applied, so there is nothing to undo.
		return fmt.Errorf("%w: %s", ErrTransactionLogFailed, err)
	}

	if cerr := s.compensate(ctx, row, applied); cerr != nil {
		return cerr
	}

	return fmt.Errorf("%w: %s", ErrTransactionLogFailed, err)
}

func (s *PurchaseService) compensate(ctx context.Context, row *purchases.Purchase, applied *ledger.ApplyResult) error {
	comp, err := s.ledger.Apply(ctx, ledger.ApplyInput{
		UserID: row.UserID,
		Delta: ledger.Delta{
			Purchased: -row.Credits,
			Bonus:     -row.BonusCredits,
		},
		Reason:         "purchase_rollback",
		IdempotencyKey: rollbackKey(row.TxHash),
	})
	if err != nil {
		metrics.CompensationFailures.Inc()
		slog.Error("purchase compensation failed, manual reconciliation required",
			"tx_hash", row.TxHash,
			"user_id", row.UserID,
			"entry_id", applied.EntryID,
			"credits", row.Credits,
			"bonus", row.BonusCredits,
			"error", err)

		return fmt.Errorf("%w: %s", ErrCompensationFailed, err)
	}

	slog.Warn("purchase rolled back",
		"tx_hash", row.TxHash,
		"user_id", row.UserID,
		"entry_id", applied.EntryID,
		"rollback_entry_id", comp.EntryID)
	metrics.PurchasesTotal.WithLabelValues("rolled_back").Inc()

	return nil
}

func (s *PurchaseService) priorResult(ctx context.Context, prior *purchases.Purchase) (*Result, error) {
	balance, err := s.ledger.GetBalance(ctx, prior.UserID)
	if err != nil {
		return nil, fmt.Errorf("read balance for duplicate: %w", err)
	}

	return &Result{
		UserID:           prior.UserID,
		TransactionID:    prior.ID,
		NewBalance:       balance,
		CreditsAdded:     prior.Credits + prior.BonusCredits,
		BonusAwarded:     prior.BonusCredits,
		AlreadyProcessed: true,
	}, fmt.Errorf("%w: %s", ErrAlreadyProcessed, prior.TxHash)
}

func purchaseKey(hash string) string { return "purchase:" + hash }

func rollbackKey(hash string) string { return purchaseKey(hash) + ":rollback" }

func normalizeWallet(addr string) string {
	return strings.ToLower(common.HexToAddress(addr).Hex())
}
