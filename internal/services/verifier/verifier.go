package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fastprodman/cratecore/internal/infra/clock"
	"github.com/fastprodman/cratecore/internal/infra/metrics"
)

// TxFetcher is the slice of the RPC client the verifier needs. The
// signatures line up with ethclient, so the failover client drops in
// directly.
type TxFetcher interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// VerifierService checks that a payment transaction is confirmed on chain
// and carries the expected amount to the expected address. Transactions
// the node has not surfaced yet are retried with backoff; everything else
// resolves in a single attempt.
type VerifierService struct {
	fetcher TxFetcher
	backoff Backoff
	clock   clock.Clock
}

func New(fetcher TxFetcher, backoff Backoff, clk clock.Clock) *VerifierService {
	if backoff.Attempts < 1 {
		backoff.Attempts = 1
	}

	return &VerifierService{
		fetcher: fetcher,
		backoff: backoff,
		clock:   clk,
	}
}

// Verify resolves the hash to a normalized Outcome. The returned error is
// non-nil only for invalid input or a cancelled context; chain-side
// problems are reported through the Outcome instead.
func (s *VerifierService) Verify(ctx context.Context, txHash string, expectedAmount *big.Int, expectedAddress common.Address) (Outcome, error) {
	hash, err := NormalizeTxHash(txHash)
	if err != nil {
		return Outcome{}, err
	}
	if expectedAmount == nil || expectedAmount.Sign() <= 0 {
		return Outcome{}, fmt.Errorf("%w: expected amount must be positive", ErrInvalidTxHash)
	}

	var outcome Outcome

	for attempt := 0; attempt < s.backoff.Attempts; attempt++ {
		outcome = s.lookup(ctx, common.HexToHash(hash), expectedAmount, expectedAddress)
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}

		// Only transactions the chain may still surface are worth
		// another attempt.
		if outcome.Status != StatusPending && outcome.Status != StatusNotFound {
			break
		}
		if attempt == s.backoff.Attempts-1 {
			break
		}

		delay := s.backoff.Delay(attempt)
		slog.Debug("transaction not confirmed yet, retrying",
			"tx_hash", hash, "attempt", attempt+1, "delay", delay)

		select {
		case <-s.clock.After(delay):
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}

	metrics.VerificationsTotal.WithLabelValues(string(outcome.Status)).Inc()

	return outcome, nil
}

func (s *VerifierService) lookup(ctx context.Context, hash common.Hash, expectedAmount *big.Int, expectedAddress common.Address) Outcome {
	tx, isPending, err := s.fetcher.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return Outcome{Status: StatusNotFound, Detail: "transaction not found"}
		}

		return Outcome{Status: StatusError, Detail: fmt.Sprintf("fetch transaction: %v", err)}
	}

	if isPending {
		return Outcome{Status: StatusPending, Detail: "transaction in mempool"}
	}

	receipt, err := s.fetcher.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			// Mined but the receipt is not indexed yet.
			return Outcome{Status: StatusPending, Detail: "receipt not available yet"}
		}

		return Outcome{Status: StatusError, Detail: fmt.Sprintf("fetch receipt: %v", err)}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return Outcome{Status: StatusError, Detail: "transaction reverted"}
	}

	if tx.To() == nil || *tx.To() != expectedAddress {
		return Outcome{Status: StatusError,
			Detail: fmt.Sprintf("destination mismatch: want %s", expectedAddress.Hex())}
	}

	if tx.Value().Cmp(expectedAmount) != 0 {
		return Outcome{Status: StatusError,
			Detail: fmt.Sprintf("amount mismatch: want %s wei, got %s wei",
				expectedAmount, tx.Value())}
	}

	return Outcome{Verified: true, Status: StatusConfirmed}
}
