package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/fastprodman/cratecore/internal/api"
	"github.com/fastprodman/cratecore/internal/infra/clock"
	"github.com/fastprodman/cratecore/internal/infra/ethrpc"
	"github.com/fastprodman/cratecore/internal/infra/logging"
	"github.com/fastprodman/cratecore/internal/infra/pgutils"
	pgsettings "github.com/fastprodman/cratecore/internal/repos/settings/postgres"
	"github.com/fastprodman/cratecore/internal/services/ledger"
	"github.com/fastprodman/cratecore/internal/services/pricing"
	"github.com/fastprodman/cratecore/internal/services/purchase"
	"github.com/fastprodman/cratecore/internal/services/settlement"
	"github.com/fastprodman/cratecore/internal/services/verifier"
	"github.com/fastprodman/cratecore/internal/services/withdrawal"
	"github.com/fastprodman/cratecore/pkg/envconf"
	"github.com/fastprodman/cratecore/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	// A missing .env is fine; containers pass real environment variables.
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	if !common.IsHexAddress(cfg.Chain.DepositAddress) {
		return fmt.Errorf("bad deposit address %q", cfg.Chain.DepositAddress)
	}

	// --- Infra ---
	dbConns, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		return dbConns.Close()
	})

	rpcClient, err := ethrpc.Dial(ctx, cfg.Chain.Endpoints)
	if err != nil {
		return fmt.Errorf("dial chain rpc: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		rpcClient.Close()

		return nil
	})

	// --- Services ---
	ledgerSrv := ledger.New(dbConns)

	verifierSrv := verifier.New(rpcClient, verifier.Backoff{
		Attempts:  cfg.Verifier.MaxAttempts,
		BaseDelay: cfg.Verifier.BaseDelay,
		MaxDelay:  cfg.Verifier.MaxDelay,
	}, clock.Real{})

	pricingSrv := pricing.NewCached(pgsettings.New(dbConns), cfg.PricingTTL, clock.Real{})

	purchaseSrv := purchase.New(dbConns, ledgerSrv, verifierSrv, pricingSrv,
		common.HexToAddress(cfg.Chain.DepositAddress))
	withdrawalSrv := withdrawal.New(dbConns, ledgerSrv, pricingSrv)
	settlementSrv := settlement.New(dbConns, ledgerSrv)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.Services{
		Purchases:   purchaseSrv,
		Withdrawals: withdrawalSrv,
		Settlement:  settlementSrv,
		Ledger:      ledgerSrv,
	})

	// Register HTTP server graceful shutdown
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
