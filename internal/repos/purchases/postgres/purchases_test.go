package purchases

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/cratecore/internal/infra/pgtestutil"
	"github.com/fastprodman/cratecore/internal/repos/purchases"
)

func seedUser(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(`INSERT INTO users (id, wallet_address) VALUES ($1, $2)`,
		id, "0xwallet_"+id.String())
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return id
}

func seedEntry(t *testing.T, db *sql.DB, userID uuid.UUID) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(`
		INSERT INTO ledger_entries (user_id, delta_purchased, delta_winnings, delta_bonus,
		                            after_purchased, after_winnings, after_bonus, reason)
		VALUES ($1, 1000, 0, 0, 1000, 0, 0, 'credit_purchase')
		RETURNING id
	`, userID).Scan(&id)
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	return id
}

func TestPurchases_Create(t *testing.T) {
	t.Parallel()

	const hash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

	tests := []struct {
		name    string
		prepare func(t *testing.T, db *sql.DB, repo *purchasesRepo) *purchases.Purchase
		wantErr error
	}{
		{
			name: "ok_insert",
			prepare: func(t *testing.T, db *sql.DB, _ *purchasesRepo) *purchases.Purchase {
				userID := seedUser(t, db)
				return &purchases.Purchase{
					UserID:        userID,
					TxHash:        hash,
					AmountWei:     decimal.RequireFromString("1000000000000000000"),
					Credits:       1000,
					BonusCredits:  100,
					LedgerEntryID: seedEntry(t, db, userID),
				}
			},
			wantErr: nil,
		},
		{
			name: "duplicate_tx_hash",
			prepare: func(t *testing.T, db *sql.DB, repo *purchasesRepo) *purchases.Purchase {
				userID := seedUser(t, db)
				entryID := seedEntry(t, db, userID)

				first := &purchases.Purchase{
					UserID:        userID,
					TxHash:        hash,
					AmountWei:     decimal.RequireFromString("1000000000000000000"),
					Credits:       1000,
					LedgerEntryID: entryID,
				}

				tx, err := db.BeginTx(context.Background(), nil)
				if err != nil {
					t.Fatalf("begin tx: %v", err)
				}
				defer func() { _ = tx.Rollback() }()
				if err := repo.Create(tx, first); err != nil {
					t.Fatalf("seed purchase: %v", err)
				}
				if err := tx.Commit(); err != nil {
					t.Fatalf("commit: %v", err)
				}

				return &purchases.Purchase{
					UserID:        userID,
					TxHash:        hash,
					AmountWei:     decimal.RequireFromString("2000000000000000000"),
					Credits:       2000,
					LedgerEntryID: entryID,
				}
			},
			wantErr: purchases.ErrDuplicateTransaction,
		},
		{
			name: "user_not_exist_fk_violation",
			prepare: func(_ *testing.T, _ *sql.DB, _ *purchasesRepo) *purchases.Purchase {
				return &purchases.Purchase{
					UserID:    uuid.New(),
					TxHash:    hash,
					AmountWei: decimal.NewFromInt(1),
					Credits:   1,
				}
			},
			wantErr: &pgconn.PgError{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			repo := New(db)
			p := tt.prepare(t, db, repo)

			tx, err := db.BeginTx(context.Background(), nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			err = repo.Create(tx, p)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if p.ID == uuid.Nil {
					t.Fatal("purchase id not filled")
				}
				if p.CreatedAt.IsZero() {
					t.Fatal("created_at not filled")
				}
				return
			}

			var pgErr *pgconn.PgError
			if errors.As(tt.wantErr, &pgErr) {
				if !errors.As(err, &pgErr) {
					t.Fatalf("expected pg error, got %v", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("unexpected error: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPurchases_GetByTxHash(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	userID := seedUser(t, db)
	entryID := seedEntry(t, db, userID)

	const hash = "2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae"

	want := &purchases.Purchase{
		UserID:        userID,
		TxHash:        hash,
		AmountWei:     decimal.RequireFromString("500000000000000000"),
		Credits:       500,
		BonusCredits:  0,
		LedgerEntryID: entryID,
	}

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := repo.Create(tx, want); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := repo.GetByTxHash(ctx, hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != want.ID || got.Credits != want.Credits || got.LedgerEntryID != entryID {
		t.Fatalf("purchase mismatch: want %+v, got %+v", want, got)
	}
	if !got.AmountWei.Equal(want.AmountWei) {
		t.Fatalf("amount mismatch: want %s, got %s", want.AmountWei, got.AmountWei)
	}

	if _, err := repo.GetByTxHash(ctx, "ff"); !errors.Is(err, purchases.ErrPurchaseNotFound) {
		t.Fatalf("want ErrPurchaseNotFound, got %v", err)
	}
}

func TestPurchases_BumpStats(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		err := repo.BumpStats(ctx, 1000, 100, decimal.RequireFromString("1000000000000000000"))
		if err != nil {
			t.Fatalf("bump %d: %v", i, err)
		}
	}

	var (
		purchasesTotal int64
		credits        int64
		bonus          int64
		amount         decimal.Decimal
	)
	err := db.QueryRow(`
		SELECT total_purchases, total_credits, total_bonus_credits, total_amount_wei
		FROM purchase_stats WHERE id = 1
	`).Scan(&purchasesTotal, &credits, &bonus, &amount)
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}

	if purchasesTotal != 3 || credits != 3000 || bonus != 300 {
		t.Fatalf("stats mismatch: purchases=%d credits=%d bonus=%d", purchasesTotal, credits, bonus)
	}
	if !amount.Equal(decimal.RequireFromString("3000000000000000000")) {
		t.Fatalf("amount mismatch: %s", amount)
	}
}
