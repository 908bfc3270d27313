package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/cratecore/internal/infra/pgtestutil"
	"github.com/fastprodman/cratecore/internal/repos/users"
)

func TestUsers_Ensure_CreatesOnceAndReturnsSameRow(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	const wallet = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	ensure := func() *users.User {
		t.Helper()

		tx, err := db.BeginTx(context.Background(), nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		defer func() { _ = tx.Rollback() }()

		u, err := repo.Ensure(tx, wallet)
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
		return u
	}

	first := ensure()
	if first.WalletAddress != wallet {
		t.Fatalf("wallet mismatch: %s", first.WalletAddress)
	}
	if !first.Balance.IsZero() {
		t.Fatalf("new user should start at zero, got %+v", first.Balance)
	}
	if first.WelcomeBonusClaimed {
		t.Fatal("new user should not have bonus claimed")
	}

	second := ensure()
	if second.ID != first.ID {
		t.Fatalf("ensure created a second row: %s vs %s", first.ID, second.ID)
	}

	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE wallet_address = $1`, wallet).Scan(&cnt); err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("want 1 row, got %d", cnt)
	}
}

func TestUsers_GetByWallet_NotFound(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := repo.GetByWallet(ctx, "0xmissing")
	if !errors.Is(err, users.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestUsers_ClaimWelcomeBonus_OnlyOnce(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{})
	repo := New(db)

	claim := func() bool {
		t.Helper()

		tx, err := db.BeginTx(context.Background(), nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		defer func() { _ = tx.Rollback() }()

		claimed, err := repo.ClaimWelcomeBonus(tx, userID)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
		return claimed
	}

	if !claim() {
		t.Fatal("first claim should succeed")
	}
	if claim() {
		t.Fatal("second claim should be rejected")
	}
}
