package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/infra/pgtestutil"
	"github.com/fastprodman/cratecore/internal/repos/users"
)

func seedUser(t *testing.T, db *sql.DB, balance users.Balance) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO users (id, wallet_address, purchased_credits, winnings_credits, bonus_credits)
		VALUES ($1, $2, $3, $4, $5)
	`, id, "0xwallet_"+id.String(), balance.Purchased, balance.Winnings, balance.Bonus)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return id
}

func countEntries(t *testing.T, db *sql.DB, key string) int {
	t.Helper()

	var cnt int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE idempotency_key = $1`, key).Scan(&cnt)
	if err != nil {
		t.Fatalf("count entries: %v", err)
	}
	return cnt
}

func TestLedger_Apply_Table(t *testing.T) {
	t.Parallel()

	type tc struct {
		name    string
		start   users.Balance
		input   ApplyInput
		want    users.Balance
		wantErr error
	}

	tests := []tc{
		{
			name:  "credit_purchase_with_bonus",
			start: users.Balance{},
			input: ApplyInput{
				Delta:          Delta{Purchased: 1000, Bonus: 100},
				Reason:         "credit_purchase",
				IdempotencyKey: "purchase:0xabc",
			},
			want: users.Balance{Purchased: 1000, Bonus: 100},
		},
		{
			name:  "win_credits_winnings_bucket",
			start: users.Balance{Purchased: 50},
			input: ApplyInput{
				Delta:  Delta{Winnings: 250},
				Reason: "win:crates",
			},
			want: users.Balance{Purchased: 50, Winnings: 250},
		},
		{
			name:  "debit_overdraft_rejected",
			start: users.Balance{Purchased: 10},
			input: ApplyInput{
				Delta:  Delta{Purchased: -11},
				Reason: "stake:s1",
			},
			wantErr: users.ErrInsufficientFunds,
		},
		{
			name:  "missing_reason_rejected",
			start: users.Balance{},
			input: ApplyInput{
				Delta: Delta{Purchased: 1},
			},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			userID := seedUser(t, db, tt.start)
			svc := New(db)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			input := tt.input
			input.UserID = userID

			result, err := svc.Apply(ctx, input)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}

				got, gerr := svc.GetBalance(ctx, userID)
				if gerr != nil {
					t.Fatalf("get balance: %v", gerr)
				}
				if got != tt.start {
					t.Fatalf("rejected apply changed balance: %+v", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if result.Old != tt.start {
				t.Fatalf("old balance: want %+v, got %+v", tt.start, result.Old)
			}
			if result.New != tt.want {
				t.Fatalf("new balance: want %+v, got %+v", tt.want, result.New)
			}
			if result.Replayed {
				t.Fatal("fresh apply marked as replayed")
			}
			if result.EntryID == 0 {
				t.Fatal("entry id missing")
			}
		})
	}
}

func TestLedger_Apply_IdempotentReplay(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{})
	svc := New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	input := ApplyInput{
		UserID:         userID,
		Delta:          Delta{Purchased: 1000, Bonus: 100},
		Reason:         "credit_purchase",
		IdempotencyKey: "purchase:0xfeed",
	}

	first, err := svc.Apply(ctx, input)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}

	second, err := svc.Apply(ctx, input)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !second.Replayed {
		t.Fatal("second apply should be a replay")
	}
	if second.EntryID != first.EntryID || second.New != first.New || second.Old != first.Old {
		t.Fatalf("replay result differs: first %+v, second %+v", first, second)
	}

	if got := countEntries(t, db, input.IdempotencyKey); got != 1 {
		t.Fatalf("want 1 entry, got %d", got)
	}

	balance, err := svc.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != (users.Balance{Purchased: 1000, Bonus: 100}) {
		t.Fatalf("balance applied twice: %+v", balance)
	}
}

func TestLedger_Apply_KeyReuseWithDifferentRequest(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{})
	svc := New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	input := ApplyInput{
		UserID:         userID,
		Delta:          Delta{Purchased: 1000},
		Reason:         "credit_purchase",
		IdempotencyKey: "purchase:0xbeef1",
	}
	if _, err := svc.Apply(ctx, input); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	altered := input
	altered.Delta = Delta{Purchased: 2000}

	_, err := svc.Apply(ctx, altered)
	if !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("want ErrIdempotencyConflict, got %v", err)
	}
}

func TestLedger_Apply_ConcurrentSameKeyAppliesOnce(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{})
	svc := New(db)

	input := ApplyInput{
		UserID:         userID,
		Delta:          Delta{Purchased: 300},
		Reason:         "credit_purchase",
		IdempotencyKey: "purchase:0xrace",
	}

	const workers = 8

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	replays := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			result, err := svc.Apply(ctx, input)
			if err != nil {
				errCh <- err
				return
			}
			replays <- result.Replayed
		}()
	}
	wg.Wait()
	close(errCh)
	close(replays)

	for err := range errCh {
		t.Fatalf("concurrent apply: %v", err)
	}

	fresh := 0
	for replayed := range replays {
		if !replayed {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("want exactly 1 fresh apply, got %d", fresh)
	}

	if got := countEntries(t, db, input.IdempotencyKey); got != 1 {
		t.Fatalf("want 1 entry, got %d", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	balance, err := svc.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Purchased != 300 {
		t.Fatalf("delta applied %d times", balance.Purchased/300)
	}
}

func TestLedger_Apply_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{Purchased: 50})
	svc := New(db)

	const workers = 10 // 10 debits of 10 against a balance of 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			_, err := svc.Apply(ctx, ApplyInput{
				UserID: userID,
				Delta:  Delta{Purchased: -10},
				Reason: "stake:race",
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, users.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 5 || rejected != 5 {
		t.Fatalf("want 5 accepted / 5 rejected, got %d / %d", accepted, rejected)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	balance, err := svc.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Purchased != 0 {
		t.Fatalf("balance should be drained to exactly 0, got %d", balance.Purchased)
	}
}

func TestLedger_Apply_UnknownUser(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := svc.Apply(ctx, ApplyInput{
		UserID: uuid.New(),
		Delta:  Delta{Purchased: 1},
		Reason: "credit_purchase",
	})
	if !errors.Is(err, users.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestLedger_UserByWallet(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Stored the way the purchase flow writes it: checksummed, then
	// lowercased.
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO users (id, wallet_address, purchased_credits, winnings_credits, bonus_credits)
		VALUES ($1, $2, 40, 0, 10)
	`, id, "0x"+strings.Repeat("ab", 20))
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	t.Run("mixed_case_lookup", func(t *testing.T) {
		u, err := svc.UserByWallet(ctx, "0x"+strings.Repeat("AB", 20))
		if err != nil {
			t.Fatalf("user by wallet: %v", err)
		}
		if u.ID != id {
			t.Fatalf("want user %s, got %s", id, u.ID)
		}
		if u.Balance.Purchased != 40 || u.Balance.Bonus != 10 {
			t.Fatalf("unexpected balance: %+v", u.Balance)
		}
	})

	t.Run("unknown_wallet", func(t *testing.T) {
		_, err := svc.UserByWallet(ctx, "0x"+strings.Repeat("cd", 20))
		if !errors.Is(err, users.ErrUserNotFound) {
			t.Fatalf("want ErrUserNotFound, got %v", err)
		}
	})

	t.Run("malformed_wallet", func(t *testing.T) {
		_, err := svc.UserByWallet(ctx, "not-a-wallet")
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("want ErrInvalidInput, got %v", err)
		}
	})
}
