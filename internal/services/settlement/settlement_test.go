package settlement

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/cratecore/internal/infra/pgtestutil"
	"github.com/fastprodman/cratecore/internal/repos/sessions"
	"github.com/fastprodman/cratecore/internal/repos/users"
	"github.com/fastprodman/cratecore/internal/services/ledger"
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

func fetchBalance(t *testing.T, db *sql.DB, userID uuid.UUID) users.Balance {
	t.Helper()

	var b users.Balance
	err := db.QueryRow(`
		SELECT purchased_credits, winnings_credits, bonus_credits FROM users WHERE id = $1
	`, userID).Scan(&b.Purchased, &b.Winnings, &b.Bonus)
	if err != nil {
		t.Fatalf("fetch balance: %v", err)
	}

	return b
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

func countSettled(t *testing.T, db *sql.DB, sessionID string) int {
	t.Helper()

	var cnt int
	err := db.QueryRow(`SELECT COUNT(*) FROM settled_sessions WHERE session_id = $1`, sessionID).Scan(&cnt)
	if err != nil {
		t.Fatalf("count settled: %v", err)
	}
	return cnt
}

func TestSettlement_SettleWin(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{Purchased: 40})
	svc := New(db, ledger.New(db))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := svc.SettleWin(ctx, SettleInput{
		SessionID:     "s-100",
		Game:          "crates",
		UserID:        userID,
		PayoutCredits: 250,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if res.EntryID == 0 {
		t.Fatal("entry id missing")
	}
	if res.New != (users.Balance{Purchased: 40, Winnings: 250}) {
		t.Fatalf("balance: %+v", res.New)
	}

	if got := countSettled(t, db, "s-100"); got != 1 {
		t.Fatalf("want 1 settled session, got %d", got)
	}
	if got := countEntries(t, db, "settle:s-100"); got != 1 {
		t.Fatalf("want 1 ledger entry, got %d", got)
	}

	var reason string
	if err := db.QueryRow(`SELECT reason FROM ledger_entries WHERE idempotency_key = $1`, "settle:s-100").Scan(&reason); err != nil {
		t.Fatalf("read reason: %v", err)
	}
	if reason != "win:crates" {
		t.Fatalf("reason: %s", reason)
	}
}

func TestSettlement_SettleWin_Twice(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{})
	svc := New(db, ledger.New(db))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	input := SettleInput{SessionID: "s-1", Game: "crates", UserID: userID, PayoutCredits: 250}

	if _, err := svc.SettleWin(ctx, input); err != nil {
		t.Fatalf("first settle: %v", err)
	}

	if _, err := svc.SettleWin(ctx, input); !errors.Is(err, sessions.ErrAlreadySettled) {
		t.Fatalf("want ErrAlreadySettled, got %v", err)
	}

	// Even a different payout cannot reopen the session.
	bigger := input
	bigger.PayoutCredits = 9000
	if _, err := svc.SettleWin(ctx, bigger); !errors.Is(err, sessions.ErrAlreadySettled) {
		t.Fatalf("want ErrAlreadySettled, got %v", err)
	}

	if balance := fetchBalance(t, db, userID); balance != (users.Balance{Winnings: 250}) {
		t.Fatalf("settled twice: %+v", balance)
	}
	if got := countEntries(t, db, "settle:s-1"); got != 1 {
		t.Fatalf("want 1 entry, got %d", got)
	}
}

func TestSettlement_SettleWin_Concurrent(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{})
	svc := New(db, ledger.New(db))

	const workers = 8

	var wg sync.WaitGroup
	var mu sync.Mutex
	settled, rejected := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			_, err := svc.SettleWin(ctx, SettleInput{
				SessionID:     "s-race",
				Game:          "crates",
				UserID:        userID,
				PayoutCredits: 250,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				settled++
			case errors.Is(err, sessions.ErrAlreadySettled):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if settled != 1 || rejected != workers-1 {
		t.Fatalf("want 1 settled / %d rejected, got %d / %d", workers-1, settled, rejected)
	}

	if balance := fetchBalance(t, db, userID); balance.Winnings != 250 {
		t.Fatalf("payout applied %d times", balance.Winnings/250)
	}
	if got := countEntries(t, db, "settle:s-race"); got != 1 {
		t.Fatalf("want 1 entry, got %d", got)
	}
}

func TestSettlement_SettleWin_ZeroPayout(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{Purchased: 40})
	svc := New(db, ledger.New(db))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	input := SettleInput{SessionID: "s-lost", Game: "crates", UserID: userID}

	res, err := svc.SettleWin(ctx, input)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.EntryID != 0 {
		t.Fatalf("zero payout wrote entry %d", res.EntryID)
	}
	if res.New != (users.Balance{Purchased: 40}) {
		t.Fatalf("balance: %+v", res.New)
	}

	if got := countSettled(t, db, "s-lost"); got != 1 {
		t.Fatalf("want 1 settled session, got %d", got)
	}
	if got := countEntries(t, db, "settle:s-lost"); got != 0 {
		t.Fatalf("want 0 entries, got %d", got)
	}

	// The lost session is closed for good.
	win := input
	win.PayoutCredits = 500
	if _, err := svc.SettleWin(ctx, win); !errors.Is(err, sessions.ErrAlreadySettled) {
		t.Fatalf("want ErrAlreadySettled, got %v", err)
	}
}

func TestSettlement_SettleWin_Validation(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := New(db, ledger.New(db))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name  string
		input SettleInput
	}{
		{"missing_session", SettleInput{Game: "crates", UserID: uuid.New(), PayoutCredits: 1}},
		{"missing_game", SettleInput{SessionID: "s-1", UserID: uuid.New(), PayoutCredits: 1}},
		{"missing_user", SettleInput{SessionID: "s-1", Game: "crates", PayoutCredits: 1}},
		{"negative_payout", SettleInput{SessionID: "s-1", Game: "crates", UserID: uuid.New(), PayoutCredits: -1}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SettleWin(ctx, tt.input); !errors.Is(err, ErrInvalidSettlement) {
				t.Fatalf("want ErrInvalidSettlement, got %v", err)
			}
		})
	}
}

func TestSettlement_PlaceStake_BurnOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		start    users.Balance
		stake    int64
		wantFrom StakeResult
		want     users.Balance
		wantErr  error
	}{
		{
			name:     "bonus_covers_most",
			start:    users.Balance{Purchased: 50, Winnings: 30, Bonus: 100},
			stake:    120,
			wantFrom: StakeResult{FromBonus: 100, FromPurchased: 20},
			want:     users.Balance{Purchased: 30, Winnings: 30},
		},
		{
			name:     "spills_into_winnings",
			start:    users.Balance{Purchased: 50, Winnings: 30, Bonus: 100},
			stake:    170,
			wantFrom: StakeResult{FromBonus: 100, FromPurchased: 50, FromWinnings: 20},
			want:     users.Balance{Winnings: 10},
		},
		{
			name:     "exact_drain",
			start:    users.Balance{Purchased: 10, Winnings: 10, Bonus: 10},
			stake:    30,
			wantFrom: StakeResult{FromBonus: 10, FromPurchased: 10, FromWinnings: 10},
			want:     users.Balance{},
		},
		{
			name:     "bonus_only",
			start:    users.Balance{Bonus: 100},
			stake:    60,
			wantFrom: StakeResult{FromBonus: 60},
			want:     users.Balance{Bonus: 40},
		},
		{
			name:    "insufficient_total",
			start:   users.Balance{Purchased: 5, Bonus: 5},
			stake:   11,
			wantErr: users.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			userID := seedUser(t, db, tt.start)
			svc := New(db, ledger.New(db))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			res, err := svc.PlaceStake(ctx, StakeInput{
				SessionID: "s-1",
				Game:      "crates",
				UserID:    userID,
				Credits:   tt.stake,
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				if balance := fetchBalance(t, db, userID); balance != tt.start {
					t.Fatalf("rejected stake changed balance: %+v", balance)
				}
				return
			}

			if err != nil {
				t.Fatalf("stake: %v", err)
			}
			if res.FromBonus != tt.wantFrom.FromBonus ||
				res.FromPurchased != tt.wantFrom.FromPurchased ||
				res.FromWinnings != tt.wantFrom.FromWinnings {
				t.Fatalf("burn split: bonus %d, purchased %d, winnings %d",
					res.FromBonus, res.FromPurchased, res.FromWinnings)
			}
			if res.New != tt.want {
				t.Fatalf("balance: want %+v, got %+v", tt.want, res.New)
			}
			if res.Replayed {
				t.Fatal("fresh stake marked replayed")
			}
		})
	}
}

func TestSettlement_PlaceStake_Replay(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	userID := seedUser(t, db, users.Balance{Purchased: 100, Bonus: 50})
	svc := New(db, ledger.New(db))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	input := StakeInput{SessionID: "s-7", Game: "crates", UserID: userID, Credits: 80}

	first, err := svc.PlaceStake(ctx, input)
	if err != nil {
		t.Fatalf("first stake: %v", err)
	}
	if first.FromBonus != 50 || first.FromPurchased != 30 {
		t.Fatalf("split: %+v", first)
	}

	second, err := svc.PlaceStake(ctx, input)
	if err != nil {
		t.Fatalf("second stake: %v", err)
	}
	if !second.Replayed {
		t.Fatal("second stake should be a replay")
	}
	if second.EntryID != first.EntryID || second.New != first.New {
		t.Fatalf("replay differs: first %+v, second %+v", first, second)
	}

	if balance := fetchBalance(t, db, userID); balance != (users.Balance{Purchased: 70}) {
		t.Fatalf("stake burned twice: %+v", balance)
	}

	// The same session with a different amount is a conflict, not a replay.
	altered := input
	altered.Credits = 99
	if _, err := svc.PlaceStake(ctx, altered); !errors.Is(err, ledger.ErrIdempotencyConflict) {
		t.Fatalf("want ErrIdempotencyConflict, got %v", err)
	}
}
