package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/cratecore/internal/infra/pgtestutil"
	"github.com/fastprodman/cratecore/internal/repos/settings"
)

func TestSettings_LoadPricing_SeededDefaults(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := repo.LoadPricing(ctx)
	if err != nil {
		t.Fatalf("load pricing: %v", err)
	}

	if !p.CreditsPerToken.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("credits_per_token: %s", p.CreditsPerToken)
	}
	if !p.SpreadPct.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("spread_pct: %s", p.SpreadPct)
	}
	if p.WelcomeBonusCredits != 100 {
		t.Fatalf("welcome_bonus_credits: %d", p.WelcomeBonusCredits)
	}
}

func TestSettings_LoadPricing_MissingKey(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	if _, err := db.Exec(`DELETE FROM app_settings WHERE key = 'cashout_rate'`); err != nil {
		t.Fatalf("delete setting: %v", err)
	}

	repo := New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := repo.LoadPricing(ctx)
	if !errors.Is(err, settings.ErrSettingMissing) {
		t.Fatalf("want ErrSettingMissing, got %v", err)
	}
}
