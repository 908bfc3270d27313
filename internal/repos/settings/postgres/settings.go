package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/cratecore/internal/repos/settings"
)

var _ settings.Settings = (*settingsRepo)(nil)

type settingsRepo struct{ db *sql.DB }

func New(db *sql.DB) *settingsRepo {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) LoadPricing(ctx context.Context) (*settings.Pricing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, value
		FROM app_settings
		WHERE key IN ('credits_per_token', 'cashout_rate', 'spread_pct',
		              'platform_fee_pct', 'network_fee_wei', 'welcome_bonus_credits')
	`)
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	values := make(map[string]string, 6)
	for rows.Next() {
		var key, value string

		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}

		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}

	p := &settings.Pricing{}

	for key, dst := range map[string]*decimal.Decimal{
		"credits_per_token": &p.CreditsPerToken,
		"cashout_rate":      &p.CashoutRate,
		"spread_pct":        &p.SpreadPct,
		"platform_fee_pct":  &p.PlatformFeePct,
		"network_fee_wei":   &p.NetworkFeeWei,
	} {
		raw, ok := values[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", settings.ErrSettingMissing, key)
		}

		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse setting %s: %w", key, err)
		}

		*dst = d
	}

	raw, ok := values["welcome_bonus_credits"]
	if !ok {
		return nil, fmt.Errorf("%w: welcome_bonus_credits", settings.ErrSettingMissing)
	}
	p.WelcomeBonusCredits, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse setting welcome_bonus_credits: %w", err)
	}

	return p, nil
}
