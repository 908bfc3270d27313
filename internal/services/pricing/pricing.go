package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fastprodman/cratecore/internal/infra/clock"
	"github.com/fastprodman/cratecore/internal/repos/settings"
)

// Provider yields the pricing that purchases and withdrawals are computed
// against.
type Provider interface {
	Current(ctx context.Context) (*settings.Pricing, error)
}

// Cached reads pricing from the settings store and serves it for TTL
// before reloading. A failed reload serves the last good value so pricing
// hiccups do not take the payment flows down with them.
type Cached struct {
	repo  settings.Settings
	ttl   time.Duration
	clock clock.Clock

	mu       sync.Mutex
	cached   *settings.Pricing
	loadedAt time.Time
}

var _ Provider = (*Cached)(nil)

func NewCached(repo settings.Settings, ttl time.Duration, clk clock.Clock) *Cached {
	return &Cached{
		repo:  repo,
		ttl:   ttl,
		clock: clk,
	}
}

func (c *Cached) Current(ctx context.Context) (*settings.Pricing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.clock.Now().Sub(c.loadedAt) < c.ttl {
		return c.cached, nil
	}

	p, err := c.repo.LoadPricing(ctx)
	if err != nil {
		if c.cached != nil {
			slog.Warn("pricing reload failed, serving previous value", "error", err)
			return c.cached, nil
		}

		return nil, fmt.Errorf("load pricing: %w", err)
	}

	c.cached = p
	c.loadedAt = c.clock.Now()

	return p, nil
}
