package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/cratecore/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"API_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// PricingTTL bounds how stale the cached pricing row may get before
	// purchases and quotes reload it.
	PricingTTL time.Duration `env:"PRICING_CACHE_TTL" envDefault:"30s"`

	Postgres config.PostgresConfig
	Chain    config.ChainConfig
	Verifier config.VerifierConfig
}
