package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"16"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"8"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// ChainConfig holds the payment-verification RPC settings.
type ChainConfig struct {
	// Endpoints is the ordered list of EVM JSON-RPC endpoints; the client
	// rotates to the next one on transport errors.
	Endpoints []string `env:"CHAIN_RPC_ENDPOINTS"`
	// DepositAddress is the only address purchases may pay to.
	DepositAddress string `env:"CHAIN_DEPOSIT_ADDRESS"`
}

// VerifierConfig holds the payment verifier backoff policy.
type VerifierConfig struct {
	MaxAttempts int           `env:"VERIFIER_MAX_ATTEMPTS" envDefault:"5"`
	BaseDelay   time.Duration `env:"VERIFIER_BASE_DELAY" envDefault:"1s"`
	MaxDelay    time.Duration `env:"VERIFIER_MAX_DELAY" envDefault:"16s"`
}
