package app

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/returnsdesk/internal/pricing"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// PGDSN enables the audit trail when set.
	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"4"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisPoolSize int           `envconfig:"REDIS_POOL_SIZE" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	GatewayURL     string        `envconfig:"GATEWAY_URL" default:"http://127.0.0.1:8090"`
	GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`

	ShipStationURL       string `envconfig:"SHIPSTATION_URL" default:"https://ssapi.shipstation.com"`
	ShipStationAPIKey    string `envconfig:"SHIPSTATION_API_KEY"`
	ShipStationAPISecret string `envconfig:"SHIPSTATION_API_SECRET"`

	// OperatorPasswordHash is a bcrypt hash; empty disables the login gate.
	OperatorPasswordHash string `envconfig:"OPERATOR_PASSWORD_HASH"`

	PricingDefaultBase        float64 `envconfig:"PRICING_DEFAULT_BASE" default:"25.00"`
	PricingFallbackMultiplier float64 `envconfig:"PRICING_FALLBACK_MULTIPLIER" default:"1.0"`

	DrainGuardWindow   time.Duration `envconfig:"DRAIN_GUARD_WINDOW" default:"10s"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	AuditRetention     time.Duration `envconfig:"AUDIT_RETENTION" default:"2160h"`

	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from the environment, after loading a .env
// file from the working directory when one exists.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.PricingDefaultBase <= 0 {
		return nil, errors.New("pricing default base must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// PricingPolicy returns the configured placeholder pricing.
func (c *Config) PricingPolicy() pricing.Policy {
	return pricing.Policy{DefaultBase: c.PricingDefaultBase, FallbackMultiplier: c.PricingFallbackMultiplier}
}
