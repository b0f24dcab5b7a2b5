package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "CHRONUS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "CHRONUS_APP_ENV"
	EnvPort         = "CHRONUS_APP_PORT"
	EnvRedisURL     = "CHRONUS_REDIS_URL"
	EnvDBDSN        = "CHRONUS_DB_DSN"
	EnvDBDriver     = "CHRONUS_DB_DRIVER"
	EnvJWTSecret    = "CHRONUS_JWT_SECRET"
	EnvJWTIssuer    = "CHRONUS_JWT_ISSUER"
	EnvPublicURL    = "CHRONUS_STORE_PUBLIC_URL"
	EnvAPIBaseURL   = "CHRONUS_SERVICES_API_BASE_URL"
	EnvHomeCity     = "CHRONUS_STORE_HOME_CITY"
	EnvFallbackStd  = "CHRONUS_SHIPPING_FALLBACK_STANDARD"
	EnvFallbackExpr = "CHRONUS_SHIPPING_FALLBACK_EXPRESS"
)

type Config struct {
	App          AppConfig
	Redis        RedisConfig
	DB           DBConfig
	JWT          JWTConfig
	Session      SessionConfig
	Store        StoreConfig
	Services     ServicesConfig
	Shipping     ShippingConfig
	Catalog      CatalogConfig
	LoginLimit   LoginRateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Shipping.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHRONUS_APP_ENV" required:"true"`
	Port         string `envconfig:"CHRONUS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CHRONUS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHRONUS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"CHRONUS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHRONUS_REDIS_ADDR"`
	Password     string        `envconfig:"CHRONUS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHRONUS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHRONUS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHRONUS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHRONUS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHRONUS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHRONUS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// DBConfig points at the checkout audit database.
type DBConfig struct {
	DSN    string `envconfig:"CHRONUS_DB_DSN" required:"true"`
	Driver string `envconfig:"CHRONUS_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"CHRONUS_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CHRONUS_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CHRONUS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHRONUS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(db.Driver)) {
	case "postgres", "sqlite":
		return nil
	default:
		return fmt.Errorf("%s must be postgres or sqlite, got %q", EnvDBDriver, db.Driver)
	}
}

// JWTConfig signs the storefront session tokens.
type JWTConfig struct {
	Secret            string `envconfig:"CHRONUS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CHRONUS_JWT_ISSUER" default:"chronus-storefront"`
	ExpirationMinutes int    `envconfig:"CHRONUS_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type SessionConfig struct {
	TTL             time.Duration `envconfig:"CHRONUS_SESSION_TTL" default:"24h"`
	IdleEviction    time.Duration `envconfig:"CHRONUS_SESSION_IDLE_EVICTION" default:"30m"`
	SweepInterval   time.Duration `envconfig:"CHRONUS_SESSION_SWEEP_INTERVAL" default:"5m"`
	PendingOrderTTL time.Duration `envconfig:"CHRONUS_SESSION_PENDING_ORDER_TTL" default:"1h"`
}

type StoreConfig struct {
	HomeCity  string `envconfig:"CHRONUS_STORE_HOME_CITY" default:"Salgueiro"`
	PublicURL string `envconfig:"CHRONUS_STORE_PUBLIC_URL" required:"true"`
	Currency  string `envconfig:"CHRONUS_STORE_CURRENCY" default:"brl"`
}

// SuccessURL is where the gateway sends the shopper after paying.
func (s StoreConfig) SuccessURL() string {
	return strings.TrimRight(s.PublicURL, "/") + "/sucesso?session_id={CHECKOUT_SESSION_ID}"
}

// CancelURL points back to the cart page.
func (s StoreConfig) CancelURL() string {
	return strings.TrimRight(s.PublicURL, "/") + "/carrinho"
}

// ServicesConfig holds the base URLs of the remote collaborators. Every
// service defaults to the shared API base when its own URL is empty.
type ServicesConfig struct {
	APIBaseURL  string        `envconfig:"CHRONUS_SERVICES_API_BASE_URL" required:"true"`
	CatalogURL  string        `envconfig:"CHRONUS_SERVICES_CATALOG_URL"`
	IdentityURL string        `envconfig:"CHRONUS_SERVICES_IDENTITY_URL"`
	ShippingURL string        `envconfig:"CHRONUS_SERVICES_SHIPPING_URL"`
	GatewayURL  string        `envconfig:"CHRONUS_SERVICES_GATEWAY_URL"`
	ViaCEPURL   string        `envconfig:"CHRONUS_SERVICES_VIACEP_URL" default:"https://viacep.com.br"`
	HTTPTimeout time.Duration `envconfig:"CHRONUS_SERVICES_HTTP_TIMEOUT" default:"15s"`
}

func (s ServicesConfig) Catalog() string  { return orDefault(s.CatalogURL, s.APIBaseURL) }
func (s ServicesConfig) Identity() string { return orDefault(s.IdentityURL, s.APIBaseURL) }
func (s ServicesConfig) Shipping() string { return orDefault(s.ShippingURL, s.APIBaseURL) }
func (s ServicesConfig) Gateway() string  { return orDefault(s.GatewayURL, s.APIBaseURL) }

type ShippingConfig struct {
	FallbackStandard string `envconfig:"CHRONUS_SHIPPING_FALLBACK_STANDARD" default:"25.00"`
	FallbackExpress  string `envconfig:"CHRONUS_SHIPPING_FALLBACK_EXPRESS" default:"35.00"`
}

// StandardPrice returns the fallback PAC price.
func (s ShippingConfig) StandardPrice() decimal.Decimal {
	return decimal.RequireFromString(s.FallbackStandard)
}

// ExpressPrice returns the fallback Sedex price.
func (s ShippingConfig) ExpressPrice() decimal.Decimal {
	return decimal.RequireFromString(s.FallbackExpress)
}

func (s ShippingConfig) validate() error {
	for env, raw := range map[string]string{EnvFallbackStd: s.FallbackStandard, EnvFallbackExpr: s.FallbackExpress} {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%s must be a decimal amount: %w", env, err)
		}
		if value.IsNegative() {
			return fmt.Errorf("%s must not be negative", env)
		}
	}
	return nil
}

type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"CHRONUS_CATALOG_CACHE_TTL" default:"10m"`
}

// LoginRateLimitConfig throttles login attempts per client IP and per email.
type LoginRateLimitConfig struct {
	Window     time.Duration `envconfig:"CHRONUS_LOGIN_RATE_LIMIT_WINDOW" default:"15m"`
	IPLimit    int           `envconfig:"CHRONUS_LOGIN_RATE_LIMIT_IP" default:"20"`
	EmailLimit int           `envconfig:"CHRONUS_LOGIN_RATE_LIMIT_EMAIL" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CHRONUS_AUTO_MIGRATE" default:"false"`
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
