// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"HTTP_PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CallbackURL    string        `yaml:"callback_url"` // where the payment provider posts results
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                // json|console
	Sampling bool   `yaml:"sampling"`              // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// SagaConfig tunes the purchase saga.
type SagaConfig struct {
	PlatformFeePercent float64       `yaml:"platform_fee_percent"`
	Currency           string        `yaml:"currency"`
	MaxAttempts        int           `yaml:"max_attempts"`
	BackoffBase        time.Duration `yaml:"backoff_base"`
	BackoffMax         time.Duration `yaml:"backoff_max"`
}

type AccessConfig struct {
	TokenTTLMinutes int           `yaml:"token_ttl_minutes"`
	TokenHashKey    string        `yaml:"token_hash_key" env:"TOKEN_HASH_KEY"`
	VerifyLimit     int64         `yaml:"verify_limit"` // unauthenticated attempts per purchase per window
	VerifyWindow    time.Duration `yaml:"verify_window"`
	PurgeRetention  time.Duration `yaml:"purge_retention"`
}

type DisputeConfig struct {
	ResolutionDays int `yaml:"resolution_days"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer"`
}

type PaymentConfig struct {
	Provider      string `yaml:"provider"` // only "sandbox" is built in
	CheckoutURL   string `yaml:"checkout_url"`
	WebhookSecret string `yaml:"webhook_secret" env:"PAYMENT_WEBHOOK_SECRET"` // empty accepts unsigned callbacks
}

type TelegramConfig struct {
	Token         string        `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	Enabled       bool          `yaml:"enabled"`
	UpdateWorkers int           `yaml:"update_workers"`
	LinkCodeTTL   time.Duration `yaml:"link_code_ttl"`
}

// NotifyConfig controls notification texts and asynchronous delivery.
type NotifyConfig struct {
	Language  string `yaml:"language" env:"NOTIFY_LANGUAGE"` // en|pl
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

type SchedulerConfig struct {
	TokenPurgeCron string `yaml:"token_purge_cron"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Saga      SagaConfig      `yaml:"saga"`
	Access    AccessConfig    `yaml:"access"`
	Dispute   DisputeConfig   `yaml:"dispute"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML, overlays the environment, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Saga.PlatformFeePercent == 0 {
		cfg.Saga.PlatformFeePercent = 0.05
	}
	if cfg.Saga.Currency == "" {
		cfg.Saga.Currency = "PLN"
	}
	if cfg.Saga.MaxAttempts <= 0 {
		cfg.Saga.MaxAttempts = 3
	}
	if cfg.Saga.BackoffBase <= 0 {
		cfg.Saga.BackoffBase = 20 * time.Millisecond
	}
	if cfg.Saga.BackoffMax <= 0 {
		cfg.Saga.BackoffMax = 200 * time.Millisecond
	}

	if cfg.Access.TokenTTLMinutes <= 0 {
		cfg.Access.TokenTTLMinutes = 60
	}
	if cfg.Access.VerifyLimit <= 0 {
		cfg.Access.VerifyLimit = 10
	}
	if cfg.Access.VerifyWindow <= 0 {
		cfg.Access.VerifyWindow = time.Minute
	}
	if cfg.Access.PurgeRetention <= 0 {
		cfg.Access.PurgeRetention = 24 * time.Hour
	}
	if cfg.Dispute.ResolutionDays <= 0 {
		cfg.Dispute.ResolutionDays = 3
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "seat-marketplace"
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "sandbox"
	}
	if cfg.Payment.CheckoutURL == "" {
		cfg.Payment.CheckoutURL = "https://sandbox.pay.local/checkout"
	}
	if cfg.Telegram.UpdateWorkers <= 0 {
		cfg.Telegram.UpdateWorkers = 4
	}
	if cfg.Telegram.LinkCodeTTL <= 0 {
		cfg.Telegram.LinkCodeTTL = 15 * time.Minute
	}
	if cfg.Notify.Language == "" {
		cfg.Notify.Language = "en"
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 2
	}
	if cfg.Notify.QueueSize <= 0 {
		cfg.Notify.QueueSize = 256
	}
	if cfg.Scheduler.TokenPurgeCron == "" {
		cfg.Scheduler.TokenPurgeCron = "@hourly"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "seat-marketplace"
	}
}

// Minimal validation
func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if cfg.Access.TokenHashKey == "" {
		return errors.New("access.token_hash_key is required")
	}
	if cfg.Saga.PlatformFeePercent < 0 || cfg.Saga.PlatformFeePercent >= 1 {
		return fmt.Errorf("saga.platform_fee_percent must be in [0, 1), got %v", cfg.Saga.PlatformFeePercent)
	}
	if len(cfg.Saga.Currency) != 3 {
		return fmt.Errorf("saga.currency must be a 3-letter code, got %q", cfg.Saga.Currency)
	}
	if cfg.Payment.Provider != "sandbox" {
		return fmt.Errorf("payment.provider %q is not supported", cfg.Payment.Provider)
	}
	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required when telegram is enabled")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
