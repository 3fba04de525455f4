// Package config loads the library configuration from a config file and
// environment variables. Environment variables use the CARDLEDGER_ prefix
// and take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds everything the bootstrap needs to assemble the ledger
type Config struct {
	Store  StoreConfig  `mapstructure:"store" validate:"required"`
	Auth   AuthConfig   `mapstructure:"auth" validate:"required"`
	Limits LimitsConfig `mapstructure:"limits"`
	Events EventsConfig `mapstructure:"events"`

	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	// Backend is "json" or "postgres"
	Backend          string `mapstructure:"backend"           validate:"required,oneof=json postgres"`
	AccountsPath     string `mapstructure:"accounts_path"     validate:"required_if=Backend json"`
	TransactionsPath string `mapstructure:"transactions_path" validate:"required_if=Backend json"`
	PostgresURL      string `mapstructure:"postgres_url"      validate:"required_if=Backend postgres"`
}

// AuthConfig holds credential and session settings
type AuthConfig struct {
	SessionSecret     string        `mapstructure:"session_secret" validate:"required,min=32"`
	SessionExpiry     time.Duration `mapstructure:"session_expiry"`
	MaxFailedAttempts int           `mapstructure:"max_failed_attempts" validate:"gte=1"`
	LockDuration      time.Duration `mapstructure:"lock_duration"`

	// Seed admin account created when absent after a load
	AdminCardNumber string `mapstructure:"admin_card_number" validate:"required,len=16,numeric"`
	AdminPIN        string `mapstructure:"admin_pin"         validate:"required,min=4,max=6,numeric"`
}

// LimitsConfig holds the institution-wide transaction policy
type LimitsConfig struct {
	DepositCeiling   int64 `mapstructure:"deposit_ceiling"   validate:"gt=0"`
	TransferCeiling  int64 `mapstructure:"transfer_ceiling"  validate:"gt=0"`
	WithdrawMultiple int64 `mapstructure:"withdraw_multiple" validate:"gt=0"`
}

// EventsConfig configures transaction event delivery. With an empty Redis
// URL events stay on an in-process channel.
type EventsConfig struct {
	RedisURL string `mapstructure:"redis_url"`
	Buffer   int    `mapstructure:"buffer"`
}

// Load reads cardledger.yaml from the working directory (when present) and
// the environment, then validates the result
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("store.backend", "json")
	v.SetDefault("store.accounts_path", "accounts.json")
	v.SetDefault("store.transactions_path", "transactions.json")
	// Empty defaults register the keys so AutomaticEnv can see them
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_expiry", 15*time.Minute)
	v.SetDefault("auth.max_failed_attempts", 3)
	v.SetDefault("auth.lock_duration", 15*time.Minute)
	v.SetDefault("auth.admin_card_number", "9999888877776666")
	v.SetDefault("auth.admin_pin", "8888")
	v.SetDefault("limits.deposit_ceiling", 1_000_000)
	v.SetDefault("limits.transfer_ceiling", 1_000_000)
	v.SetDefault("limits.withdraw_multiple", 100)
	v.SetDefault("events.redis_url", "")
	v.SetDefault("events.buffer", 64)
	v.SetDefault("log_level", "info")

	v.SetConfigName("cardledger")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CARDLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
