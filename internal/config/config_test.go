package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CARDLEDGER_AUTH_SESSION_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Store.Backend != "json" {
		t.Errorf("backend = %q, want json", cfg.Store.Backend)
	}
	if cfg.Store.AccountsPath != "accounts.json" || cfg.Store.TransactionsPath != "transactions.json" {
		t.Errorf("store paths = %q, %q", cfg.Store.AccountsPath, cfg.Store.TransactionsPath)
	}
	if cfg.Auth.MaxFailedAttempts != 3 {
		t.Errorf("max failed attempts = %d, want 3", cfg.Auth.MaxFailedAttempts)
	}
	if cfg.Auth.LockDuration != 15*time.Minute {
		t.Errorf("lock duration = %v, want 15m", cfg.Auth.LockDuration)
	}
	if cfg.Auth.AdminCardNumber != "9999888877776666" || cfg.Auth.AdminPIN != "8888" {
		t.Errorf("seed admin = %q/%q", cfg.Auth.AdminCardNumber, cfg.Auth.AdminPIN)
	}
	if cfg.Limits.DepositCeiling != 1_000_000 || cfg.Limits.WithdrawMultiple != 100 {
		t.Errorf("limits = %+v", cfg.Limits)
	}
	if cfg.Events.RedisURL != "" || cfg.Events.Buffer != 64 {
		t.Errorf("events = %+v", cfg.Events)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CARDLEDGER_AUTH_SESSION_SECRET", testSecret)
	t.Setenv("CARDLEDGER_STORE_BACKEND", "postgres")
	t.Setenv("CARDLEDGER_STORE_POSTGRES_URL", "postgres://localhost:5432/cardledger")
	t.Setenv("CARDLEDGER_AUTH_MAX_FAILED_ATTEMPTS", "5")
	t.Setenv("CARDLEDGER_LIMITS_WITHDRAW_MULTIPLE", "50")
	t.Setenv("CARDLEDGER_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Store.Backend != "postgres" {
		t.Errorf("backend = %q, want postgres", cfg.Store.Backend)
	}
	if cfg.Store.PostgresURL != "postgres://localhost:5432/cardledger" {
		t.Errorf("postgres url = %q", cfg.Store.PostgresURL)
	}
	if cfg.Auth.MaxFailedAttempts != 5 {
		t.Errorf("max failed attempts = %d, want 5", cfg.Auth.MaxFailedAttempts)
	}
	if cfg.Limits.WithdrawMultiple != 50 {
		t.Errorf("withdraw multiple = %d, want 50", cfg.Limits.WithdrawMultiple)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			"missing session secret",
			map[string]string{},
			"SessionSecret",
		},
		{
			"short session secret",
			map[string]string{"CARDLEDGER_AUTH_SESSION_SECRET": "short"},
			"SessionSecret",
		},
		{
			"unknown backend",
			map[string]string{
				"CARDLEDGER_AUTH_SESSION_SECRET": testSecret,
				"CARDLEDGER_STORE_BACKEND":       "sqlite",
			},
			"Backend",
		},
		{
			"postgres backend without url",
			map[string]string{
				"CARDLEDGER_AUTH_SESSION_SECRET": testSecret,
				"CARDLEDGER_STORE_BACKEND":       "postgres",
			},
			"PostgresURL",
		},
		{
			"malformed admin card",
			map[string]string{
				"CARDLEDGER_AUTH_SESSION_SECRET":    testSecret,
				"CARDLEDGER_AUTH_ADMIN_CARD_NUMBER": "123",
			},
			"AdminCardNumber",
		},
		{
			"bad log level",
			map[string]string{
				"CARDLEDGER_AUTH_SESSION_SECRET": testSecret,
				"CARDLEDGER_LOG_LEVEL":           "loud",
			},
			"LogLevel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load() should fail validation")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %s", err, tt.want)
			}
		})
	}
}
