// Package bootstrap assembles the ledger from configuration: it opens the
// persistence backend, guarantees an administrator exists, and wires the
// validator, services, analytics and event publishing together. The
// out-of-scope front-end consumes the resulting App.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/torkelsen/cardledger/internal/analytics"
	"github.com/torkelsen/cardledger/internal/auth"
	"github.com/torkelsen/cardledger/internal/config"
	"github.com/torkelsen/cardledger/internal/events"
	"github.com/torkelsen/cardledger/internal/model"
	"github.com/torkelsen/cardledger/internal/repository"
	"github.com/torkelsen/cardledger/internal/service"
	"github.com/torkelsen/cardledger/internal/validator"
)

// Seed admin defaults mirrored in config; the account is created on startup
// when its card number is absent so the system is never left without an
// administrator
const (
	seedAdminHolder  = "Administrator"
	seedAdminBalance = 50_000
	seedAdminLimit   = 10_000
)

// App is the assembled ledger
type App struct {
	Store     repository.Store
	Ledger    *service.LedgerService
	Admin     *service.AdminService
	Analytics *analytics.Engine
	Events    *events.ChannelPublisher // nil when events go to Redis
	Log       *slog.Logger

	close func()
}

// New builds the App from configuration
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	policy := &auth.Policy{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		LockDuration:      cfg.Auth.LockDuration,
		Now:               time.Now,
	}
	sessions := auth.NewSessions([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionExpiry)

	limits := validator.Limits{
		DepositCeiling:   decimal.NewFromInt(cfg.Limits.DepositCeiling),
		TransferCeiling:  decimal.NewFromInt(cfg.Limits.TransferCeiling),
		WithdrawMultiple: decimal.NewFromInt(cfg.Limits.WithdrawMultiple),
	}
	v := validator.New(store, policy, limits)

	locks := service.NewLocks()
	ledgerSvc := service.NewLedgerService(store, store, v, policy, sessions, locks, log)
	adminSvc := service.NewAdminService(store, store, v, policy, sessions, locks, log)
	engine := analytics.NewEngine(store, store)

	app := &App{
		Store:     store,
		Ledger:    ledgerSvc,
		Admin:     adminSvc,
		Analytics: engine,
		Log:       log,
		close:     closeStore,
	}

	if cfg.Events.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Events.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		ledgerSvc.SetPublisher(events.NewRedisPublisher(redis.NewClient(opts)))
	} else {
		app.Events = events.NewChannelPublisher(cfg.Events.Buffer)
		ledgerSvc.SetPublisher(app.Events)
	}

	if err := EnsureAdminAccount(ctx, store, policy, cfg.Auth.AdminCardNumber, cfg.Auth.AdminPIN, log); err != nil {
		return nil, err
	}

	return app, nil
}

// Close releases the persistence backend
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store := repository.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		store, err := repository.NewJSONStore(cfg.Store.AccountsPath, cfg.Store.TransactionsPath, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// EnsureAdminAccount creates the distinguished administrative account when
// its card number is absent after a load
func EnsureAdminAccount(ctx context.Context, store repository.AccountStore, policy *auth.Policy, cardNumber, pin string, log *slog.Logger) error {
	exists, err := store.Exists(ctx, cardNumber)
	if err != nil {
		return fmt.Errorf("failed to check for admin account: %w", err)
	}
	if exists {
		return nil
	}

	now := time.Now()
	admin := &model.Account{
		CardNumber:    cardNumber,
		HolderName:    seedAdminHolder,
		Balance:       decimal.NewFromInt(seedAdminBalance),
		WithdrawLimit: decimal.NewFromInt(seedAdminLimit),
		Role:          model.RoleAdmin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := policy.SetPIN(admin, pin); err != nil {
		return fmt.Errorf("failed to set admin pin: %w", err)
	}
	if err := store.Save(ctx, admin); err != nil && !model.IsCode(err, model.CodePersistenceFailure) {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}

	log.Info("created administrator account", "card_number", cardNumber)
	return nil
}
