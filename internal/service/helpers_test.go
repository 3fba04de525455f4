package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/torkelsen/cardledger/internal/auth"
	"github.com/torkelsen/cardledger/internal/events"
	"github.com/torkelsen/cardledger/internal/model"
	"github.com/torkelsen/cardledger/internal/repository"
	"github.com/torkelsen/cardledger/internal/validator"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	cardAlice = "1111222233334444"
	cardBob   = "2222333344445555"
	cardAdmin = "9999888877776666"
	pinAlice  = "1234"
	pinAdmin  = "8888"

	testSecret = "0123456789abcdef0123456789abcdef"
)

// fixture wires a full service stack over a JSON store in a temp dir, with a
// fixed clock everywhere a clock is injectable
type fixture struct {
	store     *repository.JSONStore
	policy    *auth.Policy
	sessions  *auth.Sessions
	ledger    *LedgerService
	admin     *AdminService
	publisher *events.ChannelPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := repository.NewJSONStore(
		filepath.Join(dir, "accounts.json"), filepath.Join(dir, "transactions.json"), log)
	require.NoError(t, err)

	policy := auth.DefaultPolicy()
	policy.Now = func() time.Time { return fixedNow }

	sessions := auth.NewSessions([]byte(testSecret), time.Hour)
	sessions.Now = func() time.Time { return fixedNow }

	v := validator.New(store, policy, validator.DefaultLimits())
	locks := NewLocks()

	ledger := NewLedgerService(store, store, v, policy, sessions, locks, log)
	ledger.Now = func() time.Time { return fixedNow }

	publisher := events.NewChannelPublisher(16)
	ledger.SetPublisher(publisher)

	admin := NewAdminService(store, store, v, policy, sessions, locks, log)
	admin.Now = func() time.Time { return fixedNow }

	f := &fixture{
		store:     store,
		policy:    policy,
		sessions:  sessions,
		ledger:    ledger,
		admin:     admin,
		publisher: publisher,
	}
	f.seed(t, cardAlice, "Alice", pinAlice, 5000, 2000, model.RoleUser)
	f.seed(t, cardBob, "Bob", pinAlice, 1000, 2000, model.RoleUser)
	f.seed(t, cardAdmin, "Administrator", pinAdmin, 50_000, 10_000, model.RoleAdmin)
	return f
}

func (f *fixture) seed(t *testing.T, card, holder, pin string, balance, limit int64, role model.Role) {
	t.Helper()
	account := &model.Account{
		CardNumber:    card,
		HolderName:    holder,
		Balance:       decimal.NewFromInt(balance),
		WithdrawLimit: decimal.NewFromInt(limit),
		Role:          role,
		CreatedAt:     fixedNow,
		UpdatedAt:     fixedNow,
	}
	require.NoError(t, f.policy.SetPIN(account, pin))
	require.NoError(t, f.store.Save(context.Background(), account))
}

// balance reads the stored balance for assertions
func (f *fixture) balance(t *testing.T, card string) decimal.Decimal {
	t.Helper()
	account, err := f.store.Get(context.Background(), card)
	require.NoError(t, err)
	return account.Balance
}

// adminToken logs the seed administrator in and returns the session token
func (f *fixture) adminToken(t *testing.T) string {
	t.Helper()
	result, err := f.ledger.Login(context.Background(), cardAdmin, pinAdmin)
	require.NoError(t, err)
	require.True(t, result.Admin)
	return result.Token
}
