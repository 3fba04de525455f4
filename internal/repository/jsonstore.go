package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/torkelsen/cardledger/internal/auth"
	"github.com/torkelsen/cardledger/internal/model"
)

// persistedAccount is the on-disk account shape. It tolerates the legacy
// format that stored a plaintext pin: on load the pin is hashed with a fresh
// salt and the plaintext is dropped on the next flush.
type persistedAccount struct {
	model.Account
	LegacyPIN string `json:"pin,omitempty"`
}

// JSONStore keeps accounts and transactions fully in memory and flushes each
// collection to its own JSON file after every mutation. Writes go to a
// temporary file first and replace the target with a rename, so a crash
// mid-write never corrupts the previous snapshot.
type JSONStore struct {
	mu               sync.RWMutex
	accountsPath     string
	transactionsPath string
	accounts         map[string]model.Account
	transactions     []model.Transaction
	log              *slog.Logger
}

// NewJSONStore loads both collections from disk. Missing files are treated as
// empty collections so a first run starts from nothing.
func NewJSONStore(accountsPath, transactionsPath string, log *slog.Logger) (*JSONStore, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &JSONStore{
		accountsPath:     accountsPath,
		transactionsPath: transactionsPath,
		accounts:         make(map[string]model.Account),
		log:              log,
	}
	migrated, err := s.loadAccounts()
	if err != nil {
		return nil, err
	}
	if err := s.loadTransactions(); err != nil {
		return nil, err
	}
	if migrated > 0 {
		s.log.Info("migrated legacy plaintext pins", "count", migrated)
		if err := s.flushAccounts(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *JSONStore) loadAccounts() (migrated int, err error) {
	f, err := os.Open(s.accountsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open accounts file: %w", err)
	}
	defer f.Close()

	var persisted []persistedAccount
	if err := json.NewDecoder(f).Decode(&persisted); err != nil {
		return 0, fmt.Errorf("failed to decode accounts file: %w", err)
	}

	for _, p := range persisted {
		account := p.Account
		if account.PINHash == "" && p.LegacyPIN != "" {
			salt, err := auth.GenerateSalt()
			if err != nil {
				return 0, fmt.Errorf("failed to migrate legacy pin: %w", err)
			}
			account.Salt = salt
			account.PINHash = auth.HashPIN(p.LegacyPIN, salt)
			migrated++
		}
		if account.Role == "" {
			account.Role = model.RoleUser
		}
		s.accounts[account.CardNumber] = account
	}
	return migrated, nil
}

func (s *JSONStore) loadTransactions() error {
	f, err := os.Open(s.transactionsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open transactions file: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&s.transactions); err != nil {
		return fmt.Errorf("failed to decode transactions file: %w", err)
	}
	return nil
}

// Get returns a copy of the account so callers never hold a live reference
// into the store
func (s *JSONStore) Get(_ context.Context, cardNumber string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[cardNumber]
	if !ok {
		return nil, model.Failuref(model.CodeNotFound, "account %s not found", cardNumber)
	}
	return &account, nil
}

// Save creates or replaces the account and flushes to disk
func (s *JSONStore) Save(_ context.Context, account *model.Account) error {
	if account.Balance.IsNegative() || !account.WithdrawLimit.IsPositive() {
		return model.NewFailure(model.CodeInvalidInput, "invalid account: balance must be non-negative and withdraw limit positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.CardNumber] = *account
	if err := s.flushAccounts(); err != nil {
		s.log.Error("failed to flush accounts", "error", err)
		return model.Failuref(model.CodePersistenceFailure, "account saved in memory only: %v", err)
	}
	return nil
}

// Delete removes the account and flushes to disk
func (s *JSONStore) Delete(_ context.Context, cardNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[cardNumber]; !ok {
		return model.Failuref(model.CodeNotFound, "account %s not found", cardNumber)
	}
	delete(s.accounts, cardNumber)
	if err := s.flushAccounts(); err != nil {
		s.log.Error("failed to flush accounts", "error", err)
		return model.Failuref(model.CodePersistenceFailure, "account deleted in memory only: %v", err)
	}
	return nil
}

// Exists reports whether the card number is known
func (s *JSONStore) Exists(_ context.Context, cardNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[cardNumber]
	return ok, nil
}

// All returns every account sorted by card number
func (s *JSONStore) All(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]model.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CardNumber < accounts[j].CardNumber
	})
	return accounts, nil
}

// Append adds a ledger record. When the flush fails the in-memory record is
// kept for the life of the process and a persistence_failure is returned, so
// durability is best-effort.
func (s *JSONStore) Append(_ context.Context, tx model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, tx)
	if err := s.flushTransactions(); err != nil {
		s.log.Error("failed to flush transactions", "error", err)
		return model.Failuref(model.CodePersistenceFailure, "transaction recorded in memory only: %v", err)
	}
	return nil
}

// ForCard returns all records for the card in insertion order
func (s *JSONStore) ForCard(_ context.Context, cardNumber string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Transaction
	for _, tx := range s.transactions {
		if tx.CardNumber == cardNumber {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Recent returns up to n records for the card, newest first. Records are
// sorted by timestamp because insertion order is not guaranteed monotonic
// across every path.
func (s *JSONStore) Recent(ctx context.Context, cardNumber string, n int) ([]model.Transaction, error) {
	txs, err := s.ForCard(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
	if n > 0 && len(txs) > n {
		txs = txs[:n]
	}
	return txs, nil
}

// ClearForCard removes every record belonging to the card. Used only when an
// account deletion cascades.
func (s *JSONStore) ClearForCard(_ context.Context, cardNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.transactions[:0]
	for _, tx := range s.transactions {
		if tx.CardNumber != cardNumber {
			kept = append(kept, tx)
		}
	}
	s.transactions = kept
	if err := s.flushTransactions(); err != nil {
		s.log.Error("failed to flush transactions", "error", err)
		return model.Failuref(model.CodePersistenceFailure, "transactions cleared in memory only: %v", err)
	}
	return nil
}

func (s *JSONStore) flushAccounts() error {
	accounts := make([]persistedAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		accounts = append(accounts, persistedAccount{Account: account})
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CardNumber < accounts[j].CardNumber
	})
	return writeJSONAtomic(s.accountsPath, accounts)
}

func (s *JSONStore) flushTransactions() error {
	return writeJSONAtomic(s.transactionsPath, s.transactions)
}

// writeJSONAtomic writes to a temporary file and renames it over the target
func writeJSONAtomic(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
