package repository

import (
	"context"

	"github.com/torkelsen/cardledger/internal/model"
)

// AccountStore is the durable account repository keyed by card number
type AccountStore interface {
	// Get returns the account, or a not_found failure
	Get(ctx context.Context, cardNumber string) (*model.Account, error)
	// Save creates or replaces the account; invalid accounts are rejected
	Save(ctx context.Context, account *model.Account) error
	// Delete removes the account, or returns a not_found failure
	Delete(ctx context.Context, cardNumber string) error
	// Exists reports whether the card number is known
	Exists(ctx context.Context, cardNumber string) (bool, error)
	// All returns every account
	All(ctx context.Context) ([]model.Account, error)
}

// TransactionLedger is the append-only transaction history. Individual
// records are never updated or deleted; ClearForCard exists only to cascade
// an account deletion.
type TransactionLedger interface {
	Append(ctx context.Context, tx model.Transaction) error
	ForCard(ctx context.Context, cardNumber string) ([]model.Transaction, error)
	// Recent returns up to n records, newest first
	Recent(ctx context.Context, cardNumber string, n int) ([]model.Transaction, error)
	ClearForCard(ctx context.Context, cardNumber string) error
}

// Store combines both repositories behind one persistence backend
type Store interface {
	AccountStore
	TransactionLedger
}
