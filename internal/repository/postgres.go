package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/torkelsen/cardledger/internal/model"
)

// PostgresStore implements AccountStore and TransactionLedger on Postgres,
// for deployments that outgrow the JSON file backend
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore on an existing pool
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the schema if it does not exist yet
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			card_number           TEXT PRIMARY KEY,
			pin_hash              TEXT NOT NULL,
			salt                  TEXT NOT NULL,
			holder_name           TEXT NOT NULL,
			balance               NUMERIC(18,2) NOT NULL CHECK (balance >= 0),
			withdraw_limit        NUMERIC(18,2) NOT NULL CHECK (withdraw_limit > 0),
			role                  TEXT NOT NULL DEFAULT 'user',
			locked                BOOLEAN NOT NULL DEFAULT FALSE,
			failed_login_attempts INT NOT NULL DEFAULT 0,
			last_failed_login_at  TIMESTAMPTZ,
			temporary_lock_until  TIMESTAMPTZ,
			created_at            TIMESTAMPTZ NOT NULL,
			updated_at            TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS transactions (
			id                 UUID PRIMARY KEY,
			card_number        TEXT NOT NULL,
			ts                 TIMESTAMPTZ NOT NULL,
			type               TEXT NOT NULL,
			amount             NUMERIC(18,2) NOT NULL CHECK (amount >= 0),
			balance_after      NUMERIC(18,2) NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			target_card_number TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_card_ts
			ON transactions (card_number, ts DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

const accountColumns = `
	card_number, pin_hash, salt, holder_name,
	balance::text, withdraw_limit::text, role, locked,
	failed_login_attempts, last_failed_login_at, temporary_lock_until,
	created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		account          model.Account
		balance, limit   string
	)
	err := row.Scan(
		&account.CardNumber,
		&account.PINHash,
		&account.Salt,
		&account.HolderName,
		&balance,
		&limit,
		&account.Role,
		&account.Locked,
		&account.FailedLoginAttempts,
		&account.LastFailedLoginAt,
		&account.TemporaryLockUntil,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if account.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	if account.WithdrawLimit, err = decimal.NewFromString(limit); err != nil {
		return nil, fmt.Errorf("failed to parse withdraw limit: %w", err)
	}
	return &account, nil
}

// Get returns the account, or a not_found failure
func (s *PostgresStore) Get(ctx context.Context, cardNumber string) (*model.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE card_number = $1`, cardNumber)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.Failuref(model.CodeNotFound, "account %s not found", cardNumber)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// Save upserts the account
func (s *PostgresStore) Save(ctx context.Context, account *model.Account) error {
	if account.Balance.IsNegative() || !account.WithdrawLimit.IsPositive() {
		return model.NewFailure(model.CodeInvalidInput, "invalid account: balance must be non-negative and withdraw limit positive")
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (
			card_number, pin_hash, salt, holder_name,
			balance, withdraw_limit, role, locked,
			failed_login_attempts, last_failed_login_at, temporary_lock_until,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (card_number) DO UPDATE SET
			pin_hash              = EXCLUDED.pin_hash,
			salt                  = EXCLUDED.salt,
			holder_name           = EXCLUDED.holder_name,
			balance               = EXCLUDED.balance,
			withdraw_limit        = EXCLUDED.withdraw_limit,
			role                  = EXCLUDED.role,
			locked                = EXCLUDED.locked,
			failed_login_attempts = EXCLUDED.failed_login_attempts,
			last_failed_login_at  = EXCLUDED.last_failed_login_at,
			temporary_lock_until  = EXCLUDED.temporary_lock_until,
			updated_at            = EXCLUDED.updated_at
	`,
		account.CardNumber,
		account.PINHash,
		account.Salt,
		account.HolderName,
		account.Balance.String(),
		account.WithdrawLimit.String(),
		account.Role,
		account.Locked,
		account.FailedLoginAttempts,
		account.LastFailedLoginAt,
		account.TemporaryLockUntil,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// Delete removes the account
func (s *PostgresStore) Delete(ctx context.Context, cardNumber string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE card_number = $1`, cardNumber)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.Failuref(model.CodeNotFound, "account %s not found", cardNumber)
	}
	return nil
}

// Exists reports whether the card number is known
func (s *PostgresStore) Exists(ctx context.Context, cardNumber string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE card_number = $1)`, cardNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

// All returns every account ordered by card number
func (s *PostgresStore) All(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY card_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

const transactionColumns = `
	id, card_number, ts, type,
	amount::text, balance_after::text, description, target_card_number`

func scanTransaction(rows pgx.Rows) (model.Transaction, error) {
	var (
		tx              model.Transaction
		amount, balance string
	)
	err := rows.Scan(
		&tx.ID,
		&tx.CardNumber,
		&tx.Timestamp,
		&tx.Type,
		&amount,
		&balance,
		&tx.Description,
		&tx.TargetCardNumber,
	)
	if err != nil {
		return tx, err
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return tx, fmt.Errorf("failed to parse amount: %w", err)
	}
	if tx.BalanceAfter, err = decimal.NewFromString(balance); err != nil {
		return tx, fmt.Errorf("failed to parse balance_after: %w", err)
	}
	return tx, nil
}

// Append inserts a ledger record
func (s *PostgresStore) Append(ctx context.Context, tx model.Transaction) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO transactions (id, card_number, ts, type, amount, balance_after, description, target_card_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		tx.ID,
		tx.CardNumber,
		tx.Timestamp,
		tx.Type,
		tx.Amount.String(),
		tx.BalanceAfter.String(),
		tx.Description,
		tx.TargetCardNumber,
	)
	if err != nil {
		return model.Failuref(model.CodePersistenceFailure, "failed to append transaction: %v", err)
	}
	return nil
}

// ForCard returns all records for the card in insertion order
func (s *PostgresStore) ForCard(ctx context.Context, cardNumber string) ([]model.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE card_number = $1 ORDER BY ts`, cardNumber)
}

// Recent returns up to n records for the card, newest first
func (s *PostgresStore) Recent(ctx context.Context, cardNumber string, n int) ([]model.Transaction, error) {
	if n <= 0 {
		n = 10
	}
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE card_number = $1 ORDER BY ts DESC LIMIT $2`,
		cardNumber, n)
}

// ClearForCard removes every record belonging to the card
func (s *PostgresStore) ClearForCard(ctx context.Context, cardNumber string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM transactions WHERE card_number = $1`, cardNumber); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
