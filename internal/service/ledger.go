// Package service orchestrates the ledger operations: it validates through
// the validator, mutates the account store, appends to the transaction
// ledger, and notifies the event publisher. All business failures come back
// as tagged model.Failure values.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torkelsen/cardledger/internal/auth"
	"github.com/torkelsen/cardledger/internal/events"
	"github.com/torkelsen/cardledger/internal/model"
	"github.com/torkelsen/cardledger/internal/repository"
	"github.com/torkelsen/cardledger/internal/validator"
)

// LedgerService implements the cardholder-facing money movement operations
type LedgerService struct {
	store     repository.AccountStore
	ledger    repository.TransactionLedger
	validator *validator.Validator
	policy    *auth.Policy
	sessions  *auth.Sessions
	locks     *Locks
	log       *slog.Logger
	publisher events.Publisher

	// Now is the clock used for record timestamps; tests inject a fixed one
	Now func() time.Time
}

// NewLedgerService creates a LedgerService. The locks table must be shared
// with the AdminService operating on the same store.
func NewLedgerService(
	store repository.AccountStore,
	ledger repository.TransactionLedger,
	v *validator.Validator,
	policy *auth.Policy,
	sessions *auth.Sessions,
	locks *Locks,
	log *slog.Logger,
) *LedgerService {
	if log == nil {
		log = slog.Default()
	}
	return &LedgerService{
		store:     store,
		ledger:    ledger,
		validator: v,
		policy:    policy,
		sessions:  sessions,
		locks:     locks,
		log:       log,
		Now:       time.Now,
	}
}

// SetPublisher wires an event publisher for completed transactions
func (s *LedgerService) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// Login authenticates a cardholder. A wrong PIN advances the lockout state
// machine; a correct one resets it and yields a session token.
func (s *LedgerService) Login(ctx context.Context, cardNumber, pin string) (*model.LoginResult, error) {
	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.validator.Credentials(ctx, cardNumber, pin)
	if err != nil {
		// A pin mismatch comes back with the account so the failure can
		// be recorded; every other failure leaves the account untouched.
		if account != nil && model.IsCode(err, model.CodeUnauthorized) {
			s.policy.RecordFailure(account)
			account.UpdatedAt = s.Now()
			s.persist(ctx, account)
		}
		return nil, err
	}

	s.policy.ResetFailures(account)
	account.UpdatedAt = s.Now()
	if perr := s.persist(ctx, account); perr != nil {
		return nil, perr
	}

	token, err := s.sessions.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &model.LoginResult{
		CardNumber:    account.CardNumber,
		HolderName:    account.HolderName,
		Admin:         account.IsAdmin(),
		Balance:       account.Balance,
		WithdrawLimit: account.WithdrawLimit,
		Token:         token,
	}, nil
}

// Withdraw takes cash out of the account and appends a withdrawal record.
// The returned transaction is the appended record, suitable for receipt
// rendering.
func (s *LedgerService) Withdraw(ctx context.Context, cardNumber string, amount decimal.Decimal) (*model.Transaction, error) {
	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	if err := s.validator.Withdrawal(ctx, cardNumber, amount); err != nil {
		return nil, err
	}

	account, err := s.store.Get(ctx, cardNumber)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	account.Balance = account.Balance.Sub(amount)
	account.UpdatedAt = now
	if err := s.persist(ctx, account); err != nil {
		return nil, err
	}

	tx := model.NewTransaction(cardNumber, model.TransactionTypeWithdrawal, amount, account.Balance, "Cash withdrawal", now)
	return s.record(ctx, tx)
}

// Deposit puts cash into the account and appends a deposit record
func (s *LedgerService) Deposit(ctx context.Context, cardNumber string, amount decimal.Decimal) (*model.Transaction, error) {
	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	if err := s.validator.Deposit(ctx, cardNumber, amount); err != nil {
		return nil, err
	}

	account, err := s.store.Get(ctx, cardNumber)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	account.Balance = account.Balance.Add(amount)
	account.UpdatedAt = now
	if err := s.persist(ctx, account); err != nil {
		return nil, err
	}

	tx := model.NewTransaction(cardNumber, model.TransactionTypeDeposit, amount, account.Balance, "Cash deposit", now)
	return s.record(ctx, tx)
}

// Transfer moves money between two accounts. Two records are appended: an
// outgoing transfer on the sender and an incoming deposit-typed record on the
// receiver, each referencing the counterparty. The returned record is the
// sender's.
func (s *LedgerService) Transfer(ctx context.Context, fromCard, toCard string, amount decimal.Decimal) (*model.Transaction, error) {
	if fromCard == toCard {
		return nil, model.NewFailure(model.CodeInvalidInput, "cannot transfer to the same account")
	}

	unlock := s.locks.LockPair(fromCard, toCard)
	defer unlock()

	if err := s.validator.Transfer(ctx, fromCard, toCard, amount); err != nil {
		return nil, err
	}

	from, err := s.store.Get(ctx, fromCard)
	if err != nil {
		return nil, err
	}
	to, err := s.store.Get(ctx, toCard)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	from.Balance = from.Balance.Sub(amount)
	from.UpdatedAt = now
	to.Balance = to.Balance.Add(amount)
	to.UpdatedAt = now

	if err := s.persist(ctx, from); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, to); err != nil {
		return nil, err
	}

	outgoing := model.NewTransaction(fromCard, model.TransactionTypeTransfer, amount, from.Balance,
		fmt.Sprintf("Transfer to %s", toCard), now)
	outgoing.TargetCardNumber = toCard

	incoming := model.NewTransaction(toCard, model.TransactionTypeDeposit, amount, to.Balance,
		fmt.Sprintf("Transfer from %s", from.HolderName), now)
	incoming.TargetCardNumber = fromCard

	// A failed flush on either record is best-effort durable and must not
	// undo the transfer itself
	if _, err := s.record(ctx, incoming); err != nil && !model.IsCode(err, model.CodePersistenceFailure) {
		return nil, err
	}
	return s.record(ctx, outgoing)
}

// ChangePin re-hashes the credential with a fresh salt after verifying the
// current PIN. A wrong current PIN counts as a failed login.
func (s *LedgerService) ChangePin(ctx context.Context, cardNumber, currentPin, newPin, confirmPin string) error {
	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.validator.Credentials(ctx, cardNumber, currentPin)
	if err != nil {
		if account != nil && model.IsCode(err, model.CodeUnauthorized) {
			s.policy.RecordFailure(account)
			account.UpdatedAt = s.Now()
			s.persist(ctx, account)
		}
		return err
	}

	if err := s.validator.PinChange(account, currentPin, newPin, confirmPin); err != nil {
		return err
	}

	if err := s.policy.SetPIN(account, newPin); err != nil {
		return model.NewFailure(model.CodeInvalidInput, err.Error())
	}
	s.policy.ResetFailures(account)
	account.UpdatedAt = s.Now()
	return s.persist(ctx, account)
}

// Snapshot returns a read-only view of the account for display
func (s *LedgerService) Snapshot(ctx context.Context, cardNumber string) (*model.AccountSnapshot, error) {
	account, err := s.store.Get(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	snap := account.Snapshot()
	return &snap, nil
}

// RecordInquiry appends a zero-amount balance inquiry record
func (s *LedgerService) RecordInquiry(ctx context.Context, cardNumber string) (*model.Transaction, error) {
	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.store.Get(ctx, cardNumber)
	if err != nil {
		return nil, err
	}

	tx := model.NewTransaction(cardNumber, model.TransactionTypeBalanceInquiry, decimal.Zero, account.Balance, "Balance inquiry", s.Now())
	return s.record(ctx, tx)
}

// Recent returns up to n ledger records for the card, newest first
func (s *LedgerService) Recent(ctx context.Context, cardNumber string, n int) ([]model.Transaction, error) {
	return s.ledger.Recent(ctx, cardNumber, n)
}

// History returns the card's full ledger history
func (s *LedgerService) History(ctx context.Context, cardNumber string) ([]model.Transaction, error) {
	return s.ledger.ForCard(ctx, cardNumber)
}

// persist saves the account, tolerating a failed flush: the in-memory state
// already reflects the mutation, so a persistence failure is logged and
// swallowed while anything else is returned
func (s *LedgerService) persist(ctx context.Context, account *model.Account) error {
	err := s.store.Save(ctx, account)
	if err == nil {
		return nil
	}
	if model.IsCode(err, model.CodePersistenceFailure) {
		s.log.Error("account flush failed, continuing with in-memory state",
			"card_number", account.CardNumber, "error", err)
		return nil
	}
	return err
}

// record appends the transaction and publishes it. On a persistence failure
// the record is still retained in memory, so the transaction is returned
// together with the error.
func (s *LedgerService) record(ctx context.Context, tx model.Transaction) (*model.Transaction, error) {
	err := s.ledger.Append(ctx, tx)
	if err != nil && !model.IsCode(err, model.CodePersistenceFailure) {
		return nil, err
	}
	if err != nil {
		s.log.Error("transaction flush failed, record kept in memory",
			"card_number", tx.CardNumber, "type", tx.Type, "error", err)
	}

	if s.publisher != nil {
		if perr := s.publisher.PublishTransaction(ctx, tx); perr != nil {
			s.log.Warn("failed to publish transaction event",
				"card_number", tx.CardNumber, "type", tx.Type, "error", perr)
		}
	}
	return &tx, err
}
