// Package validator implements the rule checks behind every ledger and admin
// operation. Each operation is an ordered pipeline of checks that stops at
// the first failure. Checks read the account store but never mutate it; the
// services own all state changes.
package validator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torkelsen/cardledger/internal/auth"
	"github.com/torkelsen/cardledger/internal/model"
	"github.com/torkelsen/cardledger/internal/repository"
)

// Limits are the institution-wide transaction policy knobs
type Limits struct {
	// DepositCeiling caps a single deposit
	DepositCeiling decimal.Decimal
	// TransferCeiling caps a single transfer
	TransferCeiling decimal.Decimal
	// WithdrawMultiple is the cash denomination; withdrawals must be a
	// multiple of it
	WithdrawMultiple decimal.Decimal
}

// DefaultLimits returns the institution defaults
func DefaultLimits() Limits {
	return Limits{
		DepositCeiling:   decimal.NewFromInt(1_000_000),
		TransferCeiling:  decimal.NewFromInt(1_000_000),
		WithdrawMultiple: decimal.NewFromInt(100),
	}
}

// Validator composes the rule checks for every operation
type Validator struct {
	store  repository.AccountStore
	policy *auth.Policy
	limits Limits
}

// New creates a Validator
func New(store repository.AccountStore, policy *auth.Policy, limits Limits) *Validator {
	return &Validator{store: store, policy: policy, limits: limits}
}

// check is a single validation step
type check func() error

// run executes checks in order and stops at the first failure
func run(checks ...check) error {
	for _, c := range checks {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}

// Credentials validates a login attempt: the card must exist, must not be
// locked in either way, and the PIN must match. The returned account is the
// stored state at the time of the check. This is a pure check: recording the
// failure or resetting the counter is the caller's responsibility.
func (v *Validator) Credentials(ctx context.Context, cardNumber, pin string) (*model.Account, error) {
	account, err := v.lookup(ctx, cardNumber)
	if err != nil {
		return nil, err
	}

	if err := run(
		v.notPermanentlyLocked(account),
		v.notTemporarilyLocked(account),
	); err != nil {
		return nil, err
	}

	if !v.policy.Verify(account, pin) {
		remaining := v.policy.RemainingAttempts(account) - 1
		if remaining <= 0 {
			return account, model.NewFailure(model.CodeUnauthorized, "incorrect pin; account is now temporarily locked")
		}
		return account, model.Failuref(model.CodeUnauthorized, "incorrect pin; %d attempts remaining", remaining)
	}

	return account, nil
}

// Withdrawal validates a cash withdrawal
func (v *Validator) Withdrawal(ctx context.Context, cardNumber string, amount decimal.Decimal) error {
	account, err := v.lookup(ctx, cardNumber)
	if err != nil {
		return err
	}

	return run(
		v.notPermanentlyLocked(account),
		positiveAmount(amount, "withdrawal"),
		func() error {
			if !amount.Mod(v.limits.WithdrawMultiple).IsZero() {
				return model.Failuref(model.CodeInvalidInput, "withdrawal amount must be a multiple of %s", v.limits.WithdrawMultiple)
			}
			return nil
		},
		func() error {
			if amount.GreaterThan(account.WithdrawLimit) {
				return model.Failuref(model.CodeLimitExceeded, "amount exceeds the per-withdrawal limit of %s", account.WithdrawLimit)
			}
			return nil
		},
		sufficientBalance(account, amount),
	)
}

// Deposit validates a cash deposit
func (v *Validator) Deposit(ctx context.Context, cardNumber string, amount decimal.Decimal) error {
	account, err := v.lookup(ctx, cardNumber)
	if err != nil {
		return err
	}

	return run(
		v.notPermanentlyLocked(account),
		positiveAmount(amount, "deposit"),
		func() error {
			if amount.GreaterThan(v.limits.DepositCeiling) {
				return model.Failuref(model.CodeLimitExceeded, "a single deposit cannot exceed %s", v.limits.DepositCeiling)
			}
			return nil
		},
	)
}

// Transfer validates a transfer between two accounts
func (v *Validator) Transfer(ctx context.Context, fromCard, toCard string, amount decimal.Decimal) error {
	if fromCard == toCard {
		return model.NewFailure(model.CodeInvalidInput, "cannot transfer to the same account")
	}

	from, err := v.lookup(ctx, fromCard)
	if err != nil {
		return err
	}
	to, err := v.lookup(ctx, toCard)
	if err != nil {
		return err
	}

	return run(
		v.notPermanentlyLocked(from),
		v.notPermanentlyLocked(to),
		positiveAmount(amount, "transfer"),
		sufficientBalance(from, amount),
		func() error {
			if amount.GreaterThan(v.limits.TransferCeiling) {
				return model.Failuref(model.CodeLimitExceeded, "a single transfer cannot exceed %s", v.limits.TransferCeiling)
			}
			return nil
		},
	)
}

// PinChange validates the new PIN of a credential change. The current PIN
// must already have been verified through Credentials.
func (v *Validator) PinChange(account *model.Account, currentPin, newPin, confirmPin string) error {
	return run(
		func() error {
			if !model.IsPIN(newPin) {
				return model.NewFailure(model.CodeInvalidInput, model.ErrInvalidPIN.Error())
			}
			return nil
		},
		func() error {
			if newPin == currentPin {
				return model.NewFailure(model.CodeInvalidInput, "new pin must differ from the current pin")
			}
			return nil
		},
		func() error {
			if confirmPin != "" && confirmPin != newPin {
				return model.NewFailure(model.CodeInvalidInput, "pin confirmation does not match")
			}
			return nil
		},
	)
}

// CreateAccount validates a new account request
func (v *Validator) CreateAccount(ctx context.Context, req model.CreateAccountRequest) error {
	return run(
		cardNumberFormat(req.CardNumber),
		func() error {
			exists, err := v.store.Exists(ctx, req.CardNumber)
			if err != nil {
				return err
			}
			if exists {
				return model.Failuref(model.CodeInvalidInput, "account %s already exists", req.CardNumber)
			}
			return nil
		},
		func() error {
			if !model.IsPIN(req.PIN) {
				return model.NewFailure(model.CodeInvalidInput, model.ErrInvalidPIN.Error())
			}
			return nil
		},
		holderAndAmounts(req.HolderName, req.Balance, req.WithdrawLimit),
	)
}

// UpdateAccount validates an account detail update
func (v *Validator) UpdateAccount(ctx context.Context, req model.UpdateAccountRequest) error {
	return run(
		cardNumberFormat(req.CardNumber),
		func() error {
			_, err := v.lookup(ctx, req.CardNumber)
			return err
		},
		holderAndAmounts(req.HolderName, req.Balance, req.WithdrawLimit),
	)
}

// TargetAccount validates the receiving side of a transfer before the
// transfer itself is attempted, so the front-end can fail fast
func (v *Validator) TargetAccount(ctx context.Context, cardNumber string) error {
	account, err := v.lookup(ctx, cardNumber)
	if err != nil {
		return err
	}
	return v.notPermanentlyLocked(account)()
}

func (v *Validator) lookup(ctx context.Context, cardNumber string) (*model.Account, error) {
	if err := cardNumberFormat(cardNumber)(); err != nil {
		return nil, err
	}
	return v.store.Get(ctx, cardNumber)
}

func (v *Validator) notPermanentlyLocked(account *model.Account) check {
	return func() error {
		if account.Locked {
			return model.Failuref(model.CodePermanentlyLocked, "account %s is locked; contact the administrator", account.CardNumber)
		}
		return nil
	}
}

func (v *Validator) notTemporarilyLocked(account *model.Account) check {
	return func() error {
		if remaining := v.policy.RemainingLock(account); remaining > 0 {
			return model.Failuref(model.CodeTemporarilyLocked, "too many failed attempts; try again in %s", remaining.Round(time.Second))
		}
		return nil
	}
}

func cardNumberFormat(cardNumber string) check {
	return func() error {
		if !model.IsCardNumber(cardNumber) {
			return model.NewFailure(model.CodeInvalidInput, model.ErrInvalidCardNumber.Error())
		}
		return nil
	}
}

func positiveAmount(amount decimal.Decimal, operation string) check {
	return func() error {
		if !amount.IsPositive() {
			return model.Failuref(model.CodeInvalidInput, "%s amount must be positive", operation)
		}
		return nil
	}
}

func sufficientBalance(account *model.Account, amount decimal.Decimal) check {
	return func() error {
		if amount.GreaterThan(account.Balance) {
			return model.NewFailure(model.CodeInsufficientFunds, "insufficient funds")
		}
		return nil
	}
}

func holderAndAmounts(holderName string, balance, withdrawLimit decimal.Decimal) check {
	return func() error {
		return run(
			func() error {
				if holderName == "" {
					return model.NewFailure(model.CodeInvalidInput, model.ErrHolderNameRequired.Error())
				}
				return nil
			},
			func() error {
				if balance.IsNegative() {
					return model.NewFailure(model.CodeInvalidInput, model.ErrNegativeBalance.Error())
				}
				return nil
			},
			func() error {
				if !withdrawLimit.IsPositive() {
					return model.NewFailure(model.CodeInvalidInput, model.ErrInvalidWithdrawLimit.Error())
				}
				return nil
			},
		)
	}
}
