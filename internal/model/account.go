package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role determines what operations an account may perform
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account represents a cardholder account
type Account struct {
	CardNumber    string          `json:"card_number"`
	PINHash       string          `json:"pin_hash"`
	Salt          string          `json:"salt"`
	HolderName    string          `json:"holder_name"`
	Balance       decimal.Decimal `json:"balance"`
	WithdrawLimit decimal.Decimal `json:"withdraw_limit"`
	Role          Role            `json:"role"`

	// Locked is the administrative lock; it stays set until an admin clears it
	Locked bool `json:"locked"`

	// Failed-login lockout state
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LastFailedLoginAt   *time.Time `json:"last_failed_login_at,omitempty"`
	TemporaryLockUntil  *time.Time `json:"temporary_lock_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin returns true if the account has administrative privileges
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsTemporarilyLocked returns true if the account is inside a failed-login
// lockout window at the given instant
func (a *Account) IsTemporarilyLocked(now time.Time) bool {
	if a.TemporaryLockUntil == nil {
		return false
	}
	return now.Before(*a.TemporaryLockUntil)
}

// CanLogin returns true if the account is allowed to attempt login
func (a *Account) CanLogin(now time.Time) bool {
	return !a.Locked && !a.IsTemporarilyLocked(now)
}

// Validate checks the stored account invariants
func (a *Account) Validate() error {
	if !IsCardNumber(a.CardNumber) {
		return ErrInvalidCardNumber
	}
	if a.HolderName == "" {
		return ErrHolderNameRequired
	}
	if a.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	if !a.WithdrawLimit.IsPositive() {
		return ErrInvalidWithdrawLimit
	}
	return nil
}

// IsCardNumber reports whether s is a well-formed card number:
// exactly 16 ASCII digits
func IsCardNumber(s string) bool {
	return len(s) == 16 && isDigits(s)
}

// IsPIN reports whether s is a well-formed PIN: 4 to 6 ASCII digits
func IsPIN(s string) bool {
	return len(s) >= 4 && len(s) <= 6 && isDigits(s)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// LoginResult is returned after a successful authentication
type LoginResult struct {
	CardNumber    string          `json:"card_number"`
	HolderName    string          `json:"holder_name"`
	Admin         bool            `json:"admin"`
	Balance       decimal.Decimal `json:"balance"`
	WithdrawLimit decimal.Decimal `json:"withdraw_limit"`
	Token         string          `json:"token"`
}

// AccountSnapshot is a read-only view of an account for display purposes
type AccountSnapshot struct {
	CardNumber    string          `json:"card_number"`
	HolderName    string          `json:"holder_name"`
	Balance       decimal.Decimal `json:"balance"`
	WithdrawLimit decimal.Decimal `json:"withdraw_limit"`
	Locked        bool            `json:"locked"`
	Admin         bool            `json:"admin"`
}

// Snapshot returns a display view of the account
func (a *Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		CardNumber:    a.CardNumber,
		HolderName:    a.HolderName,
		Balance:       a.Balance,
		WithdrawLimit: a.WithdrawLimit,
		Locked:        a.Locked,
		Admin:         a.IsAdmin(),
	}
}

// CreateAccountRequest is the payload for creating a new account
type CreateAccountRequest struct {
	CardNumber    string          `json:"card_number"`
	PIN           string          `json:"pin"`
	HolderName    string          `json:"holder_name"`
	Balance       decimal.Decimal `json:"balance"`
	WithdrawLimit decimal.Decimal `json:"withdraw_limit"`
	Admin         bool            `json:"admin"`
}

// UpdateAccountRequest is the payload for updating account details.
// The card number identifies the account and cannot be changed.
type UpdateAccountRequest struct {
	CardNumber    string          `json:"card_number"`
	HolderName    string          `json:"holder_name"`
	Balance       decimal.Decimal `json:"balance"`
	WithdrawLimit decimal.Decimal `json:"withdraw_limit"`
}
