package auth

import (
	"fmt"
	"time"

	"github.com/torkelsen/cardledger/internal/model"
)

// Policy implements the credential rules for an institution: PIN verification
// and the failed-login lockout state machine. An account moves from active to
// temporarily locked after MaxFailedAttempts consecutive failures, and back to
// active once LockDuration has elapsed. The administrative lock on the account
// is orthogonal and never touched here.
type Policy struct {
	MaxFailedAttempts int           // lock after this many consecutive failures
	LockDuration      time.Duration // how long the temporary lock lasts

	// Now is the clock used for lockout decisions; tests inject a fixed one
	Now func() time.Time
}

// DefaultPolicy returns the institution defaults
func DefaultPolicy() *Policy {
	return &Policy{
		MaxFailedAttempts: 3,
		LockDuration:      15 * time.Minute,
		Now:               time.Now,
	}
}

func (p *Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Verify checks a candidate PIN against the account's stored digest
func (p *Policy) Verify(account *model.Account, pin string) bool {
	return VerifyPIN(pin, account.Salt, account.PINHash)
}

// RecordFailure registers a failed login attempt on the account, arming the
// temporary lock when the attempt crosses the threshold. The caller must hold
// the account's lock so that check and write are atomic, and must persist the
// account afterwards.
func (p *Policy) RecordFailure(account *model.Account) {
	now := p.now()
	account.FailedLoginAttempts++
	account.LastFailedLoginAt = &now
	if account.FailedLoginAttempts >= p.MaxFailedAttempts {
		until := now.Add(p.LockDuration)
		account.TemporaryLockUntil = &until
	}
}

// ResetFailures clears the failure counter and any temporary lock after a
// successful verification
func (p *Policy) ResetFailures(account *model.Account) {
	account.FailedLoginAttempts = 0
	account.LastFailedLoginAt = nil
	account.TemporaryLockUntil = nil
}

// RemainingAttempts returns how many failures are left before the account
// locks
func (p *Policy) RemainingAttempts(account *model.Account) int {
	remaining := p.MaxFailedAttempts - account.FailedLoginAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingLock returns how long the temporary lock still lasts, or zero if
// the account is not temporarily locked
func (p *Policy) RemainingLock(account *model.Account) time.Duration {
	if account.TemporaryLockUntil == nil {
		return 0
	}
	remaining := account.TemporaryLockUntil.Sub(p.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SetPIN re-hashes the account credential with a fresh salt
func (p *Policy) SetPIN(account *model.Account, pin string) error {
	if !model.IsPIN(pin) {
		return model.ErrInvalidPIN
	}
	salt, err := GenerateSalt()
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	account.Salt = salt
	account.PINHash = HashPIN(pin, salt)
	return nil
}
