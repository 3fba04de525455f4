package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torkelsen/cardledger/internal/auth"
	"github.com/torkelsen/cardledger/internal/model"
	"github.com/torkelsen/cardledger/internal/repository"
	"github.com/torkelsen/cardledger/internal/validator"
)

// AdminService implements the privileged account lifecycle operations. Every
// method takes the caller's session token; callers without the admin role get
// an unauthorized failure.
type AdminService struct {
	store     repository.AccountStore
	ledger    repository.TransactionLedger
	validator *validator.Validator
	policy    *auth.Policy
	sessions  *auth.Sessions
	locks     *Locks
	log       *slog.Logger

	Now func() time.Time
}

// NewAdminService creates an AdminService sharing the lock table with the
// ledger service
func NewAdminService(
	store repository.AccountStore,
	ledger repository.TransactionLedger,
	v *validator.Validator,
	policy *auth.Policy,
	sessions *auth.Sessions,
	locks *Locks,
	log *slog.Logger,
) *AdminService {
	if log == nil {
		log = slog.Default()
	}
	return &AdminService{
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

// authorize validates the session token and confirms the actor still holds
// the admin role in the store; a stale token from a demoted or deleted
// account is rejected
func (s *AdminService) authorize(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.sessions.Validate(token)
	if err != nil {
		return nil, err
	}
	if !claims.Admin {
		return nil, model.NewFailure(model.CodeUnauthorized, "administrator privileges required")
	}

	actor, err := s.store.Get(ctx, claims.CardNumber)
	if err != nil {
		return nil, model.NewFailure(model.CodeUnauthorized, "administrator account no longer exists")
	}
	if !actor.IsAdmin() || actor.Locked {
		return nil, model.NewFailure(model.CodeUnauthorized, "administrator privileges required")
	}
	return claims, nil
}

// CreateAccount creates a new cardholder or admin account
func (s *AdminService) CreateAccount(ctx context.Context, token string, req model.CreateAccountRequest) (*model.Account, error) {
	claims, err := s.authorize(ctx, token)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.CardNumber)
	defer unlock()

	if err := s.validator.CreateAccount(ctx, req); err != nil {
		return nil, err
	}

	now := s.Now()
	account := &model.Account{
		CardNumber:    req.CardNumber,
		HolderName:    req.HolderName,
		Balance:       req.Balance,
		WithdrawLimit: req.WithdrawLimit,
		Role:          model.RoleUser,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Admin {
		account.Role = model.RoleAdmin
	}
	if err := s.policy.SetPIN(account, req.PIN); err != nil {
		return nil, model.NewFailure(model.CodeInvalidInput, err.Error())
	}

	if err := s.store.Save(ctx, account); err != nil && !model.IsCode(err, model.CodePersistenceFailure) {
		return nil, err
	}

	s.log.Info("admin created account",
		"actor", claims.CardNumber, "card_number", account.CardNumber, "role", account.Role)
	return account, nil
}

// UpdateAccount changes holder name, balance and withdraw limit. The card
// number and credential are never touched here.
func (s *AdminService) UpdateAccount(ctx context.Context, token string, req model.UpdateAccountRequest) error {
	claims, err := s.authorize(ctx, token)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(req.CardNumber)
	defer unlock()

	if err := s.validator.UpdateAccount(ctx, req); err != nil {
		return err
	}

	account, err := s.store.Get(ctx, req.CardNumber)
	if err != nil {
		return err
	}

	account.HolderName = req.HolderName
	account.Balance = req.Balance
	account.WithdrawLimit = req.WithdrawLimit
	account.UpdatedAt = s.Now()

	if err := s.save(ctx, account); err != nil {
		return err
	}

	s.log.Info("admin updated account", "actor", claims.CardNumber, "card_number", req.CardNumber)
	return nil
}

// DeleteAccount removes the account and cascades deletion of its ledger
// records. The caller's own account and the last admin account are protected.
func (s *AdminService) DeleteAccount(ctx context.Context, token string, cardNumber string) error {
	claims, err := s.authorize(ctx, token)
	if err != nil {
		return err
	}
	if claims.CardNumber == cardNumber {
		return model.NewFailure(model.CodeUnauthorized, "cannot delete your own account")
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.store.Get(ctx, cardNumber)
	if err != nil {
		return err
	}

	if account.IsAdmin() {
		admins, err := s.countAdmins(ctx)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return model.NewFailure(model.CodeUnauthorized, "cannot delete the last administrator account")
		}
	}

	if err := s.store.Delete(ctx, cardNumber); err != nil && !model.IsCode(err, model.CodePersistenceFailure) {
		return err
	}
	if err := s.ledger.ClearForCard(ctx, cardNumber); err != nil && !model.IsCode(err, model.CodePersistenceFailure) {
		return err
	}

	s.log.Info("admin deleted account", "actor", claims.CardNumber, "card_number", cardNumber)
	return nil
}

// SetLocked sets or clears the administrative lock. Unlocking also clears
// any failed-login lockout so the holder can log in immediately.
func (s *AdminService) SetLocked(ctx context.Context, token string, cardNumber string, locked bool) error {
	claims, err := s.authorize(ctx, token)
	if err != nil {
		return err
	}
	if claims.CardNumber == cardNumber && locked {
		return model.NewFailure(model.CodeUnauthorized, "cannot lock your own account")
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.store.Get(ctx, cardNumber)
	if err != nil {
		return err
	}
	if account.IsAdmin() && locked {
		return model.NewFailure(model.CodeUnauthorized, "cannot lock an administrator account")
	}

	account.Locked = locked
	if !locked {
		s.policy.ResetFailures(account)
	}
	account.UpdatedAt = s.Now()

	if err := s.save(ctx, account); err != nil {
		return err
	}

	s.log.Info("admin changed lock state",
		"actor", claims.CardNumber, "card_number", cardNumber, "locked", locked)
	return nil
}

// ResetPin sets a new credential with a fresh salt and clears the lockout
// state
func (s *AdminService) ResetPin(ctx context.Context, token string, cardNumber, newPin string) error {
	claims, err := s.authorize(ctx, token)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.store.Get(ctx, cardNumber)
	if err != nil {
		return err
	}

	if err := s.policy.SetPIN(account, newPin); err != nil {
		return model.NewFailure(model.CodeInvalidInput, err.Error())
	}
	s.policy.ResetFailures(account)
	account.UpdatedAt = s.Now()

	if err := s.save(ctx, account); err != nil {
		return err
	}

	s.log.Info("admin reset pin", "actor", claims.CardNumber, "card_number", cardNumber)
	return nil
}

// SetWithdrawLimit changes the per-withdrawal cap
func (s *AdminService) SetWithdrawLimit(ctx context.Context, token string, cardNumber string, limit decimal.Decimal) error {
	claims, err := s.authorize(ctx, token)
	if err != nil {
		return err
	}
	if !limit.IsPositive() {
		return model.NewFailure(model.CodeInvalidInput, model.ErrInvalidWithdrawLimit.Error())
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.store.Get(ctx, cardNumber)
	if err != nil {
		return err
	}

	account.WithdrawLimit = limit
	account.UpdatedAt = s.Now()

	if err := s.save(ctx, account); err != nil {
		return err
	}

	s.log.Info("admin set withdraw limit",
		"actor", claims.CardNumber, "card_number", cardNumber, "limit", limit.String())
	return nil
}

// ListAccounts returns every account
func (s *AdminService) ListAccounts(ctx context.Context, token string) ([]model.Account, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return nil, err
	}
	return s.store.All(ctx)
}

func (s *AdminService) countAdmins(ctx context.Context) (int, error) {
	accounts, err := s.store.All(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range accounts {
		if accounts[i].IsAdmin() {
			count++
		}
	}
	return count, nil
}

// save persists the account, tolerating a failed flush the same way the
// ledger service does
func (s *AdminService) save(ctx context.Context, account *model.Account) error {
	err := s.store.Save(ctx, account)
	if err == nil || model.IsCode(err, model.CodePersistenceFailure) {
		if err != nil {
			s.log.Error("account flush failed, continuing with in-memory state",
				"card_number", account.CardNumber, "error", err)
		}
		return nil
	}
	return err
}
