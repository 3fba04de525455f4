package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "deposit"
	TransactionTypeWithdrawal     TransactionType = "withdrawal"
	TransactionTypeTransfer       TransactionType = "transfer"
	TransactionTypeBalanceInquiry TransactionType = "balance_inquiry"
	TransactionTypeOther          TransactionType = "other"
)

// Transaction is a single immutable record in the ledger. Records are never
// updated or deleted individually; the only bulk removal happens when the
// owning account is deleted.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	CardNumber   string          `json:"card_number"`
	Timestamp    time.Time       `json:"timestamp"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Description  string          `json:"description"`

	// TargetCardNumber identifies the counterparty and is set only for
	// transfer-related records
	TargetCardNumber string `json:"target_card_number,omitempty"`
}

// NewTransaction builds a ledger record with a fresh ID
func NewTransaction(cardNumber string, typ TransactionType, amount, balanceAfter decimal.Decimal, description string, at time.Time) Transaction {
	return Transaction{
		ID:           uuid.New(),
		CardNumber:   cardNumber,
		Timestamp:    at,
		Type:         typ,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  description,
	}
}

// IsIncome returns true for record types counted as income in analytics
func (t *Transaction) IsIncome() bool {
	return t.Type == TransactionTypeDeposit
}

// IsExpense returns true for record types counted as expense in analytics
func (t *Transaction) IsExpense() bool {
	return t.Type == TransactionTypeWithdrawal || t.Type == TransactionTypeTransfer
}

// NetChange returns the signed balance effect of the record: positive for
// income, negative for expense, zero for non-monetary events
func (t *Transaction) NetChange() decimal.Decimal {
	switch {
	case t.IsIncome():
		return t.Amount
	case t.IsExpense():
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}
