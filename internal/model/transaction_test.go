package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransaction_NetChange(t *testing.T) {
	amount := decimal.NewFromInt(250)

	tests := []struct {
		name string
		typ  TransactionType
		want decimal.Decimal
	}{
		{"deposit is income", TransactionTypeDeposit, amount},
		{"withdrawal is expense", TransactionTypeWithdrawal, amount.Neg()},
		{"transfer is expense", TransactionTypeTransfer, amount.Neg()},
		{"balance inquiry is neutral", TransactionTypeBalanceInquiry, decimal.Zero},
		{"other is neutral", TransactionTypeOther, decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := Transaction{Type: tt.typ, Amount: amount}
			if got := tx.NetChange(); !got.Equal(tt.want) {
				t.Errorf("NetChange() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewTransaction(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := NewTransaction("1111222233334444", TransactionTypeWithdrawal,
		decimal.NewFromInt(1500), decimal.NewFromInt(3500), "Cash withdrawal", at)

	if tx.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("transaction should get a fresh ID")
	}
	if tx.CardNumber != "1111222233334444" {
		t.Errorf("card number = %q", tx.CardNumber)
	}
	if !tx.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v, want %v", tx.Timestamp, at)
	}
	if !tx.BalanceAfter.Equal(decimal.NewFromInt(3500)) {
		t.Errorf("balance after = %s, want 3500", tx.BalanceAfter)
	}
	if tx.TargetCardNumber != "" {
		t.Error("target card should be empty unless set for transfers")
	}

	other := NewTransaction("1111222233334444", TransactionTypeWithdrawal,
		decimal.NewFromInt(1500), decimal.NewFromInt(3500), "Cash withdrawal", at)
	if tx.ID == other.ID {
		t.Error("two transactions should never share an ID")
	}
}
