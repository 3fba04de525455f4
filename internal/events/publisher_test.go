package events

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torkelsen/cardledger/internal/model"
)

func testEvent(amount int64) model.Transaction {
	return model.NewTransaction("1111222233334444", model.TransactionTypeDeposit,
		decimal.NewFromInt(amount), decimal.NewFromInt(amount), "d",
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestChannelPublisherDelivers(t *testing.T) {
	p := NewChannelPublisher(4)
	ctx := context.Background()

	sent := testEvent(100)
	if err := p.PublishTransaction(ctx, sent); err != nil {
		t.Fatalf("PublishTransaction() error: %v", err)
	}

	select {
	case got := <-p.Events():
		if got.ID != sent.ID {
			t.Errorf("received %s, want %s", got.ID, sent.ID)
		}
	default:
		t.Fatal("event should be waiting on the channel")
	}
}

func TestChannelPublisherDropsWhenFull(t *testing.T) {
	p := NewChannelPublisher(2)
	ctx := context.Background()

	// The third publish must drop rather than block
	for i := 0; i < 3; i++ {
		if err := p.PublishTransaction(ctx, testEvent(int64(i))); err != nil {
			t.Fatalf("PublishTransaction() error: %v", err)
		}
	}

	if n := len(p.Events()); n != 2 {
		t.Errorf("buffered events = %d, want 2", n)
	}
	got := <-p.Events()
	if !got.Amount.IsZero() {
		t.Errorf("first buffered amount = %s, want 0", got.Amount)
	}
}

func TestChannelPublisherDefaultBuffer(t *testing.T) {
	p := NewChannelPublisher(0)

	if err := p.PublishTransaction(context.Background(), testEvent(1)); err != nil {
		t.Fatalf("PublishTransaction() error: %v", err)
	}
	if len(p.Events()) != 1 {
		t.Error("a non-positive buffer size should fall back to the default")
	}
}
