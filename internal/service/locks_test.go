package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentDepositsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := f.ledger.Deposit(ctx, cardAlice, decimal.NewFromInt(100))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 5000 + 20 * 100, no lost updates
	assert.True(t, f.balance(t, cardAlice).Equal(decimal.NewFromInt(7000)))
	history, err := f.ledger.History(ctx, cardAlice)
	require.NoError(t, err)
	assert.Len(t, history, workers)
}

func TestOpposingTransfersDoNotDeadlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const rounds = 10
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := f.ledger.Transfer(ctx, cardAlice, cardBob, decimal.NewFromInt(10))
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := f.ledger.Transfer(ctx, cardBob, cardAlice, decimal.NewFromInt(10))
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	// Equal flows in both directions leave the balances where they started
	assert.True(t, f.balance(t, cardAlice).Equal(decimal.NewFromInt(5000)))
	assert.True(t, f.balance(t, cardBob).Equal(decimal.NewFromInt(1000)))
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Bob has 1000 and a 2000 limit; ten concurrent 200-withdrawals can only
	// succeed five times
	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Withdraw(ctx, cardBob, decimal.NewFromInt(200)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.True(t, f.balance(t, cardBob).IsZero())
}
