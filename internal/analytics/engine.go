// Package analytics derives reports from the transaction ledger: balance
// forecasting, income/expense trend and activity frequency. Everything here
// is read-only and deterministic for a given ledger snapshot and clock.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torkelsen/cardledger/internal/model"
	"github.com/torkelsen/cardledger/internal/repository"
)

// PredictionMethod selects the balance forecasting algorithm
type PredictionMethod string

const (
	// MethodWeighted is the default: a recency-weighted average of daily
	// net change projected forward
	MethodWeighted PredictionMethod = "weighted"
	// MethodRegression fits a least-squares line over the reconstructed
	// balance history; it falls back to MethodWeighted when it has too few
	// points
	MethodRegression PredictionMethod = "regression"
)

const (
	// weightedWindowDays is the trailing window the weighted method reads
	weightedWindowDays = 90
	// recencyDecay shapes the weight 1/(1+daysAgo*recencyDecay)
	recencyDecay = 0.05
	// regressionMinPoints is the minimum day-points regression needs
	regressionMinPoints = 5
)

// TrendReport buckets income and expense per calendar day. Keys are dates in
// ISO format (2006-01-02); every day in the window is present, zero-filled.
type TrendReport struct {
	Income  map[string]decimal.Decimal `json:"income"`
	Expense map[string]decimal.Decimal `json:"expense"`
}

// Engine computes analytics over the account store and transaction ledger
type Engine struct {
	store  repository.AccountStore
	ledger repository.TransactionLedger

	// Now is the clock the windows are anchored to; tests inject a fixed one
	Now func() time.Time
}

// NewEngine creates an Engine
func NewEngine(store repository.AccountStore, ledger repository.TransactionLedger) *Engine {
	return &Engine{store: store, ledger: ledger, Now: time.Now}
}

// PredictBalance forecasts the balance daysAhead days from now. With fewer
// than two transactions there is nothing to extrapolate from and the current
// balance is returned. The forecast never goes below zero.
func (e *Engine) PredictBalance(ctx context.Context, cardNumber string, daysAhead int, method PredictionMethod) (decimal.Decimal, error) {
	if daysAhead <= 0 {
		return decimal.Zero, model.NewFailure(model.CodeInvalidInput, "days ahead must be positive")
	}

	account, err := e.store.Get(ctx, cardNumber)
	if err != nil {
		return decimal.Zero, err
	}

	txs, err := e.ledger.ForCard(ctx, cardNumber)
	if err != nil {
		return decimal.Zero, err
	}
	if len(txs) < 2 {
		return account.Balance, nil
	}

	var predicted decimal.Decimal
	switch method {
	case MethodRegression:
		predicted = e.predictRegression(txs, account.Balance, daysAhead)
	default:
		predicted = e.predictWeighted(txs, account.Balance, daysAhead)
	}

	if predicted.IsNegative() {
		return decimal.Zero, nil
	}
	return predicted, nil
}

// predictWeighted averages the per-day net change over the trailing window,
// weighting recent days higher, and projects the average forward
func (e *Engine) predictWeighted(txs []model.Transaction, balance decimal.Decimal, daysAhead int) decimal.Decimal {
	today := dayOf(e.Now())

	// Zero-filled net change per day, most recent first
	nets := make([]float64, weightedWindowDays)
	for i := range txs {
		daysAgo := daysBetween(dayOf(txs[i].Timestamp), today)
		if daysAgo < 0 || daysAgo >= weightedWindowDays {
			continue
		}
		nets[daysAgo] += txs[i].NetChange().InexactFloat64()
	}

	var weightedSum, weightTotal float64
	for daysAgo, net := range nets {
		w := 1.0 / (1.0 + float64(daysAgo)*recencyDecay)
		weightedSum += w * net
		weightTotal += w
	}
	if weightTotal == 0 {
		return balance
	}

	dailyChange := weightedSum / weightTotal
	return balance.Add(decimal.NewFromFloat(dailyChange * float64(daysAhead))).Round(2)
}

// predictRegression fits balanceAfter against days-from-today over the
// reconstructed history (one point per day, the day's closing balance) and
// evaluates the line daysAhead days out
func (e *Engine) predictRegression(txs []model.Transaction, balance decimal.Decimal, daysAhead int) decimal.Decimal {
	sorted := make([]model.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	// Closing balance per day; iteration in timestamp order leaves the last
	// record of each day in the map
	today := dayOf(e.Now())
	closing := make(map[int]float64)
	for i := range sorted {
		daysAgo := daysBetween(dayOf(sorted[i].Timestamp), today)
		if daysAgo < 0 {
			continue
		}
		closing[-daysAgo] = sorted[i].BalanceAfter.InexactFloat64()
	}

	if len(closing) < regressionMinPoints {
		return e.predictWeighted(txs, balance, daysAhead)
	}

	var sumX, sumY, sumXY, sumXX float64
	n := float64(len(closing))
	for x, y := range closing {
		fx := float64(x)
		sumX += fx
		sumY += y
		sumXY += fx * y
		sumXX += fx * fx
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return e.predictWeighted(txs, balance, daysAhead)
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	return decimal.NewFromFloat(intercept + slope*float64(daysAhead)).Round(2)
}

// Trend buckets deposits as income and withdrawals/transfers as expense per
// calendar day over the trailing window, zero-filling days without activity
func (e *Engine) Trend(ctx context.Context, cardNumber string, days int) (*TrendReport, error) {
	if days <= 0 {
		return nil, model.NewFailure(model.CodeInvalidInput, "days must be positive")
	}
	if _, err := e.store.Get(ctx, cardNumber); err != nil {
		return nil, err
	}

	txs, err := e.ledger.ForCard(ctx, cardNumber)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{
		Income:  make(map[string]decimal.Decimal, days),
		Expense: make(map[string]decimal.Decimal, days),
	}

	end := dayOf(e.Now())
	start := end.AddDate(0, 0, -(days - 1))
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		report.Income[key] = decimal.Zero
		report.Expense[key] = decimal.Zero
	}

	for i := range txs {
		day := dayOf(txs[i].Timestamp)
		if day.Before(start) || day.After(end) {
			continue
		}
		key := day.Format(time.DateOnly)
		switch {
		case txs[i].IsIncome():
			report.Income[key] = report.Income[key].Add(txs[i].Amount)
		case txs[i].IsExpense():
			report.Expense[key] = report.Expense[key].Add(txs[i].Amount)
		}
	}

	return report, nil
}

// TransactionFrequency returns the average number of transactions per day
// over the trailing window. Sparse or missing data degrades to zero.
func (e *Engine) TransactionFrequency(ctx context.Context, cardNumber string, days int) (float64, error) {
	if days <= 0 {
		return 0, model.NewFailure(model.CodeInvalidInput, "days must be positive")
	}
	if exists, err := e.store.Exists(ctx, cardNumber); err != nil || !exists {
		return 0, err
	}

	txs, err := e.ledger.ForCard(ctx, cardNumber)
	if err != nil {
		return 0, err
	}

	end := dayOf(e.Now())
	start := end.AddDate(0, 0, -(days - 1))
	count := 0
	for i := range txs {
		day := dayOf(txs[i].Timestamp)
		if !day.Before(start) && !day.After(end) {
			count++
		}
	}

	return float64(count) / float64(days), nil
}

// dayOf truncates a timestamp to its calendar day in UTC
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns how many whole days from is before to
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
