package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/internal/data"
	"github.com/raftroch1/0dte-sub001/internal/events"
	"github.com/raftroch1/0dte-sub001/internal/outcome"
	"github.com/raftroch1/0dte-sub001/internal/pricing"
	"github.com/raftroch1/0dte-sub001/internal/risk"
	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// tradingDay builds a full session of minute bars with a gentle uptrend
// and enough zig-zag for a realistic realized vol, plus a quoted chain
// expiring at chainExpiry.
func tradingDay(date time.Time, chainExpiry time.Time) *types.MarketDay {
	open := time.Date(date.Year(), date.Month(), date.Day(), 9, 30, 0, 0, time.UTC)
	bars := make([]types.Bar, 0, 391)
	for i := 0; i <= 390; i++ {
		px := 636.0 + 0.05*float64(i)
		if i%2 == 1 {
			px += 0.30
		}
		bars = append(bars, types.Bar{
			Timestamp: open.Add(time.Duration(i) * time.Minute),
			Open:      px, High: px + 0.05, Low: px - 0.05, Close: px,
			Volume: 5000,
		})
	}

	contracts := make([]types.OptionContract, 0, 102)
	for k := 615.0; k <= 665; k++ {
		putBid := 2.0 + (k-640)*0.15
		if putBid < 0.05 {
			putBid = 0.05
		}
		callBid := 2.0 - (k-640)*0.15
		if callBid < 0.05 {
			callBid = 0.05
		}
		contracts = append(contracts,
			types.OptionContract{Strike: k, Expiry: chainExpiry, Type: types.OptionPut, Bid: putBid, Ask: putBid + 0.10, Volume: 800},
			types.OptionContract{Strike: k, Expiry: chainExpiry, Type: types.OptionCall, Bid: callBid, Ask: callBid + 0.10, Volume: 1000},
		)
	}

	return &types.MarketDay{
		Date: date,
		Bars: bars,
		Chain: &types.OptionChain{
			Underlying: "SPY",
			AsOf:       open,
			Contracts:  contracts,
		},
	}
}

func sameDayExpiry(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 16, 0, 0, 0, time.UTC)
}

func weekConfig() *types.BacktestConfig {
	cfg := types.DefaultBacktestConfig()
	cfg.StartDate = time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC) // Monday
	cfg.EndDate = time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)   // Friday
	return cfg
}

func TestRunWeekClosesEverythingItOpens(t *testing.T) {
	cfg := weekConfig()
	store := data.NewMemStore()
	for d := 0; d < 5; d++ {
		date := cfg.StartDate.AddDate(0, 0, d)
		if d == 2 {
			continue // Wednesday has no data
		}
		store.Add("SPY", tradingDay(date, sameDayExpiry(date)))
	}

	driver, err := New(zap.NewNop(), cfg, store, outcome.NewPricingModel(), events.Nop{}, nil)
	require.NoError(t, err)

	res, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Summary.DaysTraded)
	assert.Equal(t, 1, res.Summary.DaysSkipped)
	assert.Greater(t, res.Summary.Opened, 0, "fixture market should admit entries")
	assert.Equal(t, res.Summary.Opened, res.Summary.Closed)
	assert.Len(t, res.Closed, res.Summary.Closed)
	assert.Len(t, res.Equity, 4)

	for _, pos := range res.Closed {
		assert.Equal(t, types.StatusClosed, pos.Status)
		assert.NotEmpty(t, pos.ExitReason)
	}
}

func TestRunLedgerMatchesRealizedPnL(t *testing.T) {
	cfg := weekConfig()
	store := data.NewMemStore()
	for d := 0; d < 5; d++ {
		date := cfg.StartDate.AddDate(0, 0, d)
		store.Add("SPY", tradingDay(date, sameDayExpiry(date)))
	}

	driver, err := New(zap.NewNop(), cfg, store, outcome.NewPricingModel(), events.Nop{}, nil)
	require.NoError(t, err)
	res, err := driver.Run(context.Background())
	require.NoError(t, err)

	total := decimal.Zero
	for _, pos := range res.Closed {
		total = total.Add(decimal.NewFromFloat(pos.RealizedPnL))
	}
	assert.True(t, res.Summary.TotalPnL.Equal(total),
		"summary P&L %s, summed realized %s", res.Summary.TotalPnL, total)
	assert.True(t, res.Summary.EndBalance.Equal(cfg.InitialBalance.Add(total)))
}

func TestRunEndFlattensMultiDayHolds(t *testing.T) {
	// A one-day range with two-day contracts leaves positions open at
	// run end; the driver must flatten them with BACKTEST_END.
	cfg := weekConfig()
	cfg.EndDate = cfg.StartDate
	cfg.TargetHoldDays = 1
	cfg.MaxHoldDays = 2
	// Thresholds pushed out of reach so intraday triggers cannot fire.
	cfg.RiskLimits.ProfitTargetPct = 2.0
	cfg.RiskLimits.StopLossMultiplier = 10
	cfg.RiskLimits.TrailingActivationPct = 1.0

	store := data.NewMemStore()
	store.Add("SPY", tradingDay(cfg.StartDate, sameDayExpiry(cfg.StartDate.AddDate(0, 0, 2))))

	driver, err := New(zap.NewNop(), cfg, store, outcome.NewPricingModel(), events.Nop{}, nil)
	require.NoError(t, err)
	res, err := driver.Run(context.Background())
	require.NoError(t, err)

	require.Greater(t, res.Summary.Opened, 0)
	assert.Equal(t, res.Summary.Opened, res.Summary.Closed)

	backtestEnd := 0
	for _, pos := range res.Closed {
		if pos.ExitReason == types.ExitBacktestEnd {
			backtestEnd++
		}
	}
	assert.Greater(t, backtestEnd, 0, "expected leftover positions closed at run end")
}

func TestDebitCandidateMarksFlatAtEntry(t *testing.T) {
	// Long options carry a negative net credit; the candidate must still
	// record the premium paid as a positive entry value, or every mark
	// and close of a debit position books twice the debit.
	cfg := weekConfig()
	driver, err := New(zap.NewNop(), cfg, data.NewMemStore(), outcome.NewPricingModel(), events.Nop{}, nil)
	require.NoError(t, err)

	exp := sameDayExpiry(cfg.StartDate)
	def := &types.SpreadDefinition{
		Family:     types.FamilyLongCall,
		Underlying: "SPY",
		Legs: []types.Leg{{
			Action:   types.ActionBuy,
			Contract: types.OptionContract{Strike: 640, Expiry: exp, Type: types.OptionCall, Bid: 1.95, Ask: 2.05, Volume: 500},
			Quantity: 1,
		}},
		Expiry:    exp,
		NetCredit: -2.00,
		MaxProfit: 600,
		MaxLoss:   200,
	}

	candidate := driver.candidateFrom(def, 2, 640, 0.20)
	assert.Equal(t, 2.00, candidate.EntryValue)

	account := types.NewAccountState(cfg.InitialBalance)
	pos, err := driver.manager.Open(candidate, risk.Decision{Approved: true}, account, cfg.StartDate)
	require.NoError(t, err)

	// An unchanged market closes the contract for exactly the debit paid.
	assert.InDelta(t, 0, pricing.UnrealizedPnL(pos, -2.00), 1e-9)

	before := account.Balance
	require.NoError(t, driver.manager.Close(pos, account, -2.50, types.ExitProfitTarget, cfg.StartDate))
	assert.InDelta(t, 100.0, pos.RealizedPnL, 1e-9)
	assert.True(t, account.Balance.Sub(before).Equal(decimal.NewFromFloat(pos.RealizedPnL)),
		"ledger moved %s, realized %f", account.Balance.Sub(before), pos.RealizedPnL)
}

func TestRunWithNoDataTradesNothing(t *testing.T) {
	cfg := weekConfig()
	driver, err := New(zap.NewNop(), cfg, data.NewMemStore(), outcome.NewPricingModel(), events.Nop{}, nil)
	require.NoError(t, err)

	res, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Summary.DaysTraded)
	assert.Equal(t, 5, res.Summary.DaysSkipped)
	assert.Zero(t, res.Summary.Opened)
	assert.True(t, res.Summary.EndBalance.Equal(cfg.InitialBalance))
}

func TestRunHonorsContextCancellation(t *testing.T) {
	cfg := weekConfig()
	store := data.NewMemStore()
	store.Add("SPY", tradingDay(cfg.StartDate, sameDayExpiry(cfg.StartDate)))

	driver, err := New(zap.NewNop(), cfg, store, outcome.NewPricingModel(), events.Nop{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = driver.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
