package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

func closedPos(pnl float64, reason types.ExitReason) *types.Position {
	return &types.Position{
		Status:      types.StatusClosed,
		RealizedPnL: pnl,
		ExitReason:  reason,
	}
}

func day(d int, equity float64) EquityPoint {
	return EquityPoint{
		Date:   time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC),
		Equity: decimal.NewFromFloat(equity),
	}
}

func TestCalculateTradeStatistics(t *testing.T) {
	closed := []*types.Position{
		closedPos(60, types.ExitProfitTarget),
		closedPos(40, types.ExitProfitTarget),
		closedPos(-30, types.ExitStopLoss),
		closedPos(-20, types.ExitEndOfDay),
	}
	equity := []EquityPoint{day(2, 1000), day(3, 1060), day(4, 1030), day(5, 1050)}

	perf := Calculate(closed, equity, decimal.NewFromInt(1000))

	assert.Equal(t, 4, perf.TotalTrades)
	assert.Equal(t, 2, perf.WinningTrades)
	assert.Equal(t, 2, perf.LosingTrades)
	assert.True(t, perf.WinRate.Equal(decimal.NewFromFloat(0.5)), "win rate %s", perf.WinRate)
	assert.True(t, perf.AvgWin.Equal(decimal.NewFromInt(50)), "avg win %s", perf.AvgWin)
	assert.True(t, perf.AvgLoss.Equal(decimal.NewFromInt(25)), "avg loss %s", perf.AvgLoss)
	assert.True(t, perf.LargestWin.Equal(decimal.NewFromInt(60)))
	assert.True(t, perf.LargestLoss.Equal(decimal.NewFromInt(30)))
	assert.True(t, perf.ProfitFactor.Equal(decimal.NewFromInt(2)), "profit factor %s", perf.ProfitFactor)
	assert.True(t, perf.Expectancy.Equal(decimal.NewFromFloat(12.5)), "expectancy %s", perf.Expectancy)

	assert.Equal(t, 2, perf.ExitsByReason[types.ExitProfitTarget])
	assert.Equal(t, 1, perf.ExitsByReason[types.ExitStopLoss])
	assert.Equal(t, 1, perf.ExitsByReason[types.ExitEndOfDay])

	assert.True(t, perf.TotalReturn.Equal(decimal.NewFromFloat(0.05)), "total return %s", perf.TotalReturn)
}

func TestCalculateEmptyRun(t *testing.T) {
	perf := Calculate(nil, nil, decimal.NewFromInt(1000))
	require.NotNil(t, perf)
	assert.Zero(t, perf.TotalTrades)
	assert.True(t, perf.WinRate.IsZero())
}

func TestOpenPositionsIgnored(t *testing.T) {
	closed := []*types.Position{
		closedPos(60, types.ExitProfitTarget),
		{Status: types.StatusOpen, UnrealizedPnL: 500},
	}
	perf := Calculate(closed, nil, decimal.NewFromInt(1000))
	assert.Equal(t, 1, perf.TotalTrades)
}

func TestMaxDrawdown(t *testing.T) {
	equity := []EquityPoint{day(2, 1000), day(3, 1100), day(4, 990), day(5, 1089)}

	dd, at := maxDrawdown(equity)
	assert.True(t, dd.Equal(decimal.NewFromFloat(0.1)), "drawdown %s", dd)
	assert.Equal(t, 4, at.Day())
}

func TestRatiosHaveExpectedSigns(t *testing.T) {
	up := []EquityPoint{day(2, 1000), day(3, 1010), day(4, 1025), day(5, 1020), day(6, 1040)}
	perf := Calculate([]*types.Position{closedPos(40, types.ExitProfitTarget)}, up, decimal.NewFromInt(1000))

	assert.True(t, perf.SharpeRatio.GreaterThan(decimal.Zero), "sharpe %s", perf.SharpeRatio)
	assert.True(t, perf.AnnualizedReturn.GreaterThan(decimal.Zero))
}

func TestValueAtRisk(t *testing.T) {
	equity := []EquityPoint{day(2, 1000), day(3, 1100), day(4, 990), day(5, 1089)}

	v := ValueAtRisk(equity, 0.95)
	assert.True(t, v.Equal(decimal.NewFromFloat(0.1)), "VaR %s", v)
}
