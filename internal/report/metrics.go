// Package report computes performance statistics from a finished run.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

// EquityPoint is the account balance at the end of one trading day.
type EquityPoint struct {
	Date   time.Time       `json:"date"`
	Equity decimal.Decimal `json:"equity"`
}

// Performance is the full statistics block for a run.
type Performance struct {
	TotalTrades   int `json:"totalTrades"`
	WinningTrades int `json:"winningTrades"`
	LosingTrades  int `json:"losingTrades"`

	WinRate      decimal.Decimal `json:"winRate"`
	AvgWin       decimal.Decimal `json:"avgWin"`
	AvgLoss      decimal.Decimal `json:"avgLoss"`
	LargestWin   decimal.Decimal `json:"largestWin"`
	LargestLoss  decimal.Decimal `json:"largestLoss"`
	ProfitFactor decimal.Decimal `json:"profitFactor"`
	Expectancy   decimal.Decimal `json:"expectancy"`

	TotalReturn      decimal.Decimal `json:"totalReturn"`
	AnnualizedReturn decimal.Decimal `json:"annualizedReturn"`
	SharpeRatio      decimal.Decimal `json:"sharpeRatio"`
	SortinoRatio     decimal.Decimal `json:"sortinoRatio"`
	MaxDrawdown      decimal.Decimal `json:"maxDrawdown"`
	MaxDrawdownDate  time.Time       `json:"maxDrawdownDate"`

	ExitsByReason map[types.ExitReason]int `json:"exitsByReason"`
}

// Calculate derives the performance block from closed positions and the
// daily equity curve. Positions still open are ignored.
func Calculate(closed []*types.Position, equity []EquityPoint, initialBalance decimal.Decimal) *Performance {
	perf := &Performance{ExitsByReason: make(map[types.ExitReason]int)}
	if len(closed) == 0 {
		return perf
	}

	var totalWins, totalLosses decimal.Decimal
	for _, pos := range closed {
		if pos.Status != types.StatusClosed {
			continue
		}
		perf.TotalTrades++
		perf.ExitsByReason[pos.ExitReason]++

		pnl := decimal.NewFromFloat(pos.RealizedPnL)
		switch {
		case pnl.GreaterThan(decimal.Zero):
			perf.WinningTrades++
			totalWins = totalWins.Add(pnl)
			if pnl.GreaterThan(perf.LargestWin) {
				perf.LargestWin = pnl
			}
		case pnl.LessThan(decimal.Zero):
			perf.LosingTrades++
			totalLosses = totalLosses.Add(pnl.Abs())
			if pnl.Abs().GreaterThan(perf.LargestLoss) {
				perf.LargestLoss = pnl.Abs()
			}
		}
	}
	if perf.TotalTrades == 0 {
		return perf
	}

	perf.WinRate = decimal.NewFromInt(int64(perf.WinningTrades)).
		Div(decimal.NewFromInt(int64(perf.TotalTrades)))
	if perf.WinningTrades > 0 {
		perf.AvgWin = totalWins.Div(decimal.NewFromInt(int64(perf.WinningTrades)))
	}
	if perf.LosingTrades > 0 {
		perf.AvgLoss = totalLosses.Div(decimal.NewFromInt(int64(perf.LosingTrades)))
	}
	if !totalLosses.IsZero() {
		perf.ProfitFactor = totalWins.Div(totalLosses)
	}
	lossRate := decimal.NewFromInt(1).Sub(perf.WinRate)
	perf.Expectancy = perf.WinRate.Mul(perf.AvgWin).Sub(lossRate.Mul(perf.AvgLoss))

	if len(equity) > 0 && !initialBalance.IsZero() {
		final := equity[len(equity)-1].Equity
		perf.TotalReturn = final.Sub(initialBalance).Div(initialBalance)
	}

	returns := dailyReturns(equity)
	if len(returns) > 0 {
		perf.AnnualizedReturn = decimal.NewFromFloat(mean(returns) * tradingDaysPerYear)
	}
	if len(returns) > 1 {
		if sd := stdDev(returns); sd > 0 {
			perf.SharpeRatio = decimal.NewFromFloat(mean(returns) / sd * math.Sqrt(tradingDaysPerYear))
		}
		if dd := downsideDeviation(returns); dd > 0 {
			perf.SortinoRatio = decimal.NewFromFloat(mean(returns) / dd * math.Sqrt(tradingDaysPerYear))
		}
	}

	perf.MaxDrawdown, perf.MaxDrawdownDate = maxDrawdown(equity)
	return perf
}

// dailyReturns converts the equity curve into simple daily returns.
func dailyReturns(equity []EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev.IsZero() {
			continue
		}
		r, _ := equity[i].Equity.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	return returns
}

// maxDrawdown returns the deepest peak-to-trough equity decline as a
// fraction of the peak, with the date the trough was hit.
func maxDrawdown(equity []EquityPoint) (decimal.Decimal, time.Time) {
	if len(equity) == 0 {
		return decimal.Zero, time.Time{}
	}
	var maxDD decimal.Decimal
	var at time.Time
	peak := equity[0].Equity
	for _, point := range equity {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(point.Equity).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			at = point.Date
		}
	}
	return maxDD, at
}

// ValueAtRisk returns the historical VaR of daily returns at the given
// confidence level, as a positive loss fraction.
func ValueAtRisk(equity []EquityPoint, confidence float64) decimal.Decimal {
	returns := dailyReturns(equity)
	if len(returns) == 0 {
		return decimal.Zero
	}
	sort.Float64s(returns)
	idx := int(float64(len(returns)) * (1 - confidence))
	if idx < 0 || idx >= len(returns) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(-returns[idx])
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}

func downsideDeviation(returns []float64) float64 {
	var negative []float64
	for _, r := range returns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	return stdDev(negative)
}
