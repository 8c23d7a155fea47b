// Package risk provides stateless pre-trade admission control.
//
// The gate runs a fixed sequence of short-circuiting checks; the first
// failure names the rejection reason. It never mutates account state.
package risk

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// CheckName identifies which gate check decided the outcome.
type CheckName string

const (
	CheckMargin        CheckName = "margin"
	CheckDailyLoss     CheckName = "daily_loss"
	CheckPerTradeRisk  CheckName = "per_trade_risk"
	CheckOpenPositions CheckName = "open_positions"
	CheckConcentration CheckName = "concentration"
)

// Decision is the gate's verdict for one candidate.
type Decision struct {
	Approved bool      `json:"approved"`
	Check    CheckName `json:"check,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Gate validates candidates against account and limit state.
type Gate struct {
	logger *zap.Logger
	limits *types.RiskLimits
}

// NewGate creates a gate. Limits are immutable for the run.
func NewGate(logger *zap.Logger, limits *types.RiskLimits) *Gate {
	return &Gate{logger: logger, limits: limits}
}

// Validate runs the checks in fixed order: margin vs available cash,
// daily loss headroom, per-trade risk fraction, open-position count,
// concentration of committed risk. Pure: the account is read, never
// written.
//
// Concentration is deliberately measured over committed dollar risk,
// not gross strike notional: a single index vertical's notional runs to
// several times a retail balance, and a notional cap would reject every
// candidate.
func (g *Gate) Validate(candidate *types.Candidate, account *types.AccountState) Decision {
	balance, _ := account.Balance.Float64()
	dailyPnL, _ := account.DailyPnL.Float64()
	maxRisk := candidate.MaxRisk()

	if margin := candidate.MarginRequired(); margin > account.AvailableCash() {
		return g.reject(CheckMargin, fmt.Sprintf(
			"required margin $%.2f exceeds available cash $%.2f",
			margin, account.AvailableCash()))
	}

	if dailyPnL-maxRisk <= -g.limits.MaxDailyLoss {
		return g.reject(CheckDailyLoss, fmt.Sprintf(
			"daily P&L $%.2f less candidate risk $%.2f breaches daily loss cap $%.2f",
			dailyPnL, maxRisk, g.limits.MaxDailyLoss))
	}

	if balance <= 0 || maxRisk/balance > g.limits.MaxRiskPerTradePct {
		return g.reject(CheckPerTradeRisk, fmt.Sprintf(
			"per-trade risk $%.2f exceeds %.2f%% of balance $%.2f (ceiling $%.2f)",
			maxRisk, g.limits.MaxRiskPerTradePct*100, balance,
			balance*g.limits.MaxRiskPerTradePct))
	}

	if len(account.OpenPositions) >= g.limits.MaxConcurrent {
		return g.reject(CheckOpenPositions, fmt.Sprintf(
			"open positions %d at configured cap %d",
			len(account.OpenPositions), g.limits.MaxConcurrent))
	}

	if committed := account.CommittedRisk() + maxRisk; committed/balance > g.limits.MaxConcentration {
		return g.reject(CheckConcentration, fmt.Sprintf(
			"committed risk $%.2f would be %.1f%% of balance, cap %.1f%%",
			committed, committed/balance*100,
			g.limits.MaxConcentration*100))
	}

	return Decision{Approved: true}
}

func (g *Gate) reject(check CheckName, reason string) Decision {
	g.logger.Debug("candidate rejected",
		zap.String("check", string(check)),
		zap.String("reason", reason),
	)
	return Decision{Approved: false, Check: check, Reason: reason}
}
