// Package lifecycle owns the position state machine.
//
// Positions move PENDING_ENTRY -> OPEN -> CLOSED and never leave CLOSED.
// The manager is the only writer of position state and the only code
// path that touches the account balance; everything else observes.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/internal/events"
	"github.com/raftroch1/0dte-sub001/internal/outcome"
	"github.com/raftroch1/0dte-sub001/internal/pricing"
	"github.com/raftroch1/0dte-sub001/internal/risk"
	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// ErrInvariant reports a broken lifecycle invariant: a double close, a
// monitor on a non-open position, or opening past the concurrency cap.
// The driver treats it as fatal for the run.
var ErrInvariant = errors.New("lifecycle invariant violated")

// Config holds the hold-time policy for open positions.
type Config struct {
	TargetHoldDays int
	MaxHoldDays    int
}

// Manager drives positions through their lifecycle.
type Manager struct {
	logger *zap.Logger
	model  outcome.Model
	limits *types.RiskLimits
	sink   events.Sink
	cfg    Config
}

// NewManager creates a lifecycle manager. The outcome model and sink are
// fixed for the whole run.
func NewManager(logger *zap.Logger, model outcome.Model, limits *types.RiskLimits, sink events.Sink, cfg Config) *Manager {
	return &Manager{logger: logger, model: model, limits: limits, sink: sink, cfg: cfg}
}

// Open converts an approved candidate into an OPEN position and registers
// it on the account. The gate decision is required; an unapproved
// candidate never becomes a position.
func (m *Manager) Open(candidate *types.Candidate, decision risk.Decision, account *types.AccountState, now time.Time) (*types.Position, error) {
	if !decision.Approved {
		return nil, fmt.Errorf("candidate not approved by risk gate: %s", decision.Reason)
	}
	if len(account.OpenPositions) >= m.limits.MaxConcurrent {
		return nil, fmt.Errorf("%w: %d positions already open at cap %d",
			ErrInvariant, len(account.OpenPositions), m.limits.MaxConcurrent)
	}

	pos := &types.Position{
		ID:           uuid.NewString(),
		OpenedAt:     now,
		Spread:       candidate.Spread,
		Contracts:    candidate.Contracts,
		EntryValue:   candidate.EntryValue,
		EntrySpot:    candidate.EntrySpot,
		EntryVol:     candidate.EntryVol,
		ProfitTarget: candidate.ProfitTarget,
		StopLoss:     candidate.StopLoss,
		Status:       types.StatusPendingEntry,
	}
	pos.Status = types.StatusOpen

	account.OpenPositions[pos.ID] = pos
	account.DailyTrades++

	m.logger.Debug("position opened",
		zap.String("id", pos.ID),
		zap.String("family", string(pos.Spread.Family)),
		zap.Int("contracts", pos.Contracts),
	)
	m.sink.PositionOpened(pos, account)
	return pos, nil
}

// ExitDecision is the outcome of one monitoring pass.
type ExitDecision struct {
	Exit      bool
	Reason    types.ExitReason
	ExitValue float64 // cost to close per contract-set, option points
}

// Monitor marks the position at a checkpoint, updates its unrealized P&L
// and trailing state, and decides whether an exit triggers. Triggers are
// evaluated in fixed priority: profit target, stop loss, trailing stop,
// scheduled time exit, max hold, expiration.
func (m *Manager) Monitor(pos *types.Position, snap outcome.Snapshot, now time.Time) (ExitDecision, error) {
	if pos.Status != types.StatusOpen {
		return ExitDecision{}, fmt.Errorf("%w: monitor on %s position %s",
			ErrInvariant, pos.Status, pos.ID)
	}

	expired := snap.TimeToExpiry <= 0
	var cost float64
	if expired {
		cost = pricing.SettlementValue(snap.Spot, pos.Spread)
	} else {
		cost = m.model.CostToClose(pos.Spread, snap)
	}

	unrealized := pricing.UnrealizedPnL(pos, cost)
	pos.UnrealizedPnL = unrealized
	if unrealized > pos.HighWater {
		pos.HighWater = unrealized
	}
	if activation := m.limits.TrailingActivationPct * pos.ProfitTarget; !pos.TrailingArmed && activation > 0 && pos.HighWater >= activation {
		pos.TrailingArmed = true
		m.logger.Debug("trailing stop armed",
			zap.String("id", pos.ID),
			zap.Float64("highWater", pos.HighWater),
		)
	}
	m.sink.PositionMonitored(pos, now)

	switch {
	case pos.ProfitTarget > 0 && unrealized >= pos.ProfitTarget:
		return ExitDecision{Exit: true, Reason: types.ExitProfitTarget, ExitValue: cost}, nil
	case pos.StopLoss > 0 && unrealized <= -pos.StopLoss:
		return ExitDecision{Exit: true, Reason: types.ExitStopLoss, ExitValue: cost}, nil
	case pos.TrailingArmed && m.limits.TrailingStopPct > 0 &&
		unrealized < pos.HighWater*(1-m.limits.TrailingStopPct):
		return ExitDecision{Exit: true, Reason: types.ExitTrailingStop, ExitValue: cost}, nil
	}

	held := daysHeld(pos.OpenedAt, now)
	switch {
	case m.cfg.TargetHoldDays > 0 && held >= m.cfg.TargetHoldDays:
		return ExitDecision{Exit: true, Reason: types.ExitTimeBased, ExitValue: cost}, nil
	case m.cfg.MaxHoldDays > 0 && held >= m.cfg.MaxHoldDays:
		return ExitDecision{Exit: true, Reason: types.ExitMaxHold, ExitValue: cost}, nil
	case expired:
		return ExitDecision{Exit: true, Reason: types.ExitExpiration, ExitValue: cost}, nil
	}

	return ExitDecision{ExitValue: cost}, nil
}

// Close realizes the position at the given cost to close and settles the
// account ledger. The balance moves exactly once, by exactly the realized
// P&L; closing an already CLOSED position is an invariant violation.
func (m *Manager) Close(pos *types.Position, account *types.AccountState, costToClose float64, reason types.ExitReason, now time.Time) error {
	if pos.Status == types.StatusClosed {
		return fmt.Errorf("%w: position %s closed twice", ErrInvariant, pos.ID)
	}
	if pos.Status != types.StatusOpen {
		return fmt.Errorf("%w: close on %s position %s", ErrInvariant, pos.Status, pos.ID)
	}

	realized := pricing.UnrealizedPnL(pos, costToClose)
	delta := decimal.NewFromFloat(realized)
	account.Balance = account.Balance.Add(delta)
	account.DailyPnL = account.DailyPnL.Add(delta)
	delete(account.OpenPositions, pos.ID)

	pos.Status = types.StatusClosed
	pos.RealizedPnL = realized
	pos.UnrealizedPnL = 0
	pos.ExitedAt = now
	pos.ExitReason = reason

	m.logger.Debug("position closed",
		zap.String("id", pos.ID),
		zap.String("reason", string(reason)),
		zap.Float64("realizedPnl", realized),
	)
	m.sink.PositionClosed(pos, account)
	return nil
}

// daysHeld counts calendar days between the open date and now.
func daysHeld(openedAt, now time.Time) int {
	o := time.Date(openedAt.Year(), openedAt.Month(), openedAt.Day(), 0, 0, 0, 0, openedAt.Location())
	n := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(n.Sub(o).Hours() / 24)
}
