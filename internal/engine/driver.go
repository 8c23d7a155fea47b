// Package engine runs the day-by-day simulation.
//
// The driver owns the account ledger and the daily loop: reset the day
// once, walk the checkpoints in order, monitor open positions before
// considering entries, and force everything flat before the run ends.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/internal/data"
	"github.com/raftroch1/0dte-sub001/internal/events"
	"github.com/raftroch1/0dte-sub001/internal/lifecycle"
	"github.com/raftroch1/0dte-sub001/internal/metrics"
	"github.com/raftroch1/0dte-sub001/internal/outcome"
	"github.com/raftroch1/0dte-sub001/internal/pricing"
	"github.com/raftroch1/0dte-sub001/internal/regime"
	"github.com/raftroch1/0dte-sub001/internal/report"
	"github.com/raftroch1/0dte-sub001/internal/risk"
	"github.com/raftroch1/0dte-sub001/internal/sizing"
	"github.com/raftroch1/0dte-sub001/internal/spread"
	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// expiryHour is the exchange-local settlement hour for 0DTE contracts.
const expiryHour = 16

// Driver wires the components into one simulation run.
type Driver struct {
	logger     *zap.Logger
	cfg        *types.BacktestConfig
	loader     data.Loader
	classifier *regime.Classifier
	sizer      *sizing.Sizer
	gate       *risk.Gate
	builder    *spread.Builder
	manager    *lifecycle.Manager
	model      outcome.Model
	sink       events.Sink
	metrics    *metrics.Metrics

	checkpoints  []types.Clock
	entryStart   types.Clock
	entryEnd     types.Clock
	forceCloseAt types.Clock
}

// Result is everything a finished run produced.
type Result struct {
	Summary     events.RunSummary
	Performance *report.Performance
	Equity      []report.EquityPoint
	Closed      []*types.Position
}

// New creates a driver from a validated configuration. The loader,
// outcome model and sink are injected; the strategy components are
// built here so every run wires them the same way.
func New(logger *zap.Logger, cfg *types.BacktestConfig, loader data.Loader, model outcome.Model, sink events.Sink, met *metrics.Metrics) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if met == nil {
		met = metrics.New()
	}
	if sink == nil {
		sink = events.Nop{}
	}

	d := &Driver{
		logger:     logger,
		cfg:        cfg,
		loader:     loader,
		classifier: regime.NewClassifier(logger.Named("regime"), nil),
		sizer:      sizing.NewSizer(logger.Named("sizing"), &cfg.Sizing, &cfg.RiskLimits),
		gate:       risk.NewGate(logger.Named("risk"), &cfg.RiskLimits),
		builder:    spread.NewBuilder(logger.Named("spread"), cfg.MinVolume),
		model:      model,
		sink:       sink,
		metrics:    met,
	}
	d.manager = lifecycle.NewManager(logger.Named("lifecycle"), model, &cfg.RiskLimits, sink, lifecycle.Config{
		TargetHoldDays: cfg.TargetHoldDays,
		MaxHoldDays:    cfg.MaxHoldDays,
	})

	for _, cp := range cfg.Checkpoints {
		clock, err := types.ParseClock(cp)
		if err != nil {
			return nil, err
		}
		d.checkpoints = append(d.checkpoints, clock)
	}
	sort.Slice(d.checkpoints, func(i, j int) bool { return d.checkpoints[i] < d.checkpoints[j] })
	var err error
	if d.entryStart, err = types.ParseClock(cfg.EntryStart); err != nil {
		return nil, err
	}
	if d.entryEnd, err = types.ParseClock(cfg.EntryEnd); err != nil {
		return nil, err
	}
	if d.forceCloseAt, err = types.ParseClock(cfg.ForceCloseAt); err != nil {
		return nil, err
	}
	return d, nil
}

// run is the mutable state of one simulation.
type run struct {
	account *types.AccountState
	closed  []*types.Position
	equity  []report.EquityPoint
	opened  int
	nClosed int
	skipped int
	traded  int

	// last usable mark, for closing leftovers at run end
	lastSpot float64
	lastVol  float64
	lastAt   time.Time
}

// Run simulates every trading day in the configured range.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	st := &run{account: types.NewAccountState(d.cfg.InitialBalance)}

	for date := d.cfg.StartDate; !date.After(d.cfg.EndDate); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		day, err := d.loader.Day(d.cfg.Underlying, date)
		if err != nil {
			if errors.Is(err, data.ErrDataUnavailable) {
				d.logger.Warn("skipping day without usable data",
					zap.String("date", date.Format("2006-01-02")),
					zap.Error(err),
				)
				d.metrics.DaySkipped()
				st.skipped++
				continue
			}
			return nil, err
		}

		st.account.ResetDay()
		if err := d.runDay(st, day); err != nil {
			return nil, err
		}

		st.equity = append(st.equity, report.EquityPoint{Date: day.Date, Equity: st.account.Balance})
		d.metrics.DayProcessed()
		st.traded++
	}

	if err := d.closeLeftovers(st); err != nil {
		return nil, err
	}
	if st.opened != st.nClosed || len(st.account.OpenPositions) != 0 {
		return nil, fmt.Errorf("%w: opened %d, closed %d, still open %d",
			lifecycle.ErrInvariant, st.opened, st.nClosed, len(st.account.OpenPositions))
	}

	summary := events.RunSummary{
		StartBalance: d.cfg.InitialBalance,
		EndBalance:   st.account.Balance,
		TotalPnL:     st.account.Balance.Sub(d.cfg.InitialBalance),
		DaysTraded:   st.traded,
		DaysSkipped:  st.skipped,
		Opened:       st.opened,
		Closed:       st.nClosed,
	}
	d.sink.RunCompleted(summary)

	return &Result{
		Summary:     summary,
		Performance: report.Calculate(st.closed, st.equity, d.cfg.InitialBalance),
		Equity:      st.equity,
		Closed:      st.closed,
	}, nil
}

// runDay walks one trading day checkpoint by checkpoint, then forces
// same-day expiries flat.
func (d *Driver) runDay(st *run, day *types.MarketDay) error {
	for _, clock := range d.checkpoints {
		at := clock.At(day.Date)
		spot, ok := day.SpotAt(at)
		if !ok {
			continue
		}
		vol := d.classifier.RealizedVolatility(day.BarsThrough(at))
		st.lastSpot, st.lastVol, st.lastAt = spot, vol, at

		if err := d.monitorOpen(st, spot, vol, at); err != nil {
			return err
		}
		if clock >= d.entryStart && clock <= d.entryEnd {
			if err := d.tryEnter(st, day, spot, at); err != nil {
				return err
			}
		}
	}
	return d.closeSameDayExpiries(st, day)
}

// monitorOpen marks every open position and closes the ones whose exit
// triggered. Deterministic order: by open time, then ID.
func (d *Driver) monitorOpen(st *run, spot, vol float64, at time.Time) error {
	for _, pos := range openByAge(st.account) {
		snap := outcome.Snapshot{
			Spot:         spot,
			Vol:          vol,
			TimeToExpiry: pricing.YearsUntil(pos.Spread.Expiry.Sub(at).Hours()),
		}
		dec, err := d.manager.Monitor(pos, snap, at)
		if err != nil {
			return err
		}
		if !dec.Exit {
			continue
		}
		if err := d.close(st, pos, dec.ExitValue, dec.Reason, at); err != nil {
			return err
		}
	}
	return nil
}

// tryEnter classifies the market and attempts at most one entry.
func (d *Driver) tryEnter(st *run, day *types.MarketDay, spot float64, at time.Time) error {
	dailyPnL, _ := st.account.DailyPnL.Float64()
	if dailyPnL <= -d.cfg.RiskLimits.MaxDailyLoss {
		d.logger.Debug("entries halted at daily loss cap", zap.Float64("dailyPnl", dailyPnL))
		return nil
	}
	if d.cfg.RiskLimits.MaxDailyProfit > 0 && dailyPnL >= d.cfg.RiskLimits.MaxDailyProfit {
		d.logger.Debug("entries halted at daily profit cap", zap.Float64("dailyPnl", dailyPnL))
		return nil
	}
	if st.account.DailyTrades >= d.cfg.Sizing.TradesPerDay {
		return nil
	}

	snapshot := d.classifier.Classify(regime.Input{
		Bars:  day.BarsThrough(at),
		Chain: day.Chain,
		AsOf:  at,
	})
	if snapshot.RecommendedFamily == types.FamilyNone {
		d.logger.Debug("no strategy for regime",
			zap.String("regime", snapshot.Regime.String()),
			zap.Float64("transitionProbability", snapshot.TransitionProbability),
		)
		return nil
	}
	if snapshot.RealizedVol > d.cfg.MaxVolatility {
		d.logger.Debug("volatility above entry ceiling",
			zap.Float64("realizedVol", snapshot.RealizedVol),
			zap.Float64("ceiling", d.cfg.MaxVolatility),
		)
		return nil
	}

	// Same-day expiry for 0DTE runs; multi-day holds trade the contract
	// expiring at the max-hold horizon.
	expiryDate := day.Date
	if d.cfg.TargetHoldDays > 0 {
		expiryDate = day.Date.AddDate(0, 0, d.cfg.MaxHoldDays)
	}
	expiry := time.Date(expiryDate.Year(), expiryDate.Month(), expiryDate.Day(), expiryHour, 0, 0, 0, day.Date.Location())
	def, err := d.builder.Build(snapshot.RecommendedFamily, day.Chain, spot, expiry)
	if err != nil {
		if errors.Is(err, spread.ErrConstruction) {
			d.logger.Debug("spread construction failed",
				zap.String("family", string(snapshot.RecommendedFamily)),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	balance, _ := st.account.Balance.Float64()
	sized := d.sizer.Size(sizing.Request{Balance: balance, RiskPerContract: def.MaxLoss})
	if sized.NegativeEdge {
		d.sink.CandidateRejected("negative expected value", at)
		return nil
	}

	candidate := d.candidateFrom(def, sized.Contracts, spot, snapshot.RealizedVol)
	decision := d.gate.Validate(candidate, st.account)
	if !decision.Approved {
		d.metrics.CandidateRejected(string(decision.Check))
		d.sink.CandidateRejected(decision.Reason, at)
		return nil
	}

	pos, err := d.manager.Open(candidate, decision, st.account, at)
	if err != nil {
		return err
	}
	d.metrics.PositionOpened(pos.Spread.Family)
	st.opened++
	return nil
}

// candidateFrom attaches sizing and exit thresholds to a constructed
// spread. The profit target is a fraction of the structure's max profit;
// the stop is a multiple of the premium, never beyond the max risk.
// EntryValue carries the premium magnitude only; the credit/debit
// direction lives in the family.
func (d *Driver) candidateFrom(def *types.SpreadDefinition, contracts int, spot, vol float64) *types.Candidate {
	limits := &d.cfg.RiskLimits
	n := float64(contracts)

	profitTarget := limits.ProfitTargetPct * def.MaxProfit * n
	premium := math.Abs(def.NetCredit) * types.SharesPerContract
	stopLoss := math.Min(limits.StopLossMultiplier*premium, def.MaxLoss) * n

	return &types.Candidate{
		Spread:       def,
		Contracts:    contracts,
		EntryValue:   math.Abs(def.NetCredit),
		EntrySpot:    spot,
		EntryVol:     vol,
		ProfitTarget: profitTarget,
		StopLoss:     stopLoss,
	}
}

// closeSameDayExpiries flattens 0DTE positions at the scheduled close,
// settling at intrinsic value.
func (d *Driver) closeSameDayExpiries(st *run, day *types.MarketDay) error {
	at := d.forceCloseAt.At(day.Date)
	spot, ok := day.SpotAt(at)
	if !ok {
		if spot, ok = day.SpotAt(day.Bars[len(day.Bars)-1].Timestamp); !ok {
			return nil
		}
	}

	for _, pos := range openByAge(st.account) {
		if !pos.IsZeroDTE(day.Date) {
			continue
		}
		cost := pricing.SettlementValue(spot, pos.Spread)
		if err := d.close(st, pos, cost, types.ExitEndOfDay, at); err != nil {
			return err
		}
	}
	return nil
}

// closeLeftovers flattens any positions still open when the date range
// is exhausted, at the last observed mark.
func (d *Driver) closeLeftovers(st *run) error {
	for _, pos := range openByAge(st.account) {
		snap := outcome.Snapshot{
			Spot:         st.lastSpot,
			Vol:          st.lastVol,
			TimeToExpiry: pricing.YearsUntil(pos.Spread.Expiry.Sub(st.lastAt).Hours()),
		}
		cost := d.model.CostToClose(pos.Spread, snap)
		if snap.TimeToExpiry <= 0 {
			cost = pricing.SettlementValue(st.lastSpot, pos.Spread)
		}
		if err := d.close(st, pos, cost, types.ExitBacktestEnd, st.lastAt); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) close(st *run, pos *types.Position, cost float64, reason types.ExitReason, at time.Time) error {
	if err := d.manager.Close(pos, st.account, cost, reason, at); err != nil {
		return err
	}
	d.metrics.PositionClosed(reason, pos.RealizedPnL)
	st.closed = append(st.closed, pos)
	st.nClosed++
	return nil
}

// openByAge returns the open positions ordered by open time, then ID.
func openByAge(account *types.AccountState) []*types.Position {
	open := make([]*types.Position, 0, len(account.OpenPositions))
	for _, pos := range account.OpenPositions {
		open = append(open, pos)
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].OpenedAt.Equal(open[j].OpenedAt) {
			return open[i].OpenedAt.Before(open[j].OpenedAt)
		}
		return open[i].ID < open[j].ID
	})
	return open
}
