// Package types provides configuration types for the backtest engine.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RiskLimits holds the per-run risk configuration. Loaded once, immutable
// for the duration of a run.
type RiskLimits struct {
	MaxDailyLoss       float64 `mapstructure:"max_daily_loss" json:"maxDailyLoss"`             // dollars
	MaxDailyProfit     float64 `mapstructure:"max_daily_profit" json:"maxDailyProfit"`         // dollars
	MaxRiskPerTradePct float64 `mapstructure:"max_risk_per_trade_pct" json:"maxRiskPerTradePct"`
	KellyFractionCap   float64 `mapstructure:"kelly_fraction_cap" json:"kellyFractionCap"`
	MaxConcurrent      int     `mapstructure:"max_concurrent_positions" json:"maxConcurrentPositions"`
	MaxConcentration   float64 `mapstructure:"max_concentration_pct" json:"maxConcentrationPct"`

	ProfitTargetPct    float64 `mapstructure:"profit_target_pct" json:"profitTargetPct"`
	StopLossMultiplier float64 `mapstructure:"stop_loss_multiplier" json:"stopLossMultiplier"`

	// TrailingStopPct is the give-back fraction from the high-water
	// unrealized P&L; TrailingActivationPct (of the profit target) is
	// the level that arms the trail.
	TrailingStopPct       float64 `mapstructure:"trailing_stop_pct" json:"trailingStopPct"`
	TrailingActivationPct float64 `mapstructure:"trailing_activation_pct" json:"trailingActivationPct"`
}

// Validate rejects invalid limit combinations at startup.
func (r *RiskLimits) Validate() error {
	if r.MaxDailyLoss <= 0 {
		return fmt.Errorf("max_daily_loss must be positive, got %.2f", r.MaxDailyLoss)
	}
	if r.MaxRiskPerTradePct <= 0 || r.MaxRiskPerTradePct >= 1 {
		return fmt.Errorf("max_risk_per_trade_pct must be in (0,1), got %.4f", r.MaxRiskPerTradePct)
	}
	if r.KellyFractionCap <= 0 || r.KellyFractionCap > 1 {
		return fmt.Errorf("kelly_fraction_cap must be in (0,1], got %.4f", r.KellyFractionCap)
	}
	if r.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent_positions must be >= 1, got %d", r.MaxConcurrent)
	}
	if r.MaxConcentration <= 0 || r.MaxConcentration > 1 {
		return fmt.Errorf("max_concentration_pct must be in (0,1], got %.4f", r.MaxConcentration)
	}
	if r.ProfitTargetPct <= 0 {
		return fmt.Errorf("profit_target_pct must be positive, got %.4f", r.ProfitTargetPct)
	}
	if r.StopLossMultiplier <= 0 {
		return fmt.Errorf("stop_loss_multiplier must be positive, got %.4f", r.StopLossMultiplier)
	}
	if r.TrailingStopPct < 0 || r.TrailingStopPct >= 1 {
		return fmt.Errorf("trailing_stop_pct must be in [0,1), got %.4f", r.TrailingStopPct)
	}
	if r.TrailingActivationPct < 0 || r.TrailingActivationPct > 1 {
		return fmt.Errorf("trailing_activation_pct must be in [0,1], got %.4f", r.TrailingActivationPct)
	}
	return nil
}

// SizingConfig holds the Kelly sizing parameters.
type SizingConfig struct {
	MinFraction         float64 `mapstructure:"min_fraction" json:"minFraction"`
	MaxContracts        int     `mapstructure:"max_contracts" json:"maxContracts"`
	DailyProfitTarget   float64 `mapstructure:"daily_profit_target" json:"dailyProfitTarget"` // dollars
	TradesPerDay        int     `mapstructure:"trades_per_day" json:"tradesPerDay"`
	AbsoluteMaxRisk     float64 `mapstructure:"absolute_max_risk" json:"absoluteMaxRisk"` // dollars
	WinProbability      float64 `mapstructure:"win_probability" json:"winProbability"`
	AvgWinPerContract   float64 `mapstructure:"avg_win_per_contract" json:"avgWinPerContract"`   // dollars
	AvgLossPerContract  float64 `mapstructure:"avg_loss_per_contract" json:"avgLossPerContract"` // dollars
}

// Validate rejects invalid sizing parameters at startup.
func (s *SizingConfig) Validate() error {
	if s.MinFraction < 0 || s.MinFraction >= 1 {
		return fmt.Errorf("min_fraction must be in [0,1), got %.4f", s.MinFraction)
	}
	if s.MaxContracts < 1 {
		return fmt.Errorf("max_contracts must be >= 1, got %d", s.MaxContracts)
	}
	if s.TradesPerDay < 1 {
		return fmt.Errorf("trades_per_day must be >= 1, got %d", s.TradesPerDay)
	}
	if s.WinProbability <= 0 || s.WinProbability >= 1 {
		return fmt.Errorf("win_probability must be in (0,1), got %.4f", s.WinProbability)
	}
	if s.AvgLossPerContract <= 0 {
		return fmt.Errorf("avg_loss_per_contract must be positive, got %.2f", s.AvgLossPerContract)
	}
	if s.AbsoluteMaxRisk <= 0 {
		return fmt.Errorf("absolute_max_risk must be positive, got %.2f", s.AbsoluteMaxRisk)
	}
	return nil
}

// BacktestConfig is the full run configuration.
type BacktestConfig struct {
	ID             string          `mapstructure:"id" json:"id"`
	Underlying     string          `mapstructure:"underlying" json:"underlying"`
	StartDate      time.Time       `mapstructure:"start_date" json:"startDate"`
	EndDate        time.Time       `mapstructure:"end_date" json:"endDate"`
	InitialBalance decimal.Decimal `mapstructure:"initial_balance" json:"initialBalance"`

	// Checkpoints are intraday evaluation times in "HH:MM" exchange
	// local time, processed in order.
	Checkpoints []string `mapstructure:"checkpoints" json:"checkpoints"`

	// EntryStart/EntryEnd bound the window in which new positions may be
	// opened; ForceCloseAt is the scheduled time-based exit.
	EntryStart   string `mapstructure:"entry_start" json:"entryStart"`
	EntryEnd     string `mapstructure:"entry_end" json:"entryEnd"`
	ForceCloseAt string `mapstructure:"force_close_at" json:"forceCloseAt"`

	TargetHoldDays int `mapstructure:"target_hold_days" json:"targetHoldDays"`
	MaxHoldDays    int `mapstructure:"max_hold_days" json:"maxHoldDays"`

	MinVolume     float64 `mapstructure:"min_volume" json:"minVolume"`
	MaxVolatility float64 `mapstructure:"max_volatility" json:"maxVolatility"`

	// OutcomeModel selects how monitoring values spreads: "pricing" or
	// "statistical". StatSeed feeds the statistical model; 0 is invalid
	// (the seed must be explicit so runs are reproducible).
	OutcomeModel string `mapstructure:"outcome_model" json:"outcomeModel"`
	StatSeed     int64  `mapstructure:"stat_seed" json:"statSeed"`

	RiskLimits RiskLimits   `mapstructure:"risk_limits" json:"riskLimits"`
	Sizing     SizingConfig `mapstructure:"sizing" json:"sizing"`
}

// DefaultBacktestConfig returns a runnable configuration for SPY 0DTE
// credit spreads.
func DefaultBacktestConfig() *BacktestConfig {
	return &BacktestConfig{
		Underlying:     "SPY",
		InitialBalance: decimal.NewFromInt(25000),
		Checkpoints:    []string{"10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "15:45"},
		EntryStart:     "10:00",
		EntryEnd:       "14:00",
		ForceCloseAt:   "15:45",
		TargetHoldDays: 0,
		MaxHoldDays:    1,
		MinVolume:      10,
		MaxVolatility:  0.80,
		OutcomeModel:   "pricing",
		RiskLimits: RiskLimits{
			MaxDailyLoss:          500,
			MaxDailyProfit:        750,
			MaxRiskPerTradePct:    0.016,
			KellyFractionCap:      0.25,
			MaxConcurrent:         3,
			MaxConcentration:      0.25,
			ProfitTargetPct:       0.50,
			StopLossMultiplier:    2.0,
			TrailingStopPct:       0.20,
			TrailingActivationPct: 0.50,
		},
		Sizing: SizingConfig{
			MinFraction:        0.01,
			MaxContracts:       10,
			DailyProfitTarget:  250,
			TradesPerDay:       3,
			AbsoluteMaxRisk:    400,
			WinProbability:     0.67,
			AvgWinPerContract:  45,
			AvgLossPerContract: 55,
		},
	}
}

// Validate checks the whole configuration once at construction.
func (c *BacktestConfig) Validate() error {
	if c.Underlying == "" {
		return fmt.Errorf("underlying is required")
	}
	if !c.EndDate.IsZero() && !c.StartDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end_date %s before start_date %s",
			c.EndDate.Format("2006-01-02"), c.StartDate.Format("2006-01-02"))
	}
	if c.InitialBalance.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("initial_balance must be positive, got %s", c.InitialBalance)
	}
	if len(c.Checkpoints) == 0 {
		return fmt.Errorf("at least one checkpoint is required")
	}
	for _, cp := range append(append([]string{}, c.Checkpoints...), c.EntryStart, c.EntryEnd, c.ForceCloseAt) {
		if _, err := ParseClock(cp); err != nil {
			return err
		}
	}
	if c.MaxHoldDays < 1 {
		return fmt.Errorf("max_hold_days must be >= 1, got %d", c.MaxHoldDays)
	}
	if c.TargetHoldDays < 0 || c.TargetHoldDays > c.MaxHoldDays {
		return fmt.Errorf("target_hold_days must be in [0, max_hold_days], got %d", c.TargetHoldDays)
	}
	if c.MinVolume < 0 {
		return fmt.Errorf("min_volume must be >= 0, got %.2f", c.MinVolume)
	}
	if c.MaxVolatility <= 0 {
		return fmt.Errorf("max_volatility must be positive, got %.4f", c.MaxVolatility)
	}
	switch c.OutcomeModel {
	case "pricing":
	case "statistical":
		if c.StatSeed == 0 {
			return fmt.Errorf("stat_seed must be set explicitly for the statistical outcome model")
		}
	default:
		return fmt.Errorf("unknown outcome_model %q", c.OutcomeModel)
	}
	if err := c.RiskLimits.Validate(); err != nil {
		return fmt.Errorf("risk_limits: %w", err)
	}
	if err := c.Sizing.Validate(); err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	if c.Sizing.MinFraction > c.RiskLimits.KellyFractionCap {
		return fmt.Errorf("sizing min_fraction %.4f exceeds kelly_fraction_cap %.4f",
			c.Sizing.MinFraction, c.RiskLimits.KellyFractionCap)
	}
	return nil
}

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// At anchors the clock onto a calendar date.
func (c Clock) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), int(c)/60, int(c)%60, 0, 0, day.Location())
}

// String implements fmt.Stringer.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}
