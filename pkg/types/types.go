// Package types provides the shared data model for the backtest engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SharesPerContract is the option contract multiplier.
const SharesPerContract = 100.0

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// LegAction is the direction of a spread leg.
type LegAction string

const (
	ActionBuy  LegAction = "buy"
	ActionSell LegAction = "sell"
)

// StrategyFamily identifies a spread template.
type StrategyFamily string

const (
	FamilyBullPutSpread  StrategyFamily = "bull_put_spread"
	FamilyBearCallSpread StrategyFamily = "bear_call_spread"
	FamilyIronCondor     StrategyFamily = "iron_condor"
	FamilyLongCall       StrategyFamily = "long_call"
	FamilyLongPut        StrategyFamily = "long_put"
	FamilyNone           StrategyFamily = "none"
)

// IsCredit reports whether the family collects premium at entry.
func (f StrategyFamily) IsCredit() bool {
	switch f {
	case FamilyBullPutSpread, FamilyBearCallSpread, FamilyIronCondor:
		return true
	default:
		return false
	}
}

// Bar is one OHLCV sample of the underlying. Immutable once produced.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// OptionContract is an immutable snapshot of a single quoted contract.
type OptionContract struct {
	Strike float64    `json:"strike"`
	Expiry time.Time  `json:"expiry"`
	Type   OptionType `json:"type"`
	Bid    float64    `json:"bid"`
	Ask    float64    `json:"ask"`
	Close  float64    `json:"close"`
	Volume float64    `json:"volume"`
}

// Mid returns the bid/ask midpoint, falling back to the close when the
// quote is one-sided.
func (c OptionContract) Mid() float64 {
	if c.Bid > 0 && c.Ask > 0 {
		return (c.Bid + c.Ask) / 2
	}
	return c.Close
}

// OptionChain is a snapshot of quoted contracts for one underlying.
type OptionChain struct {
	Underlying string           `json:"underlying"`
	AsOf       time.Time        `json:"asOf"`
	Contracts  []OptionContract `json:"contracts"`
}

// PutCallVolumeRatio returns total put volume over total call volume.
// The second return is false when call volume is zero.
func (ch *OptionChain) PutCallVolumeRatio() (float64, bool) {
	var puts, calls float64
	for _, c := range ch.Contracts {
		switch c.Type {
		case OptionPut:
			puts += c.Volume
		case OptionCall:
			calls += c.Volume
		}
	}
	if calls == 0 {
		return 0, false
	}
	return puts / calls, true
}

// Leg is one side of a spread. Immutable.
type Leg struct {
	Action   LegAction      `json:"action"`
	Contract OptionContract `json:"contract"`
	Quantity int            `json:"quantity"`
}

// SpreadDefinition is an ordered set of legs plus figures computed once
// at construction.
type SpreadDefinition struct {
	Family     StrategyFamily `json:"family"`
	Underlying string         `json:"underlying"`
	Legs       []Leg          `json:"legs"`
	Expiry     time.Time      `json:"expiry"`

	// NetCredit is per contract-set, in option points. Positive means
	// premium collected at entry; negative is a debit paid.
	NetCredit float64 `json:"netCredit"`
	// MaxProfit and MaxLoss are per contract-set, in dollars.
	MaxProfit float64 `json:"maxProfit"`
	MaxLoss   float64 `json:"maxLoss"`
}

// Width returns the distance between the outermost strikes of the same
// option type, in points. Used for vertical risk math.
func (d *SpreadDefinition) Width() float64 {
	var width float64
	for _, typ := range []OptionType{OptionPut, OptionCall} {
		lo, hi, seen := 0.0, 0.0, false
		for _, leg := range d.Legs {
			if leg.Contract.Type != typ {
				continue
			}
			k := leg.Contract.Strike
			if !seen {
				lo, hi, seen = k, k, true
				continue
			}
			if k < lo {
				lo = k
			}
			if k > hi {
				hi = k
			}
		}
		if seen && hi-lo > width {
			width = hi - lo
		}
	}
	return width
}

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	StatusPendingEntry PositionStatus = "PENDING_ENTRY"
	StatusOpen         PositionStatus = "OPEN"
	StatusClosed       PositionStatus = "CLOSED"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitProfitTarget ExitReason = "PROFIT_TARGET"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitTimeBased    ExitReason = "TIME_EXIT"
	ExitMaxHold      ExitReason = "MAX_HOLD"
	ExitExpiration   ExitReason = "EXPIRATION"
	ExitEndOfDay     ExitReason = "END_OF_DAY"
	ExitBacktestEnd  ExitReason = "BACKTEST_END"
)

// Position is a live or closed spread position. Created by the lifecycle
// manager; mutated only through Monitor/Close; terminal once CLOSED.
type Position struct {
	ID        string            `json:"id"`
	OpenedAt  time.Time         `json:"openedAt"`
	Spread    *SpreadDefinition `json:"spread"`
	Contracts int               `json:"contracts"`

	// EntryValue is the per-contract-set credit received (credit
	// strategies) or debit paid (debit strategies), in option points.
	EntryValue float64 `json:"entryValue"`
	EntrySpot  float64 `json:"entrySpot"`
	EntryVol   float64 `json:"entryVol"`

	// ProfitTarget and StopLoss are dollar thresholds on unrealized P&L
	// for the whole position.
	ProfitTarget float64 `json:"profitTarget"`
	StopLoss     float64 `json:"stopLoss"`

	Status        PositionStatus `json:"status"`
	UnrealizedPnL float64        `json:"unrealizedPnl"`
	RealizedPnL   float64        `json:"realizedPnl"`

	// HighWater tracks the best unrealized P&L seen, for the trailing
	// stop. TrailingArmed flips once the activation level is touched.
	HighWater     float64 `json:"highWater"`
	TrailingArmed bool    `json:"trailingArmed"`

	ExitedAt   time.Time  `json:"exitedAt,omitempty"`
	ExitReason ExitReason `json:"exitReason,omitempty"`
}

// MaxRisk returns the total dollar risk of the position.
func (p *Position) MaxRisk() float64 {
	return p.Spread.MaxLoss * float64(p.Contracts)
}

// Notional returns the gross strike exposure of the position in dollars.
func (p *Position) Notional() float64 {
	var points float64
	for _, leg := range p.Spread.Legs {
		points += leg.Contract.Strike * float64(leg.Quantity)
	}
	return points * float64(p.Contracts) * SharesPerContract
}

// IsZeroDTE reports whether the spread expires on the given trading day.
func (p *Position) IsZeroDTE(day time.Time) bool {
	y1, m1, d1 := p.Spread.Expiry.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// AccountState is the simulated account ledger. Owned exclusively by the
// simulation driver; balance changes flow only through lifecycle Close.
type AccountState struct {
	Balance         decimal.Decimal `json:"balance"`
	DayStartBalance decimal.Decimal `json:"dayStartBalance"`
	DailyPnL        decimal.Decimal `json:"dailyPnl"`
	DailyTrades     int             `json:"dailyTrades"`
	OpenPositions   map[string]*Position
}

// NewAccountState creates a ledger with the given starting balance.
func NewAccountState(balance decimal.Decimal) *AccountState {
	return &AccountState{
		Balance:         balance,
		DayStartBalance: balance,
		OpenPositions:   make(map[string]*Position),
	}
}

// ResetDay rolls the daily counters. Called exactly once per trading day,
// before any trade evaluation.
func (a *AccountState) ResetDay() {
	a.DayStartBalance = a.Balance
	a.DailyPnL = decimal.Zero
	a.DailyTrades = 0
}

// CommittedRisk returns the summed max risk of all open positions.
func (a *AccountState) CommittedRisk() float64 {
	var total float64
	for _, p := range a.OpenPositions {
		total += p.MaxRisk()
	}
	return total
}

// AvailableCash returns cash not committed as risk on open positions.
func (a *AccountState) AvailableCash() float64 {
	bal, _ := a.Balance.Float64()
	return bal - a.CommittedRisk()
}

// Regime is the 5-point ordinal market classification plus the collapse
// marker produced when a divergence persists at low confidence.
type Regime int

const (
	RegimeStrongBearish Regime = -2
	RegimeBearish       Regime = -1
	RegimeNeutral       Regime = 0
	RegimeBullish       Regime = 1
	RegimeStrongBullish Regime = 2
	// RegimeTransition marks a persistent short/medium divergence.
	RegimeTransition Regime = 99
)

// String implements fmt.Stringer.
func (r Regime) String() string {
	switch r {
	case RegimeStrongBearish:
		return "strong_bearish"
	case RegimeBearish:
		return "bearish"
	case RegimeNeutral:
		return "neutral"
	case RegimeBullish:
		return "bullish"
	case RegimeStrongBullish:
		return "strong_bullish"
	case RegimeTransition:
		return "transition"
	default:
		return "unknown"
	}
}

// FactorReading is one named diagnostic contribution to a snapshot.
type FactorReading struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// RegimeSnapshot is the classifier output for one checkpoint. Recomputed
// fresh each time; carries no persistent identity.
type RegimeSnapshot struct {
	Regime                Regime          `json:"regime"`
	Confidence            float64         `json:"confidence"`            // 0-100
	TransitionProbability float64         `json:"transitionProbability"` // 0-1
	RecommendedFamily     StrategyFamily  `json:"recommendedFamily"`
	BullishFactors        []FactorReading `json:"bullishFactors,omitempty"`
	BearishFactors        []FactorReading `json:"bearishFactors,omitempty"`
	RealizedVol           float64         `json:"realizedVol"`
	AsOf                  time.Time       `json:"asOf"`
}

// MarketDay bundles the data the engine needs for one trading day.
type MarketDay struct {
	Date  time.Time    `json:"date"`
	Bars  []Bar        `json:"bars"`
	Chain *OptionChain `json:"chain"`
}

// SpotAt returns the close of the last bar at or before t. The second
// return is false when no bar qualifies.
func (d *MarketDay) SpotAt(t time.Time) (float64, bool) {
	var spot float64
	found := false
	for i := range d.Bars {
		if d.Bars[i].Timestamp.After(t) {
			break
		}
		spot = d.Bars[i].Close
		found = true
	}
	return spot, found
}

// BarsThrough returns the bars up to and including time t.
func (d *MarketDay) BarsThrough(t time.Time) []Bar {
	n := 0
	for i := range d.Bars {
		if d.Bars[i].Timestamp.After(t) {
			break
		}
		n = i + 1
	}
	return d.Bars[:n]
}
