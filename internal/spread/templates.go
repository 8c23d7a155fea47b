// Package spread builds concrete spread definitions from templates.
//
// One parameterized template exists per strategy family: ordered leg
// specs with strike-offset rules. Construction selects real strikes from
// the current chain; when no usable strikes exist the candidate is
// discarded with ErrConstruction.
package spread

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// ErrConstruction indicates that no matching strikes or expiries were
// available for the requested family. Callers skip the checkpoint.
var ErrConstruction = errors.New("spread construction failed")

// LegSpec is one leg of a template: the strike is chosen as the quoted
// strike nearest to spot*(1+OffsetPct).
type LegSpec struct {
	Action    types.LegAction
	Type      types.OptionType
	OffsetPct float64
	Quantity  int
}

// Template is the strike-offset recipe for a strategy family.
type Template struct {
	Family types.StrategyFamily
	Legs   []LegSpec
}

// templates is the fixed family -> recipe table. Offsets are tuned for
// same-day expiries, where a quarter percent is a meaningful move.
var templates = map[types.StrategyFamily]Template{
	types.FamilyBullPutSpread: {
		Family: types.FamilyBullPutSpread,
		Legs: []LegSpec{
			{Action: types.ActionSell, Type: types.OptionPut, OffsetPct: -0.0030, Quantity: 1},
			{Action: types.ActionBuy, Type: types.OptionPut, OffsetPct: -0.0080, Quantity: 1},
		},
	},
	types.FamilyBearCallSpread: {
		Family: types.FamilyBearCallSpread,
		Legs: []LegSpec{
			{Action: types.ActionSell, Type: types.OptionCall, OffsetPct: 0.0030, Quantity: 1},
			{Action: types.ActionBuy, Type: types.OptionCall, OffsetPct: 0.0080, Quantity: 1},
		},
	},
	types.FamilyIronCondor: {
		Family: types.FamilyIronCondor,
		Legs: []LegSpec{
			{Action: types.ActionSell, Type: types.OptionPut, OffsetPct: -0.0030, Quantity: 1},
			{Action: types.ActionBuy, Type: types.OptionPut, OffsetPct: -0.0080, Quantity: 1},
			{Action: types.ActionSell, Type: types.OptionCall, OffsetPct: 0.0030, Quantity: 1},
			{Action: types.ActionBuy, Type: types.OptionCall, OffsetPct: 0.0080, Quantity: 1},
		},
	},
	types.FamilyLongCall: {
		Family: types.FamilyLongCall,
		Legs: []LegSpec{
			{Action: types.ActionBuy, Type: types.OptionCall, OffsetPct: 0, Quantity: 1},
		},
	},
	types.FamilyLongPut: {
		Family: types.FamilyLongPut,
		Legs: []LegSpec{
			{Action: types.ActionBuy, Type: types.OptionPut, OffsetPct: 0, Quantity: 1},
		},
	},
}

// Builder constructs spreads from chain snapshots.
type Builder struct {
	logger    *zap.Logger
	minVolume float64
}

// NewBuilder creates a builder. Contracts quoted below minVolume are
// never selected.
func NewBuilder(logger *zap.Logger, minVolume float64) *Builder {
	return &Builder{logger: logger, minVolume: minVolume}
}

// Build constructs a SpreadDefinition for the family from the chain,
// using contracts expiring on the given day. Net credit/debit and
// theoretical max profit/loss are computed once here.
func (b *Builder) Build(family types.StrategyFamily, chain *types.OptionChain, spot float64, expiry time.Time) (*types.SpreadDefinition, error) {
	tmpl, ok := templates[family]
	if !ok {
		return nil, fmt.Errorf("%w: no template for family %q", ErrConstruction, family)
	}
	if chain == nil || len(chain.Contracts) == 0 {
		return nil, fmt.Errorf("%w: empty option chain", ErrConstruction)
	}
	if spot <= 0 {
		return nil, fmt.Errorf("%w: non-positive spot %.2f", ErrConstruction, spot)
	}

	legs := make([]types.Leg, 0, len(tmpl.Legs))
	used := make(map[strikeKey]bool)
	for _, spec := range tmpl.Legs {
		target := spot * (1 + spec.OffsetPct)
		contract, err := b.nearestContract(chain, spec.Type, target, expiry, used)
		if err != nil {
			return nil, err
		}
		used[strikeKey{spec.Type, contract.Strike}] = true
		legs = append(legs, types.Leg{Action: spec.Action, Contract: contract, Quantity: spec.Quantity})
	}

	def := &types.SpreadDefinition{
		Family:     family,
		Underlying: chain.Underlying,
		Legs:       legs,
		Expiry:     expiry,
	}

	var credit float64
	for _, leg := range legs {
		mid := leg.Contract.Mid()
		if leg.Action == types.ActionSell {
			credit += mid * float64(leg.Quantity)
		} else {
			credit -= mid * float64(leg.Quantity)
		}
	}
	def.NetCredit = credit

	width := def.Width()
	if family.IsCredit() {
		if credit <= 0 {
			return nil, fmt.Errorf("%w: %s quoted for a non-positive credit %.2f",
				ErrConstruction, family, credit)
		}
		if width <= 0 || credit >= width {
			return nil, fmt.Errorf("%w: %s credit %.2f at or beyond width %.2f",
				ErrConstruction, family, credit, width)
		}
		def.MaxProfit = credit * types.SharesPerContract
		def.MaxLoss = (width - credit) * types.SharesPerContract
	} else {
		debit := -credit
		if debit <= 0 {
			return nil, fmt.Errorf("%w: %s quoted for a non-positive debit %.2f",
				ErrConstruction, family, debit)
		}
		def.MaxLoss = debit * types.SharesPerContract
		// Long options have no hard profit cap; the planning figure
		// below only feeds reporting, never risk checks.
		def.MaxProfit = 3 * def.MaxLoss
	}

	b.logger.Debug("spread constructed",
		zap.String("family", string(family)),
		zap.Float64("netCredit", def.NetCredit),
		zap.Float64("maxLoss", def.MaxLoss),
		zap.Float64("width", width),
	)
	return def, nil
}

// strikeKey identifies a selected strike within one spread. Uniqueness
// only matters per option type: a condor's put and call sides may land
// on the same strike.
type strikeKey struct {
	typ    types.OptionType
	strike float64
}

// nearestContract returns the quoted contract of the given type and
// expiry day closest to the target strike, subject to the volume floor
// and per-type strike uniqueness within the spread.
func (b *Builder) nearestContract(chain *types.OptionChain, typ types.OptionType, target float64, expiry time.Time, used map[strikeKey]bool) (types.OptionContract, error) {
	best := types.OptionContract{}
	bestDiff := math.MaxFloat64
	found := false

	ey, em, ed := expiry.Date()
	for _, c := range chain.Contracts {
		if c.Type != typ || used[strikeKey{c.Type, c.Strike}] {
			continue
		}
		cy, cm, cd := c.Expiry.Date()
		if cy != ey || cm != em || cd != ed {
			continue
		}
		if c.Volume < b.minVolume {
			continue
		}
		if diff := math.Abs(c.Strike - target); diff < bestDiff {
			bestDiff = diff
			best = c
			found = true
		}
	}

	if !found {
		return types.OptionContract{}, fmt.Errorf(
			"%w: no %s strike near %.2f expiring %s with volume >= %.0f",
			ErrConstruction, typ, target, expiry.Format("2006-01-02"), b.minVolume)
	}
	return best, nil
}
