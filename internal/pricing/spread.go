package pricing

import (
	"math"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// SpreadValue returns the cost to close one contract-set of a spread, in
// option points, at the given spot, remaining time and volatility.
//
// For a vertical this is short-leg price minus long-leg price; for an
// iron condor it is the sum of the put-side and call-side verticals.
// Debit structures come out negative (closing them pays you), so
// -SpreadValue is the current value of a long position.
//
// Pure and stateless. At tYears <= 0 every leg settles at intrinsic.
func SpreadValue(spot, tYears, vol float64, def *types.SpreadDefinition) float64 {
	var cost float64
	for _, leg := range def.Legs {
		price := Price(spot, leg.Contract.Strike, tYears, vol, leg.Contract.Type)
		if leg.Action == types.ActionSell {
			cost += price * float64(leg.Quantity)
		} else {
			cost -= price * float64(leg.Quantity)
		}
	}
	return cost
}

// SettlementValue returns the cost to close at expiry, using exact
// intrinsic values with no discounting.
func SettlementValue(spot float64, def *types.SpreadDefinition) float64 {
	return SpreadValue(spot, 0, 0, def)
}

// UnrealizedPnL converts a current cost-to-close into dollar P&L for a
// position, honoring the credit/debit sign convention: credit strategies
// profit as the spread cheapens, debit strategies as it appreciates.
func UnrealizedPnL(pos *types.Position, costToClose float64) float64 {
	perSet := pos.EntryValue - costToClose
	if !pos.Spread.Family.IsCredit() {
		// EntryValue holds the debit paid; costToClose is negative for
		// a structure we are long.
		perSet = -costToClose - pos.EntryValue
	}
	return perSet * float64(pos.Contracts) * types.SharesPerContract
}

// YearsUntil converts a duration to expiry into year fractions, floored
// at zero.
func YearsUntil(hours float64) float64 {
	return math.Max(0, hours/(24*365))
}
