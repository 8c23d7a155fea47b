// Package pricing provides closed-form option and spread valuation.
//
// All valuation in the engine routes through this package: the lifecycle
// manager never derives P&L from market state any other way.
package pricing

import (
	"math"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// RiskFreeRate is the constant annualized rate used by the closed form.
// No dividend yield is modeled.
const RiskFreeRate = 0.05

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// Intrinsic returns the exercise value of an option.
func Intrinsic(spot, strike float64, typ types.OptionType) float64 {
	if typ == types.OptionCall {
		return math.Max(0, spot-strike)
	}
	return math.Max(0, strike-spot)
}

// Price values a single option with the Black-Scholes-Merton closed form.
// Degenerate inputs never raise: an expired option (tYears <= 0) or a
// non-positive volatility settles at intrinsic value. The result is
// clamped to >= 0.
func Price(spot, strike, tYears, vol float64, typ types.OptionType) float64 {
	if tYears <= 0 || vol <= 0 || spot <= 0 || strike <= 0 {
		return Intrinsic(spot, strike, typ)
	}

	sqrtT := math.Sqrt(tYears)
	d1 := (math.Log(spot/strike) + (RiskFreeRate+0.5*vol*vol)*tYears) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT
	discount := math.Exp(-RiskFreeRate * tYears)

	var price float64
	if typ == types.OptionCall {
		price = spot*normCDF(d1) - strike*discount*normCDF(d2)
	} else {
		price = strike*discount*normCDF(-d2) - spot*normCDF(-d1)
	}
	return math.Max(0, price)
}

// Greeks holds the analytic sensitivities of a single option. They are
// derived from the same closed form as Price, not approximated.
type Greeks struct {
	Delta float64
	Vega  float64 // per 1.00 change in vol
	Theta float64 // per year
}

// ComputeGreeks returns the analytic BSM greeks. Expired or degenerate
// inputs yield zero sensitivities.
func ComputeGreeks(spot, strike, tYears, vol float64, typ types.OptionType) Greeks {
	if tYears <= 0 || vol <= 0 || spot <= 0 || strike <= 0 {
		return Greeks{}
	}

	sqrtT := math.Sqrt(tYears)
	d1 := (math.Log(spot/strike) + (RiskFreeRate+0.5*vol*vol)*tYears) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT
	discount := math.Exp(-RiskFreeRate * tYears)

	g := Greeks{Vega: spot * normPDF(d1) * sqrtT}

	common := -spot * normPDF(d1) * vol / (2 * sqrtT)
	if typ == types.OptionCall {
		g.Delta = normCDF(d1)
		g.Theta = common - RiskFreeRate*strike*discount*normCDF(d2)
	} else {
		g.Delta = normCDF(d1) - 1
		g.Theta = common + RiskFreeRate*strike*discount*normCDF(-d2)
	}
	return g
}
