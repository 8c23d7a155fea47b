package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

const epsilon = 1e-6

func TestPriceGoldenValues(t *testing.T) {
	// Pinned once: S=640, K=645, T=4 hours, vol=20%, r=5%.
	spot, strike := 640.0, 645.0
	tYears := 4.0 / (24 * 365)
	vol := 0.20

	call := Price(spot, strike, tYears, vol, types.OptionCall)
	put := Price(spot, strike, tYears, vol, types.OptionPut)

	if math.Abs(call-0.03768726) > epsilon {
		t.Errorf("call price = %.8f, want 0.03768726", call)
	}
	if math.Abs(put-5.02296140) > epsilon {
		t.Errorf("put price = %.8f, want 5.02296140", put)
	}
}

func TestPutCallParity(t *testing.T) {
	cases := []struct {
		spot, strike, tYears, vol float64
	}{
		{640, 645, 4.0 / (24 * 365), 0.20},
		{640, 640, 1.0 / 365, 0.15},
		{500, 550, 30.0 / 365, 0.35},
		{100, 80, 0.5, 0.60},
	}

	for _, tc := range cases {
		call := Price(tc.spot, tc.strike, tc.tYears, tc.vol, types.OptionCall)
		put := Price(tc.spot, tc.strike, tc.tYears, tc.vol, types.OptionPut)

		if call < 0 || put < 0 {
			t.Errorf("negative price for S=%.0f K=%.0f: call=%f put=%f",
				tc.spot, tc.strike, call, put)
		}

		forward := tc.spot - tc.strike*math.Exp(-RiskFreeRate*tc.tYears)
		if diff := math.Abs(call - put - forward); diff > 1e-9 {
			t.Errorf("parity violated for S=%.0f K=%.0f: |C-P-(S-Ke^-rT)| = %g",
				tc.spot, tc.strike, diff)
		}
	}
}

func TestPriceExpiredIsIntrinsic(t *testing.T) {
	cases := []struct {
		spot, strike float64
		typ          types.OptionType
		want         float64
	}{
		{650, 645, types.OptionCall, 5},
		{640, 645, types.OptionCall, 0},
		{640, 645, types.OptionPut, 5},
		{650, 645, types.OptionPut, 0},
	}

	for _, tc := range cases {
		for _, tYears := range []float64{0, -1.0 / 365} {
			got := Price(tc.spot, tc.strike, tYears, 0.20, tc.typ)
			if got != tc.want {
				t.Errorf("Price(S=%.0f K=%.0f T=%f %s) = %f, want exact intrinsic %f",
					tc.spot, tc.strike, tYears, tc.typ, got, tc.want)
			}
		}
	}
}

func TestPriceDegenerateVolFallsBackToIntrinsic(t *testing.T) {
	if got := Price(650, 645, 1.0/365, 0, types.OptionCall); got != 5 {
		t.Errorf("zero vol call = %f, want 5", got)
	}
	if got := Price(650, 645, 1.0/365, -0.2, types.OptionPut); got != 0 {
		t.Errorf("negative vol put = %f, want 0", got)
	}
}

func TestComputeGreeks(t *testing.T) {
	g := ComputeGreeks(640, 640, 7.0/365, 0.20, types.OptionCall)

	if g.Delta <= 0.4 || g.Delta >= 0.7 {
		t.Errorf("ATM call delta = %f, want roughly 0.5", g.Delta)
	}
	if g.Vega <= 0 {
		t.Errorf("vega = %f, want positive", g.Vega)
	}
	if g.Theta >= 0 {
		t.Errorf("long call theta = %f, want negative", g.Theta)
	}

	p := ComputeGreeks(640, 640, 7.0/365, 0.20, types.OptionPut)
	if diff := math.Abs(g.Delta - p.Delta - 1); diff > 1e-9 {
		t.Errorf("delta parity: call - put = %f, want 1", g.Delta-p.Delta)
	}
	if math.Abs(g.Vega-p.Vega) > 1e-9 {
		t.Errorf("vega differs between call (%f) and put (%f)", g.Vega, p.Vega)
	}

	if z := ComputeGreeks(640, 640, 0, 0.20, types.OptionCall); z != (Greeks{}) {
		t.Errorf("expired greeks = %+v, want zero value", z)
	}
}

func verticalPutSpread(short, long float64, expiry time.Time) *types.SpreadDefinition {
	return &types.SpreadDefinition{
		Family: types.FamilyBullPutSpread,
		Expiry: expiry,
		Legs: []types.Leg{
			{Action: types.ActionSell, Contract: types.OptionContract{Strike: short, Type: types.OptionPut, Expiry: expiry}, Quantity: 1},
			{Action: types.ActionBuy, Contract: types.OptionContract{Strike: long, Type: types.OptionPut, Expiry: expiry}, Quantity: 1},
		},
	}
}

func TestSpreadValueVertical(t *testing.T) {
	expiry := time.Date(2025, 6, 20, 16, 0, 0, 0, time.UTC)
	def := verticalPutSpread(640, 635, expiry)

	tYears := 4.0 / (24 * 365)
	short := Price(638, 640, tYears, 0.25, types.OptionPut)
	long := Price(638, 635, tYears, 0.25, types.OptionPut)

	got := SpreadValue(638, tYears, 0.25, def)
	if math.Abs(got-(short-long)) > 1e-12 {
		t.Errorf("vertical value = %f, want short-long = %f", got, short-long)
	}
	if got <= 0 {
		t.Errorf("in-trouble put spread should cost to close, got %f", got)
	}
}

func TestSettlementValueIsIntrinsic(t *testing.T) {
	expiry := time.Date(2025, 6, 20, 16, 0, 0, 0, time.UTC)
	def := verticalPutSpread(640, 635, expiry)

	// Spot pinned between the strikes: short put is 2 ITM, long worthless.
	if got := SettlementValue(638, def); got != 2 {
		t.Errorf("settlement = %f, want 2", got)
	}
	// Both OTM.
	if got := SettlementValue(650, def); got != 0 {
		t.Errorf("settlement = %f, want 0", got)
	}
	// Both ITM: pinned at full width.
	if got := SettlementValue(600, def); got != 5 {
		t.Errorf("settlement = %f, want 5", got)
	}
}

func TestUnrealizedPnLSignConvention(t *testing.T) {
	expiry := time.Date(2025, 6, 20, 16, 0, 0, 0, time.UTC)

	credit := &types.Position{
		Spread:     verticalPutSpread(640, 635, expiry),
		Contracts:  2,
		EntryValue: 1.50,
	}
	// Spread cheapened from 1.50 to 0.50: +1.00 points x 2 contracts x 100.
	if got := UnrealizedPnL(credit, 0.50); got != 200 {
		t.Errorf("credit pnl = %f, want 200", got)
	}

	debit := &types.Position{
		Spread: &types.SpreadDefinition{
			Family: types.FamilyLongCall,
			Expiry: expiry,
			Legs: []types.Leg{
				{Action: types.ActionBuy, Contract: types.OptionContract{Strike: 640, Type: types.OptionCall, Expiry: expiry}, Quantity: 1},
			},
		},
		Contracts:  1,
		EntryValue: 2.00,
	}
	// Long call now worth 3.00 points; cost to close is -3.00.
	if got := UnrealizedPnL(debit, -3.00); got != 100 {
		t.Errorf("debit pnl = %f, want 100", got)
	}
}
