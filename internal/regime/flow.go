package regime

import (
	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// Put/call volume ratio thresholds, calibrated once from the 20th, 40th,
// 60th and 80th percentiles of 2023-2024 SPY 0DTE session flow. These are
// documented constants, never tuned at runtime.
const (
	flowRatioStrongBullish = 0.70 // <= 20th percentile
	flowRatioBullish       = 0.85 // <= 40th percentile
	flowRatioBearish       = 1.15 // >= 60th percentile
	flowRatioStrongBearish = 1.35 // >= 80th percentile
)

// assessFlow derives a regime vote from the put/call volume ratio. Heavy
// put volume reads bearish, heavy call volume bullish. A missing or
// one-sided chain yields a neutral, near-zero-confidence vote.
func (c *Classifier) assessFlow(chain *types.OptionChain, weight float64) assessment {
	a := assessment{
		name:       "options_flow",
		regime:     types.RegimeNeutral,
		confidence: 5,
		weight:     weight,
	}
	if chain == nil {
		return a
	}

	ratio, ok := chain.PutCallVolumeRatio()
	if !ok {
		return a
	}

	switch {
	case ratio <= flowRatioStrongBullish:
		a.regime = types.RegimeStrongBullish
		a.confidence = 80
	case ratio <= flowRatioBullish:
		a.regime = types.RegimeBullish
		a.confidence = 60
	case ratio >= flowRatioStrongBearish:
		a.regime = types.RegimeStrongBearish
		a.confidence = 80
	case ratio >= flowRatioBearish:
		a.regime = types.RegimeBearish
		a.confidence = 60
	default:
		a.regime = types.RegimeNeutral
		a.confidence = 50
	}

	// Diagnostic sign convention: put-heavy flow is a bearish factor.
	a.features = []types.FactorReading{
		{Name: "put_call_volume_ratio", Value: 1 - ratio, Weight: weight},
	}
	return a
}
