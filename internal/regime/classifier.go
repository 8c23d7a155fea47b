// Package regime provides multi-timeframe market regime classification.
//
// The classifier is a stateless function of a window of bars plus the
// current option chain: short, medium and long timeframe assessments and
// an options-flow assessment are combined by a fixed weighted sum, with
// transition detection when the short and medium views diverge.
package regime

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// Config holds the classifier parameters. Weights must sum to 1 across
// the three timeframes, flow, and the optional external signal.
type Config struct {
	ShortWindow  int // bars, ~1 hour
	MediumWindow int // bars, ~4 hours
	LongWindow   int // bars, ~1 trading day

	ShortWeight    float64
	MediumWeight   float64
	LongWeight     float64
	FlowWeight     float64
	ExternalWeight float64

	// MinConfidence is the floor below which the output collapses to
	// NEUTRAL (or TRANSITION while the divergence condition holds).
	MinConfidence float64

	// BarMinutes is the sampling interval of the input bars, used to
	// annualize realized volatility.
	BarMinutes int
}

// DefaultConfig returns the parameters used for 1-minute SPY bars.
func DefaultConfig() *Config {
	return &Config{
		ShortWindow:    60,
		MediumWindow:   240,
		LongWindow:     390,
		ShortWeight:    0.30,
		MediumWeight:   0.25,
		LongWeight:     0.20,
		FlowWeight:     0.15,
		ExternalWeight: 0.10,
		MinConfidence:  40,
		BarMinutes:     1,
	}
}

// Classifier computes RegimeSnapshots. It holds no market state between
// calls; every snapshot is recomputed fresh.
type Classifier struct {
	logger *zap.Logger
	config *Config
}

// NewClassifier creates a classifier.
func NewClassifier(logger *zap.Logger, config *Config) *Classifier {
	if config == nil {
		config = DefaultConfig()
	}
	return &Classifier{logger: logger, config: config}
}

// Input bundles everything a single classification reads.
type Input struct {
	Bars  []types.Bar
	Chain *types.OptionChain
	// External is an optional validation signal from outside the
	// engine; nil redistributes its weight across the other factors.
	External *ExternalSignal
	AsOf     time.Time
}

// ExternalSignal is an externally supplied regime opinion.
type ExternalSignal struct {
	Regime     types.Regime
	Confidence float64 // 0-100
}

// assessment is one sub-classifier's vote.
type assessment struct {
	name       string
	regime     types.Regime
	confidence float64 // 0-100
	weight     float64
	features   []types.FactorReading
}

// familyForRegime is the fixed regime -> strategy family lookup.
var familyForRegime = map[types.Regime]types.StrategyFamily{
	types.RegimeStrongBullish: types.FamilyLongCall,
	types.RegimeBullish:       types.FamilyBullPutSpread,
	types.RegimeNeutral:       types.FamilyIronCondor,
	types.RegimeBearish:       types.FamilyBearCallSpread,
	types.RegimeStrongBearish: types.FamilyLongPut,
	types.RegimeTransition:    types.FamilyNone,
}

// Classify produces a snapshot for the current checkpoint. It never
// returns an error: insufficient history yields a NEUTRAL low-confidence
// snapshot.
func (c *Classifier) Classify(in Input) *types.RegimeSnapshot {
	cfg := c.config

	if len(in.Bars) < cfg.ShortWindow {
		c.logger.Debug("insufficient history for classification",
			zap.Int("bars", len(in.Bars)),
			zap.Int("required", cfg.ShortWindow),
		)
		return &types.RegimeSnapshot{
			Regime:            types.RegimeNeutral,
			Confidence:        10,
			RecommendedFamily: familyForRegime[types.RegimeNeutral],
			AsOf:              in.AsOf,
		}
	}

	short := c.assessTimeframe("short", in.Bars, cfg.ShortWindow, cfg.ShortWeight)
	medium := c.assessTimeframe("medium", in.Bars, cfg.MediumWindow, cfg.MediumWeight)
	long := c.assessTimeframe("long", in.Bars, cfg.LongWindow, cfg.LongWeight)
	flow := c.assessFlow(in.Chain, cfg.FlowWeight)

	votes := []assessment{short, medium, long, flow}
	if in.External != nil {
		votes = append(votes, assessment{
			name:       "external",
			regime:     in.External.Regime,
			confidence: clamp(in.External.Confidence, 0, 100),
			weight:     cfg.ExternalWeight,
		})
	}

	dominant, confidence := combine(votes)
	realizedVol := c.realizedVol(in.Bars, cfg.MediumWindow)

	// Transition detection: a divergence of two or more ordinal steps
	// between the short and medium views signals an unstable regime.
	divergence := ordinalDistance(short.regime, medium.regime)
	transitionProb := 0.0
	if divergence >= 2 {
		transitionProb = 0.25 * float64(divergence)
		// Elevated realized vol makes a genuine shift more likely.
		transitionProb *= 1 + math.Min(1, realizedVol/0.30)
		transitionProb = clamp(transitionProb, 0, 1)
	}
	confidence *= 1 - 0.5*transitionProb

	regime := dominant
	if confidence < cfg.MinConfidence {
		if divergence >= 2 {
			regime = types.RegimeTransition
		} else {
			regime = types.RegimeNeutral
		}
	}

	snap := &types.RegimeSnapshot{
		Regime:                regime,
		Confidence:            clamp(confidence, 0, 100),
		TransitionProbability: transitionProb,
		RecommendedFamily:     familyForRegime[regime],
		RealizedVol:           realizedVol,
		AsOf:                  in.AsOf,
	}
	for _, v := range votes {
		for _, f := range v.features {
			if f.Value > 0 {
				snap.BullishFactors = append(snap.BullishFactors, f)
			} else if f.Value < 0 {
				snap.BearishFactors = append(snap.BearishFactors, f)
			}
		}
	}

	c.logger.Debug("regime classified",
		zap.Stringer("regime", snap.Regime),
		zap.Float64("confidence", snap.Confidence),
		zap.Float64("transitionProb", snap.TransitionProbability),
		zap.String("family", string(snap.RecommendedFamily)),
	)
	return snap
}

// assessTimeframe scores one lookback window on momentum, moving-average
// divergence and range position.
func (c *Classifier) assessTimeframe(name string, bars []types.Bar, window int, weight float64) assessment {
	if len(bars) < window {
		window = len(bars)
	}
	w := bars[len(bars)-window:]
	last := w[len(w)-1].Close

	// Momentum: percent change across the window.
	momentum := 0.0
	if w[0].Close > 0 {
		momentum = (last - w[0].Close) / w[0].Close
	}

	// Moving-average divergence: fast half-window SMA vs full-window SMA.
	fast := sma(w[window/2:])
	slow := sma(w)
	maDiv := 0.0
	if slow > 0 {
		maDiv = (fast - slow) / slow
	}

	// Range position: where the last close sits inside the window range,
	// rescaled to [-1, 1].
	lo, hi := w[0].Low, w[0].High
	for _, b := range w {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	rangePos := 0.0
	if hi > lo {
		rangePos = 2*(last-lo)/(hi-lo) - 1
	}

	// Blend into a single score in [-1, 1]. Momentum and MA divergence
	// are small percentages; scale them to comparable magnitude.
	score := clamp(momentum*120, -1, 1)*0.45 +
		clamp(maDiv*200, -1, 1)*0.35 +
		rangePos*0.20

	regime := ordinalFromScore(score)
	confidence := clamp(math.Abs(score)*150, 15, 100)

	return assessment{
		name:       name,
		regime:     regime,
		confidence: confidence,
		weight:     weight,
		features: []types.FactorReading{
			{Name: name + "_momentum", Value: momentum, Weight: weight},
			{Name: name + "_ma_divergence", Value: maDiv, Weight: weight},
			{Name: name + "_range_position", Value: rangePos, Weight: weight},
		},
	}
}

// RealizedVolatility returns the annualized close-to-close volatility
// over the short window. The driver uses it to mark open positions
// between classifications.
func (c *Classifier) RealizedVolatility(bars []types.Bar) float64 {
	return c.realizedVol(bars, c.config.ShortWindow)
}

// realizedVol annualizes the standard deviation of close-to-close bar
// returns over the given window.
func (c *Classifier) realizedVol(bars []types.Bar, window int) float64 {
	if len(bars) < 2 {
		return 0
	}
	if len(bars) < window {
		window = len(bars)
	}
	w := bars[len(bars)-window:]

	returns := make([]float64, 0, len(w)-1)
	for i := 1; i < len(w); i++ {
		if w[i-1].Close > 0 {
			returns = append(returns, w[i].Close/w[i-1].Close-1)
		}
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	barsPerYear := 252.0 * 390.0 / float64(c.config.BarMinutes)
	return math.Sqrt(variance) * math.Sqrt(barsPerYear)
}

// combine runs the fixed weighted sum over the votes and returns the
// dominant regime with its combined confidence (0-100). Absent votes'
// weights are renormalized across the votes present.
func combine(votes []assessment) (types.Regime, float64) {
	scores := make(map[types.Regime]float64)
	var totalWeight float64
	for _, v := range votes {
		scores[v.regime] += v.weight * v.confidence
		totalWeight += v.weight
	}
	if totalWeight == 0 {
		return types.RegimeNeutral, 0
	}

	ordered := make([]types.Regime, 0, len(scores))
	for r := range scores {
		ordered = append(ordered, r)
	}
	// Deterministic tie-break: most bearish first, so equal scores
	// resolve the same way on every run.
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	dominant := types.RegimeNeutral
	best := math.Inf(-1)
	for _, r := range ordered {
		if scores[r] > best {
			best = scores[r]
			dominant = r
		}
	}
	return dominant, clamp(best/totalWeight, 0, 100)
}

// ordinalFromScore maps a [-1,1] score onto the 5-point ordinal scale.
func ordinalFromScore(score float64) types.Regime {
	switch {
	case score >= 0.60:
		return types.RegimeStrongBullish
	case score >= 0.20:
		return types.RegimeBullish
	case score <= -0.60:
		return types.RegimeStrongBearish
	case score <= -0.20:
		return types.RegimeBearish
	default:
		return types.RegimeNeutral
	}
}

// ordinalDistance returns the step distance between two ordinal regimes.
// The TRANSITION marker never appears in sub-assessments.
func ordinalDistance(a, b types.Regime) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d
}

func sma(bars []types.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Close
	}
	return sum / float64(len(bars))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
