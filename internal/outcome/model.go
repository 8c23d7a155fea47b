// Package outcome isolates how monitored spreads are marked.
//
// A run uses exactly one model: the pricing model marks every spread
// through the closed-form pricer against actual market state, while the
// statistical model adds an explicitly seeded shock for robustness
// studies. The two are never mixed within one run.
package outcome

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/internal/pricing"
	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// Snapshot is the market state at a monitoring checkpoint.
type Snapshot struct {
	Spot         float64
	Vol          float64
	TimeToExpiry float64 // years; <= 0 settles at intrinsic
}

// Model marks a position's spread at a checkpoint, returning the cost to
// close one contract-set in option points.
type Model interface {
	CostToClose(def *types.SpreadDefinition, snap Snapshot) float64
	Name() string
}

// PricingModel routes every mark through the closed-form pricer. This is
// the default and the only model whose marks are exact.
type PricingModel struct{}

// NewPricingModel creates the real-pricing outcome model.
func NewPricingModel() *PricingModel { return &PricingModel{} }

// CostToClose implements Model.
func (m *PricingModel) CostToClose(def *types.SpreadDefinition, snap Snapshot) float64 {
	return pricing.SpreadValue(snap.Spot, snap.TimeToExpiry, snap.Vol, def)
}

// Name implements Model.
func (m *PricingModel) Name() string { return "pricing" }

// StatisticalModel perturbs the spot with a seeded Gaussian shock before
// pricing, modeling mark uncertainty between checkpoints. The seed is
// mandatory and logged so runs stay reproducible.
type StatisticalModel struct {
	rng        *rand.Rand
	noiseScale float64
}

// DefaultNoiseScale is the per-checkpoint relative spot shock sigma.
const DefaultNoiseScale = 0.0015

// NewStatisticalModel creates the seeded statistical outcome model.
func NewStatisticalModel(logger *zap.Logger, seed int64, noiseScale float64) *StatisticalModel {
	if noiseScale <= 0 {
		noiseScale = DefaultNoiseScale
	}
	logger.Info("statistical outcome model",
		zap.Int64("seed", seed),
		zap.Float64("noiseScale", noiseScale),
	)
	return &StatisticalModel{
		rng:        rand.New(rand.NewSource(seed)),
		noiseScale: noiseScale,
	}
}

// CostToClose implements Model. Expired spreads settle at exact
// intrinsic value with no shock.
func (m *StatisticalModel) CostToClose(def *types.SpreadDefinition, snap Snapshot) float64 {
	if snap.TimeToExpiry <= 0 {
		return pricing.SettlementValue(snap.Spot, def)
	}
	shocked := snap.Spot * (1 + m.noiseScale*m.rng.NormFloat64())
	return pricing.SpreadValue(shocked, snap.TimeToExpiry, snap.Vol, def)
}

// Name implements Model.
func (m *StatisticalModel) Name() string { return "statistical" }
