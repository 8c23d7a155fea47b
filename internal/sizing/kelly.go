// Package sizing provides Kelly-criterion contract-count sizing.
//
// Four independent contract estimates are computed and the minimum wins,
// so no single constraint can be overridden by an optimistic edge.
package sizing

import (
	"math"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// Sizer computes contract counts for candidate positions.
type Sizer struct {
	logger *zap.Logger
	config *types.SizingConfig
	limits *types.RiskLimits
}

// NewSizer creates a sizer. Config and limits are validated by the
// caller at startup and immutable for the run.
func NewSizer(logger *zap.Logger, config *types.SizingConfig, limits *types.RiskLimits) *Sizer {
	return &Sizer{logger: logger, config: config, limits: limits}
}

// Request contains the inputs for one sizing decision.
type Request struct {
	Balance float64
	// RiskPerContract is the candidate's max loss for one contract, in
	// dollars.
	RiskPerContract float64
	// Overrides for the configured statistics; zero means use config.
	WinProbability float64
	AvgWin         float64
	AvgLoss        float64
}

// Result is the sizing decision plus its diagnostics.
type Result struct {
	Contracts       int     `json:"contracts"`
	KellyFraction   float64 `json:"kellyFraction"`
	ExpectedValue   float64 `json:"expectedValue"` // per contract, dollars
	LimitingFactor  string  `json:"limitingFactor"`
	NegativeEdge    bool    `json:"negativeEdge"`
}

// Size computes the contract count for a candidate. The return is always
// in [1, MaxContracts]. A non-positive expected value short-circuits to a
// single contract with the NegativeEdge flag set; the caller decides
// whether to trade it.
func (s *Sizer) Size(req Request) Result {
	p := req.WinProbability
	if p == 0 {
		p = s.config.WinProbability
	}
	avgWin := req.AvgWin
	if avgWin == 0 {
		avgWin = s.config.AvgWinPerContract
	}
	avgLoss := req.AvgLoss
	if avgLoss == 0 {
		avgLoss = s.config.AvgLossPerContract
	}
	q := 1 - p

	ev := p*avgWin - q*avgLoss
	if ev <= 0 {
		s.logger.Debug("negative edge, sizing floor",
			zap.Float64("expectedValue", ev),
			zap.Float64("winProbability", p),
		)
		return Result{Contracts: 1, ExpectedValue: ev, NegativeEdge: true, LimitingFactor: "negative_edge"}
	}

	riskPerContract := math.Max(req.RiskPerContract, 1)

	// Kelly fraction f* = (b*p - q) / b, clamped into the configured band.
	b := avgWin / avgLoss
	kelly := (b*p - q) / b
	kelly = math.Max(s.config.MinFraction, math.Min(kelly, s.limits.KellyFractionCap))

	targetBased := floorAtLeastOne(
		s.config.DailyProfitTarget / (float64(s.config.TradesPerDay) * ev))
	kellyBased := floorAtLeastOne(req.Balance * kelly / riskPerContract)
	accountRiskBased := floorAtLeastOne(req.Balance * s.limits.MaxRiskPerTradePct / riskPerContract)
	absoluteCapBased := floorAtLeastOne(s.config.AbsoluteMaxRisk / avgLoss)

	contracts := targetBased
	limiting := "profit_target"
	for _, e := range []struct {
		n      int
		factor string
	}{
		{kellyBased, "kelly"},
		{accountRiskBased, "account_risk"},
		{absoluteCapBased, "absolute_cap"},
	} {
		if e.n < contracts {
			contracts = e.n
			limiting = e.factor
		}
	}

	if contracts > s.config.MaxContracts {
		contracts = s.config.MaxContracts
		limiting = "max_contracts"
	}

	res := Result{
		Contracts:      contracts,
		KellyFraction:  kelly,
		ExpectedValue:  ev,
		LimitingFactor: limiting,
	}
	s.logger.Debug("position sized",
		zap.Int("contracts", res.Contracts),
		zap.Float64("kelly", kelly),
		zap.String("limitingFactor", limiting),
	)
	return res
}

func floorAtLeastOne(v float64) int {
	n := int(math.Floor(v))
	if n < 1 {
		return 1
	}
	return n
}
