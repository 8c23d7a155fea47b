package report

import (
	"errors"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// ErrNoTrades is returned when a resample is requested without any
// closed trades to draw from.
var ErrNoTrades = errors.New("no closed trades to resample")

// ResampleConfig configures the trade-order bootstrap.
type ResampleConfig struct {
	Runs int
	// Seed must be explicit so reports are reproducible.
	Seed int64
	// RuinFraction is the balance floor, as a fraction of the starting
	// balance, below which a path counts as ruined.
	RuinFraction float64
}

// DefaultResampleConfig returns the standard robustness settings.
func DefaultResampleConfig(seed int64) ResampleConfig {
	return ResampleConfig{Runs: 1000, Seed: seed, RuinFraction: 0.5}
}

// Robustness summarizes the bootstrap distribution of a run's trades.
type Robustness struct {
	Runs int `json:"runs"`

	// End-balance distribution, in dollars.
	MeanFinal float64 `json:"meanFinal"`
	P05Final  float64 `json:"p05Final"`
	P50Final  float64 `json:"p50Final"`
	P95Final  float64 `json:"p95Final"`

	// Max-drawdown distribution, as fractions of the running peak.
	MeanMaxDrawdown float64 `json:"meanMaxDrawdown"`
	P95MaxDrawdown  float64 `json:"p95MaxDrawdown"`

	ProbabilityOfRuin float64 `json:"probabilityOfRuin"`
}

// Resample bootstraps the realized P&L sequence of the closed positions:
// each run replays the trades in a random order with replacement and
// tracks the equity path. Order-dependent luck washes out over the runs;
// what remains is how fragile the P&L stream itself is.
func Resample(logger *zap.Logger, closed []*types.Position, initialBalance float64, cfg ResampleConfig) (*Robustness, error) {
	pnls := make([]float64, 0, len(closed))
	for _, pos := range closed {
		if pos.Status == types.StatusClosed {
			pnls = append(pnls, pos.RealizedPnL)
		}
	}
	if len(pnls) == 0 {
		return nil, ErrNoTrades
	}
	if cfg.Runs <= 0 {
		cfg.Runs = 1000
	}

	logger.Info("resampling trade sequence",
		zap.Int("trades", len(pnls)),
		zap.Int("runs", cfg.Runs),
		zap.Int64("seed", cfg.Seed),
	)
	rng := rand.New(rand.NewSource(cfg.Seed))
	ruinFloor := initialBalance * cfg.RuinFraction

	finals := make([]float64, cfg.Runs)
	drawdowns := make([]float64, cfg.Runs)
	ruined := 0

	for run := 0; run < cfg.Runs; run++ {
		balance := initialBalance
		peak := initialBalance
		maxDD := 0.0
		hitRuin := false

		for range pnls {
			balance += pnls[rng.Intn(len(pnls))]
			if balance > peak {
				peak = balance
			}
			if peak > 0 {
				if dd := (peak - balance) / peak; dd > maxDD {
					maxDD = dd
				}
			}
			if balance <= ruinFloor {
				hitRuin = true
			}
		}

		finals[run] = balance
		drawdowns[run] = maxDD
		if hitRuin {
			ruined++
		}
	}

	sort.Float64s(finals)
	sort.Float64s(drawdowns)

	return &Robustness{
		Runs:              cfg.Runs,
		MeanFinal:         mean(finals),
		P05Final:          percentile(finals, 0.05),
		P50Final:          percentile(finals, 0.50),
		P95Final:          percentile(finals, 0.95),
		MeanMaxDrawdown:   mean(drawdowns),
		P95MaxDrawdown:    percentile(drawdowns, 0.95),
		ProbabilityOfRuin: float64(ruined) / float64(cfg.Runs),
	}, nil
}

// percentile reads from an already sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
