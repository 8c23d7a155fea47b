package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

func TestResampleIsSeededAndDeterministic(t *testing.T) {
	closed := []*types.Position{
		closedPos(60, types.ExitProfitTarget),
		closedPos(45, types.ExitProfitTarget),
		closedPos(-110, types.ExitStopLoss),
		closedPos(30, types.ExitEndOfDay),
	}
	cfg := DefaultResampleConfig(42)

	a, err := Resample(zap.NewNop(), closed, 25000, cfg)
	require.NoError(t, err)
	b, err := Resample(zap.NewNop(), closed, 25000, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed must reproduce the distribution")

	cfg.Seed = 43
	c, err := Resample(zap.NewNop(), closed, 25000, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.MeanFinal, c.MeanFinal, "different seed should move the estimate")
}

func TestResampleDistributionIsOrdered(t *testing.T) {
	closed := []*types.Position{
		closedPos(50, types.ExitProfitTarget),
		closedPos(-80, types.ExitStopLoss),
		closedPos(40, types.ExitEndOfDay),
		closedPos(-20, types.ExitEndOfDay),
		closedPos(35, types.ExitProfitTarget),
	}

	r, err := Resample(zap.NewNop(), closed, 25000, DefaultResampleConfig(7))
	require.NoError(t, err)

	assert.LessOrEqual(t, r.P05Final, r.P50Final)
	assert.LessOrEqual(t, r.P50Final, r.P95Final)
	assert.GreaterOrEqual(t, r.P95MaxDrawdown, 0.0)
	assert.GreaterOrEqual(t, r.ProbabilityOfRuin, 0.0)
	assert.LessOrEqual(t, r.ProbabilityOfRuin, 1.0)
}

func TestResampleAllWinnersNeverRuins(t *testing.T) {
	closed := []*types.Position{
		closedPos(60, types.ExitProfitTarget),
		closedPos(45, types.ExitProfitTarget),
	}

	r, err := Resample(zap.NewNop(), closed, 25000, DefaultResampleConfig(11))
	require.NoError(t, err)
	assert.Zero(t, r.ProbabilityOfRuin)
	assert.Zero(t, r.MeanMaxDrawdown)
	assert.Greater(t, r.MeanFinal, 25000.0)
}

func TestResampleRequiresTrades(t *testing.T) {
	_, err := Resample(zap.NewNop(), nil, 25000, DefaultResampleConfig(1))
	assert.ErrorIs(t, err, ErrNoTrades)
}
