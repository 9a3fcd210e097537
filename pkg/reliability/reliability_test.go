package reliability

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/grid"
)

func TestComposeStatesNeverFailsWithZeroMTTF(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	states, n := ComposeStates(rng, 0, 100, 24, true)
	assert.Equal(t, 0, n)
	for _, s := range states {
		assert.True(t, s)
	}
}

func TestComposeStatesProducesAlternatingSojourns(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	states, n := ComposeStates(rng, 50, 10, 2000, true)
	assert.GreaterOrEqual(t, n, 1)
	assert.Len(t, states, 2000)
}

func TestDispatchSampleNoLossWhenCapacityExceedsLoad(t *testing.T) {
	in := &GenerationAdequacyInput{
		LoadMW:    TimeProfile{10, 10, 10},
		GenPMax:   []TimeProfile{{20, 20, 20}},
		GenCost:   []float64{10},
		GenActive: []bool{true},
		DtHours:   TimeProfile{1, 1, 1},
	}
	genStates := [][]bool{{true, true, true}}
	loss, hours := dispatchSample(in, genStates, nil)
	assert.Equal(t, 0.0, loss)
	assert.Equal(t, 0, hours)
}

func TestDispatchSampleRecordsLossWhenGeneratorDown(t *testing.T) {
	in := &GenerationAdequacyInput{
		LoadMW:    TimeProfile{10, 10, 10},
		GenPMax:   []TimeProfile{{20, 20, 20}},
		GenCost:   []float64{10},
		GenActive: []bool{true},
		DtHours:   TimeProfile{1, 1, 1},
	}
	genStates := [][]bool{{true, false, true}}
	loss, hours := dispatchSample(in, genStates, nil)
	assert.Equal(t, 10.0, loss)
	assert.Equal(t, 1, hours)
}

func buildTwoBusGrid(t *testing.T) *grid.MultiCircuit {
	t.Helper()
	mc := grid.NewMultiCircuit("t")
	b1 := grid.NewBus("b1", "Bus1", 110)
	b1.IsSlack = true
	b2 := grid.NewBus("b2", "Bus2", 110)
	mc.AddBus(b1)
	mc.AddBus(b2)

	line := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l1", FromUID: "b1", ToUID: "b2", Active: true, R: 0.01, X: 0.1, RateMVA: 100, ContingencyRateMVA: 100, Mttf: 500, Mttr: 20}}
	require.NoError(t, mc.AddBranch(line))

	gen := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g1", Bus: "b1", Active: true}, Snom: 200}
	require.NoError(t, mc.AddInjection(gen))
	load := &grid.Load{BaseInjection: grid.BaseInjection{UID: "ld1", Bus: "b2", Active: true, P: 20, Q: 5}}
	require.NoError(t, mc.AddInjection(load))
	return mc
}

func TestDriverRunGenerationAdequacyProducesIndicators(t *testing.T) {
	in := &GenerationAdequacyInput{
		LoadMW:    TimeProfile{10, 10, 10, 10},
		GenPMax:   []TimeProfile{{20, 20, 20, 20}},
		GenCost:   []float64{10},
		GenMttf:   []float64{200},
		GenMttr:   []float64{10},
		GenActive: []bool{true},
		DtHours:   TimeProfile{1, 1, 1, 1},
	}
	opts := Options{Mode: ModeGenerationAdequacy, NSim: 20, Horizon: 4, Seed1: 1, Seed2: 2, Adequacy: in}
	d := NewDriver(opts)
	require.NoError(t, d.Run(context.Background()))
	res := d.Results()
	assert.False(t, res.Cancelled())
	assert.Len(t, res.LossPerSim, 20)
	assert.GreaterOrEqual(t, res.Indicators.ENS, 0.0)
}

func TestDriverRunGridMetricsHandlesNoFailureCase(t *testing.T) {
	mc := buildTwoBusGrid(t)
	opts := Options{Mode: ModeGridMetrics, NSim: 5, Horizon: 24, Seed1: 3, Seed2: 4, Grid: mc, OverloadFrac: 1.0}
	d := NewDriver(opts)
	require.NoError(t, d.Run(context.Background()))
	res := d.Results()
	assert.Len(t, res.LossPerSim, 5)
}
