package rms

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/block"
	"github.com/veragrid/veragridengine/pkg/expr"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// decayBlock builds a single first-order decay dx/dt = -x/tau, a minimal
// pure-ODE block (no algebraic vars) with tau as a parameter.
func decayBlock() (*block.Block, *expr.Expr) {
	x := expr.Var(block.NextUID(), "x")
	tau := expr.Var(block.NextUID(), "tau")

	b := block.New("decay", block.KindGeneric)
	b.StateVars = []*expr.Expr{x}
	b.Params = []*expr.Expr{tau}
	b.StateEqs = []*expr.Expr{expr.Neg(expr.Div(x, tau))}
	return b, tau
}

func TestBuildFlattensSingleBlock(t *testing.T) {
	b, _ := decayBlock()
	sys, err := Build(b)
	require.NoError(t, err)
	assert.Equal(t, 1, sys.NState)
	assert.Equal(t, 0, sys.NAlg)
}

func TestRunImplicitEulerDecaysTowardZero(t *testing.T) {
	b, tau := decayBlock()
	sys, err := Build(b)
	require.NoError(t, err)

	x0 := []float64{1.0}
	params := map[int]float64{tau.UID: 1.0}
	opts := Options{Method: ImplicitEuler, StepSec: 0.01, StopSec: 5.0}

	result, err := sys.Run(x0, params, nil, opts, vlog.New())
	require.NoError(t, err)
	assert.True(t, result.Converged)

	last := result.Snapshots[len(result.Snapshots)-1]
	assert.InDelta(t, 0, last.X[0], 0.1)
	assert.Less(t, last.X[0], x0[0])
}

func TestRunTrapezoidalTracksExactDecay(t *testing.T) {
	b, tau := decayBlock()
	sys, err := Build(b)
	require.NoError(t, err)

	params := map[int]float64{tau.UID: 1.0}
	opts := Options{Method: Trapezoidal, StepSec: 0.1, StopSec: 1.0}

	result, err := sys.Run([]float64{1.0}, params, nil, opts, vlog.New())
	require.NoError(t, err)
	assert.True(t, result.Converged)

	last := result.Snapshots[len(result.Snapshots)-1]
	expected := math.Exp(-1.0)
	assert.InDelta(t, expected, last.X[0], 0.01)
}

func TestRunAppliesEventToParameter(t *testing.T) {
	b, tau := decayBlock()
	sys, err := Build(b)
	require.NoError(t, err)

	params := map[int]float64{tau.UID: 1.0}
	events := []Event{{TimeSec: 0.5, ParamUID: tau.UID, Value: 0.01}}
	opts := Options{Method: ImplicitEuler, StepSec: 0.05, StopSec: 1.0}

	result, err := sys.Run([]float64{1.0}, params, events, opts, vlog.New())
	require.NoError(t, err)

	last := result.Snapshots[len(result.Snapshots)-1]
	assert.InDelta(t, 0, last.X[0], 0.05)
}

func TestSmallSignalClassifiesStableDecay(t *testing.T) {
	b, tau := decayBlock()
	sys, err := Build(b)
	require.NoError(t, err)

	params := sys.ParamVector(map[int]float64{tau.UID: 1.0})
	out, err := sys.SmallSignal([]float64{1.0}, params)
	require.NoError(t, err)
	require.Len(t, out.Modes, 1)
	assert.Equal(t, AsymptoticallyStable, out.Stability)
	assert.InDelta(t, -1.0, real(out.Modes[0].Eigenvalue), 1e-6)
}
