package powerflow

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/numcircuit"
)

func TestSolveThreePhaseBalancedWyeConverges(t *testing.T) {
	mc := twoBusCircuit(t)
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)
	require.Len(t, islands, 1)

	loads := []ThreePhaseLoad{
		{BusIndex: 1, Connection: WyeGrounded, Kind: ConstantPower, P: [3]float64{20.0 / 3, 20.0 / 3, 20.0 / 3}, Q: [3]float64{5.0 / 3, 5.0 / 3, 5.0 / 3}},
	}

	res, err := SolveThreePhase(islands[0], loads, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	for p := 0; p < 3; p++ {
		require.Len(t, res.V[p], 2)
	}

	// a balanced wye load should leave the three phases at nearly equal
	// magnitude on the load bus.
	m0 := cmplx.Abs(res.V[0][1])
	m1 := cmplx.Abs(res.V[1][1])
	m2 := cmplx.Abs(res.V[2][1])
	assert.InDelta(t, m0, m1, 1e-3)
	assert.InDelta(t, m1, m2, 1e-3)
}

func TestSolveThreePhaseDeltaLoadConverges(t *testing.T) {
	mc := twoBusCircuit(t)
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)

	loads := []ThreePhaseLoad{
		{BusIndex: 1, Connection: Delta, Kind: ConstantPower, P: [3]float64{8, 6, 6}, Q: [3]float64{2, 1.5, 1.5}},
	}

	res, err := SolveThreePhase(islands[0], loads, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Converged)
}
