package admittance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
)

func buildTwoBusCircuit(t *testing.T) *numcircuit.NumericalCircuit {
	t.Helper()
	mc := grid.NewMultiCircuit("t")
	b1 := grid.NewBus("b1", "Bus1", 110)
	b1.IsSlack = true
	b2 := grid.NewBus("b2", "Bus2", 110)
	mc.AddBus(b1)
	mc.AddBus(b2)

	line := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l1", FromUID: "b1", ToUID: "b2", Active: true, R: 0.01, X: 0.1, RateMVA: 100}}
	require.NoError(t, mc.AddBranch(line))

	gen := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g1", Bus: "b1", Active: true, P: 100}, Snom: 150}
	require.NoError(t, mc.AddInjection(gen))

	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)
	require.Len(t, islands, 1)
	return islands[0]
}

func TestBuildYbusIsSymmetricWithoutPhaseShift(t *testing.T) {
	nc := buildTwoBusCircuit(t)
	adm := Build(nc)
	assert.True(t, adm.IsSymmetric(1e-9))
}

func TestBuildYbusOffDiagonalMatchesSeriesAdmittance(t *testing.T) {
	nc := buildTwoBusCircuit(t)
	adm := Build(nc)

	r, x := nc.Branch.R[0], nc.Branch.X[0]
	ys := 1 / complex(r, x)

	got := complex(adm.YbusReal.At(0, 1), adm.YbusImag.At(0, 1))
	want := -ys
	assert.InDelta(t, real(want), real(got), 1e-9)
	assert.InDelta(t, imag(want), imag(got), 1e-9)
}

func TestBuildYbusWithPhaseShiftBreaksSymmetry(t *testing.T) {
	mc := grid.NewMultiCircuit("t")
	b1 := grid.NewBus("b1", "Bus1", 110)
	b1.IsSlack = true
	b2 := grid.NewBus("b2", "Bus2", 110)
	mc.AddBus(b1)
	mc.AddBus(b2)

	xf := &grid.Transformer2W{
		BaseBranch: grid.BaseBranch{UID: "x1", FromUID: "b1", ToUID: "b2", Active: true, R: 0.01, X: 0.1, RateMVA: 100},
		TapModule:  1.0,
		TapPhase:   0.2,
	}
	require.NoError(t, mc.AddBranch(xf))
	gen := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g1", Bus: "b1", Active: true, P: 100}, Snom: 150}
	require.NoError(t, mc.AddInjection(gen))

	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)
	adm := Build(islands[0])
	assert.False(t, adm.IsSymmetric(1e-9))
}
