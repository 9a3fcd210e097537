package linfactors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
)

// buildLoopCircuit builds a 3-bus mesh: b1(slack)-b2, b2-b3, b1-b3, so
// every bus has two paths to the slack and PTDF/LODF are non-trivial.
func buildLoopCircuit(t *testing.T) *numcircuit.NumericalCircuit {
	t.Helper()
	mc := grid.NewMultiCircuit("t")
	b1 := grid.NewBus("b1", "Bus1", 110)
	b1.IsSlack = true
	b2 := grid.NewBus("b2", "Bus2", 110)
	b3 := grid.NewBus("b3", "Bus3", 110)
	mc.AddBus(b1)
	mc.AddBus(b2)
	mc.AddBus(b3)

	l12 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l12", FromUID: "b1", ToUID: "b2", Active: true, R: 0.001, X: 0.1, RateMVA: 100, ContingencyRateMVA: 100}}
	l23 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l23", FromUID: "b2", ToUID: "b3", Active: true, R: 0.001, X: 0.1, RateMVA: 100, ContingencyRateMVA: 100}}
	l13 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l13", FromUID: "b1", ToUID: "b3", Active: true, R: 0.001, X: 0.2, RateMVA: 100, ContingencyRateMVA: 100}}
	require.NoError(t, mc.AddBranch(l12))
	require.NoError(t, mc.AddBranch(l23))
	require.NoError(t, mc.AddBranch(l13))

	gen := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g1", Bus: "b1", Active: true}, Snom: 200}
	require.NoError(t, mc.AddInjection(gen))
	load := &grid.Load{BaseInjection: grid.BaseInjection{UID: "ld1", Bus: "b3", Active: true, P: 50}}
	require.NoError(t, mc.AddInjection(load))

	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)
	require.Len(t, islands, 1)
	return islands[0]
}

func TestBuildPTDFSlackColumnIsZero(t *testing.T) {
	nc := buildLoopCircuit(t)
	f, err := Build(nc, 0)
	require.NoError(t, err)

	for branch := 0; branch < f.NBranch; branch++ {
		assert.Equal(t, 0.0, f.PTDF[branch][f.SlackBus])
	}
}

func TestBuildPTDFSplitsFlowAcrossParallelPaths(t *testing.T) {
	nc := buildLoopCircuit(t)
	f, err := Build(nc, 0)
	require.NoError(t, err)

	// injecting at bus b3 (index 2) should split across the direct
	// b1-b3 path and the b1-b2-b3 path; both branches carry nonzero flow.
	assert.NotZero(t, f.PTDF[2][2]) // l13 carries some of the b3 injection
	assert.NotZero(t, f.PTDF[0][2]) // l12 carries the rest via b2
}

func TestBuildLODFDiagonalIsMinusOne(t *testing.T) {
	nc := buildLoopCircuit(t)
	f, err := Build(nc, 0)
	require.NoError(t, err)

	for c := 0; c < f.NBranch; c++ {
		assert.Equal(t, -1.0, f.LODF[c][c])
	}
}

func TestScanContingenciesProducesOneRowPerBranch(t *testing.T) {
	nc := buildLoopCircuit(t)
	baseFlows := make([]float64, nc.NBranch())
	baseFlows[0] = 25 // l12
	baseFlows[1] = 25 // l23
	baseFlows[2] = 25 // l13

	res, err := ScanContingencies(nc, baseFlows, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	for _, row := range res.Rows {
		if !row.Degenerate {
			assert.Len(t, row.Flows, 3)
			assert.Equal(t, 0.0, row.Flows[row.OutagedBranch])
		}
	}
}
