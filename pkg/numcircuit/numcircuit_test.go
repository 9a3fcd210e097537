package numcircuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/grid"
)

func buildTwoBusCircuit(t *testing.T) *grid.MultiCircuit {
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

	load := &grid.Load{BaseInjection: grid.BaseInjection{UID: "ld1", Bus: "b2", Active: true, P: 50, Q: 10}}
	require.NoError(t, mc.AddInjection(load))

	return mc
}

func TestCompileSingleIsland(t *testing.T) {
	mc := buildTwoBusCircuit(t)
	islands, err := Compile(mc, 0, Options{})
	require.NoError(t, err)
	require.Len(t, islands, 1)

	nc := islands[0]
	assert.Equal(t, 2, nc.NBus())
	assert.Equal(t, 1, nc.NBranch())
	assert.Equal(t, BusSlack, nc.Bus.Type[0])
}

func TestCompileSplitsIslands(t *testing.T) {
	mc := buildTwoBusCircuit(t)
	b3 := grid.NewBus("b3", "Bus3 isolated", 110)
	mc.AddBus(b3)
	gen3 := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g3", Bus: "b3", Active: true}, Snom: 10}
	require.NoError(t, mc.AddInjection(gen3))

	islands, err := Compile(mc, 0, Options{})
	require.NoError(t, err)
	require.Len(t, islands, 2)
}

func TestCompileFailsWithoutSourceByDefault(t *testing.T) {
	mc := grid.NewMultiCircuit("t")
	b1 := grid.NewBus("b1", "Bus1", 110)
	mc.AddBus(b1)
	load := &grid.Load{BaseInjection: grid.BaseInjection{UID: "ld1", Bus: "b1", Active: true, P: 10}}
	require.NoError(t, mc.AddInjection(load))

	_, err := Compile(mc, 0, Options{})
	require.Error(t, err)
}

func TestCompileToleratesNoSourceWhenIgnored(t *testing.T) {
	mc := grid.NewMultiCircuit("t")
	b1 := grid.NewBus("b1", "Bus1", 110)
	mc.AddBus(b1)
	load := &grid.Load{BaseInjection: grid.BaseInjection{UID: "ld1", Bus: "b1", Active: true, P: 10}}
	require.NoError(t, mc.AddInjection(load))

	islands, err := Compile(mc, 0, Options{IgnoreNoSlack: true})
	require.NoError(t, err)
	require.Len(t, islands, 1)
}

func TestContingencySnapshotIsIndependentCopy(t *testing.T) {
	mc := buildTwoBusCircuit(t)
	islands, err := Compile(mc, 0, Options{})
	require.NoError(t, err)
	nc := islands[0]

	clone := nc.ContingencySnapshot()
	clone.DeactivateBranch(0)

	assert.True(t, nc.Branch.Active[0], "original snapshot must be unaffected")
	assert.False(t, clone.Branch.Active[0])
}
