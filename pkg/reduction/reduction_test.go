package reduction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// buildFourBusChain builds b1(slack)-b2-b3-b4, with the intent of
// reducing away b3/b4 (external) and keeping b1/b2 (b2 becomes boundary).
func buildFourBusChain(t *testing.T) (*grid.MultiCircuit, *numcircuit.NumericalCircuit) {
	t.Helper()
	mc := grid.NewMultiCircuit("t")
	b1 := grid.NewBus("b1", "Bus1", 110)
	b1.IsSlack = true
	b2 := grid.NewBus("b2", "Bus2", 110)
	b3 := grid.NewBus("b3", "Bus3", 110)
	b4 := grid.NewBus("b4", "Bus4", 110)
	mc.AddBus(b1)
	mc.AddBus(b2)
	mc.AddBus(b3)
	mc.AddBus(b4)

	l12 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l12", FromUID: "b1", ToUID: "b2", Active: true, R: 0.001, X: 0.1, RateMVA: 100}}
	l23 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l23", FromUID: "b2", ToUID: "b3", Active: true, R: 0.001, X: 0.1, RateMVA: 100}}
	l34 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l34", FromUID: "b3", ToUID: "b4", Active: true, R: 0.001, X: 0.1, RateMVA: 100}}
	require.NoError(t, mc.AddBranch(l12))
	require.NoError(t, mc.AddBranch(l23))
	require.NoError(t, mc.AddBranch(l34))

	gen := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g1", Bus: "b1", Active: true}, Snom: 200}
	require.NoError(t, mc.AddInjection(gen))
	load := &grid.Load{BaseInjection: grid.BaseInjection{UID: "ld4", Bus: "b4", Active: true, P: 30, Q: 5}}
	require.NoError(t, mc.AddInjection(load))

	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)
	require.Len(t, islands, 1)
	return mc, islands[0]
}

func busIndex(nc *numcircuit.NumericalCircuit, uid string) int {
	for i, u := range nc.Bus.UID {
		if u == uid {
			return i
		}
	}
	return -1
}

func TestBuildReductionSetsClassifiesChain(t *testing.T) {
	_, nc := buildFourBusChain(t)
	external := []int{busIndex(nc, "b3"), busIndex(nc, "b4")}
	sets := BuildReductionSets(nc, external)

	assert.ElementsMatch(t, external, sets.External)
	assert.Contains(t, sets.Boundary, busIndex(nc, "b2"))
	assert.Contains(t, sets.Interior, busIndex(nc, "b1"))
}

func TestWardStandardRemovesExternalBuses(t *testing.T) {
	mc, nc := buildFourBusChain(t)
	v0 := make([]complex128, nc.NBus())
	for i := range v0 {
		v0[i] = complex(1, 0)
	}
	external := []int{busIndex(nc, "b3"), busIndex(nc, "b4")}

	logger := vlog.New()
	require.NoError(t, WardStandard(mc, nc, external, v0, logger))

	uids := map[string]bool{}
	for _, b := range mc.Buses() {
		uids[b.UID] = true
	}
	assert.False(t, uids["b3"])
	assert.False(t, uids["b4"])
	assert.True(t, uids["b1"])
	assert.True(t, uids["b2"])
}

func TestPTDFReductionAggregatesMirroredLoad(t *testing.T) {
	mc, nc := buildFourBusChain(t)
	external := []int{busIndex(nc, "b3"), busIndex(nc, "b4")}

	logger := vlog.New()
	require.NoError(t, PTDFReduction(mc, nc, external, PTDFOptions{Aggregate: true}, logger))

	uids := map[string]bool{}
	for _, b := range mc.Buses() {
		uids[b.UID] = true
	}
	assert.False(t, uids["b3"])
	assert.False(t, uids["b4"])

	found := false
	for _, inj := range mc.Injections() {
		if _, ok := inj.(*grid.Load); ok && inj.BusUID() == "b2" {
			found = true
		}
	}
	assert.True(t, found, "expected a mirrored load on the boundary bus")
}
