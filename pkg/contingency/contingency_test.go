package contingency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/powerflow"
)

func buildThreeBusCircuit(t *testing.T) *grid.MultiCircuit {
	t.Helper()
	mc := grid.NewMultiCircuit("t")
	b1 := grid.NewBus("b1", "Bus1", 110)
	b1.IsSlack = true
	b2 := grid.NewBus("b2", "Bus2", 110)
	b3 := grid.NewBus("b3", "Bus3", 110)
	mc.AddBus(b1)
	mc.AddBus(b2)
	mc.AddBus(b3)

	l12 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l12", FromUID: "b1", ToUID: "b2", Active: true, R: 0.001, X: 0.1, RateMVA: 100, ContingencyRateMVA: 30}}
	l23 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l23", FromUID: "b2", ToUID: "b3", Active: true, R: 0.001, X: 0.1, RateMVA: 100, ContingencyRateMVA: 30}}
	l13 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l13", FromUID: "b1", ToUID: "b3", Active: true, R: 0.001, X: 0.2, RateMVA: 100, ContingencyRateMVA: 30}}
	require.NoError(t, mc.AddBranch(l12))
	require.NoError(t, mc.AddBranch(l23))
	require.NoError(t, mc.AddBranch(l13))

	gen := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g1", Bus: "b1", Active: true}, Snom: 200, Qmin: -100, Qmax: 100}
	require.NoError(t, mc.AddInjection(gen))
	load := &grid.Load{BaseInjection: grid.BaseInjection{UID: "ld1", Bus: "b3", Active: true, P: 50, Q: 10}}
	require.NoError(t, mc.AddInjection(load))

	return mc
}

func TestApplyGroupDeactivatesBranchOnClone(t *testing.T) {
	mc := buildThreeBusCircuit(t)
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)
	nc := islands[0]

	group := grid.ContingencyGroup{UID: "c1", Events: []grid.ContingencyEvent{
		{DeviceUID: "l12", Action: grid.ActionDeactivate},
	}}

	clone := ApplyGroup(nc, group)
	idx := -1
	for i, u := range clone.Branch.UID {
		if u == "l12" {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)
	assert.False(t, clone.Branch.Active[idx])

	// original untouched
	for i, u := range nc.Branch.UID {
		if u == "l12" {
			assert.True(t, nc.Branch.Active[i])
		}
	}
}

func TestRunSnapshotPowerFlowMethod(t *testing.T) {
	mc := buildThreeBusCircuit(t)
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)

	group := grid.ContingencyGroup{UID: "c-l12", Events: []grid.ContingencyEvent{
		{DeviceUID: "l12", Action: grid.ActionDeactivate},
	}}

	report, err := RunSnapshot(islands[0], Options{Method: MethodPowerFlow, Solver: powerflow.DefaultOptions(), Groups: []grid.ContingencyGroup{group}})
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, "c-l12", report.Groups[0].GroupUID)
	assert.True(t, report.Groups[0].Converged)
}

func TestRunSnapshotLinearMethod(t *testing.T) {
	mc := buildThreeBusCircuit(t)
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)

	group := grid.ContingencyGroup{UID: "c-l12", Events: []grid.ContingencyEvent{
		{DeviceUID: "l12", Action: grid.ActionDeactivate},
	}}

	report, err := RunSnapshot(islands[0], Options{Method: MethodLinear, Solver: powerflow.DefaultOptions(), Groups: []grid.ContingencyGroup{group}})
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	assert.True(t, report.Groups[0].Converged)
}

func TestTimeSeriesDriverAggregatesStats(t *testing.T) {
	mc := buildThreeBusCircuit(t)
	now := time.Now()
	require.NoError(t, mc.SetTimeAxis([]time.Time{now, now.Add(time.Hour)}))

	group := grid.ContingencyGroup{UID: "c-l12", Events: []grid.ContingencyEvent{
		{DeviceUID: "l12", Action: grid.ActionDeactivate},
	}}

	driver := NewTimeSeriesDriver(mc, TimeSeriesOptions{
		Contingency: Options{Method: MethodLinear, Solver: powerflow.DefaultOptions(), Groups: []grid.ContingencyGroup{group}},
	})
	require.NoError(t, driver.Run(context.Background()))

	results := driver.Results()
	require.Len(t, results.ByTime, 2)
}

func TestWelfordStatMatchesKnownMeanAndVariance(t *testing.T) {
	var w WelfordStat
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Add(v)
	}
	assert.InDelta(t, 5.0, w.Mean(), 1e-9)
	assert.InDelta(t, 2.0, w.StdDev(), 1e-9)
}
