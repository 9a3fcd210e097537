package powerflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
)

func twoBusCircuit(t *testing.T) *grid.MultiCircuit {
	t.Helper()
	mc := grid.NewMultiCircuit("t")
	slack := grid.NewBus("b1", "Slack", 110)
	slack.IsSlack = true
	pq := grid.NewBus("b2", "Load bus", 110)
	mc.AddBus(slack)
	mc.AddBus(pq)

	line := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l1", FromUID: "b1", ToUID: "b2", Active: true, R: 0.01, X: 0.1, RateMVA: 100}}
	require.NoError(t, mc.AddBranch(line))

	gen := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g1", Bus: "b1", Active: true}, Snom: 200, Qmin: -100, Qmax: 100}
	require.NoError(t, mc.AddInjection(gen))

	load := &grid.Load{BaseInjection: grid.BaseInjection{UID: "ld1", Bus: "b2", Active: true, P: 20, Q: 5}}
	require.NoError(t, mc.AddInjection(load))

	return mc
}

func TestSolveNRConverges(t *testing.T) {
	mc := twoBusCircuit(t)
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)
	require.Len(t, islands, 1)

	res, err := SolveNR(islands[0], DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Less(t, res.Mismatch, 1e-5)
	assert.Len(t, res.V, 2)
}

func TestSolveDCRecoversFlow(t *testing.T) {
	mc := twoBusCircuit(t)
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)

	dc, err := SolveDC(islands[0])
	require.NoError(t, err)
	require.Len(t, dc.Pf, 1)
	// the line must carry (approximately) the load's real power
	assert.InDelta(t, 20.0, dc.Pf[0], 1.0)
}

func TestSolveNRAutoPromotedSlackConverges(t *testing.T) {
	mc := grid.NewMultiCircuit("t")
	b1 := grid.NewBus("b1", "Bus1", 110)
	mc.AddBus(b1)
	gen := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g1", Bus: "b1", Active: true}, Snom: 10}
	require.NoError(t, mc.AddInjection(gen))

	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	require.NoError(t, err)
	require.Len(t, islands, 1)
	// single isolated bus with a generator but no declared slack: the
	// compiler auto-promotes it, so NR should still converge trivially.
	res, err := SolveNR(islands[0], DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Converged)
}

func TestTimeSeriesDriverSolvesEveryIndex(t *testing.T) {
	mc := twoBusCircuit(t)
	now := time.Now()
	require.NoError(t, mc.SetTimeAxis([]time.Time{now, now.Add(time.Hour), now.Add(2 * time.Hour)}))

	driver := NewTimeSeriesDriver(mc, TimeSeriesOptions{Solver: DefaultOptions()})
	err := driver.Run(context.Background())
	require.NoError(t, err)

	results := driver.Results()
	require.Len(t, results.ByTime, 3)
	for _, r := range results.ByTime {
		assert.True(t, r.Converged)
	}
}
