package linfactors

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/vdriver"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// ContingencyRow is one outaged-branch row of the N-1 scan: the post-
// contingency flow estimate on every monitored branch and whether any of
// them breach its contingency rating.
type ContingencyRow struct {
	OutagedBranch int
	Flows         []float64 // per-unit flow estimate on every branch, post-outage
	Overloaded    []int     // branch indices exceeding ContingencyRate
	Degenerate    bool
}

// ScanOptions configures the N-1 linear contingency scan.
type ScanOptions struct {
	Threshold float64 // PTDF/LODF small-value cutoff, 0 disables
	Progress  vdriver.ProgressFunc
}

func (o ScanOptions) Validate() error { return nil }

// ScanResults collects every outaged-branch row, in branch index order.
type ScanResults struct {
	Rows      []ContingencyRow
	cancelled bool
}

func (r *ScanResults) Cancelled() bool { return r.cancelled }

// ScanContingencies runs the N-1 hot loop: base-case flows are taken
// from the caller's baseFlowsMW, then for every branch c the post-outage flow
// on every branch f is estimated as Flow0[f] + LODF[f][c]*Flow0[c],
// without re-solving the network — the whole point of the linear
// factors. Rows are independent, so the loop is parallelized the same
// way the time-series power-flow driver is (§5): a bounded worker pool
// over errgroup+semaphore.
func ScanContingencies(nc *numcircuit.NumericalCircuit, baseFlowsMW []float64, opts ScanOptions) (*ScanResults, error) {
	factors, err := Build(nc, opts.Threshold)
	if err != nil {
		return nil, err
	}

	nbr := nc.NBranch()
	rows := make([]ContingencyRow, nbr)
	var cancel vdriver.Cancellation
	logger := vlog.New()

	sem := semaphore.NewWeighted(int64(max(1, runtime.GOMAXPROCS(0))))
	g, ctx := errgroup.WithContext(context.Background())

	for c := 0; c < nbr; c++ {
		c := c
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if cancel.Cancelled() {
				return nil
			}

			if factors.IsDegenerate(c) {
				rows[c] = ContingencyRow{OutagedBranch: c, Degenerate: true}
				logger.AddWarning(nc.Branch.UID[c], "contingency not applicable: outage islands the network")
				return nil
			}

			flows := make([]float64, nbr)
			var overloaded []int
			flow0c := baseFlowsMW[c]
			for f := 0; f < nbr; f++ {
				if f == c {
					flows[f] = 0
					continue
				}
				flows[f] = baseFlowsMW[f] + factors.LODF[f][c]*flow0c
				if nc.Branch.ContingencyRate[f] > 0 && abs(flows[f]) > nc.Branch.ContingencyRate[f] {
					overloaded = append(overloaded, f)
				}
			}
			rows[c] = ContingencyRow{OutagedBranch: c, Flows: flows, Overloaded: overloaded}
			if opts.Progress != nil {
				opts.Progress(c+1, nbr)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &ScanResults{Rows: rows, cancelled: cancel.Cancelled()}, err
	}
	return &ScanResults{Rows: rows, cancelled: cancel.Cancelled()}, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
