package powerflow

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/vdriver"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// SnapshotOptions configures a single-snapshot power-flow run.
type SnapshotOptions struct {
	Solver Options
}

func (o SnapshotOptions) Validate() error { return nil }

// TimeResult is the per-time-index outcome stored by the time-series
// driver.
type TimeResult struct {
	TimeIndex  int
	Converged  bool
	V          []complex128
	Sf, St     []complex128
}

// TimeSeriesResults is the accumulated outcome of the time-series driver.
type TimeSeriesResults struct {
	ByTime    []TimeResult
	cancelled bool
}

func (r *TimeSeriesResults) Cancelled() bool { return r.cancelled }

// ClusteringResult restricts a time-series run to a set of representative
// time indices, each carrying a sample probability. Run uses only
// RepresentativeIndices; SampleProbability is carried for callers.
type ClusteringResult struct {
	RepresentativeIndices []int
	SampleProbability     []float64
}

// TimeSeriesOptions configures the clustered time-series driver.
type TimeSeriesOptions struct {
	Solver     Options
	Clustering *ClusteringResult // nil => solve every time index
	Progress   vdriver.ProgressFunc
}

func (o TimeSeriesOptions) Validate() error { return nil }

// TimeSeriesDriver runs the snapshot solver across a circuit's time axis,
// parallelized with errgroup+semaphore per the engine's concurrency model
// (§5): each worker compiles and solves its own NumericalCircuit clone,
// so no shared mutable state crosses goroutines.
type TimeSeriesDriver struct {
	mc   *grid.MultiCircuit
	opts TimeSeriesOptions

	cancel  vdriver.Cancellation
	logger  *vlog.Logger
	results *TimeSeriesResults
}

// NewTimeSeriesDriver builds a driver over mc with the given options.
func NewTimeSeriesDriver(mc *grid.MultiCircuit, opts TimeSeriesOptions) *TimeSeriesDriver {
	return &TimeSeriesDriver{mc: mc, opts: opts, logger: vlog.New()}
}

func (d *TimeSeriesDriver) Cancel()            { d.cancel.Cancel() }
func (d *TimeSeriesDriver) Results() *TimeSeriesResults { return d.results }
func (d *TimeSeriesDriver) Logger() *vlog.Logger        { return d.logger }

// Run solves every (or every representative, if clustering is set) time
// index, storing each result at the position of its time index in the
// list of solved indices.
func (d *TimeSeriesDriver) Run(ctx context.Context) error {
	indices := d.timeIndices()
	out := make([]TimeResult, len(indices))

	sem := semaphore.NewWeighted(int64(max(1, runtime.GOMAXPROCS(0))))
	g, gctx := errgroup.WithContext(ctx)

	for pos, t := range indices {
		pos, t := pos, t
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if d.cancel.Cancelled() {
				return nil
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			workerLogger := vlog.New()
			islands, err := numcircuit.Compile(d.mc, t, numcircuit.Options{IgnoreNoSlack: true})
			if err != nil {
				workerLogger.AddError("", "compile failed: "+err.Error())
				d.logger.Merge(workerLogger)
				out[pos] = TimeResult{TimeIndex: t, Converged: false}
				return nil
			}

			merged := TimeResult{TimeIndex: t, Converged: true}
			for _, nc := range islands {
				res, err := SolveNR(nc, d.opts.Solver)
				if res != nil {
					merged.V = append(merged.V, res.V...)
					merged.Sf = append(merged.Sf, res.Sf...)
					merged.St = append(merged.St, res.St...)
					workerLogger.Merge(res.Logger)
				}
				if err != nil || (res != nil && !res.Converged) {
					merged.Converged = false
				}
			}
			out[pos] = merged
			d.logger.Merge(workerLogger)

			if d.opts.Progress != nil {
				d.opts.Progress(pos+1, len(indices))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		d.results = &TimeSeriesResults{ByTime: out, cancelled: d.cancel.Cancelled()}
		return err
	}

	d.results = &TimeSeriesResults{ByTime: out, cancelled: d.cancel.Cancelled()}
	return nil
}

func (d *TimeSeriesDriver) timeIndices() []int {
	if d.opts.Clustering != nil {
		return d.opts.Clustering.RepresentativeIndices
	}
	n := len(d.mc.TimeAxis())
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
