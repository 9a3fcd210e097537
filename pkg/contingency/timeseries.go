package contingency

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/vdriver"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// WelfordStat accumulates a running mean/variance online (Welford's
// algorithm), used to aggregate overload magnitudes across contingencies
// within a time index without keeping every sample in memory.
type WelfordStat struct {
	count int
	mean  float64
	m2    float64
}

// Add folds one sample into the running statistic.
func (w *WelfordStat) Add(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

// Mean returns the running mean, 0 if no samples were added.
func (w *WelfordStat) Mean() float64 { return w.mean }

// StdDev returns the running (population) standard deviation.
func (w *WelfordStat) StdDev() float64 {
	if w.count < 2 {
		return 0
	}
	v := w.m2 / float64(w.count)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// TimeStat is the per-time-index aggregate produced by the time-series
// procedure.
type TimeStat struct {
	TimeIndex      int
	MaxLoadingMW   float64
	OverloadCount  int
	OverloadSumMW  float64
	OverloadStat   WelfordStat
}

// TimeSeriesOptions configures the time-series contingency driver.
type TimeSeriesOptions struct {
	Contingency Options
	Progress    vdriver.ProgressFunc
}

func (o TimeSeriesOptions) Validate() error { return nil }

// TimeSeriesResults collects the per-time-index statistics.
type TimeSeriesResults struct {
	ByTime    []TimeStat
	cancelled bool
}

func (r *TimeSeriesResults) Cancelled() bool { return r.cancelled }

// TimeSeriesDriver runs the snapshot contingency procedure at every time
// index, aggregating overloads into per-time statistics. Implements
// vdriver.Driver.
type TimeSeriesDriver struct {
	mc   *grid.MultiCircuit
	opts TimeSeriesOptions

	cancel  vdriver.Cancellation
	logger  *vlog.Logger
	results *TimeSeriesResults
}

func NewTimeSeriesDriver(mc *grid.MultiCircuit, opts TimeSeriesOptions) *TimeSeriesDriver {
	return &TimeSeriesDriver{mc: mc, opts: opts, logger: vlog.New()}
}

func (d *TimeSeriesDriver) Cancel()                     { d.cancel.Cancel() }
func (d *TimeSeriesDriver) Results() *TimeSeriesResults { return d.results }
func (d *TimeSeriesDriver) Logger() *vlog.Logger        { return d.logger }

func (d *TimeSeriesDriver) Run(ctx context.Context) error {
	n := len(d.mc.TimeAxis())
	out := make([]TimeStat, n)

	sem := semaphore.NewWeighted(int64(max(1, runtime.GOMAXPROCS(0))))
	g, gctx := errgroup.WithContext(ctx)

	for t := 0; t < n; t++ {
		t := t
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
				out[t] = TimeStat{TimeIndex: t}
				return nil
			}

			stat := TimeStat{TimeIndex: t}
			for _, nc := range islands {
				report, err := RunSnapshot(nc, d.opts.Contingency)
				if err != nil {
					workerLogger.AddError("", "contingency evaluation failed: "+err.Error())
					continue
				}
				for _, gr := range report.Groups {
					for _, o := range gr.Overloads {
						stat.OverloadCount++
						stat.OverloadSumMW += absFloat(o.FlowMW)
						stat.OverloadStat.Add(absFloat(o.FlowMW))
						if absFloat(o.FlowMW) > stat.MaxLoadingMW {
							stat.MaxLoadingMW = absFloat(o.FlowMW)
						}
					}
				}
			}
			out[t] = stat
			d.logger.Merge(workerLogger)
			if d.opts.Progress != nil {
				d.opts.Progress(t+1, n)
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
