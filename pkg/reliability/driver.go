package reliability

import (
	"context"
	"math/cmplx"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/powerflow"
	"github.com/veragrid/veragridengine/pkg/vdriver"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// Mode selects the reliability engine's evaluation strategy per sample.
type Mode int

const (
	// ModeGenerationAdequacy evaluates each sampled outage state by
	// greedy merit-order dispatch against the system load, ignoring
	// network topology (single-area adequacy).
	ModeGenerationAdequacy Mode = iota
	// ModeGridMetrics evaluates each sampled branch-outage state by
	// re-solving the AC power flow and checking for thermal overloads,
	// capturing network constraints the adequacy mode cannot see.
	ModeGridMetrics
)

// Options configures a Monte-Carlo reliability run.
type Options struct {
	Mode       Mode
	NSim       int
	Horizon    int // hours
	Seed1, Seed2 uint64

	Adequacy *GenerationAdequacyInput // required for ModeGenerationAdequacy

	Grid         *grid.MultiCircuit // required for ModeGridMetrics
	PowerFlow    powerflow.Options
	OverloadFrac float64 // fraction of ContingencyRate counted as a loss event, e.g. 1.0

	Progress vdriver.ProgressFunc
}

func (o Options) Validate() error { return nil }

// Indicators are the standard loss-of-load reliability metrics
// aggregated across every Monte-Carlo sample.
type Indicators struct {
	LOLE float64 // loss of load expectation, hours/period
	ENS  float64 // energy not supplied, MWh/period
	LOLF float64 // loss of load frequency, events/period
}

// Results holds the per-sample and aggregate reliability outcome.
type Results struct {
	Indicators   Indicators
	LossPerSim   []float64 // MWh lost, one entry per simulation
	HoursPerSim  []int
	cancelled    bool
}

func (r *Results) Cancelled() bool { return r.cancelled }

// Driver runs the Monte-Carlo reliability loop per the uniform driver
// surface (§6).
type Driver struct {
	opts    Options
	cancel  vdriver.Cancellation
	logger  *vlog.Logger
	results *Results
}

func NewDriver(opts Options) *Driver {
	return &Driver{opts: opts, logger: vlog.New()}
}

func (d *Driver) Cancel()             { d.cancel.Cancel() }
func (d *Driver) Results() *Results   { return d.results }
func (d *Driver) Logger() *vlog.Logger { return d.logger }

// Run executes NSim independent samples, parallelized over a worker pool
// capped at GOMAXPROCS the same way the contingency scan and time-series
// drivers are (§5): each sample draws its own outage trajectory from an
// independently-seeded generator so results are reproducible given the
// same (Seed1, Seed2) regardless of scheduling order, and is otherwise
// fully independent of every other sample.
func (d *Driver) Run(ctx context.Context) error {
	nSim := d.opts.NSim
	loss := make([]float64, nSim)
	hours := make([]int, nSim)

	sem := semaphore.NewWeighted(int64(max(1, runtime.GOMAXPROCS(0))))
	g, gctx := errgroup.WithContext(ctx)

	for sim := 0; sim < nSim; sim++ {
		sim := sim
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if d.cancel.Cancelled() {
				return nil
			}

			rng := rand.New(rand.NewPCG(d.opts.Seed1+uint64(sim), d.opts.Seed2^uint64(sim)*0x9e3779b97f4a7c15))

			var lossMWh float64
			var lossHours int
			var err error
			switch d.opts.Mode {
			case ModeGridMetrics:
				lossMWh, lossHours, err = d.runGridMetricsSample(rng)
			default:
				lossMWh, lossHours = d.runAdequacySample(rng)
			}
			if err != nil {
				return err
			}

			loss[sim] = lossMWh
			hours[sim] = lossHours
			if d.opts.Progress != nil {
				d.opts.Progress(sim+1, nSim)
			}
			return nil
		})
	}

	err := g.Wait()
	d.results = aggregateResults(loss, hours, d.cancel.Cancelled())
	return err
}

func (d *Driver) runAdequacySample(rng *rand.Rand) (float64, int) {
	in := d.opts.Adequacy
	genStates, _ := GenerateStatesMatrix(rng, in.GenMttf, in.GenMttr, in.horizon(), false)
	battStates, _ := GenerateStatesMatrix(rng, in.BattMttf, in.BattMttr, in.horizon(), false)
	return dispatchSample(in, genStates, battStates)
}

// runGridMetricsSample draws a branch-outage trajectory, and for every
// hour with at least one branch down re-solves the power flow and checks
// for overloads, recording the connected load as lost whenever the
// post-outage solve does not converge or any monitored branch exceeds
// OverloadFrac*ContingencyRate.
func (d *Driver) runGridMetricsSample(rng *rand.Rand) (float64, int, error) {
	mc := d.opts.Grid
	branches := mc.Branches()
	mttf, mttr := make([]float64, 0, len(branches)), make([]float64, 0, len(branches))
	for _, b := range branches {
		m1, m2 := b.Reliability()
		mttf = append(mttf, m1)
		mttr = append(mttr, m2)
	}

	states, nFailures := GenerateStatesMatrix(rng, mttf, mttr, d.opts.Horizon, false)
	if nFailures == 0 {
		return 0, 0, nil
	}

	var lossMWh float64
	var lossHours int
	for t := 0; t < d.opts.Horizon; t++ {
		down := map[string]bool{}
		for k, s := range states {
			if !s[t] {
				down[branches[k].GetUID()] = true
			}
		}
		if len(down) == 0 {
			continue
		}

		islands, err := numcircuit.Compile(mc, t, numcircuit.Options{})
		if err != nil {
			continue
		}

		overloaded := false
		var totalLoad float64
		for _, nc := range islands {
			for k, uid := range nc.Branch.UID {
				if down[uid] {
					nc.DeactivateBranch(k)
				}
			}
			res, err := powerflow.SolveNR(nc, d.opts.PowerFlow)
			if err != nil || res == nil || !res.Converged {
				overloaded = true
			} else {
				threshold := d.opts.OverloadFrac
				if threshold == 0 {
					threshold = 1.0
				}
				for i, rate := range nc.Branch.ContingencyRate {
					if rate <= 0 {
						continue
					}
					loadingPU := cmplx.Abs(res.Sf[i]) * powerflow.SBase / rate
					if loadingPU > threshold {
						overloaded = true
					}
				}
			}
			for _, p := range nc.Load.P {
				totalLoad += p
			}
		}

		if overloaded {
			lossMWh += totalLoad
			lossHours++
		}
	}
	return lossMWh, lossHours, nil
}

func aggregateResults(loss []float64, hours []int, cancelled bool) *Results {
	n := len(loss)
	var sumLoss float64
	var sumHours float64
	var events float64
	for i := range loss {
		sumLoss += loss[i]
		sumHours += float64(hours[i])
		if hours[i] > 0 {
			events++
		}
	}
	var ind Indicators
	if n > 0 {
		ind = Indicators{
			LOLE: sumHours / float64(n),
			ENS:  sumLoss / float64(n),
			LOLF: events / float64(n),
		}
	}
	return &Results{Indicators: ind, LossPerSim: loss, HoursPerSim: hours, cancelled: cancelled}
}

