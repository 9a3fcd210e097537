package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veragrid/veragridengine/internal/demogrid"
	"github.com/veragrid/veragridengine/pkg/rms"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

var rmsLoadStepMW float64

var rmsCmd = &cobra.Command{
	Use:   "rms",
	Short: "Run the time-domain RMS swing-generator-and-governor scenario and its small-signal analysis",
	RunE:  runRMS,
}

func init() {
	rmsCmd.Flags().Float64Var(&rmsLoadStepMW, "load-step", 20, "electrical power step applied at t=1s, MW (per unit of the demo machine's base)")
}

func runRMS(cmd *cobra.Command, args []string) error {
	root, paramUIDs := demogrid.SwingGeneratorScenario()
	sys, err := rms.Build(root)
	if err != nil {
		return err
	}

	p0 := 0.8
	params := map[int]float64{
		paramUIDs["H"]:      5.0,
		paramUIDs["D"]:      1.0,
		paramUIDs["omegaS"]: 1.0,
		paramUIDs["P0"]:     p0,
		paramUIDs["R"]:      0.05,
		paramUIDs["Tg"]:     2.0,
		paramUIDs["Pe"]:     p0,
	}
	x0 := demogrid.SwingGeneratorInitialCondition(p0)

	events := []rms.Event{{TimeSec: 1.0, ParamUID: paramUIDs["Pe"], Value: p0 + rmsLoadStepMW/100}}

	opts := rms.Options{
		Method:        methodFromConfig(cfg.RMS.Method),
		StepSec:       cfg.RMS.StepSec,
		StopSec:       cfg.RMS.StopSec,
		NewtonTol:     cfg.RMS.NewtonTol,
		NewtonMaxIter: cfg.RMS.NewtonMaxIter,
	}

	logger := vlog.New()
	result, err := sys.Run(x0, params, events, opts, logger)
	if err != nil {
		return err
	}
	fmt.Printf("converged=%v snapshots=%d\n", result.Converged, len(result.Snapshots))
	nextPrint := 0.0
	for _, snap := range result.Snapshots {
		if snap.TimeSec+1e-9 >= nextPrint { // print every 0.5s
			fmt.Printf("  t=%.2fs delta=%.4f domega=%.4f Pm=%.4f\n", snap.TimeSec, snap.X[0], snap.X[1], snap.X[2])
			nextPrint += 0.5
		}
	}

	ss, err := sys.SmallSignal(x0, params)
	if err != nil {
		return err
	}
	fmt.Printf("stability: %v\n", ss.Stability)
	for i, m := range ss.Modes {
		fmt.Printf("  mode %d: lambda=%.4f%+.4fi zeta=%.4f f=%.4fHz\n", i, real(m.Eigenvalue), imag(m.Eigenvalue), m.DampingRatio, m.FrequencyHz)
	}
	return nil
}

func methodFromConfig(s string) rms.Method {
	if s == "trapezoidal" {
		return rms.Trapezoidal
	}
	return rms.ImplicitEuler
}
