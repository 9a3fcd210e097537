package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veragrid/veragridengine/internal/demogrid"
	"github.com/veragrid/veragridengine/pkg/powerflow"
	"github.com/veragrid/veragridengine/pkg/reliability"
)

var reliabilityMode string

var reliabilityCmd = &cobra.Command{
	Use:   "reliability",
	Short: "Run the Monte-Carlo reliability engine (generation adequacy or grid-metrics mode) on the demo network",
	RunE:  runReliability,
}

func init() {
	reliabilityCmd.Flags().StringVar(&reliabilityMode, "mode", "adequacy", "evaluation mode: adequacy, grid")
}

func runReliability(cmd *cobra.Command, args []string) error {
	horizon := cfg.Reliability.HorizonHours

	var opts reliability.Options
	switch reliabilityMode {
	case "grid":
		mc := demogrid.ThreeBus()
		opts = reliability.Options{
			Mode:         reliability.ModeGridMetrics,
			NSim:         cfg.Reliability.NSim,
			Horizon:      horizon,
			Seed1:        cfg.Reliability.Seed1,
			Seed2:        cfg.Reliability.Seed2,
			Grid:         mc,
			PowerFlow:    powerflow.Options{Tol: cfg.PowerFlow.Tolerance, MaxIter: cfg.PowerFlow.MaxIter},
			OverloadFrac: cfg.Reliability.OverloadFrac,
		}
	default:
		profile := make(reliability.TimeProfile, horizon)
		capacity := make(reliability.TimeProfile, horizon)
		for i := range profile {
			profile[i] = 90
			capacity[i] = 300
		}
		opts = reliability.Options{
			Mode:    reliability.ModeGenerationAdequacy,
			NSim:    cfg.Reliability.NSim,
			Horizon: horizon,
			Seed1:   cfg.Reliability.Seed1,
			Seed2:   cfg.Reliability.Seed2,
			Adequacy: &reliability.GenerationAdequacyInput{
				LoadMW:    profile,
				GenPMax:   []reliability.TimeProfile{capacity},
				GenCost:   []float64{25},
				GenMttf:   []float64{4000},
				GenMttr:   []float64{48},
				GenActive: []bool{true},
				DtHours:   onesProfile(horizon),
			},
		}
	}

	driver := reliability.NewDriver(opts)
	if err := driver.Run(context.Background()); err != nil {
		return err
	}

	res := driver.Results()
	fmt.Printf("LOLE=%.4f hours/period  ENS=%.4f MWh/period  LOLF=%.4f events/period\n",
		res.Indicators.LOLE, res.Indicators.ENS, res.Indicators.LOLF)
	return nil
}

func onesProfile(n int) reliability.TimeProfile {
	p := make(reliability.TimeProfile, n)
	for i := range p {
		p[i] = 1
	}
	return p
}
