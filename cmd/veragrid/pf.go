package main

import (
	"fmt"
	"math/cmplx"

	"github.com/spf13/cobra"

	"github.com/veragrid/veragridengine/internal/demogrid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/powerflow"
	"github.com/veragrid/veragridengine/pkg/util"
)

var pfCmd = &cobra.Command{
	Use:   "pf",
	Short: "Solve the positive-sequence Newton-Raphson power flow on the demo network",
	RunE:  runPF,
}

func runPF(cmd *cobra.Command, args []string) error {
	mc := demogrid.ThreeBus()
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	if err != nil {
		return err
	}

	opts := powerflow.Options{
		Tol:                   cfg.PowerFlow.Tolerance,
		MaxIter:               cfg.PowerFlow.MaxIter,
		BacktrackingParameter: cfg.PowerFlow.BacktrackingParameter,
		MaxBacktrackDepth:     cfg.PowerFlow.MaxBacktrackDepth,
		ControlQLimits:        cfg.PowerFlow.ControlQLimits,
		MaxControlIterations:  cfg.PowerFlow.MaxControlIterations,
	}

	for i, nc := range islands {
		res, err := powerflow.SolveNR(nc, opts)
		if err != nil {
			return fmt.Errorf("island %d: %w", i, err)
		}
		fmt.Printf("island %d: converged=%v iterations=%d mismatch=%.3e\n", i, res.Converged, res.Iterations, res.Mismatch)
		for b, v := range res.V {
			fmt.Println(" ", util.FormatMagnitudePhase(nc.Bus.UID[b], cmplx.Abs(v), cmplx.Phase(v)*180/3.141592653589793))
		}
		for k, sf := range res.Sf {
			fmt.Printf("  branch %s: P=%s\n", nc.Branch.UID[k], util.FormatMW(real(sf)*powerflow.SBase, "MW"))
		}
		if res.Logger.HasErrors() {
			for _, e := range res.Logger.Entries() {
				fmt.Println("  !", e.Message)
			}
		}
	}
	return nil
}
