package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veragrid/veragridengine/internal/demogrid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/powerflow"
	"github.com/veragrid/veragridengine/pkg/util"
)

var dcCmd = &cobra.Command{
	Use:   "dc",
	Short: "Solve the linear DC power flow on the demo network",
	RunE:  runDC,
}

func runDC(cmd *cobra.Command, args []string) error {
	mc := demogrid.ThreeBus()
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	if err != nil {
		return err
	}

	for i, nc := range islands {
		res, err := powerflow.SolveDC(nc)
		if err != nil {
			return fmt.Errorf("island %d: %w", i, err)
		}
		fmt.Printf("island %d:\n", i)
		for b, theta := range res.Theta {
			fmt.Printf("  bus %s: theta=%6.3f rad\n", nc.Bus.UID[b], theta)
		}
		for k, pf := range res.Pf {
			fmt.Printf("  branch %s: %s\n", nc.Branch.UID[k], util.FormatMW(pf, "MW"))
		}
	}
	return nil
}
