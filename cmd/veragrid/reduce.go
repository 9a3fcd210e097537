package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veragrid/veragridengine/internal/demogrid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/reduction"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

var reduceExternalBus string

var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Reduce a bus out of the demo network via PTDF-based equivalencing",
	RunE:  runReduce,
}

func init() {
	reduceCmd.Flags().StringVar(&reduceExternalBus, "external-bus", "bus3", "bus UID to eliminate")
}

func runReduce(cmd *cobra.Command, args []string) error {
	mc := demogrid.ThreeBus()
	islands, err := numcircuit.Compile(mc, 0, numcircuit.Options{})
	if err != nil {
		return err
	}
	nc := islands[0]

	externalIdx := -1
	for b, uid := range nc.Bus.UID {
		if uid == reduceExternalBus {
			externalIdx = b
		}
	}
	if externalIdx < 0 {
		return fmt.Errorf("bus %q not found", reduceExternalBus)
	}

	logger := vlog.New()
	if err := reduction.PTDFReduction(mc, nc, []int{externalIdx}, reduction.PTDFOptions{}, logger); err != nil {
		return err
	}

	fmt.Printf("reduced network: %d buses, %d branches, %d injections remain\n", len(mc.Buses()), len(mc.Branches()), len(mc.Injections()))
	for _, e := range logger.Entries() {
		fmt.Println(" ", e.Severity, e.Message)
	}
	return nil
}
