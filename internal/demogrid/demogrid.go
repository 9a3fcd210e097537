// Package demogrid builds small in-memory MultiCircuits for cmd/veragrid
// to exercise, since pkg/grid ships no file-format loader: every
// subcommand runs on one of these built-in networks.
package demogrid

import (
	"github.com/veragrid/veragridengine/pkg/block"
	"github.com/veragrid/veragridengine/pkg/grid"
)

// ThreeBus builds a slack-PV-PQ triangle: a generator at bus1 (slack), a
// second generator at bus2 (PV), and a load at bus3, connected by three
// lines so an N-1 outage never islands the network.
func ThreeBus() *grid.MultiCircuit {
	mc := grid.NewMultiCircuit("three-bus")

	b1 := grid.NewBus("bus1", "Bus 1", 230)
	b1.IsSlack = true
	b2 := grid.NewBus("bus2", "Bus 2", 230)
	b3 := grid.NewBus("bus3", "Bus 3", 230)
	mc.AddBus(b1)
	mc.AddBus(b2)
	mc.AddBus(b3)

	l12 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l12", Name: "L1-2", FromUID: "bus1", ToUID: "bus2", Active: true, R: 0.01, X: 0.08, RateMVA: 150, ContingencyRateMVA: 180, MonitorLoading: true, Mttf: 2000, Mttr: 24}}
	l13 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l13", Name: "L1-3", FromUID: "bus1", ToUID: "bus3", Active: true, R: 0.02, X: 0.12, RateMVA: 120, ContingencyRateMVA: 150, MonitorLoading: true, Mttf: 2000, Mttr: 24}}
	l23 := &grid.Line{BaseBranch: grid.BaseBranch{UID: "l23", Name: "L2-3", FromUID: "bus2", ToUID: "bus3", Active: true, R: 0.015, X: 0.1, RateMVA: 120, ContingencyRateMVA: 150, MonitorLoading: true, Mttf: 2000, Mttr: 24}}
	_ = mc.AddBranch(l12)
	_ = mc.AddBranch(l13)
	_ = mc.AddBranch(l23)

	g1 := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g1", Name: "Slack Gen", Bus: "bus1", Active: true, Snom: 300, Mttf: 4000, Mttr: 48}, Vset: 1.0, Qmin: -100, Qmax: 100, Cost: 25, IsDispatchable: true}
	g2 := &grid.Generator{BaseInjection: grid.BaseInjection{UID: "g2", Name: "PV Gen", Bus: "bus2", Active: true, P: 60, Snom: 150, Mttf: 3500, Mttr: 40}, Vset: 1.02, Qmin: -60, Qmax: 60, Cost: 35, IsDispatchable: true, IsSrapEnabled: true}
	ld := &grid.Load{BaseInjection: grid.BaseInjection{UID: "ld3", Name: "Load 3", Bus: "bus3", Active: true, P: 90, Q: 30, Mttf: 8000, Mttr: 6}}
	_ = mc.AddInjection(g1)
	_ = mc.AddInjection(g2)
	_ = mc.AddInjection(ld)

	grp := &grid.ContingencyGroup{UID: "N-1-L12", Name: "Loss of L1-2", Events: []grid.ContingencyEvent{
		{DeviceUID: "l12", Action: grid.ActionDeactivate},
	}}
	mc.AddContingencyGroup(grp)

	return mc
}

// SwingGeneratorScenario builds a single swing-generator RMS block with a
// droop governor closing the loop around it: the generator's speed
// deviation output feeds the governor's droop term, and the governor's
// mechanical power command feeds back as the generator's Pm input, per
// block.SwingGenerator/block.Governor's own doc comments.
func SwingGeneratorScenario() (root *block.Block, paramUIDs map[string]int) {
	gen := block.SwingGenerator("gen")
	gov := block.Governor("gov")

	root = block.New("plant", block.KindGeneric)
	root.Children = []*block.Block{gen, gov}

	domegaPort := gen.Outputs[1] // {Name: "domega", Var: domega}
	block.Connect(domegaPort, gov, gov.Inputs[0])

	pmPort := gov.Outputs[0] // {Name: "Pm", Var: pm}
	block.Connect(pmPort, gen, gen.Inputs[0])

	// Pe stays a free input, driven by the caller as an ordinary
	// parameter (and as an event target for a fault/load-step scenario).
	pe := gen.Inputs[1].Var
	root.Params = append(root.Params, pe)

	paramUIDs = map[string]int{"Pe": pe.UID}
	for _, p := range gen.Params {
		paramUIDs[p.Name] = p.UID
	}
	for _, p := range gov.Params {
		paramUIDs[p.Name] = p.UID
	}
	return root, paramUIDs
}

// SwingGeneratorInitialCondition returns a consistent x0 (delta=0,
// domega=0, Pm=P0) for the scenario above, ordered state-then-algebraic
// per pkg/rms.System's flattened layout (delta, domega, Pm, then Pref).
func SwingGeneratorInitialCondition(p0 float64) []float64 {
	pref := p0
	return []float64{0, 0, p0, pref}
}
