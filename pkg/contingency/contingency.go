// Package contingency implements the N-1(-k) contingency driver (C8): it
// applies each contingency group to a mutable copy of the numerical
// circuit, solves or evaluates it, reports branch overloads against
// thermal/contingency ratings, and optionally runs a greedy SRAP
// redispatch to relieve a detected overload before reporting it.
package contingency

import (
	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/linfactors"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/powerflow"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// Method selects how each contingency is evaluated.
type Method int

const (
	MethodPowerFlow Method = iota
	MethodLinear
	MethodPTDFScan
)

// SrapOptions configures the greedy SRAP redispatch pass.
type SrapOptions struct {
	Enabled       bool
	MaxPower      float64 // global cap, MW
	TopN          int     // consider at most this many sensitivity-ranked generators, 0 = unlimited
	Deadband      float64 // fraction above rate before SRAP engages, e.g. 0.0 = engage on any overload
}

// Options configures one contingency-analysis run.
type Options struct {
	Method  Method
	Solver  powerflow.Options
	Groups  []grid.ContingencyGroup // evaluated as given; an empty list evaluates no group
	Srap    SrapOptions
}

func (o Options) Validate() error { return nil }

// OverloadRow is one violated branch found while evaluating a
// contingency group.
type OverloadRow struct {
	GroupUID   string
	BranchUID  string
	FlowMW     float64
	RateMVA    float64
	PreExisting bool // true if the overload exists even before the contingency
	SrapApplied bool
}

// GroupReport is the outcome of evaluating one contingency group.
type GroupReport struct {
	GroupUID  string
	Converged bool
	Overloads []OverloadRow
}

// Report is the accumulated snapshot-procedure outcome.
type Report struct {
	Groups    []GroupReport
	cancelled bool
}

func (r *Report) Cancelled() bool { return r.cancelled }

// uidIndex maps device UIDs to their local index in a NumericalCircuit,
// across the three mutable arrays a contingency event can target.
type uidIndex struct {
	branch, generator, load map[string]int
}

func buildUIDIndex(nc *numcircuit.NumericalCircuit) uidIndex {
	idx := uidIndex{
		branch:    make(map[string]int, len(nc.Branch.UID)),
		generator: make(map[string]int, len(nc.Generator.UID)),
		load:      make(map[string]int, len(nc.Load.UID)),
	}
	for i, u := range nc.Branch.UID {
		idx.branch[u] = i
	}
	for i, u := range nc.Generator.UID {
		idx.generator[u] = i
	}
	for i, u := range nc.Load.UID {
		idx.load[u] = i
	}
	return idx
}

// ApplyGroup clones nc and applies every event in the group to the
// clone, leaving nc untouched (the driver's "restore original state"
// step is implicit: each call starts from the shared base).
func ApplyGroup(nc *numcircuit.NumericalCircuit, group grid.ContingencyGroup) *numcircuit.NumericalCircuit {
	clone := nc.ContingencySnapshot()
	idx := buildUIDIndex(clone)

	for _, ev := range group.Events {
		switch ev.Action {
		case grid.ActionDeactivate:
			if i, ok := idx.branch[ev.DeviceUID]; ok {
				clone.DeactivateBranch(i)
			}
		case grid.ActionSetP:
			if i, ok := idx.generator[ev.DeviceUID]; ok {
				clone.Generator.SetP(i, ev.Value)
			} else if i, ok := idx.load[ev.DeviceUID]; ok {
				clone.Load.SetP(i, ev.Value)
			}
		case grid.ActionSetActiveStatus:
			if i, ok := idx.generator[ev.DeviceUID]; ok {
				clone.Generator.Active[i] = ev.SetActive
			} else if i, ok := idx.load[ev.DeviceUID]; ok {
				clone.Load.Active[i] = ev.SetActive
			}
		}
	}
	return clone
}

// RunSnapshot evaluates every group against nc and returns the
// accumulated report. For MethodPowerFlow it re-solves the full AC
// network per contingency; for MethodLinear/MethodPTDFScan it reuses a
// single PTDF/LODF factorization built once against the base case.
func RunSnapshot(nc *numcircuit.NumericalCircuit, opts Options) (*Report, error) {
	logger := vlog.New()
	report := &Report{}

	var factors *linfactors.Factors
	var baseFlows []float64
	if opts.Method != MethodPowerFlow {
		base, err := powerflow.SolveNR(nc, opts.Solver)
		if err != nil && base == nil {
			return nil, err
		}
		baseFlows = flowMagnitudesMW(base.Sf)
		factors, err = linfactors.Build(nc, 0)
		if err != nil {
			return nil, err
		}
	}

	for _, group := range opts.Groups {
		var gr GroupReport
		switch opts.Method {
		case MethodPowerFlow:
			gr = evaluateByPowerFlow(nc, group, opts, logger)
		default:
			gr = evaluateByLinearFactors(nc, group, factors, baseFlows, opts)
		}
		report.Groups = append(report.Groups, gr)
	}
	return report, nil
}

func flowMagnitudesMW(sf []complex128) []float64 {
	out := make([]float64, len(sf))
	for i, v := range sf {
		out[i] = abs64(real(v)) * powerflow.SBase // MW component; reactive overload is out of scope for loading checks
	}
	return out
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func evaluateByPowerFlow(nc *numcircuit.NumericalCircuit, group grid.ContingencyGroup, opts Options, logger *vlog.Logger) GroupReport {
	clone := ApplyGroup(nc, group)
	res, err := powerflow.SolveNR(clone, opts.Solver)
	if err != nil && res == nil {
		logger.AddError(group.UID, "contingency solve failed: "+err.Error())
		return GroupReport{GroupUID: group.UID, Converged: false}
	}

	overloads := findOverloads(clone, res.Sf, group.UID)
	engage := false
	for _, o := range overloads {
		if o.FlowMW > o.RateMVA*(1+opts.Srap.Deadband) {
			engage = true
		}
	}
	if opts.Srap.Enabled && engage {
		overloads = applySrap(clone, overloads, opts, logger)
	}
	return GroupReport{GroupUID: group.UID, Converged: res.Converged, Overloads: overloads}
}

func evaluateByLinearFactors(nc *numcircuit.NumericalCircuit, group grid.ContingencyGroup, factors *linfactors.Factors, baseFlows []float64, opts Options) GroupReport {
	outaged := map[int]bool{}
	idx := buildUIDIndex(nc)
	for _, ev := range group.Events {
		if ev.Action != grid.ActionDeactivate {
			continue
		}
		if i, ok := idx.branch[ev.DeviceUID]; ok {
			outaged[i] = true
		}
	}

	flows := append([]float64(nil), baseFlows...)
	for c := range outaged {
		if factors.IsDegenerate(c) {
			continue
		}
		flow0c := baseFlows[c]
		for f := 0; f < factors.NBranch; f++ {
			if outaged[f] {
				flows[f] = 0
				continue
			}
			flows[f] += factors.LODF[f][c] * flow0c
		}
	}

	var overloads []OverloadRow
	for f := 0; f < len(flows); f++ {
		if outaged[f] {
			continue
		}
		if nc.Branch.ContingencyRate[f] > 0 && abs64(flows[f]) > nc.Branch.ContingencyRate[f] {
			overloads = append(overloads, OverloadRow{
				GroupUID:  group.UID,
				BranchUID: nc.Branch.UID[f],
				FlowMW:    flows[f],
				RateMVA:   nc.Branch.ContingencyRate[f],
			})
		}
	}
	return GroupReport{GroupUID: group.UID, Converged: true, Overloads: overloads}
}

func findOverloads(nc *numcircuit.NumericalCircuit, sf []complex128, groupUID string) []OverloadRow {
	var rows []OverloadRow
	for i := range sf {
		flow := abs64(real(sf[i])) * powerflow.SBase
		rate := nc.Branch.ContingencyRate[i]
		if rate > 0 && flow > rate {
			rows = append(rows, OverloadRow{GroupUID: groupUID, BranchUID: nc.Branch.UID[i], FlowMW: flow, RateMVA: rate})
		}
	}
	return rows
}
