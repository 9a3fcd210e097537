package reduction

import (
	"fmt"

	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/linfactors"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// PTDFOptions configures the PTDF-based reduction.
type PTDFOptions struct {
	Epsilon   float64 // |PTDF| below this is skipped, 0 disables the cutoff
	Aggregate bool    // combine mirrored devices per boundary bus into one compound device
}

// PTDFReduction mirrors every external injection onto the boundary using
// the PTDF row of its attachment branch, then deletes the external
// buses. SRAP-enabled generators are aggregated into their own compound
// device (when Aggregate is set) so the SRAP flag survives the merge;
// every other mirrored injection, generators included, becomes a Load
// (generation as negative load). No Battery or StaticGenerator device is
// emitted.
func PTDFReduction(g *grid.MultiCircuit, nc *numcircuit.NumericalCircuit, externalIdx []int, opts PTDFOptions, logger *vlog.Logger) error {
	sets := BuildReductionSets(nc, externalIdx)
	if len(sets.External) == 0 {
		logger.AddInfo("", "nothing to reduce")
		return nil
	}
	if len(sets.Boundary) == 0 {
		logger.AddInfo("", "external and retained sets are disjoint, cannot reduce")
		return nil
	}

	factors, err := linfactors.Build(nc, 0)
	if err != nil {
		return err
	}

	externalSet := map[int]bool{}
	for _, e := range sets.External {
		externalSet[e] = true
	}

	// one entry per (external injection, boundary bus, attachment branch)
	// mirror, before any aggregation decision is applied.
	type mirrorEntry struct {
		boundaryBus int
		srap        bool
		p, q        float64
	}
	var entries []mirrorEntry

	for k := 0; k < nc.NBranch(); k++ {
		if !nc.Branch.Active[k] {
			continue
		}
		f, t := nc.Branch.F[k], nc.Branch.T[k]
		var boundaryBus int
		switch {
		case externalSet[f] && !externalSet[t]:
			boundaryBus = t
		case externalSet[t] && !externalSet[f]:
			boundaryBus = f
		default:
			continue
		}

		for _, extBus := range sets.External {
			ptdf := factors.PTDF[k][extBus]
			if opts.Epsilon > 0 && absF(ptdf) < opts.Epsilon {
				continue
			}

			for _, d := range externalInjectionsAt(nc, extBus) {
				entries = append(entries, mirrorEntry{
					boundaryBus: boundaryBus,
					srap:        d.srap,
					p:           ptdf * d.p,
					q:           ptdf * d.q,
				})
			}
		}
	}

	if opts.Aggregate {
		type sum struct{ p, q float64 }
		normSum := map[int]*sum{}
		srapSum := map[int]*sum{}
		for _, e := range entries {
			target := normSum
			if e.srap {
				target = srapSum
			}
			s := target[e.boundaryBus]
			if s == nil {
				s = &sum{}
				target[e.boundaryBus] = s
			}
			s.p += e.p
			s.q += e.q
		}
		for boundaryBus, s := range normSum {
			busUID := nc.Bus.UID[boundaryBus]
			_ = g.AddInjection(&grid.Load{BaseInjection: grid.BaseInjection{
				UID: fmt.Sprintf("ptdf-mirror-%s", busUID), Name: "PTDF mirrored equivalent", Bus: busUID, Active: true,
				P: s.p, Q: s.q,
			}})
		}
		for boundaryBus, s := range srapSum {
			busUID := nc.Bus.UID[boundaryBus]
			_ = g.AddInjection(&grid.Generator{
				BaseInjection: grid.BaseInjection{UID: fmt.Sprintf("ptdf-mirror-srap-%s", busUID), Name: "PTDF mirrored SRAP equivalent", Bus: busUID, Active: true, P: s.p, Q: s.q},
				IsSrapEnabled: true,
			})
		}
	} else {
		for i, e := range entries {
			busUID := nc.Bus.UID[e.boundaryBus]
			if e.srap {
				_ = g.AddInjection(&grid.Generator{
					BaseInjection: grid.BaseInjection{UID: fmt.Sprintf("ptdf-mirror-srap-%s-%d", busUID, i), Name: "PTDF mirrored SRAP equivalent", Bus: busUID, Active: true, P: e.p, Q: e.q},
					IsSrapEnabled: true,
				})
				continue
			}
			_ = g.AddInjection(&grid.Load{BaseInjection: grid.BaseInjection{
				UID: fmt.Sprintf("ptdf-mirror-%s-%d", busUID, i), Name: "PTDF mirrored equivalent", Bus: busUID, Active: true,
				P: e.p, Q: e.q,
			}})
		}
	}

	for _, e := range sets.External {
		g.DeleteBus(nc.Bus.UID[e])
	}
	return nil
}

type externalInjection struct {
	p, q float64
	srap bool
}

// externalInjectionsAt returns one entry per active generator/load
// attached to bus, so PTDF mirroring can preserve per-device SRAP status
// instead of collapsing a bus's devices before the epsilon cutoff.
func externalInjectionsAt(nc *numcircuit.NumericalCircuit, bus int) []externalInjection {
	var out []externalInjection
	for i, b := range nc.Generator.Bus {
		if b == bus && nc.Generator.Active[i] {
			out = append(out, externalInjection{p: nc.Generator.P[i], q: nc.Generator.Q[i], srap: nc.Generator.IsSrapEnabled[i]})
		}
	}
	for i, b := range nc.Load.Bus {
		if b == bus && nc.Load.Active[i] {
			out = append(out, externalInjection{p: -nc.Load.P[i], q: -nc.Load.Q[i]})
		}
	}
	return out
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
