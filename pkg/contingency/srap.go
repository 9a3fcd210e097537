package contingency

import (
	"sort"

	"github.com/veragrid/veragridengine/pkg/linfactors"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/powerflow"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// srapCandidate ranks one SRAP-enabled generator's sensitivity to an
// overloaded branch.
type srapCandidate struct {
	genIndex    int
	busIndex    int
	sensitivity float64
	available   float64
}

// applySrap greedily redispatches SRAP-enabled generators to relieve
// each overload: for every violated branch it ranks SRAP generators by
// |PTDF[branch][bus]|, then walks the ranking moving each generator's
// output by its available headroom (capped by the bus's
// SrapAvailablePower and the global SrapMaxPower budget) in the
// direction that reduces the branch's flow magnitude, re-solving once
// after exhausting the budget or the top-N candidates.
func applySrap(clone *numcircuit.NumericalCircuit, overloads []OverloadRow, opts Options, logger *vlog.Logger) []OverloadRow {
	factors, err := linfactors.Build(clone, 0)
	if err != nil {
		logger.AddWarning("", "SRAP sensitivity unavailable: "+err.Error())
		return overloads
	}

	branchByUID := make(map[string]int, len(clone.Branch.UID))
	for i, u := range clone.Branch.UID {
		branchByUID[u] = i
	}

	budget := opts.Srap.MaxPower
	if budget <= 0 {
		budget = 1e18 // effectively unbounded when no cap is configured
	}

	redispatched := map[string]bool{}
	for _, row := range overloads {
		bi, ok := branchByUID[row.BranchUID]
		if !ok || budget <= 0 {
			continue
		}

		candidates := rankSrapCandidates(clone, factors, bi, opts.Srap.TopN)
		sign := -1.0
		if row.FlowMW < 0 {
			sign = 1.0
		}

		for _, c := range candidates {
			if budget <= 0 {
				break
			}
			move := c.available
			if move > budget {
				move = budget
			}
			if move <= 0 {
				continue
			}
			clone.Generator.P[c.genIndex] += sign * move
			budget -= move
			redispatched[row.BranchUID] = true
		}
	}

	if len(redispatched) == 0 {
		return overloads
	}

	res, err := powerflow.SolveNR(clone, opts.Solver)
	if err != nil && res == nil {
		logger.AddWarning("", "SRAP re-solve failed: "+err.Error())
		return overloads
	}

	refreshed := findOverloads(clone, res.Sf, overloads[0].GroupUID)
	for i := range refreshed {
		if redispatched[refreshed[i].BranchUID] {
			refreshed[i].SrapApplied = true
		}
	}
	return refreshed
}

// rankSrapCandidates returns SRAP-enabled generators sorted by
// descending sensitivity magnitude to branch bi, truncated to topN (0 =
// unlimited).
func rankSrapCandidates(nc *numcircuit.NumericalCircuit, factors *linfactors.Factors, bi, topN int) []srapCandidate {
	var candidates []srapCandidate
	for gi, enabled := range nc.Generator.IsSrapEnabled {
		if !enabled || !nc.Generator.Active[gi] {
			continue
		}
		bus := nc.Generator.Bus[gi]
		sens := factors.PTDF[bi][bus]
		if sens == 0 {
			continue
		}
		available := nc.Bus.SrapAvailable[bus]
		if available <= 0 {
			continue
		}
		candidates = append(candidates, srapCandidate{genIndex: gi, busIndex: bus, sensitivity: sens, available: available})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return absFloat(candidates[i].sensitivity) > absFloat(candidates[j].sensitivity)
	})
	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
