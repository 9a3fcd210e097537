// Package linfactors computes the linear sensitivity factors used for
// fast N-1 screening: the power transfer distribution factors (PTDF)
// relating bus injections to branch flows, and the line outage
// distribution factors (LODF) relating one branch's outage to the flow
// redistribution onto every other branch, both built on the DC network
// model (§4.7).
package linfactors

import (
	"math"

	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/sparsemat"
	"github.com/veragrid/veragridengine/pkg/verr"
)

// Factors holds the PTDF and LODF matrices for one island, dense because
// they are consumed column-by-column in the hot contingency scan loop.
type Factors struct {
	NBus, NBranch int
	SlackBus      int

	// PTDF[branch][bus] is the per-unit flow change on branch for a 1 MW
	// injection at bus (withdrawn at the slack).
	PTDF [][]float64

	// LODF[branch][outaged] is the per-unit flow change on branch when
	// outaged trips, relative to outaged's pre-contingency flow.
	LODF [][]float64
}

// Build assembles PTDF from the DC susceptance matrix and then derives
// LODF from PTDF, following the closed-form relationship: outaging branch
// c redistributes its pre-outage flow onto every other branch f in
// proportion to PTDF[f][F_c] - PTDF[f][T_c], normalized by
// 1 - (PTDF[c][F_c] - PTDF[c][T_c]).
func Build(nc *numcircuit.NumericalCircuit, threshold float64) (*Factors, error) {
	nbus := nc.NBus()
	nbr := nc.NBranch()

	slack := -1
	for i, t := range nc.Bus.Type {
		if t == numcircuit.BusSlack {
			slack = i
			break
		}
	}
	if slack < 0 {
		return nil, verr.New(verr.ErrNoSlackInIsland, "", "no slack bus for PTDF assembly")
	}

	bBus, bBranch := buildSusceptanceMatrices(nc)

	nonSlack := make([]int, 0, nbus-1)
	rowOf := make(map[int]int, nbus-1)
	for i := 0; i < nbus; i++ {
		if i == slack {
			continue
		}
		rowOf[i] = len(nonSlack)
		nonSlack = append(nonSlack, i)
	}

	bReduced := bBus.Slice(nonSlack, nonSlack)
	factored, err := sparsemat.Factorize(bReduced)
	if err != nil {
		return nil, verr.New(verr.ErrSingularJacobian, "", "B_bus factorization failed: "+err.Error())
	}
	defer factored.Destroy()

	// For each non-slack bus, solve B_reduced * theta = e_bus, then
	// recover the column of flows B_branch * [theta; 0 at slack].
	ptdf := make([][]float64, nbr)
	for f := 0; f < nbr; f++ {
		ptdf[f] = make([]float64, nbus)
	}

	for _, bus := range nonSlack {
		rhs := make([]float64, len(nonSlack))
		rhs[rowOf[bus]] = 1
		theta, err := factored.SolveRHS(rhs)
		if err != nil {
			return nil, verr.New(verr.ErrSingularJacobian, "", "PTDF solve failed: "+err.Error())
		}

		thetaFull := make([]float64, nbus)
		for i, b := range nonSlack {
			thetaFull[b] = theta[i]
		}

		flows := bBranch.MulVec(thetaFull)
		for f := 0; f < nbr; f++ {
			v := flows[f]
			if threshold > 0 && math.Abs(v) < threshold {
				v = 0
			}
			ptdf[f][bus] = v
		}
	}
	// slack column is exactly zero: a 1 MW injection at the slack is
	// balanced entirely at the slack, moving no flow.

	lodf := buildLODF(nc, ptdf, threshold)

	return &Factors{NBus: nbus, NBranch: nbr, SlackBus: slack, PTDF: ptdf, LODF: lodf}, nil
}

// buildSusceptanceMatrices returns B_bus (nbus x nbus, the DC nodal
// susceptance matrix) and B_branch (nbranch x nbus, mapping bus angles
// directly to branch flows via B_branch * theta).
func buildSusceptanceMatrices(nc *numcircuit.NumericalCircuit) (bBus, bBranch *sparsemat.CSC) {
	nbus := nc.NBus()
	nbr := nc.NBranch()

	busTrip := sparsemat.NewTriplet(nbus, nbus)
	branchTrip := sparsemat.NewTriplet(nbr, nbus)

	for k := 0; k < nbr; k++ {
		if !nc.Branch.Active[k] {
			continue
		}
		x := nc.Branch.X[k]
		if x == 0 {
			continue
		}
		b := 1.0 / x
		f, t := nc.Branch.F[k], nc.Branch.T[k]

		busTrip.Add(f, f, b)
		busTrip.Add(t, t, b)
		busTrip.Add(f, t, -b)
		busTrip.Add(t, f, -b)

		branchTrip.Add(k, f, b)
		branchTrip.Add(k, t, -b)
	}

	return busTrip.ToCSC(), branchTrip.ToCSC()
}

// buildLODF implements the textbook closed form: for each outaged branch
// c with terminals (F_c, T_c), and each monitored branch f,
//
//	LODF[f][c] = (PTDF[f][F_c] - PTDF[f][T_c]) / (1 - (PTDF[c][F_c] - PTDF[c][T_c]))
//
// with LODF[c][c] = -1 by definition, and a degenerate denominator
// (radial/parallel branch pairs where the outage islands the network)
// leaving the column at zero instead of dividing by (near) zero; nothing
// is logged and no error is returned for it.
func buildLODF(nc *numcircuit.NumericalCircuit, ptdf [][]float64, threshold float64) [][]float64 {
	nbr := nc.NBranch()
	lodf := make([][]float64, nbr)
	for f := range lodf {
		lodf[f] = make([]float64, nbr)
	}

	const degenerateTol = 1e-9

	for c := 0; c < nbr; c++ {
		fBus, tBus := nc.Branch.F[c], nc.Branch.T[c]
		denom := 1 - (ptdf[c][fBus] - ptdf[c][tBus])
		if math.Abs(denom) < degenerateTol {
			// outaging c would island part of the network (e.g. a
			// radial branch); leave its column at zero.
			continue
		}
		for f := 0; f < nbr; f++ {
			if f == c {
				lodf[f][c] = -1
				continue
			}
			num := ptdf[f][fBus] - ptdf[f][tBus]
			v := num / denom
			if threshold > 0 && math.Abs(v) < threshold {
				v = 0
			}
			lodf[f][c] = v
		}
	}
	return lodf
}

// IsDegenerate reports whether outaging branch c has no valid LODF
// column (the denominator underflowed during Build).
func (f *Factors) IsDegenerate(c int) bool {
	for _, row := range f.LODF {
		if row[c] != 0 {
			return false
		}
	}
	return c < len(f.LODF) && f.LODF[c][c] != -1
}
