package powerflow

import (
	"github.com/veragrid/veragridengine/pkg/admittance"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/sparsemat"
	"github.com/veragrid/veragridengine/pkg/verr"
)

// DCResult is the outcome of the linear (DC) solver: bus angles and
// branch real-power flows. No iteration, no reactive power.
type DCResult struct {
	Theta []float64 // radians, one per bus; slack fixed at 0
	Pf    []float64 // MW, one per branch
}

// SolveDC forms B = -Im(Ybus) restricted to non-slack buses, solves
// B*theta = P_inj by sparse LU, and recovers branch flows as
// P_f = (theta_F - theta_T) / x_k.
func SolveDC(nc *numcircuit.NumericalCircuit) (*DCResult, error) {
	adm := admittance.Build(nc)
	nbus := nc.NBus()

	slack := -1
	for i, t := range nc.Bus.Type {
		if t == numcircuit.BusSlack {
			slack = i
			break
		}
	}
	if slack < 0 {
		return nil, verr.New(verr.ErrNoSlackInIsland, "", "island has no slack bus")
	}

	nonSlack := make([]int, 0, nbus-1)
	busToRow := make(map[int]int, nbus-1)
	for i := 0; i < nbus; i++ {
		if i == slack {
			continue
		}
		busToRow[i] = len(nonSlack)
		nonSlack = append(nonSlack, i)
	}

	bTrip := sparsemat.NewTriplet(len(nonSlack), len(nonSlack))
	bFull := adm.YbusImag
	for col := 0; col < bFull.Cols; col++ {
		rc, okc := busToRow[col]
		if !okc {
			continue
		}
		for k := bFull.Indptr[col]; k < bFull.Indptr[col+1]; k++ {
			row := bFull.Indices[k]
			rr, okr := busToRow[row]
			if !okr {
				continue
			}
			bTrip.Add(rr, rc, -bFull.Data[k])
		}
	}

	pinj := make([]float64, len(nonSlack))
	for i, g := range nc.Generator.Bus {
		if !nc.Generator.Active[i] {
			continue
		}
		if r, ok := busToRow[g]; ok {
			pinj[r] += nc.Generator.P[i] / SBase
		}
	}
	for i, b := range nc.Load.Bus {
		if !nc.Load.Active[i] {
			continue
		}
		if r, ok := busToRow[b]; ok {
			pinj[r] -= nc.Load.P[i] / SBase
		}
	}

	b := bTrip.ToCSC()
	sol, err := sparsemat.SolveCSC(b, pinj)
	if err != nil {
		return nil, verr.New(verr.ErrSingularJacobian, "", "DC B-matrix factorization failed: "+err.Error())
	}

	theta := make([]float64, nbus)
	for bus, row := range busToRow {
		theta[bus] = sol[row]
	}
	theta[slack] = 0

	pf := make([]float64, nc.NBranch())
	for k := 0; k < nc.NBranch(); k++ {
		x := nc.Branch.X[k]
		pf[k] = (theta[nc.Branch.F[k]] - theta[nc.Branch.T[k]]) / x * SBase
	}

	return &DCResult{Theta: theta, Pf: pf}, nil
}
