package powerflow

import (
	"math/cmplx"

	"github.com/veragrid/veragridengine/pkg/admittance"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/sparsemat"
	"github.com/veragrid/veragridengine/pkg/verr"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// SnapshotResult is the outcome of one positive-sequence power-flow
// solve: convergence flag, iteration count, final mismatch, bus
// voltages, branch flows and losses, and generator reactive outputs.
type SnapshotResult struct {
	Converged  bool
	Iterations int
	Mismatch   float64

	V   []complex128
	Sf  []complex128
	St  []complex128
	Loss []complex128

	Qgen []float64

	Logger *vlog.Logger
}

// SolveNR runs the positive-sequence Newton-Raphson solver described in
// spec.md §4.6: analytical Jacobian, sparse LU, backtracking, and
// reactive-power-limit switching on PV buses evaluated at iteration
// boundaries.
func SolveNR(nc *numcircuit.NumericalCircuit, opts Options) (*SnapshotResult, error) {
	logger := vlog.New()
	adm := admittance.Build(nc)
	s := newState(nc, adm)

	if len(s.nonSlack) == len(nc.Bus.UID) {
		// no slack bus at all in this island
		return nil, verr.New(verr.ErrNoSlackInIsland, "", "island has no slack bus")
	}

	var (
		converged  bool
		iterations int
		lastNorm   float64
		singular   bool
	)

	for controlIter := 0; controlIter < max(1, opts.MaxControlIterations); controlIter++ {
		converged, iterations, lastNorm, singular = iterateNR(s, opts, logger)
		if singular {
			return nil, verr.New(verr.ErrSingularJacobian, "", "jacobian factorization failed")
		}

		if !opts.ControlQLimits {
			break
		}
		if !applyQLimits(s, nc, logger) {
			break // classification stable
		}
	}

	result := &SnapshotResult{
		Converged:  converged,
		Iterations: iterations,
		Mismatch:   lastNorm,
		V:          s.V,
		Logger:     logger,
	}
	result.Sf, result.St, result.Loss = branchFlows(nc, adm, s.V)
	result.Qgen = generatorQ(nc, s)

	if !converged {
		logger.AddError("", "power flow did not converge")
		return result, verr.ErrDidNotConverge
	}
	return result, nil
}

// iterateNR runs the Newton-Raphson loop to convergence or MaxIter,
// applying backtracking when a step increases the mismatch norm beyond
// (1+BacktrackingParameter) times the current value.
func iterateNR(s *state, opts Options, logger *vlog.Logger) (converged bool, iterations int, norm float64, singular bool) {
	f := s.mismatch()
	norm = infNorm(f)

	for iter := 0; iter < opts.MaxIter; iter++ {
		if norm < opts.Tol {
			return true, iter, norm, false
		}

		jac := s.buildJacobian()
		neg := make([]float64, len(f))
		for i, v := range f {
			neg[i] = -v
		}

		dx, err := sparsemat.SolveCSC(jac, neg)
		if err != nil {
			logger.AddError("", "jacobian factorization failed: "+err.Error())
			return false, iter, norm, true
		}

		prevV := s.snapshotV()
		step := 1.0
		for depth := 0; depth <= opts.MaxBacktrackDepth; depth++ {
			scaled := make([]float64, len(dx))
			for i, v := range dx {
				scaled[i] = v * step
			}
			s.restoreV(prevV)
			s.applyUpdate(scaled)

			newF := s.mismatch()
			newNorm := infNorm(newF)
			if newNorm <= norm*(1+opts.BacktrackingParameter) || depth == opts.MaxBacktrackDepth {
				f, norm = newF, newNorm
				break
			}
			step /= 2
		}
	}
	return norm < opts.Tol, opts.MaxIter, norm, false
}

// applyQLimits implements the PV->PQ reclassification control: if a PV
// bus's reactive output exceeds its limit, it is converted to PQ at the
// limit for the remainder of the solve. Returns true if any bus changed
// classification (caller re-solves).
func applyQLimits(s *state, nc *numcircuit.NumericalCircuit, logger *vlog.Logger) bool {
	genAtBus := map[int][]int{}
	for i, b := range nc.Generator.Bus {
		if nc.Generator.Active[i] {
			genAtBus[b] = append(genAtBus[b], i)
		}
	}

	changed := false
	for bus, gens := range genAtBus {
		if s.busType[bus] != numcircuit.BusPV {
			continue
		}
		_, qCalc := s.PQAt(bus)
		qCalcMW := qCalc * SBase

		var qmin, qmax float64
		for _, gi := range gens {
			qmin += nc.Generator.Qmin[gi]
			qmax += nc.Generator.Qmax[gi]
		}

		if qCalcMW > qmax {
			s.busType[bus] = numcircuit.BusPQ
			s.Qspec[bus] = qmax / SBase
			s.vIdx[bus] = len(s.pq)
			s.pq = append(s.pq, bus)
			logger.AddWarning(nc.Bus.UID[bus], "Q limit (max) hit, converted to PQ")
			changed = true
		} else if qCalcMW < qmin {
			s.busType[bus] = numcircuit.BusPQ
			s.Qspec[bus] = qmin / SBase
			s.vIdx[bus] = len(s.pq)
			s.pq = append(s.pq, bus)
			logger.AddWarning(nc.Bus.UID[bus], "Q limit (min) hit, converted to PQ")
			changed = true
		}
	}
	return changed
}

func generatorQ(nc *numcircuit.NumericalCircuit, s *state) []float64 {
	q := make([]float64, len(nc.Generator.UID))
	busTotalQ := map[int]float64{}
	for i, b := range nc.Generator.Bus {
		if !nc.Generator.Active[i] {
			continue
		}
		if _, ok := busTotalQ[b]; !ok {
			_, qc := s.PQAt(b)
			busTotalQ[b] = qc * SBase
		}
	}
	// split evenly across generators sharing a bus (no finer dispatch
	// signal is available at the snapshot level)
	count := map[int]int{}
	for _, b := range nc.Generator.Bus {
		count[b]++
	}
	for i, b := range nc.Generator.Bus {
		if nc.Generator.Active[i] && count[b] > 0 {
			q[i] = busTotalQ[b] / float64(count[b])
		}
	}
	return q
}

// branchFlows computes Sf = Vf * conj(Yf*V), St = Vt * conj(Yt*V), and
// the branch losses Sf+St from the assembled admittance and the solved
// voltage vector.
func branchFlows(nc *numcircuit.NumericalCircuit, adm *admittance.Admittance, v []complex128) (sf, st, loss []complex128) {
	nbr := nc.NBranch()
	sf = make([]complex128, nbr)
	st = make([]complex128, nbr)
	loss = make([]complex128, nbr)

	ifCurrents := mulComplexCSC(adm.YfReal, adm.YfImag, v)
	itCurrents := mulComplexCSC(adm.YtReal, adm.YtImag, v)

	for k := 0; k < nbr; k++ {
		vf := v[nc.Branch.F[k]]
		vt := v[nc.Branch.T[k]]
		sf[k] = vf * cmplx.Conj(ifCurrents[k])
		st[k] = vt * cmplx.Conj(itCurrents[k])
		loss[k] = sf[k] + st[k]
	}
	return
}

func mulComplexCSC(real, imag *sparsemat.CSC, v []complex128) []complex128 {
	out := make([]complex128, real.Rows)
	for c := 0; c < real.Cols; c++ {
		vv := v[c]
		if vv == 0 {
			continue
		}
		for k := real.Indptr[c]; k < real.Indptr[c+1]; k++ {
			out[real.Indices[k]] += complex(real.Data[k], imag.Data[k]) * vv
		}
	}
	return out
}
