package rms

import (
	"fmt"
	"sort"

	"github.com/veragrid/veragridengine/pkg/expr"
	"github.com/veragrid/veragridengine/pkg/sparsemat"
	"github.com/veragrid/veragridengine/pkg/verr"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// Method selects the time-discretization scheme.
type Method int

const (
	ImplicitEuler Method = iota
	Trapezoidal
)

// Event is a scheduled parameter discontinuity: at TimeSec the parameter
// identified by ParamUID is set to Value for the remainder of the run (or
// until a later event on the same parameter fires).
type Event struct {
	TimeSec  float64
	ParamUID int
	Value    float64
}

// Options configures time-domain integration.
type Options struct {
	Method       Method
	StepSec      float64
	StopSec      float64
	NewtonTol    float64
	NewtonMaxIter int
}

func (o Options) withDefaults() Options {
	if o.NewtonTol == 0 {
		o.NewtonTol = 1e-8
	}
	if o.NewtonMaxIter == 0 {
		o.NewtonMaxIter = 30
	}
	return o
}

// Snapshot is one recorded time point of a simulation run.
type Snapshot struct {
	TimeSec float64
	X       []float64 // state vars then algebraic vars, System's flattened order
}

// Result holds every recorded snapshot of a completed (or aborted) run.
type Result struct {
	Snapshots []Snapshot
	Converged bool
}

// Run integrates the system from x0 (length NState+NAlg) over [0, StopSec]
// in fixed steps of StepSec, applying events in time order and
// re-factorizing the packed Jacobian whenever one fires. x0 must already
// satisfy the algebraic equations at t=0 (a consistent initial condition);
// Run does not perform its own initialization solve.
func (s *System) Run(x0 []float64, params map[int]float64, events []Event, opts Options, logger *vlog.Logger) (*Result, error) {
	opts = opts.withDefaults()
	if len(x0) != s.NState+s.NAlg {
		return nil, errDimension
	}

	sortedEvents := append([]Event(nil), events...)
	sort.Slice(sortedEvents, func(i, j int) bool { return sortedEvents[i].TimeSec < sortedEvents[j].TimeSec })

	paramVec := s.ParamVector(params)

	x := append([]float64(nil), x0...)
	result := &Result{Snapshots: []Snapshot{{TimeSec: 0, X: append([]float64(nil), x...)}}, Converged: true}

	nSteps := int(opts.StopSec/opts.StepSec + 0.5)
	tPrev := 0.0
	for step := 1; step <= nSteps; step++ {
		tCur := float64(step) * opts.StepSec

		applyEvents(paramVec, s.paramIdx, sortedEvents, tPrev, tCur)

		xNext, ok, err := s.newtonStep(x, paramVec, opts)
		if err != nil {
			return result, err
		}
		if !ok {
			result.Converged = false
			logger.AddWarning("", fmt.Sprintf("time integration did not converge at t=%.6g", tCur))
		}

		x = xNext
		result.Snapshots = append(result.Snapshots, Snapshot{TimeSec: tCur, X: append([]float64(nil), x...)})
		tPrev = tCur
	}

	return result, nil
}

// applyEvents mutates paramVec in place for every event with
// TimeSec in (tPrev, tCur].
func applyEvents(paramVec []float64, paramIdx map[int]int, events []Event, tPrev, tCur float64) {
	for _, ev := range events {
		if ev.TimeSec > tPrev && ev.TimeSec <= tCur {
			if slot, ok := paramIdx[ev.ParamUID]; ok {
				paramVec[slot] = ev.Value
			}
		}
	}
}

// newtonStep advances one fixed time step from x (at t_prev) to x_next
// (at t_prev+h) via Newton iteration on the packed DAE residual, using
// either implicit Euler or the trapezoidal rule per opts.Method.
func (s *System) newtonStep(x, params []float64, opts Options) ([]float64, bool, error) {
	h := opts.StepSec
	n := s.NState
	m := s.NAlg

	xState0 := x[:n]
	f0 := s.evalF(x, params) // only used by trapezoidal

	xNext := append([]float64(nil), x...)

	for iter := 0; iter < opts.NewtonMaxIter; iter++ {
		fCur := s.evalF(xNext, params)
		gCur := s.evalG(xNext, params)

		residual := make([]float64, n+m)
		switch opts.Method {
		case Trapezoidal:
			for i := 0; i < n; i++ {
				residual[i] = xNext[i] - xState0[i] - (h/2)*(f0[i]+fCur[i])
			}
		default: // ImplicitEuler
			for i := 0; i < n; i++ {
				residual[i] = xNext[i] - xState0[i] - h*fCur[i]
			}
		}
		copy(residual[n:], gCur)

		norm := infNorm(residual)
		if norm < opts.NewtonTol {
			return xNext, true, nil
		}

		jac := s.packedJacobian(xNext, params, h, opts.Method)
		delta, err := sparsemat.SolveCSC(jac, negate(residual))
		if err != nil {
			return nil, false, verr.New(verr.ErrSingularJacobian, "", "rms time-step jacobian factorization failed")
		}

		for i := range xNext {
			xNext[i] += delta[i]
		}
	}

	return xNext, false, nil
}

// packedJacobian assembles the 2x2 block CSC system
//
//	[ I - h*c*J11   -h*c*J12 ]
//	[     J21           J22  ]
//
// where c=1 for implicit Euler and c=1/2 for trapezoidal (the state block
// only; the algebraic block is always the plain g-Jacobian since g has no
// time-derivative term).
func (s *System) packedJacobian(xNext, params []float64, h float64, method Method) *sparsemat.CSC {
	n, m := s.NState, s.NAlg
	c := 1.0
	if method == Trapezoidal {
		c = 0.5
	}

	tr := sparsemat.NewTriplet(n+m, n+m)

	for i := 0; i < n; i++ {
		tr.Add(i, i, 1)
	}

	j11 := s.evalJacobian(s.j11, xNext, params)
	for col := 0; col < n; col++ {
		for k := j11.Indptr[col]; k < j11.Indptr[col+1]; k++ {
			row := j11.Indices[k]
			tr.Add(row, col, -h*c*j11.Data[k])
		}
	}

	j12 := s.evalJacobian(s.j12, xNext, params)
	for col := 0; col < m; col++ {
		for k := j12.Indptr[col]; k < j12.Indptr[col+1]; k++ {
			row := j12.Indices[k]
			tr.Add(row, n+col, -h*c*j12.Data[k])
		}
	}

	j21 := s.evalJacobian(s.j21, xNext, params)
	for col := 0; col < n; col++ {
		for k := j21.Indptr[col]; k < j21.Indptr[col+1]; k++ {
			row := j21.Indices[k]
			tr.Add(n+row, col, j21.Data[k])
		}
	}

	j22 := s.evalJacobian(s.j22, xNext, params)
	for col := 0; col < m; col++ {
		for k := j22.Indptr[col]; k < j22.Indptr[col+1]; k++ {
			row := j22.Indices[k]
			tr.Add(n+row, n+col, j22.Data[k])
		}
	}

	return tr.ToCSC()
}

// jacobianCSC is the dense-free nonzero-entry shape returned by
// evalJacobian: same layout as expr.JacobianTape (CSC, column-major).
type jacobianCSC struct {
	Indptr  []int
	Indices []int
	Data    []float64
}

func (s *System) evalJacobian(jt *expr.JacobianTape, xNext, params []float64) jacobianCSC {
	scratch := jt.NewScratch()
	data := make([]float64, jt.NNZ())
	jt.Eval(xNext, params, scratch, data)
	return jacobianCSC{Indptr: jt.Indptr, Indices: jt.Indices, Data: data}
}

func infNorm(v []float64) float64 {
	var m float64
	for _, x := range v {
		ax := x
		if ax < 0 {
			ax = -ax
		}
		if ax > m {
			m = ax
		}
	}
	return m
}

func negate(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}
