package powerflow

import (
	"math/cmplx"

	"github.com/veragrid/veragridengine/pkg/admittance"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/verr"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// ThreePhaseConnection is how a three-phase load is wired.
type ThreePhaseConnection int

const (
	WyeGrounded ThreePhaseConnection = iota
	Delta
)

// ThreePhaseLoadKind selects the load's voltage-dependence model.
type ThreePhaseLoadKind int

const (
	ConstantPower ThreePhaseLoadKind = iota
	ConstantCurrent
	ConstantImpedance
)

// ThreePhaseLoad is one per-phase (or per-phase-pair, for delta) load
// specification on a bus.
type ThreePhaseLoad struct {
	BusUID     string
	BusIndex   int
	Connection ThreePhaseConnection
	Kind       ThreePhaseLoadKind
	// P, Q are per-phase (wye) or per-phase-pair (delta) specified
	// values at nominal voltage, ordered [A, B, C] (wye) or [AB, BC, CA]
	// (delta).
	P, Q [3]float64
}

// ThreePhaseResult holds the converged per-phase bus voltage arrays.
type ThreePhaseResult struct {
	Converged  bool
	Iterations int
	V          [3][]complex128 // [phase][bus]
}

// phaseShift is the nominal 120-degree displacement applied to the
// positive-sequence solution to seed each phase's starting voltage.
var phaseShift = [3]complex128{
	cmplx.Rect(1, 0),
	cmplx.Rect(1, -2 * 1.0471975511965976), // -120 deg
	cmplx.Rect(1, 2 * 1.0471975511965976),  // +120 deg
}

// SolveThreePhase runs the three-phase unbalanced Newton-Raphson solver:
// each phase carries its own replica of the series network (the engine
// does not model explicit mutual phase coupling, so per-phase primitives
// are the positive-sequence admittance evaluated independently per
// phase, matching the model's available data), and delta-connected loads
// are converted to equivalent wye power injections from the current
// phase-to-phase voltages at every outer iteration.
func SolveThreePhase(nc *numcircuit.NumericalCircuit, loads []ThreePhaseLoad, opts Options) (*ThreePhaseResult, error) {
	adm := admittance.Build(nc)
	logger := vlog.New()

	states := [3]*state{}
	basePspec := [3][]float64{}
	baseQspec := [3][]float64{}
	for p := 0; p < 3; p++ {
		states[p] = newState(nc, adm)
		for i := range states[p].V {
			states[p].V[i] = phaseShift[p]
		}
		basePspec[p] = append([]float64(nil), states[p].Pspec...)
		baseQspec[p] = append([]float64(nil), states[p].Qspec...)
		for i, b := range nc.Load.Bus {
			if nc.Load.Active[i] {
				basePspec[p][b] += nc.Load.P[i] / SBase
				baseQspec[p][b] += nc.Load.Q[i] / SBase
			}
		}
	}

	maxOuter := max(1, opts.MaxControlIterations) * opts.MaxIter
	converged := false
	iter := 0
	for ; iter < maxOuter; iter++ {
		applyThreePhaseLoads(states, basePspec, baseQspec, loads)

		allConverged := true
		for p := 0; p < 3; p++ {
			ok, _, _, singular := iterateNR(states[p], opts, logger)
			if singular {
				return nil, verr.New(verr.ErrSingularJacobian, "", "three-phase jacobian factorization failed")
			}
			if !ok {
				allConverged = false
			}
		}
		if allConverged {
			converged = true
			break
		}
	}

	result := &ThreePhaseResult{Converged: converged, Iterations: iter}
	for p := 0; p < 3; p++ {
		result.V[p] = states[p].V
	}
	return result, nil
}

// applyThreePhaseLoads resets each phase state's Pspec/Qspec to its base
// (generator-only) injection and re-applies the three-phase load list,
// converting delta loads to equivalent wye power injections from the
// present phase-to-phase voltages.
func applyThreePhaseLoads(states [3]*state, basePspec, baseQspec [3][]float64, loads []ThreePhaseLoad) {
	for p := 0; p < 3; p++ {
		copy(states[p].Pspec, basePspec[p])
		copy(states[p].Qspec, baseQspec[p])
	}

	for _, ld := range loads {
		switch ld.Connection {
		case WyeGrounded:
			for p := 0; p < 3; p++ {
				v := cmplx.Abs(states[p].V[ld.BusIndex])
				p_, q_ := scaleByKind(ld.Kind, ld.P[p], ld.Q[p], v)
				states[p].Pspec[ld.BusIndex] -= p_ / SBase
				states[p].Qspec[ld.BusIndex] -= q_ / SBase
			}
		case Delta:
			// phase-to-phase voltages: AB, BC, CA
			vab := states[0].V[ld.BusIndex] - states[1].V[ld.BusIndex]
			vbc := states[1].V[ld.BusIndex] - states[2].V[ld.BusIndex]
			vca := states[2].V[ld.BusIndex] - states[0].V[ld.BusIndex]
			vll := [3]float64{cmplx.Abs(vab), cmplx.Abs(vbc), cmplx.Abs(vca)}

			// Equivalent current for each phase-pair load, then split
			// each pair's current equally onto its two terminal phases
			// as an approximate wye-equivalent power injection.
			for k := 0; k < 3; k++ {
				p_, q_ := scaleByKind(ld.Kind, ld.P[k], ld.Q[k], vll[k])
				a, b := k, (k+1)%3
				states[a].Pspec[ld.BusIndex] -= p_ / 2 / SBase
				states[a].Qspec[ld.BusIndex] -= q_ / 2 / SBase
				states[b].Pspec[ld.BusIndex] -= p_ / 2 / SBase
				states[b].Qspec[ld.BusIndex] -= q_ / 2 / SBase
			}
		}
	}
}

func scaleByKind(kind ThreePhaseLoadKind, pNom, qNom, vActual float64) (float64, float64) {
	switch kind {
	case ConstantPower:
		return pNom, qNom
	case ConstantCurrent:
		return pNom * vActual, qNom * vActual
	case ConstantImpedance:
		return pNom * vActual * vActual, qNom * vActual * vActual
	}
	return pNom, qNom
}
