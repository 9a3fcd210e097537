package rms

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Stability classifies the operating point's small-signal behavior.
type Stability int

const (
	AsymptoticallyStable Stability = iota
	MarginallyStable
	Unstable
)

func (s Stability) String() string {
	switch s {
	case AsymptoticallyStable:
		return "asymptotically stable"
	case MarginallyStable:
		return "marginally stable"
	case Unstable:
		return "unstable"
	default:
		return "unknown"
	}
}

// Mode is one eigenvalue of the state matrix and its associated modal
// quantities.
type Mode struct {
	Eigenvalue       complex128
	DampingRatio     float64 // zeta = -sigma / |lambda|
	FrequencyHz      float64 // omega / (2*pi), zero for a purely real mode
	ParticipationFactors []float64 // one per state variable, column-normalized
}

// SmallSignalResult is the eigenanalysis of the state matrix
// A = J11 - J12*J22^-1*J21 at one operating point.
type SmallSignalResult struct {
	Modes     []Mode
	Stability Stability
}

// stabilityEpsilon bounds how close a real part can sit to zero before a
// mode is no longer considered cleanly damped or cleanly unstable.
const stabilityEpsilon = 1e-8

// SmallSignal linearizes the system at (x, params) — a point assumed to
// already satisfy g(x,y)=0 — and returns its eigenmodes and overall
// stability classification. J22 must be invertible; a singular algebraic
// Jacobian means the operating point has no well-defined reduced state
// matrix and SmallSignal returns an error.
func (s *System) SmallSignal(x []float64, params []float64) (*SmallSignalResult, error) {
	n, m := s.NState, s.NAlg

	j11 := s.evalJacobian(s.j11, x, params)
	a := denseFromJac(j11, n, n)

	if m > 0 {
		j12 := s.evalJacobian(s.j12, x, params)
		j21 := s.evalJacobian(s.j21, x, params)
		j22 := s.evalJacobian(s.j22, x, params)

		j22Dense := mat.NewDense(m, m, nil)
		fillDense(j22Dense, j22, m, m)

		var j22Inv mat.Dense
		if err := j22Inv.Inverse(j22Dense); err != nil {
			return nil, errDimension
		}

		j12Dense := mat.NewDense(n, m, nil)
		fillDense(j12Dense, j12, n, m)
		j21Dense := mat.NewDense(m, n, nil)
		fillDense(j21Dense, j21, m, n)

		var correction mat.Dense
		correction.Mul(j12Dense, &j22Inv)
		var correction2 mat.Dense
		correction2.Mul(&correction, j21Dense)

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				a[i][j] -= correction2.At(i, j)
			}
		}
	}

	aDense := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aDense.Set(i, j, a[i][j])
		}
	}

	var eig mat.Eigen
	if ok := eig.Factorize(aDense, mat.EigenBoth); !ok {
		return nil, errDimension
	}
	values := eig.Values(nil)
	var right, left mat.CDense
	eig.VectorsTo(&right)
	eig.LeftVectorsTo(&left)

	result := &SmallSignalResult{Modes: make([]Mode, n), Stability: AsymptoticallyStable}
	worstSigma := math.Inf(-1)

	for i, lambda := range values {
		sigma := real(lambda)
		omega := imag(lambda)
		mag := cmplx.Abs(lambda)

		mode := Mode{Eigenvalue: lambda}
		if mag > 0 {
			mode.DampingRatio = -sigma / mag
		}
		mode.FrequencyHz = omega / (2 * math.Pi)
		mode.ParticipationFactors = participationFactors(&right, &left, i, n)

		result.Modes[i] = mode
		if sigma > worstSigma {
			worstSigma = sigma
		}
	}

	switch {
	case worstSigma < -stabilityEpsilon:
		result.Stability = AsymptoticallyStable
	case worstSigma > stabilityEpsilon:
		result.Stability = Unstable
	default:
		result.Stability = MarginallyStable
	}

	return result, nil
}

// participationFactors computes p_ij = |V_ji * W_ij| for mode i — right
// eigenvector entry j times the matching left eigenvector entry — and
// normalizes so the largest entry is 1.
func participationFactors(right, left *mat.CDense, modeIdx, n int) []float64 {
	out := make([]float64, n)
	var maxVal float64
	for j := 0; j < n; j++ {
		v := cmplx.Abs(right.At(j, modeIdx) * left.At(j, modeIdx))
		out[j] = v
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal > 0 {
		for j := range out {
			out[j] /= maxVal
		}
	}
	return out
}

func denseFromJac(j jacobianCSC, rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	for col := 0; col < cols; col++ {
		for k := j.Indptr[col]; k < j.Indptr[col+1]; k++ {
			out[j.Indices[k]][col] = j.Data[k]
		}
	}
	return out
}

func fillDense(d *mat.Dense, j jacobianCSC, rows, cols int) {
	for col := 0; col < cols; col++ {
		for k := j.Indptr[col]; k < j.Indptr[col+1]; k++ {
			d.Set(j.Indices[k], col, j.Data[k])
		}
	}
}
