package powerflow

import (
	"math"
	"math/cmplx"

	"github.com/veragrid/veragridengine/pkg/sparsemat"
)

// mismatch computes F(x) = S_calc(V) - S_spec: P mismatches for every
// non-slack bus followed by Q mismatches for every PQ bus, matching the
// x ordering (theta_nonSlack, |V|_PQ).
func (s *state) mismatch() []float64 {
	f := make([]float64, len(s.nonSlack)+len(s.pq))
	for k, i := range s.nonSlack {
		p, _ := s.PQAt(i)
		f[k] = p - s.Pspec[i]
	}
	off := len(s.nonSlack)
	for k, i := range s.pq {
		_, q := s.PQAt(i)
		f[off+k] = q - s.Qspec[i]
	}
	return f
}

// infNorm returns the infinity norm of v.
func infNorm(v []float64) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

// buildJacobian assembles the analytical power-flow Jacobian in the
// standard polar-coordinate form (no finite differences):
//
//	dP_i/dtheta_i  = -Q_i - B_ii*|V_i|^2
//	dP_i/dtheta_j  = |V_i||V_j|(G_ij sin(tij) - B_ij cos(tij))   j != i
//	dP_i/d|V_i|    = P_i/|V_i| + G_ii*|V_i|
//	dP_i/d|V_j|    = |V_i|(G_ij cos(tij) + B_ij sin(tij))        j != i
//	dQ_i/dtheta_i  = P_i - G_ii*|V_i|^2
//	dQ_i/dtheta_j  = -|V_i||V_j|(G_ij cos(tij) + B_ij sin(tij))  j != i
//	dQ_i/d|V_i|    = Q_i/|V_i| - B_ii*|V_i|
//	dQ_i/d|V_j|    = |V_i|(G_ij sin(tij) - B_ij cos(tij))        j != i
func (s *state) buildJacobian() *sparsemat.CSC {
	n := len(s.nonSlack) + len(s.pq)
	tr := sparsemat.NewTriplet(n, n)
	off := len(s.nonSlack)

	for row, i := range s.nonSlack {
		vi := cmplx.Abs(s.V[i])
		thetai := cmplx.Phase(s.V[i])
		pi, qi := s.PQAt(i)
		js, g, b := s.neighbours(i)

		for k, j := range js {
			if j == i {
				dPdTheta := -qi - b[k]*vi*vi
				tr.Add(row, row, dPdTheta)
				if vidx, ok := s.vIdx[i]; ok {
					dPdV := pi/vi + g[k]*vi
					tr.Add(row, off+vidx, dPdV)
				}
				continue
			}
			vj := cmplx.Abs(s.V[j])
			tij := thetai - cmplx.Phase(s.V[j])
			c, sn := math.Cos(tij), math.Sin(tij)

			if jrow, ok := s.thetaIdx[j]; ok {
				dPdThetaJ := vi * vj * (g[k]*sn - b[k]*c)
				tr.Add(row, jrow, dPdThetaJ)
			}
			if vidx, ok := s.vIdx[j]; ok {
				dPdVj := vi * (g[k]*c + b[k]*sn)
				tr.Add(row, off+vidx, dPdVj)
			}
		}
	}

	for qrow, i := range s.pq {
		row := off + qrow
		vi := cmplx.Abs(s.V[i])
		thetai := cmplx.Phase(s.V[i])
		pi, qi := s.PQAt(i)
		js, g, b := s.neighbours(i)

		for k, j := range js {
			if j == i {
				dQdTheta := pi - g[k]*vi*vi
				if irow, ok := s.thetaIdx[i]; ok {
					tr.Add(row, irow, dQdTheta)
				}
				dQdV := qi/vi - b[k]*vi
				tr.Add(row, off+qrow, dQdV)
				continue
			}
			vj := cmplx.Abs(s.V[j])
			tij := thetai - cmplx.Phase(s.V[j])
			c, sn := math.Cos(tij), math.Sin(tij)

			if jrow, ok := s.thetaIdx[j]; ok {
				dQdThetaJ := -vi * vj * (g[k]*c + b[k]*sn)
				tr.Add(row, jrow, dQdThetaJ)
			}
			if vidx, ok := s.vIdx[j]; ok {
				dQdVj := vi * (g[k]*sn - b[k]*c)
				tr.Add(row, off+vidx, dQdVj)
			}
		}
	}

	return tr.ToCSC()
}

// applyUpdate applies a solved -dx step (dx being J*dx = -F's solution)
// to the voltage state: theta for nonSlack buses, |V| for PQ buses.
func (s *state) applyUpdate(dx []float64) {
	off := len(s.nonSlack)
	for k, i := range s.nonSlack {
		mag := cmplx.Abs(s.V[i])
		theta := cmplx.Phase(s.V[i]) + dx[k]
		s.V[i] = cmplx.Rect(mag, theta)
	}
	for k, i := range s.pq {
		theta := cmplx.Phase(s.V[i])
		mag := cmplx.Abs(s.V[i]) + dx[off+k]
		s.V[i] = cmplx.Rect(mag, theta)
	}
}

// snapshot returns a copy of V, used for backtracking rollback.
func (s *state) snapshotV() []complex128 { return append([]complex128(nil), s.V...) }
func (s *state) restoreV(v []complex128) { copy(s.V, v) }
