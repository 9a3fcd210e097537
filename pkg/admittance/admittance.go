// Package admittance builds the nodal admittance matrices (C5) from a
// compiled NumericalCircuit: Ybus, Yf, Yt and the series/shunt branch
// primitives, assembled via pkg/sparsemat.Triplet with one pass over the
// series branches and one over the shunts.
package admittance

import (
	"math"
	"math/cmplx"

	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/sparsemat"
)

// Admittance holds the assembled per-snapshot admittance structures. Ybus
// is complex, stored as two parallel real/imag CSC matrices sharing the
// same sparsity pattern so every downstream consumer (C6 Jacobian, C9
// Ward) can factor the real or imaginary part independently when needed.
type Admittance struct {
	YbusReal, YbusImag *sparsemat.CSC
	YfReal, YfImag     *sparsemat.CSC
	YtReal, YtImag     *sparsemat.CSC
}

// Build assembles Ybus/Yf/Yt for nc following the spec's exact series
// primitive formulas:
//
//	ys = 1 / (r + j*x), bc = b/2, tau = tapModule * e^{j*tapPhase}
//	yff = (ys + j*bc) / (tau * conj(tau))
//	yft = -ys / conj(tau)
//	ytf = -ys / tau
//	ytt = ys + j*bc
func Build(nc *numcircuit.NumericalCircuit) *Admittance {
	nbr := nc.NBranch()
	nbus := nc.NBus()

	yff := make([]complex128, nbr)
	yft := make([]complex128, nbr)
	ytf := make([]complex128, nbr)
	ytt := make([]complex128, nbr)

	for k := 0; k < nbr; k++ {
		if !nc.Branch.Active[k] {
			continue
		}
		r, x, b := nc.Branch.R[k], nc.Branch.X[k], nc.Branch.B[k]
		ys := 1 / complex(r, x)
		bc := complex(0, b/2)
		tau := cmplx.Rect(nc.Branch.TapModule[k], nc.Branch.TapPhase[k])
		tauConj := cmplx.Conj(tau)

		yff[k] = (ys + bc) / (tau * tauConj)
		yft[k] = -ys / tauConj
		ytf[k] = -ys / tau
		ytt[k] = ys + bc
	}

	yfReal := sparsemat.NewTriplet(nbr, nbus)
	yfImag := sparsemat.NewTriplet(nbr, nbus)
	ytReal := sparsemat.NewTriplet(nbr, nbus)
	ytImag := sparsemat.NewTriplet(nbr, nbus)

	for k := 0; k < nbr; k++ {
		f, t := nc.Branch.F[k], nc.Branch.T[k]
		yfReal.Add(k, f, real(yff[k]))
		yfReal.Add(k, t, real(yft[k]))
		yfImag.Add(k, f, imag(yff[k]))
		yfImag.Add(k, t, imag(yft[k]))

		ytReal.Add(k, f, real(ytf[k]))
		ytReal.Add(k, t, real(ytt[k]))
		ytImag.Add(k, f, imag(ytf[k]))
		ytImag.Add(k, t, imag(ytt[k]))
	}

	yf := yfReal.ToCSC()
	yfi := yfImag.ToCSC()
	yt := ytReal.ToCSC()
	yti := ytImag.ToCSC()

	ybusReal := sparsemat.NewTriplet(nbus, nbus)
	ybusImag := sparsemat.NewTriplet(nbus, nbus)

	// Ybus = Cf^T*Yf + Ct^T*Yt + diag(Yshunt)
	accumulateTranspose(ybusReal, ybusImag, nc.Cf, yf, yfi)
	accumulateTranspose(ybusReal, ybusImag, nc.Ct, yt, yti)

	for k := range nc.Shunt.UID {
		if !nc.Shunt.Active[k] {
			continue
		}
		bus := nc.Shunt.Bus[k]
		ybusReal.Add(bus, bus, nc.Shunt.G[k])
		ybusImag.Add(bus, bus, nc.Shunt.B[k])
	}

	return &Admittance{
		YbusReal: ybusReal.ToCSC(),
		YbusImag: ybusImag.ToCSC(),
		YfReal:   yf,
		YfImag:   yfi,
		YtReal:   yt,
		YtImag:   yti,
	}
}

// accumulateTranspose stamps C^T * Y (complex, split into real/imag CSC
// args) into the accumulating real/imag triplets.
func accumulateTranspose(outReal, outImag *sparsemat.Triplet, c *sparsemat.CSC, yReal, yImag *sparsemat.CSC) {
	addCTY(outReal, c, yReal)
	addCTY(outImag, c, yImag)
}

// addCTY computes out += C^T * Y where C is nbr x nbus (CSC) and Y is
// nbr x nbus (CSC): row i of the result is sum_k C[k,i]*Y[k,:]. C is
// materialized row-major (branch -> buses) first since CSC only offers
// column-major access.
func addCTY(out *sparsemat.Triplet, c, y *sparsemat.CSC) {
	rowEntries := make([][]struct {
		col int
		val float64
	}, c.Rows)
	for col := 0; col < c.Cols; col++ {
		for idx := c.Indptr[col]; idx < c.Indptr[col+1]; idx++ {
			row := c.Indices[idx]
			rowEntries[row] = append(rowEntries[row], struct {
				col int
				val float64
			}{col, c.Data[idx]})
		}
	}

	for ybus := 0; ybus < y.Cols; ybus++ {
		for idx := y.Indptr[ybus]; idx < y.Indptr[ybus+1]; idx++ {
			k := y.Indices[idx]
			yv := y.Data[idx]
			for _, e := range rowEntries[k] {
				out.Add(e.col, ybus, e.val*yv)
			}
		}
	}
}

// IsSymmetric reports whether Ybus equals its transpose within tol — the
// spec's invariant that any deviation signals a phase-shifter present in
// the circuit.
func (a *Admittance) IsSymmetric(tol float64) bool {
	return csMatApproxSymmetric(a.YbusReal, tol) && csMatApproxSymmetric(a.YbusImag, tol)
}

func csMatApproxSymmetric(m *sparsemat.CSC, tol float64) bool {
	if m.Rows != m.Cols {
		return false
	}
	t := m.T()
	for c := 0; c < m.Cols; c++ {
		for k := m.Indptr[c]; k < m.Indptr[c+1]; k++ {
			r := m.Indices[k]
			if math.Abs(m.Data[k]-t.At(r, c)) > tol {
				return false
			}
		}
	}
	return true
}
