// Package reduction implements grid network reduction (C9): the Ward
// admittance-based equivalent and the PTDF-based equivalent, both
// operating in-place on a caller-owned MultiCircuit copy.
package reduction

import (
	"fmt"
	"math/cmplx"
	"sort"

	"github.com/veragrid/veragridengine/pkg/admittance"
	"github.com/veragrid/veragridengine/pkg/grid"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
	"github.com/veragrid/veragridengine/pkg/sparsemat"
	"github.com/veragrid/veragridengine/pkg/vlog"
)

// ReductionSets partitions an island's buses relative to a chosen
// external set: external (to delete), boundary (retained, directly
// connected to the external set), and interior (retained, untouched).
type ReductionSets struct {
	External        []int
	Boundary        []int
	Interior        []int
	BoundaryBranch  []int
}

// BuildReductionSets classifies every bus against externalIdx, walking
// each branch once: a branch with exactly one endpoint in the external
// set marks its other endpoint as boundary; a branch with both endpoints
// outside the external set marks both as interior (unless already
// claimed as boundary, which takes precedence).
func BuildReductionSets(nc *numcircuit.NumericalCircuit, externalIdx []int) ReductionSets {
	external := map[int]bool{}
	for _, i := range externalIdx {
		external[i] = true
	}
	boundary := map[int]bool{}
	interior := map[int]bool{}
	var boundaryBranches []int

	for k := 0; k < nc.NBranch(); k++ {
		if !nc.Branch.Active[k] {
			continue
		}
		f, t := nc.Branch.F[k], nc.Branch.T[k]
		switch {
		case external[f] && external[t]:
			// fully inside the external set, dropped with it
		case external[f] && !external[t]:
			boundary[t] = true
			boundaryBranches = append(boundaryBranches, k)
		case !external[f] && external[t]:
			boundary[f] = true
			boundaryBranches = append(boundaryBranches, k)
		default:
			interior[f] = true
			interior[t] = true
		}
	}

	// boundary classification takes precedence over interior.
	for b := range boundary {
		delete(interior, b)
	}

	return ReductionSets{
		External:       sortedKeys(external),
		Boundary:       sortedKeys(boundary),
		Interior:       sortedKeys(interior),
		BoundaryBranch: boundaryBranches,
	}
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// WardStandard performs the admittance-based Ward reduction on grid,
// using nc (already compiled at the snapshot voltage V0) to locate the
// external/boundary/interior partition and assemble the equivalent. grid
// is mutated in place: boundary shunts, series-reactance ties, and
// compensation loads are added, then every external bus (and its
// attached devices, cascading) is deleted.
//
// Singular Y_EE (an external set with no internal coupling at all, or a
// zero-impedance island) falls back to a Moore-Penrose pseudoinverse via
// gonum so the reduction still produces a usable, if approximate,
// equivalent instead of aborting.
func WardStandard(g *grid.MultiCircuit, nc *numcircuit.NumericalCircuit, externalIdx []int, v0 []complex128, logger *vlog.Logger) error {
	sets := BuildReductionSets(nc, externalIdx)
	if len(sets.External) == 0 {
		logger.AddInfo("", "nothing to reduce")
		return nil
	}
	if len(sets.Interior) == 0 && len(sets.Boundary) == 0 {
		logger.AddInfo("", "nothing to keep, reduction would produce a null grid")
		return nil
	}
	if len(sets.Boundary) == 0 {
		logger.AddInfo("", "external and retained sets are disjoint, cannot reduce")
		return nil
	}

	adm := admittance.Build(nc)

	yBE := adm.YbusReal.Slice(sets.Boundary, sets.External)
	yBEImag := adm.YbusImag.Slice(sets.Boundary, sets.External)
	yEB := adm.YbusReal.Slice(sets.External, sets.Boundary)
	yEBImag := adm.YbusImag.Slice(sets.External, sets.Boundary)
	yEE := adm.YbusReal.Slice(sets.External, sets.External)
	yEEImag := adm.YbusImag.Slice(sets.External, sets.External)

	ne := len(sets.External)
	nb := len(sets.Boundary)

	yeq, singular := solveYeq(yBE, yBEImag, yEB, yEBImag, yEE, yEEImag, ne, nb)
	if singular {
		logger.AddWarning("", "Y_EE singular, falling back to pseudoinverse for Ward reduction")
	}

	vB := make([]complex128, nb)
	for i, b := range sets.Boundary {
		vB[i] = v0[b]
	}
	vE := make([]complex128, ne)
	for i, e := range sets.External {
		vE[i] = v0[e]
	}

	ieq := computeIeq(yBE, yBEImag, yEB, yEBImag, yEE, yEEImag, vB, vE, ne, nb, singular)

	seq := make([]complex128, nb)
	for i := range seq {
		seq[i] = vB[i] * cmplx.Conj(ieq[i]) * complex(powerflowSBase, 0)
	}

	emitWardDevices(g, nc, sets.Boundary, yeq, seq)

	for _, e := range sets.External {
		g.DeleteBus(nc.Bus.UID[e])
	}
	return nil
}

// powerflowSBase mirrors powerflow.SBase (100 MVA); duplicated here
// rather than imported to keep pkg/reduction decoupled from pkg/powerflow,
// which itself does not depend on pkg/reduction.
const powerflowSBase = 100.0

// solveYeq computes the exact complex equivalent Yeq = YBE * YEE^-1 * YEB
// via a single LU factorization of the complex Y_EE = Re(Y_EE)+i*Im(Y_EE),
// column by column: for each column of YEB it solves YEE * x = column,
// then multiplies by YBE. Falls back to a gonum pseudoinverse (real part
// only, approximate) if factorization reports a singular matrix.
func solveYeq(yBE, yBEImag, yEB, yEBImag, yEE, yEEImag *sparsemat.CSC, ne, nb int) (yeq [][]complex128, singular bool) {
	factored, err := sparsemat.FactorizeComplex(yEE, yEEImag, ne)
	if err != nil {
		return pseudoinverseYeq(yBE, yBEImag, yEB, yEE, ne, nb), true
	}
	defer factored.Destroy()

	yBEDense := complexDenseFromCSC(yBE, yBEImag, nb, ne)

	yeq = make([][]complex128, nb)
	for i := range yeq {
		yeq[i] = make([]complex128, nb)
	}

	for c := 0; c < nb; c++ {
		colReal := make([]float64, ne)
		for k := yEB.Indptr[c]; k < yEB.Indptr[c+1]; k++ {
			colReal[yEB.Indices[k]] = yEB.Data[k]
		}
		colImag := make([]float64, ne)
		for k := yEBImag.Indptr[c]; k < yEBImag.Indptr[c+1]; k++ {
			colImag[yEBImag.Indices[k]] = yEBImag.Data[k]
		}

		xReal, xImag, err := factored.SolveRHS(colReal, colImag)
		if err != nil {
			return pseudoinverseYeq(yBE, yBEImag, yEB, yEE, ne, nb), true
		}
		x := make([]complex128, ne)
		for i := range x {
			x[i] = complex(xReal[i], xImag[i])
		}
		yCol := complexMatVec(yBEDense, x)
		for r := 0; r < nb; r++ {
			yeq[r][c] = yCol[r]
		}
	}
	return yeq, false
}

// computeIeq evaluates Ieq = -YBE * YEE^-1 * (YEB*VB + YEE*VE) with a
// single complex solve, reusing the same factorization shape as solveYeq.
// Returns zero when the singular fallback already logged a warning (a
// degenerate external set has no well-defined equivalent current source).
func computeIeq(yBE, yBEImag, yEB, yEBImag, yEE, yEEImag *sparsemat.CSC, vB, vE []complex128, ne, nb int, singular bool) []complex128 {
	out := make([]complex128, nb)
	if singular {
		return out
	}

	yEBDense := complexDenseFromCSC(yEB, yEBImag, ne, nb)
	yEEDense := complexDenseFromCSC(yEE, yEEImag, ne, ne)
	yBEDense := complexDenseFromCSC(yBE, yBEImag, nb, ne)

	rhs := addComplexVec(complexMatVec(yEBDense, vB), complexMatVec(yEEDense, vE))

	factored, err := sparsemat.FactorizeComplex(yEE, yEEImag, ne)
	if err != nil {
		return out
	}
	defer factored.Destroy()

	rhsReal := make([]float64, ne)
	rhsImag := make([]float64, ne)
	for i, v := range rhs {
		rhsReal[i], rhsImag[i] = real(v), imag(v)
	}
	xReal, xImag, err := factored.SolveRHS(rhsReal, rhsImag)
	if err != nil {
		return out
	}
	x := make([]complex128, ne)
	for i := range x {
		x[i] = complex(xReal[i], xImag[i])
	}

	y := complexMatVec(yBEDense, x)
	for i := range out {
		out[i] = -y[i]
	}
	return out
}

// complexDenseFromCSC assembles a dense complex matrix from paired
// real/imaginary CSC slices that need not share a sparsity pattern.
func complexDenseFromCSC(re, im *sparsemat.CSC, rows, cols int) [][]complex128 {
	out := make([][]complex128, rows)
	for i := range out {
		out[i] = make([]complex128, cols)
	}
	for c := 0; c < re.Cols; c++ {
		for k := re.Indptr[c]; k < re.Indptr[c+1]; k++ {
			out[re.Indices[k]][c] += complex(re.Data[k], 0)
		}
	}
	for c := 0; c < im.Cols; c++ {
		for k := im.Indptr[c]; k < im.Indptr[c+1]; k++ {
			out[im.Indices[k]][c] += complex(0, im.Data[k])
		}
	}
	return out
}

func complexMatVec(m [][]complex128, x []complex128) []complex128 {
	out := make([]complex128, len(m))
	for i := range m {
		var sum complex128
		for j := range x {
			sum += m[i][j] * x[j]
		}
		out[i] = sum
	}
	return out
}

func addComplexVec(a, b []complex128) []complex128 {
	out := make([]complex128, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func emitWardDevices(g *grid.MultiCircuit, nc *numcircuit.NumericalCircuit, boundary []int, yeq [][]complex128, seq []complex128) {
	nb := len(boundary)
	for i := 0; i < nb; i++ {
		busUID := nc.Bus.UID[boundary[i]]

		var rowSum complex128
		for j := 0; j < nb; j++ {
			if j == i {
				continue
			}
			rowSum += yeq[i][j]
		}
		ysh := yeq[i][i] - rowSum
		shunt := &grid.Shunt{
			BaseInjection: grid.BaseInjection{UID: fmt.Sprintf("ward-shunt-%s", busUID), Name: "Ward equivalent shunt", Bus: busUID, Active: true},
			G:             real(ysh),
			B:             imag(ysh),
		}
		_ = g.AddInjection(shunt)

		load := &grid.Load{BaseInjection: grid.BaseInjection{
			UID: fmt.Sprintf("ward-comp-%s", busUID), Name: "Ward compensation load", Bus: busUID, Active: true,
			P: real(seq[i]), Q: imag(seq[i]),
		}}
		_ = g.AddInjection(load)

		for j := 0; j < i; j++ {
			y := yeq[i][j]
			if y == 0 {
				continue
			}
			z := 1 / y
			busJ := nc.Bus.UID[boundary[j]]
			sr := &grid.SeriesReactance{BaseBranch: grid.BaseBranch{
				UID: fmt.Sprintf("ward-tie-%s-%s", busJ, busUID), Name: "Ward equivalent tie",
				FromUID: busJ, ToUID: busUID, Active: true, R: real(z), X: imag(z), RateMVA: 9999,
			}}
			_ = g.AddBranch(sr)
		}
	}
}

// pseudoinverseYeq is the degenerate-Y_EE fallback, taken only when the
// complex factorization in solveYeq reports Y_EE singular: compute a
// dense Moore-Penrose pseudoinverse of the real admittance slice via
// gonum and use it in place of the exact complex factorization. Only the
// real part is recovered in this path, which is why WardStandard logs a warning
// rather than silently proceeding. A genuinely singular external set has
// no well-defined exact equivalent regardless of how it is solved.
func pseudoinverseYeq(yBE, yBEImag, yEB, yEE *sparsemat.CSC, ne, nb int) [][]complex128 {
	pinv := moorePenrosePinv(denseFromCSC(yEE), ne)
	yBEDense := complexDenseFromCSC(yBE, yBEImag, nb, ne)

	out := make([][]complex128, nb)
	for i := range out {
		out[i] = make([]complex128, nb)
	}
	for c := 0; c < nb; c++ {
		col := make([]float64, ne)
		for k := yEB.Indptr[c]; k < yEB.Indptr[c+1]; k++ {
			col[yEB.Indices[k]] = yEB.Data[k]
		}
		x := matVec(pinv, col)
		xC := make([]complex128, ne)
		for i := range x {
			xC[i] = complex(x[i], 0)
		}
		yCol := complexMatVec(yBEDense, xC)
		for r := 0; r < nb; r++ {
			out[r][c] = yCol[r]
		}
	}
	return out
}

func denseFromCSC(m *sparsemat.CSC) [][]float64 {
	dense := make([][]float64, m.Rows)
	for i := range dense {
		dense[i] = make([]float64, m.Cols)
	}
	for c := 0; c < m.Cols; c++ {
		for k := m.Indptr[c]; k < m.Indptr[c+1]; k++ {
			dense[m.Indices[k]][c] = m.Data[k]
		}
	}
	return dense
}

func matVec(m [][]float64, x []float64) []float64 {
	out := make([]float64, len(m))
	for i := range m {
		var sum float64
		for j := range x {
			sum += m[i][j] * x[j]
		}
		out[i] = sum
	}
	return out
}
