package sparsemat

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// System wraps github.com/edp1096/sparse behind a 0-based API so call
// sites never touch the library's 1-based indexing or its Element struct
// directly. It is the common factorization backend named throughout
// SPEC_FULL.md §1: the power-flow Jacobian (C6), the DC solver's B matrix
// (C6), the repeated solves behind PTDF (C7), Y_EE in Ward reduction (C9),
// and the packed block Jacobian in the RMS engine (C10).
//
// This mirrors the shape of the teacher's pkg/matrix.CircuitMatrix, the
// sole difference being that System has no circuit-specific vocabulary
// (node/branch) — any sparse linear system of known size can use it.
type System struct {
	size      int
	mat       *sparse.Matrix
	rhs       []float64
	rhsImag   []float64
	solution  []float64
	solImag   []float64
	isComplex bool
	config    *sparse.Configuration
}

// NewSystem allocates a real (or complex, when isComplex) sparse linear
// system of the given size.
func NewSystem(size int, isComplex bool) (*System, error) {
	config := &sparse.Configuration{
		Real:           true,
		Complex:        isComplex,
		Expandable:     true,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
		PrinterWidth:   140,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse system: %w", err)
	}

	vecSize := size + 1
	if isComplex {
		vecSize *= 2
	}

	return &System{
		size:      size,
		mat:       mat,
		rhs:       make([]float64, vecSize),
		rhsImag:   make([]float64, size+1),
		solution:  make([]float64, vecSize),
		solImag:   make([]float64, size+1),
		isComplex: isComplex,
		config:    config,
	}, nil
}

func (s *System) Size() int { return s.size }

// Add stamps value at 0-based (row, col), accumulating on repeat.
func (s *System) Add(row, col int, value float64) {
	if row < 0 || col < 0 || row >= s.size || col >= s.size {
		return
	}
	s.mat.GetElement(int64(row+1), int64(col+1)).Real += value
}

// AddComplex stamps a complex value at 0-based (row, col).
func (s *System) AddComplex(row, col int, real, imag float64) {
	if row < 0 || col < 0 || row >= s.size || col >= s.size {
		return
	}
	el := s.mat.GetElement(int64(row+1), int64(col+1))
	el.Real += real
	el.Imag += imag
}

// AddRHS accumulates value into the right-hand side at 0-based row.
func (s *System) AddRHS(row int, value float64) {
	if row < 0 || row >= s.size {
		return
	}
	s.rhs[row+1] += value
}

// AddComplexRHS accumulates a complex value into the RHS at 0-based row.
func (s *System) AddComplexRHS(row int, real, imag float64) {
	if row < 0 || row >= s.size {
		return
	}
	s.rhs[2*(row+1)] += real
	s.rhs[2*(row+1)+1] += imag
}

// Preallocate forces every (i, j) pair to exist in the sparse structure
// before the first factorization, matching the teacher's SetupElements
// call — useful when a later Clear/re-stamp cycle must not change the
// matrix's fill pattern across Newton iterations.
func (s *System) Preallocate(rows, cols []int) {
	for _, i := range rows {
		for _, j := range cols {
			s.mat.GetElement(int64(i+1), int64(j+1))
		}
	}
}

// LoadDiagonal adds value to every diagonal entry (Gmin-style shunt).
func (s *System) LoadDiagonal(value float64) {
	for i := 1; i <= s.size; i++ {
		if d := s.mat.Diags[i]; d != nil {
			d.Real += value
		}
	}
}

// Clear zeroes the matrix and RHS in place, keeping the allocated
// structure (cheap re-stamp between Newton iterations).
func (s *System) Clear() {
	s.mat.Clear()
	for i := range s.rhs {
		s.rhs[i] = 0
	}
	for i := range s.rhsImag {
		s.rhsImag[i] = 0
	}
}

// Solve factorizes and solves the real system, returning the 0-based
// solution vector (length size).
func (s *System) Solve() ([]float64, error) {
	if err := s.mat.Factor(); err != nil {
		return nil, fmt.Errorf("%w: %v", errSingular, err)
	}

	var err error
	if s.config.Complex {
		s.solution, s.solImag, err = s.mat.SolveComplex(s.rhs, s.rhsImag)
	} else {
		s.solution, err = s.mat.Solve(s.rhs)
	}
	if err != nil {
		return nil, fmt.Errorf("sparse solve failed: %w", err)
	}

	out := make([]float64, s.size)
	for i := 0; i < s.size; i++ {
		out[i] = s.solution[i+1]
	}
	return out, nil
}

// SolveComplex returns 0-based real and imaginary solution vectors.
func (s *System) SolveComplex() (real, imag []float64, err error) {
	if err := s.mat.Factor(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errSingular, err)
	}
	s.solution, s.solImag, err = s.mat.SolveComplex(s.rhs, s.rhsImag)
	if err != nil {
		return nil, nil, fmt.Errorf("sparse complex solve failed: %w", err)
	}
	re := make([]float64, s.size)
	im := make([]float64, s.size)
	for i := 0; i < s.size; i++ {
		re[i] = s.solution[i+1]
		im[i] = s.solImag[i+1]
	}
	return re, im, nil
}

// Destroy releases the underlying sparse matrix's native resources.
func (s *System) Destroy() {
	if s.mat != nil {
		s.mat.Destroy()
	}
}

// SolveCSC factorizes and solves a one-off CSC system A*x = b without
// keeping a System alive. Used by components that need a single ad hoc
// sparse solve (PTDF's repeated right-hand sides, Ward's Y_EE factor).
func SolveCSC(a *CSC, b []float64) ([]float64, error) {
	if a.Rows != a.Cols {
		return nil, fmt.Errorf("SolveCSC: matrix not square (%dx%d)", a.Rows, a.Cols)
	}
	sys, err := NewSystem(a.Rows, false)
	if err != nil {
		return nil, err
	}
	defer sys.Destroy()

	for c := 0; c < a.Cols; c++ {
		for k := a.Indptr[c]; k < a.Indptr[c+1]; k++ {
			sys.Add(a.Indices[k], c, a.Data[k])
		}
	}
	for i, v := range b {
		sys.AddRHS(i, v)
	}
	return sys.Solve()
}

// Factorized wraps a single LU factorization of a CSC matrix so multiple
// right-hand sides can reuse it without re-factoring — the "repeated
// sparse solves" idiom PTDF and Ward reduction both rely on.
type Factorized struct {
	sys  *System
	size int
}

// Factorize builds and factors a sparse system once.
func Factorize(a *CSC) (*Factorized, error) {
	if a.Rows != a.Cols {
		return nil, fmt.Errorf("Factorize: matrix not square (%dx%d)", a.Rows, a.Cols)
	}
	sys, err := NewSystem(a.Rows, false)
	if err != nil {
		return nil, err
	}
	for c := 0; c < a.Cols; c++ {
		for k := a.Indptr[c]; k < a.Indptr[c+1]; k++ {
			sys.Add(a.Indices[k], c, a.Data[k])
		}
	}
	return &Factorized{sys: sys, size: a.Rows}, nil
}

// SolveRHS solves against a new right-hand side. The underlying backend
// re-factorizes on every Solve call (it does not expose a persisted-LU
// resolve), so this pays O(factor+solve) per call; it still saves the
// triplet-to-CSC re-assembly and keeps every call site in the "factor
// once conceptually, drive many right-hand sides" shape PTDF and Ward
// reduction want.
func (f *Factorized) SolveRHS(b []float64) ([]float64, error) {
	for i := range f.sys.rhs {
		f.sys.rhs[i] = 0
	}
	for i, v := range b {
		f.sys.AddRHS(i, v)
	}
	return f.sys.Solve()
}

// Destroy releases native resources.
func (f *Factorized) Destroy() { f.sys.Destroy() }

// ComplexFactorized is the complex counterpart of Factorized: a single
// complex sparse system, assembled from paired real/imaginary CSC
// matrices that need not share a sparsity pattern, factored once and
// solved against many right-hand sides.
type ComplexFactorized struct {
	sys  *System
	size int
}

// FactorizeComplex builds Y = real + i*imag and factors it once.
func FactorizeComplex(real, imag *CSC, size int) (*ComplexFactorized, error) {
	sys, err := NewSystem(size, true)
	if err != nil {
		return nil, err
	}
	for c := 0; c < real.Cols; c++ {
		for k := real.Indptr[c]; k < real.Indptr[c+1]; k++ {
			sys.AddComplex(real.Indices[k], c, real.Data[k], 0)
		}
	}
	for c := 0; c < imag.Cols; c++ {
		for k := imag.Indptr[c]; k < imag.Indptr[c+1]; k++ {
			sys.AddComplex(imag.Indices[k], c, 0, imag.Data[k])
		}
	}
	return &ComplexFactorized{sys: sys, size: size}, nil
}

// SolveRHS solves the factored system against a new complex right-hand
// side, given as separate real/imaginary slices.
func (f *ComplexFactorized) SolveRHS(bReal, bImag []float64) (real, imag []float64, err error) {
	for i := range f.sys.rhs {
		f.sys.rhs[i] = 0
	}
	for i, v := range bReal {
		f.sys.AddComplexRHS(i, v, 0)
	}
	for i, v := range bImag {
		f.sys.AddComplexRHS(i, 0, v)
	}
	return f.sys.SolveComplex()
}

// Destroy releases native resources.
func (f *ComplexFactorized) Destroy() { f.sys.Destroy() }

var errSingular = fmt.Errorf("matrix factorization failed")

// ErrSingular is exposed so callers can errors.Is against factorization
// failures without importing the sparse backend directly.
func ErrSingular() error { return errSingular }
