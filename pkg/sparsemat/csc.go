package sparsemat

// CSC is a compressed-sparse-column matrix: Indptr has Cols+1 entries,
// Indices/Data are parallel arrays of row index / value for column c in
// Indices[Indptr[c]:Indptr[c+1]], with rows sorted ascending within a
// column.
type CSC struct {
	Rows, Cols int
	Indptr     []int
	Indices    []int
	Data       []float64
}

// NNZ returns the number of stored entries.
func (m *CSC) NNZ() int { return len(m.Data) }

// At returns the value at (row, col), or 0 if not stored.
func (m *CSC) At(row, col int) float64 {
	if col < 0 || col >= m.Cols {
		return 0
	}
	lo, hi := m.Indptr[col], m.Indptr[col+1]
	for k := lo; k < hi; k++ {
		if m.Indices[k] == row {
			return m.Data[k]
		}
	}
	return 0
}

// MulVec computes y = M*x for a dense x of length Cols.
func (m *CSC) MulVec(x []float64) []float64 {
	y := make([]float64, m.Rows)
	for c := 0; c < m.Cols; c++ {
		xv := x[c]
		if xv == 0 {
			continue
		}
		for k := m.Indptr[c]; k < m.Indptr[c+1]; k++ {
			y[m.Indices[k]] += m.Data[k] * xv
		}
	}
	return y
}

// T returns the transpose as a new CSC (it becomes a CSR-shaped pass
// conceptually, but we keep the CSC representation so factorization
// inputs stay uniform).
func (m *CSC) T() *CSC {
	tr := NewTriplet(m.Cols, m.Rows)
	for c := 0; c < m.Cols; c++ {
		for k := m.Indptr[c]; k < m.Indptr[c+1]; k++ {
			tr.Add(c, m.Indices[k], m.Data[k])
		}
	}
	return tr.ToCSC()
}

// Slice extracts the sub-matrix with the given row and column index sets,
// preserving order. Used by Ward/PTDF reduction to carve Y_EE/Y_EB/Y_BE
// out of Ybus.
func (m *CSC) Slice(rows, cols []int) *CSC {
	rowPos := make(map[int]int, len(rows))
	for i, r := range rows {
		rowPos[r] = i
	}
	colSet := make(map[int]bool, len(cols))
	for _, c := range cols {
		colSet[c] = true
	}

	tr := NewTriplet(len(rows), len(cols))
	colIdx := make(map[int]int, len(cols))
	for i, c := range cols {
		colIdx[c] = i
	}

	for _, c := range cols {
		ci := colIdx[c]
		for k := m.Indptr[c]; k < m.Indptr[c+1]; k++ {
			r := m.Indices[k]
			if !colSet[c] {
				continue
			}
			if ri, ok := rowPos[r]; ok {
				tr.Add(ri, ci, m.Data[k])
			}
		}
	}
	return tr.ToCSC()
}

// CSR is a compressed-sparse-row matrix, the mirror of CSC. Used for
// matrix-vector products where row-major access is natural (e.g. Cf·V).
type CSR struct {
	Rows, Cols int
	Indptr     []int
	Indices    []int
	Data       []float64
}

func (m *CSR) NNZ() int { return len(m.Data) }

// MulVec computes y = M*x for a dense x of length Cols.
func (m *CSR) MulVec(x []float64) []float64 {
	y := make([]float64, m.Rows)
	for r := 0; r < m.Rows; r++ {
		var sum float64
		for k := m.Indptr[r]; k < m.Indptr[r+1]; k++ {
			sum += m.Data[k] * x[m.Indices[k]]
		}
		y[r] = sum
	}
	return y
}

// Row returns the (column, value) pairs stored in row r.
func (m *CSR) Row(r int) (cols []int, vals []float64) {
	lo, hi := m.Indptr[r], m.Indptr[r+1]
	return m.Indices[lo:hi], m.Data[lo:hi]
}
