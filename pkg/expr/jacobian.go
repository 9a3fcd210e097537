package expr

import "sort"

// JacobianTape is a compiled sparse Jacobian evaluator: the sparsity
// pattern (Indptr/Indices, column-major CSC layout) is fixed at compile
// time by dropping structurally-zero partial derivatives, and a single
// combined Tape evaluates every surviving entry in Indices order. Eval is
// safe for concurrent invocation given distinct scratch/out buffers, the
// same guarantee Tape itself provides.
type JacobianTape struct {
	Rows, Cols int
	Indptr     []int
	Indices    []int
	tape       *Tape
}

// NewScratch allocates a scratch buffer sized for this Jacobian's tape.
func (j *JacobianTape) NewScratch() []float64 { return j.tape.NewScratch() }

// NNZ returns the number of structurally-nonzero entries.
func (j *JacobianTape) NNZ() int { return len(j.Indices) }

// Eval evaluates every nonzero entry, writing them into data in the same
// order as Indices (i.e. column-major, matching pkg/sparsemat.CSC.Data).
func (j *JacobianTape) Eval(vars, params, scratch, data []float64) {
	j.tape.Eval(vars, params, scratch, data)
}

type jacEntry struct {
	row, col int
	d        *Expr
}

// BuildJacobian differentiates every equation in equations with respect
// to every variable UID in varUIDs, simplifies each result, and keeps
// only the entries that do not simplify to the literal constant zero.
// equations[i] is row i; varUIDs[j] is column j. varSlots/paramSlots are
// the same UID-to-vector-index maps passed to Compile, used so the
// combined tape can also reference any other free variable or parameter
// appearing inside a derivative (e.g. via the product/quotient rule).
func BuildJacobian(equations []*Expr, varUIDs []int, varSlots, paramSlots map[int]int) (*JacobianTape, error) {
	var entries []jacEntry
	for i, eq := range equations {
		for j, uid := range varUIDs {
			d, err := Simplify(Diff(eq, uid))
			if err != nil {
				return nil, err
			}
			if d.Kind == KConst && d.Value == 0 {
				continue
			}
			entries = append(entries, jacEntry{row: i, col: j, d: d})
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].col != entries[b].col {
			return entries[a].col < entries[b].col
		}
		return entries[a].row < entries[b].row
	})

	cols := len(varUIDs)
	indptr := make([]int, cols+1)
	indices := make([]int, len(entries))
	exprs := make([]*Expr, len(entries))
	for k, e := range entries {
		indices[k] = e.row
		exprs[k] = e.d
		indptr[e.col+1]++
	}
	for c := 0; c < cols; c++ {
		indptr[c+1] += indptr[c]
	}

	tape, err := Compile(exprs, varSlots, paramSlots)
	if err != nil {
		return nil, err
	}

	return &JacobianTape{
		Rows:    len(equations),
		Cols:    cols,
		Indptr:  indptr,
		Indices: indices,
		tape:    tape,
	}, nil
}
