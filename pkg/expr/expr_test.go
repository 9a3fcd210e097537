package expr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/verr"
)

func TestHashStructuralEquality(t *testing.T) {
	x := Var(1, "x")
	a := Add(Mul(Const(2), x), Const(3))
	b := Add(Mul(Const(2), Var(1, "x")), Const(3))
	assert.Equal(t, a.Hash(), b.Hash())

	c := Add(Mul(Const(2), x), Const(4))
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestDiffPolynomial(t *testing.T) {
	// f(x) = x^3 + 2x  => f'(x) = 3x^2 + 2
	x := Var(1, "x")
	f := Add(Pow(x, Const(3)), Mul(Const(2), x))
	df, err := Simplify(Diff(f, 1))
	require.NoError(t, err)

	for _, xv := range []float64{-2, 0, 1.5, 3} {
		got, err := df.Eval(map[int]float64{1: xv}, nil)
		require.NoError(t, err)
		want := 3*xv*xv + 2
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestDiffProductAndQuotient(t *testing.T) {
	x := Var(1, "x")
	// f(x) = sin(x)/x, f'(x) = (cos(x)*x - sin(x)) / x^2
	f := Div(Sin(x), x)
	df, err := Simplify(Diff(f, 1))
	require.NoError(t, err)

	xv := 1.3
	got, err := df.Eval(map[int]float64{1: xv}, nil)
	require.NoError(t, err)
	want := (math.Cos(xv)*xv - math.Sin(xv)) / (xv * xv)
	assert.InDelta(t, want, got, 1e-9)
}

func TestSimplifyIdentities(t *testing.T) {
	x := Var(1, "x")
	cases := []struct {
		name string
		e    *Expr
		want *Expr
	}{
		{"add zero", Add(x, Const(0)), x},
		{"mul one", Mul(x, Const(1)), x},
		{"mul zero", Mul(x, Const(0)), Const(0)},
		{"sub zero", Sub(x, Const(0)), x},
		{"neg neg", Neg(Neg(x)), x},
		{"pow one", Pow(x, Const(1)), x},
		{"pow zero", Pow(x, Const(0)), Const(1)},
		{"const fold", Add(Const(2), Const(3)), Const(5)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Simplify(c.e)
			require.NoError(t, err)
			assert.Equal(t, c.want.Hash(), got.Hash())
		})
	}
}

func TestSimplifyIsIdempotent(t *testing.T) {
	x := Var(1, "x")
	e := Add(Mul(x, Const(1)), Sub(Const(0), Neg(x)))
	once, err := Simplify(e)
	require.NoError(t, err)
	twice, err := Simplify(once)
	require.NoError(t, err)
	assert.Equal(t, once.Hash(), twice.Hash())
}

func TestSimplifyDivisionByConstZero(t *testing.T) {
	x := Var(1, "x")
	_, err := Simplify(Div(x, Const(0)))
	assert.ErrorIs(t, err, verr.ErrDivisionByConstZero)
}

func TestSubsReplacesVariable(t *testing.T) {
	x := Var(1, "x")
	y := Var(2, "y")
	f := Add(x, Const(1))
	g := Subs(f, map[int]*Expr{1: y})

	got, err := g.Eval(map[int]float64{2: 4}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-9)
}

func TestTapeMatchesDirectEval(t *testing.T) {
	x := Var(1, "x")
	y := Var(2, "y")
	f1 := Add(Mul(x, y), Sin(x))
	f2 := Sub(Mul(x, y), Cos(y))

	tape, err := Compile([]*Expr{f1, f2}, map[int]int{1: 0, 2: 1}, nil)
	require.NoError(t, err)

	scratch := tape.NewScratch()
	out := make([]float64, 2)
	vars := []float64{0.7, -1.4}
	tape.Eval(vars, nil, scratch, out)

	want1, _ := f1.Eval(map[int]float64{1: vars[0], 2: vars[1]}, nil)
	want2, _ := f2.Eval(map[int]float64{1: vars[0], 2: vars[1]}, nil)
	assert.InDelta(t, want1, out[0], 1e-9)
	assert.InDelta(t, want2, out[1], 1e-9)
}

func TestTapeUnboundVariableError(t *testing.T) {
	x := Var(1, "x")
	z := Var(99, "z")
	_, err := Compile([]*Expr{Add(x, z)}, map[int]int{1: 0}, nil)
	require.Error(t, err)
}

func TestBuildJacobianDropsStructuralZeros(t *testing.T) {
	x := Var(1, "x")
	y := Var(2, "y")
	// f0 = x^2 + y   -> df0/dx = 2x, df0/dy = 1
	// f1 = y         -> df1/dx = 0 (dropped), df1/dy = 1
	f0 := Add(Pow(x, Const(2)), y)
	f1 := y

	jac, err := BuildJacobian([]*Expr{f0, f1}, []int{1, 2}, map[int]int{1: 0, 2: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, jac.NNZ())

	scratch := jac.NewScratch()
	data := make([]float64, jac.NNZ())
	jac.Eval([]float64{3, 5}, nil, scratch, data)

	// column 0 (wrt x) should have a single entry: row 0, value 2*3=6
	col0Start, col0End := jac.Indptr[0], jac.Indptr[1]
	require.Equal(t, 1, col0End-col0Start)
	assert.Equal(t, 0, jac.Indices[col0Start])
	assert.InDelta(t, 6.0, data[col0Start], 1e-9)

	// column 1 (wrt y) should have two entries: row 0 (value 1) and row 1 (value 1)
	col1Start, col1End := jac.Indptr[1], jac.Indptr[2]
	require.Equal(t, 2, col1End-col1Start)
}

func TestRoundTripTaylorIdentity(t *testing.T) {
	// Testable property: simplify(diff(f,x)*(x1-x0) + f(x0)) - f(x1) is O(h^2).
	x := Var(1, "x")
	f := Sin(x)
	df, err := Simplify(Diff(f, 1))
	require.NoError(t, err)

	x0 := 0.4
	for _, h := range []float64{0.1, 0.05} {
		x1 := x0 + h
		fx0, _ := f.Eval(map[int]float64{1: x0}, nil)
		fx1, _ := f.Eval(map[int]float64{1: x1}, nil)
		dfx0, _ := df.Eval(map[int]float64{1: x0}, nil)

		linearApprox := dfx0*(x1-x0) + fx0
		residual := math.Abs(linearApprox - fx1)
		// second-order term is bounded by 0.5*|f''|*h^2; |f''|<=1 for sin
		assert.LessOrEqual(t, residual, 0.5*h*h+1e-12)
	}
}
