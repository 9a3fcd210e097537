package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/expr"
	"github.com/veragrid/veragridengine/pkg/verr"
)

func TestFlattenOrderPreserved(t *testing.T) {
	parent := New("parent", KindGeneric)
	x1 := newVar("x1")
	parent.StateVars = []*expr.Expr{x1}
	parent.StateEqs = []*expr.Expr{expr.Const(0)}

	child := New("child", KindGeneric)
	x2 := newVar("x2")
	child.StateVars = []*expr.Expr{x2}
	child.StateEqs = []*expr.Expr{expr.Const(1)}
	parent.Children = []*Block{child}

	f, err := parent.Flatten()
	require.NoError(t, err)
	require.Len(t, f.StateVars, 2)
	assert.Equal(t, x1.UID, f.StateVars[0].UID)
	assert.Equal(t, x2.UID, f.StateVars[1].UID)

	idx := f.VarIndex()
	assert.Equal(t, 0, idx[x1.UID])
	assert.Equal(t, 1, idx[x2.UID])
}

func TestFlattenRejectsMismatchedCounts(t *testing.T) {
	b := New("bad", KindGeneric)
	b.StateVars = []*expr.Expr{newVar("x")}
	// no equations supplied
	_, err := b.Flatten()
	require.Error(t, err)
	assert.ErrorIs(t, err, verr.ErrMalformedBlock)
}

func TestFlattenRejectsDuplicateUID(t *testing.T) {
	shared := newVar("x")
	parent := New("parent", KindGeneric)
	parent.StateVars = []*expr.Expr{shared}
	parent.StateEqs = []*expr.Expr{expr.Const(0)}

	child := New("child", KindGeneric)
	child.StateVars = []*expr.Expr{shared}
	child.StateEqs = []*expr.Expr{expr.Const(0)}
	parent.Children = []*Block{child}

	_, err := parent.Flatten()
	require.Error(t, err)
	assert.ErrorIs(t, err, verr.ErrMalformedBlock)
}

func TestConnectRewritesTargetEquations(t *testing.T) {
	source := New("source", KindGeneric)
	out := newVar("out")
	source.AlgVars = []*expr.Expr{out}
	source.AlgEqs = []*expr.Expr{expr.Sub(out, expr.Const(5))}

	target := Exciter("avr1")
	vtPort := target.Inputs[0] // Vt

	Connect(Port{Name: "out", Var: out}, target, vtPort)

	// Vt should no longer appear in target's state equation; out does.
	eq := target.StateEqs[0]
	found := false
	var walk func(e *expr.Expr)
	walk = func(e *expr.Expr) {
		if e.Kind == expr.KVar && e.UID == out.UID {
			found = true
		}
		for _, a := range e.Args {
			walk(a)
		}
	}
	walk(eq)
	assert.True(t, found, "expected connected variable to appear in target equation after Connect")
}

func TestSwingGeneratorFlattensCleanly(t *testing.T) {
	g := SwingGenerator("gen1")
	f, err := g.Flatten()
	require.NoError(t, err)
	assert.Len(t, f.StateVars, 2)
	assert.Len(t, f.StateEqs, 2)
	assert.Len(t, f.Params, 3)
}

func TestGovernorHasAlgebraicResidual(t *testing.T) {
	gov := Governor("gov1")
	f, err := gov.Flatten()
	require.NoError(t, err)
	assert.Len(t, f.AlgVars, 1)
	assert.Len(t, f.AlgEqs, 1)
}
