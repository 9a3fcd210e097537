package block

import (
	"sync/atomic"

	"github.com/veragrid/veragridengine/pkg/expr"
)

// uidCounter assigns UIDs to variables created by the template
// constructors below. Callers composing blocks by hand are free to pick
// their own UID scheme; NextUID only needs to avoid collisions within a
// single process, which a monotonic counter guarantees.
var uidCounter int64

// NextUID returns a fresh variable UID, unique for the lifetime of the
// process.
func NextUID() int {
	return int(atomic.AddInt64(&uidCounter, 1))
}

func newVar(name string) *expr.Expr { return expr.Var(NextUID(), name) }

// SwingGenerator builds the classical second-order synchronous machine
// swing equation block: states rotor angle delta and speed deviation
// domega, parameterized by inertia H, damping D and synchronous speed
// omegaS. Pe (electrical power, supplied by the network connection) and
// Pm (mechanical power, supplied by a governor connection) are input
// ports.
//
//	dDelta/dt  = omegaS * domega
//	dDomega/dt = (Pm - Pe - D*domega) / (2H)
func SwingGenerator(name string) *Block {
	delta := newVar("delta")
	domega := newVar("domega")
	h := newVar("H")
	d := newVar("D")
	omegaS := newVar("omegaS")
	pm := newVar("Pm")
	pe := newVar("Pe")

	b := New(name, KindSwingGenerator)
	b.StateVars = []*expr.Expr{delta, domega}
	b.Params = []*expr.Expr{h, d, omegaS}
	b.Inputs = []Port{{Name: "Pm", Var: pm}, {Name: "Pe", Var: pe}}
	b.Outputs = []Port{{Name: "delta", Var: delta}, {Name: "domega", Var: domega}}

	b.StateEqs = []*expr.Expr{
		expr.Mul(omegaS, domega),
		expr.Div(expr.Sub(expr.Sub(pm, pe), expr.Mul(d, domega)), expr.Mul(expr.Const(2), h)),
	}
	return b
}

// Exciter builds a first-order automatic voltage regulator:
//
//	dEfd/dt = (Ka*(Vref - Vt) - Efd) / Ta
//
// with terminal voltage Vt and reference Vref as input ports and field
// voltage Efd as both state and output.
func Exciter(name string) *Block {
	efd := newVar("Efd")
	ka := newVar("Ka")
	ta := newVar("Ta")
	vt := newVar("Vt")
	vref := newVar("Vref")

	b := New(name, KindExciter)
	b.StateVars = []*expr.Expr{efd}
	b.Params = []*expr.Expr{ka, ta}
	b.Inputs = []Port{{Name: "Vt", Var: vt}, {Name: "Vref", Var: vref}}
	b.Outputs = []Port{{Name: "Efd", Var: efd}}

	b.StateEqs = []*expr.Expr{
		expr.Div(expr.Sub(expr.Mul(ka, expr.Sub(vref, vt)), efd), ta),
	}
	return b
}

// Governor builds a TGOV1-style first-order speed governor with droop:
//
//	Pref  = P0 - domega / R         (algebraic)
//	dPm/dt = (Pref - Pm) / Tg
//
// domega (speed deviation, from the connected generator) is an input
// port; Pm (mechanical power command) is both state and output.
func Governor(name string) *Block {
	pm := newVar("Pm")
	pref := newVar("Pref")
	p0 := newVar("P0")
	r := newVar("R")
	tg := newVar("Tg")
	domega := newVar("domega")

	b := New(name, KindGovernor)
	b.StateVars = []*expr.Expr{pm}
	b.AlgVars = []*expr.Expr{pref}
	b.Params = []*expr.Expr{p0, r, tg}
	b.Inputs = []Port{{Name: "domega", Var: domega}}
	b.Outputs = []Port{{Name: "Pm", Var: pm}}

	b.AlgEqs = []*expr.Expr{
		expr.Sub(pref, expr.Sub(p0, expr.Div(domega, r))),
	}
	b.StateEqs = []*expr.Expr{
		expr.Div(expr.Sub(pref, pm), tg),
	}
	return b
}
