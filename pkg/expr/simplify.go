package expr

import (
	"math"

	"github.com/veragrid/veragridengine/pkg/verr"
)

// Simplify performs constant folding and identity elimination
// bottom-up: x+0=x, x*1=x, x*0=0, x-0=x, x/1=x, x^1=x, x^0=1, neg(neg(x))=x,
// plus folding of nested constants. Simplify is idempotent:
// Simplify(Simplify(e)) produces a tree equal (by Hash) to Simplify(e).
// Returns verr.ErrDivisionByConstZero if a division by a literal zero
// constant is found.
func Simplify(e *Expr) (*Expr, error) {
	switch e.Kind {
	case KConst, KVar:
		return e, nil
	}

	args := make([]*Expr, len(e.Args))
	for i, a := range e.Args {
		sa, err := Simplify(a)
		if err != nil {
			return nil, err
		}
		args[i] = sa
	}

	switch e.Kind {
	case KAdd:
		a, b := args[0], args[1]
		if a.Kind == KConst && b.Kind == KConst {
			return Const(a.Value + b.Value), nil
		}
		if a.IsConst(0) {
			return b, nil
		}
		if b.IsConst(0) {
			return a, nil
		}
		return Add(a, b), nil

	case KSub:
		a, b := args[0], args[1]
		if a.Kind == KConst && b.Kind == KConst {
			return Const(a.Value - b.Value), nil
		}
		if b.IsConst(0) {
			return a, nil
		}
		if a.IsConst(0) {
			if b.Kind == KNeg {
				return b.Args[0], nil
			}
			return Neg(b), nil
		}
		return Sub(a, b), nil

	case KMul:
		a, b := args[0], args[1]
		if a.Kind == KConst && b.Kind == KConst {
			return Const(a.Value * b.Value), nil
		}
		if a.IsConst(0) || b.IsConst(0) {
			return Const(0), nil
		}
		if a.IsConst(1) {
			return b, nil
		}
		if b.IsConst(1) {
			return a, nil
		}
		return Mul(a, b), nil

	case KDiv:
		a, b := args[0], args[1]
		if b.Kind == KConst && b.Value == 0 {
			return nil, verr.ErrDivisionByConstZero
		}
		if a.Kind == KConst && b.Kind == KConst {
			return Const(a.Value / b.Value), nil
		}
		if b.IsConst(1) {
			return a, nil
		}
		if a.IsConst(0) {
			return Const(0), nil
		}
		return Div(a, b), nil

	case KPow:
		a, b := args[0], args[1]
		if a.Kind == KConst && b.Kind == KConst {
			return Const(math.Pow(a.Value, b.Value)), nil
		}
		if b.IsConst(0) {
			return Const(1), nil
		}
		if b.IsConst(1) {
			return a, nil
		}
		return Pow(a, b), nil

	case KNeg:
		a := args[0]
		if a.Kind == KConst {
			return Const(-a.Value), nil
		}
		if a.Kind == KNeg {
			return a.Args[0], nil
		}
		return Neg(a), nil

	case KSin, KCos, KExp, KLog, KAbs:
		a := args[0]
		if a.Kind == KConst {
			switch e.Kind {
			case KSin:
				return Const(math.Sin(a.Value)), nil
			case KCos:
				return Const(math.Cos(a.Value)), nil
			case KExp:
				return Const(math.Exp(a.Value)), nil
			case KLog:
				return Const(math.Log(a.Value)), nil
			case KAbs:
				return Const(math.Abs(a.Value)), nil
			}
		}
		return un(e.Kind, a), nil
	}

	return e, nil
}
