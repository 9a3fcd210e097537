package expr

// Diff returns the symbolic derivative of e with respect to the variable
// identified by wrtUID, unsimplified. Callers almost always want
// Simplify(Diff(e, uid)).
func Diff(e *Expr, wrtUID int) *Expr {
	switch e.Kind {
	case KConst:
		return Const(0)
	case KVar:
		if e.UID == wrtUID {
			return Const(1)
		}
		return Const(0)
	case KAdd:
		return Add(Diff(e.Args[0], wrtUID), Diff(e.Args[1], wrtUID))
	case KSub:
		return Sub(Diff(e.Args[0], wrtUID), Diff(e.Args[1], wrtUID))
	case KMul:
		a, b := e.Args[0], e.Args[1]
		// product rule: d(a*b) = da*b + a*db
		return Add(Mul(Diff(a, wrtUID), b), Mul(a, Diff(b, wrtUID)))
	case KDiv:
		a, b := e.Args[0], e.Args[1]
		// quotient rule: d(a/b) = (da*b - a*db) / b^2
		num := Sub(Mul(Diff(a, wrtUID), b), Mul(a, Diff(b, wrtUID)))
		den := Mul(b, b)
		return Div(num, den)
	case KPow:
		a, b := e.Args[0], e.Args[1]
		if b.Kind == KConst {
			// power rule: d(a^c) = c * a^(c-1) * da
			return Mul(Mul(Const(b.Value), Pow(a, Const(b.Value-1))), Diff(a, wrtUID))
		}
		// general case (assumes a>0): d(a^b) = a^b * (db*log(a) + b*da/a)
		return Mul(Pow(a, b), Add(Mul(Diff(b, wrtUID), Log(a)), Mul(b, Div(Diff(a, wrtUID), a))))
	case KSin:
		return Mul(Cos(e.Args[0]), Diff(e.Args[0], wrtUID))
	case KCos:
		return Neg(Mul(Sin(e.Args[0]), Diff(e.Args[0], wrtUID)))
	case KExp:
		return Mul(Exp(e.Args[0]), Diff(e.Args[0], wrtUID))
	case KLog:
		return Div(Diff(e.Args[0], wrtUID), e.Args[0])
	case KAbs:
		// conventional subgradient a/|a| * da, valid away from a==0
		return Mul(Div(e.Args[0], Abs(e.Args[0])), Diff(e.Args[0], wrtUID))
	case KNeg:
		return Neg(Diff(e.Args[0], wrtUID))
	}
	return Const(0)
}
