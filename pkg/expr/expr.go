// Package expr implements the symbolic expression kernel (C1): an
// immutable tree of Const/Var/Func nodes supporting differentiation,
// simplification, substitution, and tape-based code generation. It is the
// foundation the RMS block solver (pkg/rms) compiles residuals and
// Jacobians from.
package expr

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Kind enumerates the node variants of an expression tree.
type Kind int

const (
	KConst Kind = iota
	KVar
	KAdd
	KSub
	KMul
	KDiv
	KPow
	KSin
	KCos
	KExp
	KLog
	KAbs
	KNeg
)

var binaryKinds = map[Kind]bool{KAdd: true, KSub: true, KMul: true, KDiv: true, KPow: true}
var unaryKinds = map[Kind]bool{KSin: true, KCos: true, KExp: true, KLog: true, KAbs: true, KNeg: true}

// Expr is an immutable expression tree node. Each node memoises its
// content hash on first request so code generation can deduplicate common
// subexpressions by hash equality.
type Expr struct {
	Kind  Kind
	Value float64 // valid when Kind == KConst
	UID   int     // valid when Kind == KVar
	Name  string  // valid when Kind == KVar
	Args  []*Expr // operands, length 1 (unary) or 2 (binary)

	hash     uint64
	hashDone bool
}

// Const builds a constant leaf.
func Const(v float64) *Expr { return &Expr{Kind: KConst, Value: v} }

// Var builds a variable leaf identified by a UID unique across the whole
// block tree it belongs to.
func Var(uid int, name string) *Expr { return &Expr{Kind: KVar, UID: uid, Name: name} }

func bin(k Kind, a, b *Expr) *Expr { return &Expr{Kind: k, Args: []*Expr{a, b}} }
func un(k Kind, a *Expr) *Expr     { return &Expr{Kind: k, Args: []*Expr{a}} }

func Add(a, b *Expr) *Expr { return bin(KAdd, a, b) }
func Sub(a, b *Expr) *Expr { return bin(KSub, a, b) }
func Mul(a, b *Expr) *Expr { return bin(KMul, a, b) }
func Div(a, b *Expr) *Expr { return bin(KDiv, a, b) }
func Pow(a, b *Expr) *Expr { return bin(KPow, a, b) }
func Sin(a *Expr) *Expr    { return un(KSin, a) }
func Cos(a *Expr) *Expr    { return un(KCos, a) }
func Exp(a *Expr) *Expr    { return un(KExp, a) }
func Log(a *Expr) *Expr    { return un(KLog, a) }
func Abs(a *Expr) *Expr    { return un(KAbs, a) }
func Neg(a *Expr) *Expr    { return un(KNeg, a) }

// IsConst reports whether e is a constant leaf, and if it equals value.
func (e *Expr) IsConst(value float64) bool {
	return e.Kind == KConst && e.Value == value
}

// Hash returns a content hash over the expression's structure, memoised
// after first computation. Two structurally equal (same kind/value/uid and
// recursively equal args) expressions hash identically.
func (e *Expr) Hash() uint64 {
	if e.hashDone {
		return e.hash
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "k%d", e.Kind)
	switch e.Kind {
	case KConst:
		fmt.Fprintf(h, "v%v", e.Value)
	case KVar:
		fmt.Fprintf(h, "u%d", e.UID)
	default:
		for _, a := range e.Args {
			fmt.Fprintf(h, "|%d", a.Hash())
		}
	}
	e.hash = h.Sum64()
	e.hashDone = true
	return e.hash
}

// Eval evaluates the expression directly (no code generation), used by
// tests and by low-frequency call sites where tape compilation isn't
// worth the setup cost. vars/params are looked up by UID through the
// provided maps.
func (e *Expr) Eval(vars, params map[int]float64) (float64, error) {
	switch e.Kind {
	case KConst:
		return e.Value, nil
	case KVar:
		if v, ok := vars[e.UID]; ok {
			return v, nil
		}
		if v, ok := params[e.UID]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("unbound variable uid=%d (%s)", e.UID, e.Name)
	}

	a, err := e.Args[0].Eval(vars, params)
	if err != nil {
		return 0, err
	}
	if unaryKinds[e.Kind] {
		switch e.Kind {
		case KSin:
			return math.Sin(a), nil
		case KCos:
			return math.Cos(a), nil
		case KExp:
			return math.Exp(a), nil
		case KLog:
			return math.Log(a), nil
		case KAbs:
			return math.Abs(a), nil
		case KNeg:
			return -a, nil
		}
	}

	b, err := e.Args[1].Eval(vars, params)
	if err != nil {
		return 0, err
	}
	switch e.Kind {
	case KAdd:
		return a + b, nil
	case KSub:
		return a - b, nil
	case KMul:
		return a * b, nil
	case KDiv:
		return a / b, nil
	case KPow:
		return math.Pow(a, b), nil
	}
	return 0, fmt.Errorf("unknown expression kind %v", e.Kind)
}

// String renders the expression as an s-expression-free infix form, for
// diagnostics.
func (e *Expr) String() string {
	switch e.Kind {
	case KConst:
		return fmt.Sprintf("%g", e.Value)
	case KVar:
		return e.Name
	case KNeg:
		return fmt.Sprintf("(-%s)", e.Args[0])
	case KSin, KCos, KExp, KLog, KAbs:
		names := map[Kind]string{KSin: "sin", KCos: "cos", KExp: "exp", KLog: "log", KAbs: "abs"}
		return fmt.Sprintf("%s(%s)", names[e.Kind], e.Args[0])
	default:
		ops := map[Kind]string{KAdd: "+", KSub: "-", KMul: "*", KDiv: "/", KPow: "^"}
		return fmt.Sprintf("(%s %s %s)", e.Args[0], ops[e.Kind], e.Args[1])
	}
}
