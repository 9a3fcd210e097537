package expr

import (
	"fmt"
	"math"

	"github.com/veragrid/veragridengine/pkg/verr"
)

// OpKind enumerates the flat tape's elementary operations. The tape is
// Design Note 4's option (b): an AST-to-flat-tape executor, avoiding any
// runtime code emission while still compiling once and evaluating many
// times.
type OpKind int

const (
	OpConst OpKind = iota
	OpVar
	OpParam
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpSin
	OpCos
	OpExp
	OpLog
	OpAbs
	OpNeg
)

// TapeOp is one elementary instruction. A and B are scratch-slot indices
// for operations that read prior results; Slot indexes into the vars[] or
// params[] input vector for OpVar/OpParam; Const holds the literal value
// for OpConst.
type TapeOp struct {
	Kind  OpKind
	A, B  int
	Slot  int
	Const float64
}

// Tape is a compiled, flat evaluator for an ordered list of expressions.
// Common subexpressions (identified by content hash) are computed once
// and shared. Tape.Eval is pure given its scratch buffer, so the same
// Tape can be evaluated concurrently from multiple goroutines as long as
// each call supplies its own scratch slice.
type Tape struct {
	Ops         []TapeOp
	OutputSlots []int
	NumSlots    int
}

// NewScratch allocates a scratch buffer sized for this tape.
func (t *Tape) NewScratch() []float64 { return make([]float64, t.NumSlots) }

// Eval evaluates the tape given input vars/params vectors (indexed by the
// slot assignment fixed at Compile time) and a scratch buffer of length
// NumSlots, writing one result per compiled expression into out (which
// must have len(out) == len(t.OutputSlots)).
func (t *Tape) Eval(vars, params, scratch, out []float64) {
	for i, op := range t.Ops {
		var v float64
		switch op.Kind {
		case OpConst:
			v = op.Const
		case OpVar:
			v = vars[op.Slot]
		case OpParam:
			v = params[op.Slot]
		case OpAdd:
			v = scratch[op.A] + scratch[op.B]
		case OpSub:
			v = scratch[op.A] - scratch[op.B]
		case OpMul:
			v = scratch[op.A] * scratch[op.B]
		case OpDiv:
			v = scratch[op.A] / scratch[op.B]
		case OpPow:
			v = math.Pow(scratch[op.A], scratch[op.B])
		case OpSin:
			v = math.Sin(scratch[op.A])
		case OpCos:
			v = math.Cos(scratch[op.A])
		case OpExp:
			v = math.Exp(scratch[op.A])
		case OpLog:
			v = math.Log(scratch[op.A])
		case OpAbs:
			v = math.Abs(scratch[op.A])
		case OpNeg:
			v = -scratch[op.A]
		}
		scratch[i] = v
	}
	for i, slot := range t.OutputSlots {
		out[i] = scratch[slot]
	}
}

// compiler is internal state for Compile; it performs the post-order DFS
// with hash-based memoisation so structurally identical subexpressions
// emit a single op and share a scratch slot.
type compiler struct {
	ops      []TapeOp
	slotOf   map[uint64]int
	varSlots map[int]int
	parSlots map[int]int
}

func (c *compiler) emit(op TapeOp) int {
	slot := len(c.ops)
	c.ops = append(c.ops, op)
	return slot
}

func (c *compiler) compile(e *Expr) (int, error) {
	h := e.Hash()
	if slot, ok := c.slotOf[h]; ok {
		return slot, nil
	}

	var slot int
	switch e.Kind {
	case KConst:
		slot = c.emit(TapeOp{Kind: OpConst, Const: e.Value})
	case KVar:
		if s, ok := c.varSlots[e.UID]; ok {
			slot = c.emit(TapeOp{Kind: OpVar, Slot: s})
		} else if s, ok := c.parSlots[e.UID]; ok {
			slot = c.emit(TapeOp{Kind: OpParam, Slot: s})
		} else {
			return 0, verr.New(verr.ErrUnboundVariable, e.Name, fmt.Sprintf("uid=%d", e.UID))
		}
	default:
		a, err := c.compile(e.Args[0])
		if err != nil {
			return 0, err
		}
		if unaryKinds[e.Kind] {
			slot = c.emit(TapeOp{Kind: unaryOpKind(e.Kind), A: a})
		} else {
			b, err := c.compile(e.Args[1])
			if err != nil {
				return 0, err
			}
			slot = c.emit(TapeOp{Kind: binaryOpKind(e.Kind), A: a, B: b})
		}
	}

	c.slotOf[h] = slot
	return slot, nil
}

func unaryOpKind(k Kind) OpKind {
	switch k {
	case KSin:
		return OpSin
	case KCos:
		return OpCos
	case KExp:
		return OpExp
	case KLog:
		return OpLog
	case KAbs:
		return OpAbs
	case KNeg:
		return OpNeg
	}
	panic("not a unary kind")
}

func binaryOpKind(k Kind) OpKind {
	switch k {
	case KAdd:
		return OpAdd
	case KSub:
		return OpSub
	case KMul:
		return OpMul
	case KDiv:
		return OpDiv
	case KPow:
		return OpPow
	}
	panic("not a binary kind")
}

// Compile builds a Tape for the ordered expression list exprs. varSlots
// maps a variable UID to its index in the vars[] vector passed to Eval;
// paramSlots does the same for params[]. Returns verr.ErrUnboundVariable
// if any referenced UID has no slot in either map.
func Compile(exprs []*Expr, varSlots, paramSlots map[int]int) (*Tape, error) {
	c := &compiler{slotOf: make(map[uint64]int), varSlots: varSlots, parSlots: paramSlots}
	outputs := make([]int, len(exprs))
	for i, e := range exprs {
		slot, err := c.compile(e)
		if err != nil {
			return nil, err
		}
		outputs[i] = slot
	}
	return &Tape{Ops: c.ops, OutputSlots: outputs, NumSlots: len(c.ops)}, nil
}
