// Package block implements hierarchical DAE block composition (C2): each
// Block owns its own variables, parameters and equations plus a list of
// child blocks; Flatten performs a depth-first traversal producing the
// ordered vectors the block solver (pkg/rms) needs. Connections between
// blocks are pure variable renames performed with pkg/expr.Subs.
package block

import (
	"fmt"

	"github.com/veragrid/veragridengine/pkg/expr"
	"github.com/veragrid/veragridengine/pkg/verr"
)

// Kind tags the template a Block was built from, letting pkg/rms ship a
// small library of ready-made RMS components without exposing only the
// bare composition primitive.
type Kind int

const (
	KindGeneric Kind = iota
	KindSwingGenerator
	KindExciter
	KindGovernor
	KindLoad
	KindNetwork
)

// Port is a named input or output of a Block: a Var reference that a
// parent block can rewire to a sibling's port via a connection.
type Port struct {
	Name string
	Var  *expr.Expr
}

// Block is a named DAE element with ordered variable/equation lists and
// a tree of children. State equations give dx/dt for the state vector
// (one equation per state variable, same order); algebraic equations
// are implicit, equal to zero (one per algebraic variable, same order).
type Block struct {
	Name string
	Kind Kind

	Inputs  []Port
	Outputs []Port

	Params    []*expr.Expr // KVar leaves used as parameter placeholders
	StateVars []*expr.Expr
	AlgVars   []*expr.Expr

	StateEqs []*expr.Expr // StateEqs[i] is d(StateVars[i])/dt
	AlgEqs   []*expr.Expr // AlgEqs[i] == 0 is the residual for AlgVars[i]

	Children []*Block
}

// New creates an empty named block of the given kind.
func New(name string, kind Kind) *Block {
	return &Block{Name: name, Kind: kind}
}

// Connect rewires the source port's variable into every equation of the
// subtree rooted at target by substituting target's input variable with
// source's variable throughout target's (and its descendants') equations
// — a pure, non-capturing rename, not a new equation.
func Connect(source Port, target *Block, targetPort Port) {
	repl := map[int]*expr.Expr{targetPort.Var.UID: source.Var}
	substituteTree(target, repl)
}

func substituteTree(b *Block, repl map[int]*expr.Expr) {
	for i, e := range b.StateEqs {
		b.StateEqs[i] = expr.Subs(e, repl)
	}
	for i, e := range b.AlgEqs {
		b.AlgEqs[i] = expr.Subs(e, repl)
	}
	for _, c := range b.Children {
		substituteTree(c, repl)
	}
}

// Flattened holds the four ordered variable/equation lists plus the
// parameter list produced by Block.Flatten, in declaration order (depth
// first, parent before children).
type Flattened struct {
	StateVars []*expr.Expr
	AlgVars   []*expr.Expr
	StateEqs  []*expr.Expr
	AlgEqs    []*expr.Expr
	Params    []*expr.Expr
}

// VarIndex maps every state and algebraic variable's UID to its position
// in the combined state-then-algebraic vector x used by BlockSolver,
// per the data model's invariant that var.uid -> index is the only way
// to address x.
func (f *Flattened) VarIndex() map[int]int {
	idx := make(map[int]int, len(f.StateVars)+len(f.AlgVars))
	for i, v := range f.StateVars {
		idx[v.UID] = i
	}
	off := len(f.StateVars)
	for i, v := range f.AlgVars {
		idx[v.UID] = off + i
	}
	return idx
}

// ParamIndex maps every parameter's UID to its position in the params
// vector.
func (f *Flattened) ParamIndex() map[int]int {
	idx := make(map[int]int, len(f.Params))
	for i, p := range f.Params {
		idx[p.UID] = i
	}
	return idx
}

// Flatten performs a depth-first traversal of b and its children,
// concatenating each block's own lists in declaration order (block
// before its children). It verifies the composition invariants and
// returns verr.ErrMalformedBlock on the first violation: mismatched
// state/algebraic counts, or a duplicate variable UID anywhere in the
// tree.
func (b *Block) Flatten() (*Flattened, error) {
	f := &Flattened{}
	seen := make(map[int]string)
	if err := b.flattenInto(f, seen); err != nil {
		return nil, err
	}
	return f, nil
}

func (b *Block) flattenInto(f *Flattened, seen map[int]string) error {
	if len(b.StateEqs) != len(b.StateVars) {
		return verr.New(verr.ErrMalformedBlock, b.Name,
			fmt.Sprintf("%d state vars but %d state equations", len(b.StateVars), len(b.StateEqs)))
	}
	if len(b.AlgEqs) != len(b.AlgVars) {
		return verr.New(verr.ErrMalformedBlock, b.Name,
			fmt.Sprintf("%d algebraic vars but %d algebraic equations", len(b.AlgVars), len(b.AlgEqs)))
	}

	for _, v := range b.StateVars {
		if err := markUID(seen, v, b.Name); err != nil {
			return err
		}
	}
	for _, v := range b.AlgVars {
		if err := markUID(seen, v, b.Name); err != nil {
			return err
		}
	}

	f.StateVars = append(f.StateVars, b.StateVars...)
	f.AlgVars = append(f.AlgVars, b.AlgVars...)
	f.StateEqs = append(f.StateEqs, b.StateEqs...)
	f.AlgEqs = append(f.AlgEqs, b.AlgEqs...)
	f.Params = append(f.Params, b.Params...)

	for _, c := range b.Children {
		if err := c.flattenInto(f, seen); err != nil {
			return err
		}
	}
	return nil
}

func markUID(seen map[int]string, v *expr.Expr, owner string) error {
	if prior, ok := seen[v.UID]; ok {
		return verr.New(verr.ErrMalformedBlock, owner,
			fmt.Sprintf("duplicate variable uid=%d (%s), first declared in %s", v.UID, v.Name, prior))
	}
	seen[v.UID] = owner
	return nil
}
