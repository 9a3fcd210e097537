// Package rms implements the block DAE solver (C10): flattens a block
// tree into a residual function and its four partial Jacobians, packs
// them into a single sparse 2x2 block system, and integrates it forward
// with implicit Euler or trapezoidal time stepping, plus a small-signal
// eigenanalysis pass at any operating point.
package rms

import (
	"github.com/veragrid/veragridengine/pkg/block"
	"github.com/veragrid/veragridengine/pkg/expr"
	"github.com/veragrid/veragridengine/pkg/verr"
)

// System is a flattened, code-generated block DAE ready for time
// integration or small-signal analysis.
type System struct {
	NState, NAlg int

	residualState *expr.Tape // f(x,y), one output per state var
	residualAlg   *expr.Tape // g(x,y), one output per algebraic var

	j11 *expr.JacobianTape // d f / d x_state
	j12 *expr.JacobianTape // d f / d x_alg
	j21 *expr.JacobianTape // d g / d x_state
	j22 *expr.JacobianTape // d g / d x_alg

	varIdx   map[int]int // var UID -> position in [stateVars..., algVars...]
	paramIdx map[int]int

	paramUIDs []int
	stateVarUIDs []int
	algVarUIDs   []int
}

// Build flattens root and code-generates the residual and the four
// block Jacobians needed by both integrators and the small-signal pass.
func Build(root *block.Block) (*System, error) {
	flat, err := root.Flatten()
	if err != nil {
		return nil, err
	}

	varIdx := flat.VarIndex()
	paramIdx := flat.ParamIndex()

	stateUIDs := make([]int, len(flat.StateVars))
	for i, v := range flat.StateVars {
		stateUIDs[i] = v.UID
	}
	algUIDs := make([]int, len(flat.AlgVars))
	for i, v := range flat.AlgVars {
		algUIDs[i] = v.UID
	}
	paramUIDs := make([]int, len(flat.Params))
	for i, p := range flat.Params {
		paramUIDs[i] = p.UID
	}

	residualStateExprs := flat.StateEqs
	residualAlgExprs := flat.AlgEqs

	residualState, err := expr.Compile(residualStateExprs, varIdx, paramIdx)
	if err != nil {
		return nil, err
	}
	residualAlg, err := expr.Compile(residualAlgExprs, varIdx, paramIdx)
	if err != nil {
		return nil, err
	}

	j11, err := expr.BuildJacobian(residualStateExprs, stateUIDs, varIdx, paramIdx)
	if err != nil {
		return nil, err
	}
	j12, err := expr.BuildJacobian(residualStateExprs, algUIDs, varIdx, paramIdx)
	if err != nil {
		return nil, err
	}
	j21, err := expr.BuildJacobian(residualAlgExprs, stateUIDs, varIdx, paramIdx)
	if err != nil {
		return nil, err
	}
	j22, err := expr.BuildJacobian(residualAlgExprs, algUIDs, varIdx, paramIdx)
	if err != nil {
		return nil, err
	}

	return &System{
		NState:       len(flat.StateVars),
		NAlg:         len(flat.AlgVars),
		residualState: residualState,
		residualAlg:   residualAlg,
		j11:           j11,
		j12:           j12,
		j21:           j21,
		j22:           j22,
		varIdx:        varIdx,
		paramIdx:      paramIdx,
		paramUIDs:     paramUIDs,
		stateVarUIDs:  stateUIDs,
		algVarUIDs:    algUIDs,
	}, nil
}

// evalF evaluates the state residual f(x,y) at vars (indexed by the
// combined state-then-algebraic layout) with the given parameter vector.
func (s *System) evalF(vars, params []float64) []float64 {
	scratch := s.residualState.NewScratch()
	out := make([]float64, s.NState)
	s.residualState.Eval(vars, params, scratch, out)
	return out
}

// evalG evaluates the algebraic residual g(x,y).
func (s *System) evalG(vars, params []float64) []float64 {
	scratch := s.residualAlg.NewScratch()
	out := make([]float64, s.NAlg)
	s.residualAlg.Eval(vars, params, scratch, out)
	return out
}

// ParamVector builds a dense parameter vector from a UID->value map,
// defaulting any unspecified parameter to 0. Malformed references
// (a UID that never appeared as a block parameter) are silently
// ignored, matching the DAE data model's "extra bindings are harmless"
// stance for driver-supplied overrides.
func (s *System) ParamVector(values map[int]float64) []float64 {
	out := make([]float64, len(s.paramUIDs))
	for i, uid := range s.paramUIDs {
		out[i] = values[uid]
	}
	return out
}

// ParamIndex exposes the UID -> parameter-vector-position map so callers
// can build ParamVector inputs or apply Events.
func (s *System) ParamIndex() map[int]int { return s.paramIdx }

// StateVarUIDs, AlgVarUIDs expose the flattened ordering so callers can
// seed an initial x or read back named outputs.
func (s *System) StateVarUIDs() []int { return s.stateVarUIDs }
func (s *System) AlgVarUIDs() []int   { return s.algVarUIDs }

var errDimension = verr.New(verr.ErrMalformedBlock, "", "state/algebraic vector length mismatch")
