// Package powerflow implements the Newton-Raphson positive-sequence power
// flow, the DC linear solver, a three-phase unbalanced variant, and the
// clustered time-series driver (C6).
package powerflow

// Options configures the power-flow solver.
type Options struct {
	Tol     float64 // mismatch infinity-norm tolerance, default 1e-6
	MaxIter int     // default 20

	BacktrackingParameter float64 // step halved while mismatch grows by more than this fraction
	MaxBacktrackDepth     int

	ControlQLimits       bool // reactive-power limit switching on PV buses
	ControlTaps          bool // discrete/continuous tap control; not consulted by SolveNR
	ControlRemoteVoltage bool // coalesce remote-voltage-controlled buses; not consulted by SolveNR
	MaxControlIterations int
}

// DefaultOptions matches the spec's stated defaults.
func DefaultOptions() Options {
	return Options{
		Tol:                   1e-6,
		MaxIter:               20,
		BacktrackingParameter: 0.5,
		MaxBacktrackDepth:     4,
		ControlQLimits:        true,
		MaxControlIterations:  10,
	}
}
