// Package verr defines the domain-level error kinds shared by every driver
// in the engine (§7 of the specification). Kinds are sentinel errors so
// callers can test them with errors.Is after a driver wraps one with %w.
package verr

import "errors"

var (
	// ErrMalformedGrid signals an invariant violation discovered in the
	// grid data model or during numerical circuit compilation (dangling
	// branch, duplicate UID, bus missing from a branch). Fatal before
	// solving.
	ErrMalformedGrid = errors.New("malformed grid")

	// ErrNoSlackInIsland signals an island with no voltage source and an
	// option that disallows ignoring it. numcircuit.Compile returns it for
	// the whole call, with no island compiled, unless IgnoreNoSlack is set;
	// SolveNR, SolveDC and linfactors.Build return it for the one island
	// they were given.
	ErrNoSlackInIsland = errors.New("no slack bus in island")

	// ErrDidNotConverge signals that Newton-Raphson reached max_iter
	// without satisfying the mismatch tolerance. Non-fatal: the result
	// carries converged=false and the last iterate.
	ErrDidNotConverge = errors.New("solver did not converge")

	// ErrSingularJacobian signals that sparse LU factorization failed.
	// Non-fatal; the driver may retry with another method.
	ErrSingularJacobian = errors.New("singular jacobian")

	// ErrUnboundVariable signals that symbolic code generation found a
	// variable UID with no slot mapping. Fatal.
	ErrUnboundVariable = errors.New("unbound variable in code generation")

	// ErrDivisionByConstZero signals that expression simplification
	// detected a division by a constant zero.
	ErrDivisionByConstZero = errors.New("division by constant zero")

	// ErrMalformedBlock signals a block-composition invariant violation
	// (mismatched variable/equation counts, duplicate UIDs, a free
	// variable with no owning block). Fatal.
	ErrMalformedBlock = errors.New("malformed block")

	// ErrContingencyNotApplicable signals an outage that leaves a zero
	// denominator in LODF. Not fatal: pkg/linfactors leaves the outaged
	// branch's LODF column at zero in that case, without logging or
	// returning this error.
	ErrContingencyNotApplicable = errors.New("contingency not applicable")

	// ErrCancelled signals that the caller cancelled the driver. The
	// driver returns whatever partial result it has, flagged.
	ErrCancelled = errors.New("cancelled")
)

// DeviceError associates one of the sentinel kinds above with the UID of
// the device that triggered it, so driver loggers can key entries by
// device the way the Driver API (§6) requires.
type DeviceError struct {
	Kind      error
	DeviceUID string
	Detail    string
}

func (e *DeviceError) Error() string {
	if e.DeviceUID == "" {
		return e.Kind.Error() + ": " + e.Detail
	}
	return e.Kind.Error() + " (device " + e.DeviceUID + "): " + e.Detail
}

func (e *DeviceError) Unwrap() error { return e.Kind }

// New wraps kind with a device UID and a free-form detail message.
func New(kind error, deviceUID, detail string) *DeviceError {
	return &DeviceError{Kind: kind, DeviceUID: deviceUID, Detail: detail}
}
