// Package vdriver defines the uniform driver surface (§6) every
// simulation entry point in the engine implements: options, run,
// results, cancellation, and progress reporting.
package vdriver

import (
	"context"
	"sync/atomic"

	"github.com/veragrid/veragridengine/pkg/vlog"
)

// Options is implemented by every driver's option struct.
type Options interface {
	Validate() error
}

// Results is implemented by every driver's result struct.
type Results interface {
	Cancelled() bool
}

// Driver is the uniform surface every simulation entry point exposes.
type Driver[O Options, R Results] interface {
	Run(ctx context.Context) error
	Cancel()
	Results() R
	Logger() *vlog.Logger
}

// ProgressFunc reports current/total progress; TextFunc reports a free-form
// status line. Both are plain function values set at construction time
// (Design Note 3), not a signal/slot system.
type ProgressFunc func(current, total int)
type TextFunc func(msg string)

// Cancellation is an atomic cancel flag. The time-series drivers check it
// between time steps and the reliability driver between Monte-Carlo
// samples; Newton-Raphson iterations and contingency.RunSnapshot do not
// check it.
type Cancellation struct {
	flag atomic.Bool
}

// Cancel requests cancellation; safe to call concurrently and more than
// once.
func (c *Cancellation) Cancel() { c.flag.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *Cancellation) Cancelled() bool { return c.flag.Load() }
