// Package vlog implements the append-only driver logger every Driver result
// carries (§6: "logger: append-only record of warnings/errors keyed by
// device UID"). It is a plain structured value type, grounded on the
// Logger class used throughout original_source (logger.add_error,
// logger.add_warning, logger.add_info) — not a logging library concern.
// Ambient process diagnostics use zerolog instead; see cmd/veragrid.
package vlog

import "sync"

type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Entry is one logged event, optionally attributed to a device UID.
type Entry struct {
	Severity  Severity
	DeviceUID string
	Message   string
}

// Logger is an append-only, concurrency-safe log of driver events. Zero
// value is ready to use.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Logger { return &Logger{} }

func (l *Logger) add(sev Severity, deviceUID, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Severity: sev, DeviceUID: deviceUID, Message: msg})
}

func (l *Logger) AddInfo(deviceUID, msg string)    { l.add(Info, deviceUID, msg) }
func (l *Logger) AddWarning(deviceUID, msg string) { l.add(Warning, deviceUID, msg) }
func (l *Logger) AddError(deviceUID, msg string)   { l.add(Error, deviceUID, msg) }

// Entries returns a snapshot copy of all logged entries in append order.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// HasErrors reports whether any Error-severity entry was logged.
func (l *Logger) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Severity == Error {
			return true
		}
	}
	return false
}

// Merge appends another logger's entries onto l, preserving relative
// order per logger. Used by the time-series drivers to fold a
// worker's scratch logger back into the shared result logger.
func (l *Logger) Merge(other *Logger) {
	if other == nil {
		return
	}
	entries := other.Entries()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entries...)
}
