// Package consts holds engine-wide physical and per-unit constants shared
// across packages that would otherwise each define their own copy.
package consts

const (
	// SBase is the default per-unit system power base in MVA.
	SBase = 100.0

	// NominalFrequencyHz is the default grid nominal frequency used by
	// demo circuit builders and the RMS templates when a study does not
	// specify one explicitly.
	NominalFrequencyHz = 60.0

	// OmegaBase is the nominal angular frequency in rad/s, 2*pi*60.
	OmegaBase = 2 * 3.14159265358979323846 * NominalFrequencyHz
)
