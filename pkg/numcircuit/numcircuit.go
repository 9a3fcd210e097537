// Package numcircuit compiles a grid.MultiCircuit at one time index into a
// flat, index-addressable NumericalCircuit (C4): bus/branch/injection data
// arrays keyed by stable integers, sparse branch-to-bus connectivity, and
// one island per connected component of the active network.
package numcircuit

import "github.com/veragrid/veragridengine/pkg/sparsemat"

// BusType classifies a bus for the power-flow solver.
type BusType int

const (
	BusPQ BusType = iota
	BusPV
	BusSlack
)

// BusData is the flat bus array of a NumericalCircuit.
type BusData struct {
	UID      []string
	Vnom     []float64
	Vmin     []float64
	Vmax     []float64
	Active   []bool
	Type     []BusType

	// SrapAvailable is the reserve (MW) this bus can contribute to a
	// System Remedial Action Plan redispatch (C8).
	SrapAvailable []float64
}

func (d *BusData) Len() int { return len(d.UID) }

// PassiveBranchData is the flat array of series branches. Compile puts
// every active branch here, HVDC lines and VSCs included (from their
// series R/X); the Vsc and Hvdc arrays are not filled by Compile.
type PassiveBranchData struct {
	UID              []string
	F, T             []int // bus indices, local to the island
	R, X, B          []float64
	Rate             []float64
	ContingencyRate  []float64
	TapModule        []float64
	TapPhase         []float64
	Active           []bool
	MonitorLoading   []bool
	Mttf, Mttr       []float64
}

func (d *PassiveBranchData) Len() int { return len(d.UID) }

// VSCControlMode mirrors grid.VSCControlMode without importing pkg/grid,
// keeping the numerical layer decoupled from the device-model package.
type VSCControlMode int

const (
	VSCPacSlack VSCControlMode = iota
	VSCVac
	VSCVdc
	VSCPdc
)

// VscData is the flat array of AC/DC converter terminals.
type VscData struct {
	UID         []string
	F, T        []int
	ControlMode []VSCControlMode
	Pset        []float64
	Vset        []float64
	Active      []bool
}

func (d *VscData) Len() int { return len(d.UID) }

// HvdcData is the flat array of point-to-point DC links.
type HvdcData struct {
	UID        []string
	F, T       []int
	Pset       []float64
	LossFactor []float64
	AngleDroop []float64
	Active     []bool
}

func (d *HvdcData) Len() int { return len(d.UID) }

// LoadData is the flat array of load injections.
type LoadData struct {
	UID    []string
	Bus    []int
	P, Q   []float64
	Active []bool
	Mttf, Mttr []float64
}

func (d *LoadData) Len() int { return len(d.UID) }

// GeneratorData is the flat array of generator injections.
type GeneratorData struct {
	UID            []string
	Bus            []int
	P, Q           []float64
	Vset           []float64
	Qmin, Qmax     []float64
	Snom           []float64
	Cost           []float64
	IsDispatchable []bool
	IsSrapEnabled  []bool
	Active         []bool
	Mttf, Mttr     []float64
}

func (d *GeneratorData) Len() int { return len(d.UID) }

// BatteryData is the flat array of battery injections (Generator fields
// plus storage state).
type BatteryData struct {
	GeneratorData
	Enom         []float64
	Soc0         []float64
	SocMin       []float64
	EffCharge    []float64
	EffDischarge []float64
}

// ShuntData is the flat array of fixed shunt admittances.
type ShuntData struct {
	UID    []string
	Bus    []int
	G, B   []float64
	Active []bool
}

func (d *ShuntData) Len() int { return len(d.UID) }

// NumericalCircuit is the immutable, index-addressable projection of a
// MultiCircuit at one time index (or one island carved out of it).
type NumericalCircuit struct {
	TimeIndex int

	Bus       BusData
	Branch    PassiveBranchData
	Vsc       VscData
	Hvdc      HvdcData
	Load      LoadData
	Generator GeneratorData
	Battery   BatteryData
	Shunt     ShuntData

	// Cf, Ct are nbr x nbus sparse incidence matrices (+1 at the from/to
	// bus of each branch respectively); C = Cf - Ct.
	Cf, Ct *sparsemat.CSC
}

// NBus returns the number of buses in this circuit.
func (nc *NumericalCircuit) NBus() int { return nc.Bus.Len() }

// NBranch returns the number of passive branches.
func (nc *NumericalCircuit) NBranch() int { return nc.Branch.Len() }
