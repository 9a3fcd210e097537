package grid

// Injection is the polymorphic interface every device attached to exactly
// one bus implements: Load, Generator, Battery, StaticGenerator, Shunt,
// ExternalGrid.
type Injection interface {
	GetUID() string
	GetName() string
	BusUID() string
	IsActive() bool
	SetActive(bool)
	PQ() (p, q float64) // MW, MVAr at present operating point
	Reliability() (mttf, mttr float64)
}

// BaseInjection carries the fields common to every injection variant.
type BaseInjection struct {
	UID    string
	Name   string
	Bus    string
	Active bool

	P, Q float64
	Snom float64

	Mttf, Mttr float64
}

func (b *BaseInjection) GetUID() string  { return b.UID }
func (b *BaseInjection) GetName() string { return b.Name }
func (b *BaseInjection) BusUID() string  { return b.Bus }
func (b *BaseInjection) IsActive() bool  { return b.Active }
func (b *BaseInjection) SetActive(v bool) { b.Active = v }
func (b *BaseInjection) PQ() (float64, float64) { return b.P, b.Q }
func (b *BaseInjection) Reliability() (float64, float64) { return b.Mttf, b.Mttr }

// Load consumes P,Q.
type Load struct {
	BaseInjection
}

// Generator is a dispatchable or voltage-controlled source.
type Generator struct {
	BaseInjection

	Vset       float64 // p.u. voltage set point when PV
	Qmin, Qmax float64

	Cost           float64 // dispatch cost, currency/MWh
	IsDispatchable bool

	// IsSrapEnabled marks this generator as a candidate for SRAP greedy
	// redispatch in the contingency driver (C8).
	IsSrapEnabled bool
}

// Battery is a Generator with energy-storage state.
type Battery struct {
	Generator

	Enom         float64 // nominal energy capacity, MWh
	Soc0         float64 // initial state of charge, fraction [0,1]
	SocMin       float64
	EffCharge    float64
	EffDischarge float64
}

// StaticGenerator is a non-dispatchable fixed-schedule source (e.g. a
// renewable profile injection with no control loop).
type StaticGenerator struct {
	BaseInjection
}

// Shunt is a fixed admittance to ground.
type Shunt struct {
	BaseInjection

	G, B float64 // p.u. conductance/susceptance to ground
}

// ExternalGrid models an infinite-bus connection and acts as an implicit
// slack source when present on an island.
type ExternalGrid struct {
	BaseInjection

	Vset float64
}
