package grid

// Branch is the polymorphic interface every two-terminal series device
// implements: Line, Transformer2W, SeriesReactance, HVDCLine, VSC, Switch.
// Mirrors the teacher's Device interface shape: a small common surface plus
// type-specific fields on the concrete struct.
type Branch interface {
	GetUID() string
	GetName() string
	Endpoints() (fromUID, toUID string)
	IsActive() bool
	SetActive(bool)
	Series() (r, x, b float64) // p.u. series resistance/reactance, shunt susceptance
	Rate() float64             // MVA thermal rating
	ContingencyRate() float64
	Reliability() (mttf, mttr float64)
}

// BaseBranch carries the fields common to every branch variant.
type BaseBranch struct {
	UID    string
	Name   string
	FromUID string
	ToUID   string
	Active  bool

	R, X, B float64
	RateMVA float64
	ContingencyRateMVA float64

	MonitorLoading bool
	Mttf, Mttr     float64
}

func (b *BaseBranch) GetUID() string  { return b.UID }
func (b *BaseBranch) GetName() string { return b.Name }
func (b *BaseBranch) Endpoints() (string, string) { return b.FromUID, b.ToUID }
func (b *BaseBranch) IsActive() bool  { return b.Active }
func (b *BaseBranch) SetActive(v bool) { b.Active = v }
func (b *BaseBranch) Series() (float64, float64, float64) { return b.R, b.X, b.B }
func (b *BaseBranch) Rate() float64 { return b.RateMVA }
func (b *BaseBranch) ContingencyRate() float64 { return b.ContingencyRateMVA }
func (b *BaseBranch) Reliability() (float64, float64) { return b.Mttf, b.Mttr }

// Line is a plain series-impedance branch.
type Line struct {
	BaseBranch
}

// Transformer2W is a two-winding transformer with tap control.
type Transformer2W struct {
	BaseBranch

	HVSide string // bus UID on the high-voltage side
	LVSide string // bus UID on the low-voltage side

	TapModule float64 // p.u., > 0
	TapPhase  float64 // radians

	TapSteps       int
	TapControlMode TapControlMode
}

// TapControlMode enumerates what a transformer's tap changer regulates.
type TapControlMode int

const (
	TapFixed TapControlMode = iota
	TapControlVoltage
	TapControlPhase
	TapControlReactivePower
)

// SeriesReactance is the reduced-equivalent device Ward reduction emits
// in place of eliminated external-bus paths (C9): a pure series reactance
// with no shunt branch and no thermal rating semantics.
type SeriesReactance struct {
	BaseBranch
}

// HVDCLine is a point-to-point DC link with a power set point and loss
// model.
type HVDCLine struct {
	BaseBranch

	Pset           float64 // MW, sending-end power order
	LossFactor     float64 // fraction of Pset lost in transit
	AngleDroop     float64 // MW per radian of AC angle difference
}

// VSCControlMode enumerates what a voltage-source converter regulates.
type VSCControlMode int

const (
	VSCPacSlack VSCControlMode = iota
	VSCVac
	VSCVdc
	VSCPdc
)

// VSC is an AC/DC voltage-source converter terminal.
type VSC struct {
	BaseBranch

	ControlMode VSCControlMode
	Pset        float64
	Vset        float64
}

// Switch is a binary branch: zero impedance when closed, disconnected
// when open.
type Switch struct {
	BaseBranch
	Closed bool
}

func (s *Switch) Series() (float64, float64, float64) {
	if !s.Closed {
		return s.R, s.X, s.B
	}
	return 1e-6, 1e-6, 0
}

// IsActive reports false while the switch is open, so an open switch is
// left out of the compiled network.
func (s *Switch) IsActive() bool { return s.Active && s.Closed }
