// Package grid implements the typed electrical device catalogue (C3): buses,
// polymorphic branches and injections, time-varying profiles, and the
// MultiCircuit aggregate that owns them. It is the in-memory model handed to
// the numerical circuit compiler (pkg/numcircuit); no file-format parser or
// GUI concern lives here.
package grid

// Bus is a network node.
type Bus struct {
	UID  string
	Name string

	Vnom     float64 // nominal voltage, kV
	Vmin     float64 // p.u., default 0.9
	Vmax     float64 // p.u., default 1.1
	IsSlack  bool
	Active   bool

	Country         string
	SubstationUID   string
	VoltageLevelUID string

	// SrapAvailablePower is the reserve (MW) this bus can contribute to a
	// System Remedial Action Plan redispatch (C8).
	SrapAvailablePower float64
}

// NewBus creates a bus with the spec's default voltage band.
func NewBus(uid, name string, vnom float64) *Bus {
	return &Bus{
		UID:    uid,
		Name:   name,
		Vnom:   vnom,
		Vmin:   0.9,
		Vmax:   1.1,
		Active: true,
	}
}
