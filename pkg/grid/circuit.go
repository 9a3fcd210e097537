package grid

import (
	"fmt"
	"time"

	"github.com/veragrid/veragridengine/pkg/verr"
)

// MultiCircuit is the root aggregate: owns buses, branches, injections,
// substations, voltage levels, contingency groups and the time axis.
// Every branch's endpoints must be members of this MultiCircuit; deleting
// a bus cascades to its attached devices.
type MultiCircuit struct {
	Name string

	buses     map[string]*Bus
	branches  map[string]Branch
	injects   map[string]Injection
	subs      map[string]*Substation
	vlevels   map[string]*VoltageLevel
	contGroups map[string]*ContingencyGroup

	// busBranches/busInjects index incidence sets for fast lookup.
	busBranches map[string]map[string]bool
	busInjects  map[string]map[string]bool

	timeAxis []time.Time
}

// NewMultiCircuit creates an empty circuit.
func NewMultiCircuit(name string) *MultiCircuit {
	return &MultiCircuit{
		Name:        name,
		buses:       map[string]*Bus{},
		branches:    map[string]Branch{},
		injects:     map[string]Injection{},
		subs:        map[string]*Substation{},
		vlevels:     map[string]*VoltageLevel{},
		contGroups:  map[string]*ContingencyGroup{},
		busBranches: map[string]map[string]bool{},
		busInjects:  map[string]map[string]bool{},
	}
}

// AddBus registers a bus.
func (mc *MultiCircuit) AddBus(b *Bus) {
	mc.buses[b.UID] = b
	mc.busBranches[b.UID] = map[string]bool{}
	mc.busInjects[b.UID] = map[string]bool{}
}

// AddBranch registers a branch; both endpoints must already be members of
// this MultiCircuit.
func (mc *MultiCircuit) AddBranch(br Branch) error {
	f, t := br.Endpoints()
	if _, ok := mc.buses[f]; !ok {
		return verr.New(verr.ErrMalformedGrid, br.GetUID(), fmt.Sprintf("from-bus %q not in circuit", f))
	}
	if _, ok := mc.buses[t]; !ok {
		return verr.New(verr.ErrMalformedGrid, br.GetUID(), fmt.Sprintf("to-bus %q not in circuit", t))
	}
	mc.branches[br.GetUID()] = br
	mc.busBranches[f][br.GetUID()] = true
	mc.busBranches[t][br.GetUID()] = true
	return nil
}

// AddInjection registers an injection; its bus must already be a member.
func (mc *MultiCircuit) AddInjection(inj Injection) error {
	bus := inj.BusUID()
	if _, ok := mc.buses[bus]; !ok {
		return verr.New(verr.ErrMalformedGrid, inj.GetUID(), fmt.Sprintf("bus %q not in circuit", bus))
	}
	mc.injects[inj.GetUID()] = inj
	mc.busInjects[bus][inj.GetUID()] = true
	return nil
}

func (mc *MultiCircuit) AddSubstation(s *Substation)     { mc.subs[s.UID] = s }
func (mc *MultiCircuit) AddVoltageLevel(v *VoltageLevel) { mc.vlevels[v.UID] = v }
func (mc *MultiCircuit) AddContingencyGroup(g *ContingencyGroup) { mc.contGroups[g.UID] = g }

// Buses returns every registered bus, order unspecified.
func (mc *MultiCircuit) Buses() []*Bus {
	out := make([]*Bus, 0, len(mc.buses))
	for _, b := range mc.buses {
		out = append(out, b)
	}
	return out
}

// Branches returns every registered branch, order unspecified.
func (mc *MultiCircuit) Branches() []Branch {
	out := make([]Branch, 0, len(mc.branches))
	for _, b := range mc.branches {
		out = append(out, b)
	}
	return out
}

// Injections returns every registered injection, order unspecified.
func (mc *MultiCircuit) Injections() []Injection {
	out := make([]Injection, 0, len(mc.injects))
	for _, i := range mc.injects {
		out = append(out, i)
	}
	return out
}

// ContingencyGroups returns every registered contingency group, order
// unspecified.
func (mc *MultiCircuit) ContingencyGroups() []ContingencyGroup {
	out := make([]ContingencyGroup, 0, len(mc.contGroups))
	for _, g := range mc.contGroups {
		out = append(out, *g)
	}
	return out
}

// BranchesAt returns every branch with an endpoint at busUID.
func (mc *MultiCircuit) BranchesAt(busUID string) []Branch {
	ids := mc.busBranches[busUID]
	out := make([]Branch, 0, len(ids))
	for id := range ids {
		out = append(out, mc.branches[id])
	}
	return out
}

// InjectionsAt returns every injection attached to busUID.
func (mc *MultiCircuit) InjectionsAt(busUID string) []Injection {
	ids := mc.busInjects[busUID]
	out := make([]Injection, 0, len(ids))
	for id := range ids {
		out = append(out, mc.injects[id])
	}
	return out
}

// SetTimeAxis installs the circuit's time axis, validated to be
// strictly monotonic (an empty axis is accepted).
func (mc *MultiCircuit) SetTimeAxis(axis []time.Time) error {
	for i := 1; i < len(axis); i++ {
		if !axis[i].After(axis[i-1]) {
			return verr.New(verr.ErrMalformedGrid, "", fmt.Sprintf("time axis not strictly monotonic at index %d", i))
		}
	}
	mc.timeAxis = axis
	return nil
}

// TimeAxis returns the circuit's time axis.
func (mc *MultiCircuit) TimeAxis() []time.Time { return mc.timeAxis }

// DeleteBus removes a bus and cascades: every attached injection is
// deleted, and every branch with either endpoint at this bus is deleted.
func (mc *MultiCircuit) DeleteBus(uid string) {
	if _, ok := mc.buses[uid]; !ok {
		return
	}
	for injID := range mc.busInjects[uid] {
		mc.deleteInjection(injID)
	}
	for brID := range mc.busBranches[uid] {
		mc.DeleteBranch(brID)
	}
	delete(mc.busInjects, uid)
	delete(mc.busBranches, uid)
	delete(mc.buses, uid)
}

// DeleteBranch removes a branch from both endpoints' incidence sets.
func (mc *MultiCircuit) DeleteBranch(uid string) {
	br, ok := mc.branches[uid]
	if !ok {
		return
	}
	f, t := br.Endpoints()
	if set, ok := mc.busBranches[f]; ok {
		delete(set, uid)
	}
	if set, ok := mc.busBranches[t]; ok {
		delete(set, uid)
	}
	delete(mc.branches, uid)
}

func (mc *MultiCircuit) deleteInjection(uid string) {
	inj, ok := mc.injects[uid]
	if !ok {
		return
	}
	if set, ok := mc.busInjects[inj.BusUID()]; ok {
		delete(set, uid)
	}
	delete(mc.injects, uid)
}

// driverResultRef is implemented by result types that reference a
// contingency group by UID, so DeleteContingencyGroup can drop them.
type driverResultRef interface {
	ReferencesContingencyGroup(uid string) bool
}

// DeleteContingencyGroup removes a contingency group and drops any
// driver result in results that references it by UID.
func (mc *MultiCircuit) DeleteContingencyGroup(uid string, results []driverResultRef) []driverResultRef {
	delete(mc.contGroups, uid)
	kept := results[:0]
	for _, r := range results {
		if !r.ReferencesContingencyGroup(uid) {
			kept = append(kept, r)
		}
	}
	return kept
}
