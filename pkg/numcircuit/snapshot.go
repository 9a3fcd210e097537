package numcircuit

// ContingencySnapshot returns a deep copy of nc that the contingency
// driver (C8) can mutate (deactivating a branch, rescaling an injection)
// without touching the shared base circuit. Per the engine's
// copy-on-write policy, every time-index/contingency worker clones its
// own snapshot rather than sharing one NumericalCircuit under a lock.
func (nc *NumericalCircuit) ContingencySnapshot() *NumericalCircuit {
	clone := *nc

	clone.Bus.UID = append([]string(nil), nc.Bus.UID...)
	clone.Bus.Vnom = append([]float64(nil), nc.Bus.Vnom...)
	clone.Bus.Vmin = append([]float64(nil), nc.Bus.Vmin...)
	clone.Bus.Vmax = append([]float64(nil), nc.Bus.Vmax...)
	clone.Bus.Active = append([]bool(nil), nc.Bus.Active...)
	clone.Bus.Type = append([]BusType(nil), nc.Bus.Type...)

	clone.Branch.UID = append([]string(nil), nc.Branch.UID...)
	clone.Branch.F = append([]int(nil), nc.Branch.F...)
	clone.Branch.T = append([]int(nil), nc.Branch.T...)
	clone.Branch.R = append([]float64(nil), nc.Branch.R...)
	clone.Branch.X = append([]float64(nil), nc.Branch.X...)
	clone.Branch.B = append([]float64(nil), nc.Branch.B...)
	clone.Branch.Rate = append([]float64(nil), nc.Branch.Rate...)
	clone.Branch.ContingencyRate = append([]float64(nil), nc.Branch.ContingencyRate...)
	clone.Branch.TapModule = append([]float64(nil), nc.Branch.TapModule...)
	clone.Branch.TapPhase = append([]float64(nil), nc.Branch.TapPhase...)
	clone.Branch.Active = append([]bool(nil), nc.Branch.Active...)
	clone.Branch.MonitorLoading = append([]bool(nil), nc.Branch.MonitorLoading...)
	clone.Branch.Mttf = append([]float64(nil), nc.Branch.Mttf...)
	clone.Branch.Mttr = append([]float64(nil), nc.Branch.Mttr...)

	clone.Load.UID = append([]string(nil), nc.Load.UID...)
	clone.Load.Bus = append([]int(nil), nc.Load.Bus...)
	clone.Load.P = append([]float64(nil), nc.Load.P...)
	clone.Load.Q = append([]float64(nil), nc.Load.Q...)
	clone.Load.Active = append([]bool(nil), nc.Load.Active...)

	clone.Generator.UID = append([]string(nil), nc.Generator.UID...)
	clone.Generator.Bus = append([]int(nil), nc.Generator.Bus...)
	clone.Generator.P = append([]float64(nil), nc.Generator.P...)
	clone.Generator.Q = append([]float64(nil), nc.Generator.Q...)
	clone.Generator.Vset = append([]float64(nil), nc.Generator.Vset...)
	clone.Generator.Qmin = append([]float64(nil), nc.Generator.Qmin...)
	clone.Generator.Qmax = append([]float64(nil), nc.Generator.Qmax...)
	clone.Generator.Active = append([]bool(nil), nc.Generator.Active...)

	// Cf/Ct and the remaining lightly-mutated arrays (Shunt, Vsc, Hvdc,
	// Battery) are shared copy-on-write: contingency application never
	// touches connectivity or shunt/converter data directly, only branch
	// Active flags and injection P/Q, which are deep-copied above.

	return &clone
}

// DeactivateBranch marks the branch at localIndex inactive in this (already cloned)
// snapshot, used to apply a single-branch contingency event.
func (nc *NumericalCircuit) DeactivateBranch(localIndex int) {
	nc.Branch.Active[localIndex] = false
}

// SetP sets a generator's or load's P (MW) at localIndex; callers
// pick the right sub-array (Generator or Load) based on the event's
// device kind.
func (d *GeneratorData) SetP(localIndex int, p float64) { d.P[localIndex] = p }
func (d *LoadData) SetP(localIndex int, p float64)      { d.P[localIndex] = p }
