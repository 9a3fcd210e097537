package reliability

// TimeProfile is a dense per-hour series, e.g. system load (MW) or a
// generator's time-varying capacity/cost schedule.
type TimeProfile []float64

// GenerationAdequacyInput is the static (non-sampled) generation
// adequacy dataset: one entry per generator/battery, plus the system
// load profile, all aligned on the same horizon length.
type GenerationAdequacyInput struct {
	LoadMW TimeProfile

	GenPMax  []TimeProfile // per generator, hourly available capacity (MW)
	GenCost  []float64
	GenMttf  []float64
	GenMttr  []float64
	GenActive []bool

	BattPMaxDischarge []float64
	BattEnergyMax     []float64
	BattSoc0          []float64
	BattSocMin        []float64
	BattEffDischarge  []float64
	BattMttf          []float64
	BattMttr          []float64
	BattActive        []bool

	DtHours TimeProfile // step duration, usually all 1.0
}

// horizon returns the number of time steps implied by the load profile.
func (in *GenerationAdequacyInput) horizon() int { return len(in.LoadMW) }

// dispatchSample runs one greedy merit-order dispatch against a single
// sampled availability state: generators dispatch cheapest-first up to
// their sampled capacity, batteries discharge last to cover any
// remaining shortfall bounded by their state of charge, and whatever
// load still cannot be served in an hour is recorded as loss of load.
//
// This mirrors the reference engine's greedy_dispatch2 simplified to the
// single-area, no-charging case the adequacy Monte-Carlo loop needs: the
// sampled run only ever asks "can available capacity cover demand this
// hour", so charging behavior (relevant to cost-optimal dispatch, not to
// adequacy) is out of scope here.
func dispatchSample(in *GenerationAdequacyInput, genActive [][]bool, battActive [][]bool) (lossOfLoadMWh float64, lossHours int) {
	horizon := in.horizon()
	nGen := len(in.GenPMax)
	nBatt := len(in.BattPMaxDischarge)

	order := meritOrder(in.GenCost, nGen)
	soc := append([]float64(nil), in.BattSoc0...)

	for t := 0; t < horizon; t++ {
		remaining := in.LoadMW[t]

		for _, g := range order {
			if !in.GenActive[g] || !genActive[g][t] {
				continue
			}
			avail := in.GenPMax[g][t]
			take := min64(avail, remaining)
			remaining -= take
		}

		for b := 0; b < nBatt && remaining > 1e-9; b++ {
			if !in.BattActive[b] || !battActive[b][t] {
				continue
			}
			energyAvailable := (soc[b] - in.BattSocMin[b]) * in.BattEnergyMax[b]
			if energyAvailable <= 0 {
				continue
			}
			maxPower := min64(in.BattPMaxDischarge[b], energyAvailable/in.DtHours[t])
			take := min64(maxPower, remaining)
			remaining -= take
			energyUsed := take * in.DtHours[t] / maxf(in.BattEffDischarge[b], 1e-6)
			soc[b] -= energyUsed / in.BattEnergyMax[b]
		}

		if remaining > 1e-9 {
			lossOfLoadMWh += remaining * in.DtHours[t]
			lossHours++
		}
	}
	return lossOfLoadMWh, lossHours
}

// meritOrder returns generator indices sorted by ascending cost.
func meritOrder(cost []float64, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 1; i < n; i++ {
		for j := i; j > 0 && cost[idx[j]] < cost[idx[j-1]]; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
	return idx
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
