// Package reliability implements the Monte-Carlo reliability engine
// (C11): exponential MTTF/MTTR state sampling for every device carrying a
// reliability rating, a greedy-dispatch generation-adequacy mode, and a
// per-state power-flow mode, aggregated into the standard loss-of-load
// indicators.
package reliability

import (
	"math"
	"math/rand/v2"
)

// ComposeStates draws one random on/off trajectory of length horizon for
// a single device with the given mean time to failure/recovery (hours),
// alternating exponential-distributed sojourns the way a two-state
// continuous-time Markov chain would, discretized to whole hours. A
// zero mttf or mttr marks the device as never failing (always on).
func ComposeStates(rng *rand.Rand, mttf, mttr float64, horizon int, initiallyWorking bool) ([]bool, int) {
	active := make([]bool, horizon)
	if mttf == 0 || mttr == 0 {
		for i := range active {
			active[i] = true
		}
		return active, 0
	}

	nFailures := 0
	working := initiallyWorking
	a := 0
	for a < horizon {
		mean := mttf
		if !working {
			mean = mttr
		}
		duration := int(-mean * math.Log(rng.Float64()))
		b := a + duration
		if b > horizon {
			b = horizon
		}
		for i := a; i < b; i++ {
			active[i] = working
		}
		if !working {
			nFailures++
		}
		working = !working
		a = b
	}
	return active, nFailures
}

// GenerateStatesMatrix draws one trajectory per device, sharing the same
// rng sequence so a single Monte-Carlo sample's generator and battery
// outages are drawn from the same stream.
func GenerateStatesMatrix(rng *rand.Rand, mttf, mttr []float64, horizon int, initiallyWorking bool) (states [][]bool, nFailures int) {
	n := len(mttf)
	states = make([][]bool, n)
	for k := 0; k < n; k++ {
		var nf int
		states[k], nf = ComposeStates(rng, mttf[k], mttr[k], horizon, initiallyWorking)
		nFailures += nf
	}
	return states, nFailures
}
