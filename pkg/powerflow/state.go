package powerflow

import (
	"math"
	"math/cmplx"

	"github.com/veragrid/veragridengine/pkg/admittance"
	"github.com/veragrid/veragridengine/pkg/numcircuit"
)

// state holds the working arrays for one Newton-Raphson solve: complex
// voltages, specified injections, and the bus-index partitions the
// Jacobian assembly needs.
type state struct {
	nc  *numcircuit.NumericalCircuit
	adm *admittance.Admittance

	// GT/BT are Ybus's real/imag parts transposed to CSC, so column i
	// gives row i's entries of the original Ybus (bus i's neighbours).
	gT, bT *transposedY

	V []complex128 // nbus

	Pspec, Qspec []float64 // nbus, specified net injection in p.u.

	busType []numcircuit.BusType

	nonSlack []int // bus indices with a theta unknown, in x order
	pq       []int // bus indices with a |V| unknown, in x order

	thetaIdx map[int]int // bus -> index into nonSlack
	vIdx     map[int]int // bus -> index into pq
}

type transposedY struct {
	indptr  []int
	indices []int
	data    []float64
}

func newTransposedY(m *admittance.Admittance, real bool) *transposedY {
	csc := m.YbusReal
	if !real {
		csc = m.YbusImag
	}
	tr := csc.T()
	return &transposedY{indptr: tr.Indptr, indices: tr.Indices, data: tr.Data}
}

// SBase is the system base used to convert MW/MVAr injections to p.u.
const SBase = 100.0 // MVA, matching the teacher's style of a fixed system base

func newState(nc *numcircuit.NumericalCircuit, adm *admittance.Admittance) *state {
	nbus := nc.NBus()
	s := &state{
		nc:      nc,
		adm:     adm,
		gT:      newTransposedY(adm, true),
		bT:      newTransposedY(adm, false),
		V:       make([]complex128, nbus),
		Pspec:   make([]float64, nbus),
		Qspec:   make([]float64, nbus),
		busType: append([]numcircuit.BusType(nil), nc.Bus.Type...),
	}

	for i := 0; i < nbus; i++ {
		s.V[i] = complex(1, 0)
	}

	for i, g := range nc.Generator.Bus {
		if !nc.Generator.Active[i] {
			continue
		}
		s.Pspec[g] += nc.Generator.P[i] / SBase
		s.Qspec[g] += nc.Generator.Q[i] / SBase
		if nc.Generator.Vset[i] > 0 && s.busType[g] != numcircuit.BusSlack {
			s.V[g] = complex(nc.Generator.Vset[i], 0)
		}
	}
	for i, b := range nc.Load.Bus {
		if !nc.Load.Active[i] {
			continue
		}
		s.Pspec[b] -= nc.Load.P[i] / SBase
		s.Qspec[b] -= nc.Load.Q[i] / SBase
	}

	s.nonSlack = make([]int, 0, nbus)
	s.pq = make([]int, 0, nbus)
	s.thetaIdx = map[int]int{}
	s.vIdx = map[int]int{}
	for i := 0; i < nbus; i++ {
		if s.busType[i] != numcircuit.BusSlack {
			s.thetaIdx[i] = len(s.nonSlack)
			s.nonSlack = append(s.nonSlack, i)
		}
		if s.busType[i] == numcircuit.BusPQ {
			s.vIdx[i] = len(s.pq)
			s.pq = append(s.pq, i)
		}
	}
	return s
}

// neighbours returns bus i's (j, G_ij, B_ij) triples, including i itself
// (the diagonal).
func (s *state) neighbours(i int) (js []int, g, b []float64) {
	lo, hi := s.gT.indptr[i], s.gT.indptr[i+1]
	js = s.gT.indices[lo:hi]
	g = s.gT.data[lo:hi]
	b = s.bT.data[lo:hi] // bT shares the same sparsity pattern as gT for any admittance our builder produces
	return
}

// PQAt computes the calculated P_i, Q_i injection at bus i from the
// current voltage state.
func (s *state) PQAt(i int) (p, q float64) {
	vi := cmplx.Abs(s.V[i])
	thetai := cmplx.Phase(s.V[i])
	js, g, b := s.neighbours(i)
	for k, j := range js {
		vj := cmplx.Abs(s.V[j])
		thetaij := thetai - cmplx.Phase(s.V[j])
		c, sn := math.Cos(thetaij), math.Sin(thetaij)
		p += vi * vj * (g[k]*c + b[k]*sn)
		q += vi * vj * (g[k]*sn - b[k]*c)
	}
	return
}
