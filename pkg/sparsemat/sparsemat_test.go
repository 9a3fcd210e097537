package sparsemat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragrid/veragridengine/pkg/sparsemat"
)

func TestTripletToCSCAccumulatesDuplicates(t *testing.T) {
	tr := sparsemat.NewTriplet(2, 2)
	tr.Add(0, 0, 1.0)
	tr.Add(0, 0, 2.0)
	tr.Add(1, 1, 5.0)

	csc := tr.ToCSC()
	assert.Equal(t, 3.0, csc.At(0, 0))
	assert.Equal(t, 5.0, csc.At(1, 1))
	assert.Equal(t, 0.0, csc.At(0, 1))
}

func TestCSCMulVec(t *testing.T) {
	tr := sparsemat.NewTriplet(2, 2)
	tr.Add(0, 0, 2.0)
	tr.Add(0, 1, 3.0)
	tr.Add(1, 1, 4.0)
	csc := tr.ToCSC()

	y := csc.MulVec([]float64{1, 1})
	assert.Equal(t, []float64{5.0, 4.0}, y)
}

func TestSolveCSCTwoByTwo(t *testing.T) {
	// [2 1] [x1]   [5]
	// [1 3] [x2] = [10]
	tr := sparsemat.NewTriplet(2, 2)
	tr.Add(0, 0, 2)
	tr.Add(0, 1, 1)
	tr.Add(1, 0, 1)
	tr.Add(1, 1, 3)
	csc := tr.ToCSC()

	x, err := sparsemat.SolveCSC(csc, []float64{5, 10})
	require.NoError(t, err)
	require.Len(t, x, 2)
	assert.InDelta(t, 1.0, x[0], 1e-9)
	assert.InDelta(t, 3.0, x[1], 1e-9)
}

func TestFactorizedMultipleRHS(t *testing.T) {
	tr := sparsemat.NewTriplet(2, 2)
	tr.Add(0, 0, 2)
	tr.Add(1, 1, 4)
	csc := tr.ToCSC()

	f, err := sparsemat.Factorize(csc)
	require.NoError(t, err)
	defer f.Destroy()

	x1, err := f.SolveRHS([]float64{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, x1[0], 1e-9)
	assert.InDelta(t, 0.0, x1[1], 1e-9)

	x2, err := f.SolveRHS([]float64{0, 8})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, x2[0], 1e-9)
	assert.InDelta(t, 2.0, x2[1], 1e-9)
}

func TestCSCSlice(t *testing.T) {
	tr := sparsemat.NewTriplet(3, 3)
	tr.Add(0, 0, 1)
	tr.Add(1, 1, 2)
	tr.Add(2, 2, 3)
	tr.Add(0, 2, 9)
	csc := tr.ToCSC()

	sub := csc.Slice([]int{0, 2}, []int{0, 2})
	assert.Equal(t, 1.0, sub.At(0, 0))
	assert.Equal(t, 3.0, sub.At(1, 1))
	assert.Equal(t, 9.0, sub.At(0, 1))
}
