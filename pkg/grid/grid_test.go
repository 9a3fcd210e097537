package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSmallCircuit(t *testing.T) (*MultiCircuit, *Bus, *Bus, *Line, *Load) {
	t.Helper()
	mc := NewMultiCircuit("test")
	b1 := NewBus("b1", "Bus 1", 110)
	b2 := NewBus("b2", "Bus 2", 110)
	mc.AddBus(b1)
	mc.AddBus(b2)

	line := &Line{BaseBranch{UID: "l1", Name: "Line 1", FromUID: "b1", ToUID: "b2", Active: true, R: 0.01, X: 0.1, RateMVA: 100}}
	require.NoError(t, mc.AddBranch(line))

	load := &Load{BaseInjection{UID: "ld1", Name: "Load 1", Bus: "b2", Active: true, P: 50, Q: 10}}
	require.NoError(t, mc.AddInjection(load))

	return mc, b1, b2, line, load
}

func TestAddBranchRejectsUnknownBus(t *testing.T) {
	mc := NewMultiCircuit("test")
	b1 := NewBus("b1", "Bus 1", 110)
	mc.AddBus(b1)
	line := &Line{BaseBranch{UID: "l1", FromUID: "b1", ToUID: "ghost", Active: true}}
	err := mc.AddBranch(line)
	require.Error(t, err)
}

func TestDeleteBusCascades(t *testing.T) {
	mc, _, b2, line, load := buildSmallCircuit(t)

	mc.DeleteBus(b2.UID)

	assert.Empty(t, mc.BranchesAt(b2.UID))
	assert.Empty(t, mc.InjectionsAt(b2.UID))
	assert.Len(t, mc.Branches(), 0)
	assert.Len(t, mc.Injections(), 0)
	_ = line
	_ = load
}

func TestDeleteBranchRemovesFromBothEndpoints(t *testing.T) {
	mc, b1, b2, line, _ := buildSmallCircuit(t)

	mc.DeleteBranch(line.UID)

	assert.Empty(t, mc.BranchesAt(b1.UID))
	assert.Empty(t, mc.BranchesAt(b2.UID))
}

func TestContingencyGroupsReturnsRegistered(t *testing.T) {
	mc := NewMultiCircuit("test")
	grp := &ContingencyGroup{UID: "g1", Name: "Loss of L1", Events: []ContingencyEvent{
		{DeviceUID: "l1", Action: ActionDeactivate},
	}}
	mc.AddContingencyGroup(grp)

	groups := mc.ContingencyGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "g1", groups[0].UID)
}

func TestSetTimeAxisRejectsNonMonotonic(t *testing.T) {
	mc := NewMultiCircuit("test")
	now := time.Now()
	err := mc.SetTimeAxis([]time.Time{now, now})
	require.Error(t, err)
}

func TestSetTimeAxisAcceptsMonotonic(t *testing.T) {
	mc := NewMultiCircuit("test")
	now := time.Now()
	err := mc.SetTimeAxis([]time.Time{now, now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, mc.TimeAxis(), 2)
}

func TestDenseProfile(t *testing.T) {
	p := NewDenseProfile([]float64{1, 2, 3})
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 2.0, p.At(1))
}

func TestSparsePatchProfile(t *testing.T) {
	p := NewSparsePatchProfile(10.0, 5)
	p.Set(3, 99.0)
	p.Set(1, 50.0)

	assert.Equal(t, 10.0, p.At(0))
	assert.Equal(t, 50.0, p.At(1))
	assert.Equal(t, 10.0, p.At(2))
	assert.Equal(t, 99.0, p.At(3))
	assert.Equal(t, 5, p.Len())
}

func TestSwitchZeroImpedanceWhenClosed(t *testing.T) {
	sw := &Switch{BaseBranch: BaseBranch{UID: "s1", R: 1, X: 1}, Closed: true}
	r, x, _ := sw.Series()
	assert.Less(t, r, 1e-3)
	assert.Less(t, x, 1e-3)

	sw.Closed = false
	r, x, _ = sw.Series()
	assert.Equal(t, 1.0, r)
	assert.Equal(t, 1.0, x)
}
