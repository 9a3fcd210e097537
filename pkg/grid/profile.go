package grid

import "sort"

// Profile is a lazy time-varying sequence backing one scalar device
// attribute. Its length must equal the circuit's time-axis length
// whenever time series are enabled.
type Profile[T any] interface {
	At(timeIndex int) T
	Len() int
}

// DenseProfile backs a Profile with a full array, one value per time
// index.
type DenseProfile[T any] struct {
	Values []T
}

// NewDenseProfile wraps an existing value slice.
func NewDenseProfile[T any](values []T) *DenseProfile[T] {
	return &DenseProfile[T]{Values: values}
}

func (p *DenseProfile[T]) At(timeIndex int) T { return p.Values[timeIndex] }
func (p *DenseProfile[T]) Len() int           { return len(p.Values) }

// patch is one override entry in a SparsePatchProfile, sorted by
// TimeIndex.
type patch[T any] struct {
	TimeIndex int
	Value     T
}

// SparsePatchProfile backs a Profile with a default value plus a sorted
// set of (time_index, value) overrides — used when only a handful of
// time steps deviate from the nominal value (e.g. a maintenance outage
// window).
type SparsePatchProfile[T any] struct {
	Default T
	length  int
	patches []patch[T]
}

// NewSparsePatchProfile creates a profile of the given length returning
// def everywhere until overridden.
func NewSparsePatchProfile[T any](def T, length int) *SparsePatchProfile[T] {
	return &SparsePatchProfile[T]{Default: def, length: length}
}

// Set overrides the value at timeIndex, keeping patches sorted by index.
func (p *SparsePatchProfile[T]) Set(timeIndex int, value T) {
	i := sort.Search(len(p.patches), func(i int) bool { return p.patches[i].TimeIndex >= timeIndex })
	if i < len(p.patches) && p.patches[i].TimeIndex == timeIndex {
		p.patches[i].Value = value
		return
	}
	p.patches = append(p.patches, patch[T]{})
	copy(p.patches[i+1:], p.patches[i:])
	p.patches[i] = patch[T]{TimeIndex: timeIndex, Value: value}
}

func (p *SparsePatchProfile[T]) At(timeIndex int) T {
	i := sort.Search(len(p.patches), func(i int) bool { return p.patches[i].TimeIndex >= timeIndex })
	if i < len(p.patches) && p.patches[i].TimeIndex == timeIndex {
		return p.patches[i].Value
	}
	return p.Default
}

func (p *SparsePatchProfile[T]) Len() int { return p.length }
