package shapes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolicShape(t *testing.T) {
	unknown := UnknownRankShape()
	_, ok := unknown.Rank()
	assert.False(t, ok)
	_, ok = unknown.SymbolicDims()
	assert.False(t, ok)
	assert.False(t, unknown.IsComplete())
	assert.Equal(t, "[*]", unknown.String())
	assert.True(t, unknown.Equal(SymbolicShape{}))

	concrete := ConcreteShape([]int{4})
	assert.True(t, concrete.IsComplete())
	sizes, ok := concrete.Sizes()
	require.True(t, ok)
	assert.Equal(t, []int{4}, sizes)
	flags, ok := concrete.SymbolicDims()
	require.True(t, ok)
	assert.Equal(t, []bool{false}, flags)

	partial := SymbolicShapeOf(UnknownDim(), Dim(5))
	rank, ok := partial.Rank()
	require.True(t, ok)
	assert.Equal(t, 2, rank)
	flags, _ = partial.SymbolicDims()
	assert.Equal(t, []bool{true, false}, flags)
	assert.Equal(t, "[?,5]", partial.String())
	size, known := partial.At(-1).Size()
	assert.True(t, known)
	assert.Equal(t, 5, size)
	assert.False(t, partial.At(0).IsKnown())
	_, ok = partial.Sizes()
	assert.False(t, ok)

	// Rank-0 is known and complete.
	scalar := ConcreteShape(nil)
	assert.True(t, scalar.IsComplete())
	assert.False(t, scalar.Equal(unknown))

	require.Panics(t, func() { _ = Dim(-1) })
	require.Panics(t, func() { _ = unknown.At(0) })
	require.Panics(t, func() { _ = partial.At(2) })
}
