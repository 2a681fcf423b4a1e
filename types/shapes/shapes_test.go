package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	assert.False(t, invalidShape.Ok())

	shape0 := Make(dtypes.Float64)
	assert.True(t, shape0.Ok())
	assert.True(t, shape0.IsScalar())
	assert.Equal(t, 0, shape0.Rank())
	assert.Equal(t, 1, shape0.Size())
	assert.Equal(t, 8, int(shape0.Memory()))
	assert.Equal(t, "Float64[]", shape0.String())

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	assert.False(t, shape1.IsScalar())
	assert.Equal(t, 3, shape1.Rank())
	assert.Equal(t, 4*3*2, shape1.Size())
	assert.Equal(t, 4*4*3*2, int(shape1.Memory()))
	assert.Equal(t, "Float32[4,3,2]", shape1.String())

	// Zero-sized dimensions are valid.
	empty := Make(dtypes.Int64, 3, 0)
	assert.Equal(t, 0, empty.Size())

	require.Panics(t, func() { _ = Make(dtypes.Float32, 2, -1) })
}

func TestDim(t *testing.T) {
	shape := Make(dtypes.Float32, 4, 3, 2)
	assert.Equal(t, 4, shape.Dim(0))
	assert.Equal(t, 3, shape.Dim(1))
	assert.Equal(t, 2, shape.Dim(2))
	assert.Equal(t, 4, shape.Dim(-3))
	assert.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestEqualIgnoresSymbolicDims(t *testing.T) {
	shape := Make(dtypes.Float32, 2, 3)
	symbolic := shape.WithSymbolicDims([]bool{true, false})
	other := shape.WithSymbolicDims([]bool{false, true})
	assert.True(t, shape.Equal(symbolic))
	assert.True(t, symbolic.Equal(other))
	assert.Equal(t, shape.Hash(true), symbolic.Hash(true))
	assert.Equal(t, shape.Hash(false), other.Hash(false))
	assert.False(t, shape.Equal(Make(dtypes.Float64, 2, 3)))
	assert.False(t, shape.Equal(Make(dtypes.Float32, 3, 2)))
}

func TestHash(t *testing.T) {
	a := Make(dtypes.Float32, 2, 3)
	b := Make(dtypes.Float32, 4, 5)
	c := Make(dtypes.Float32, 2, 3, 1)
	d := Make(dtypes.Int32, 2, 3)

	// With sizes: sensitive to the dimension values.
	assert.NotEqual(t, a.Hash(true), b.Hash(true))
	assert.Equal(t, a.Hash(true), Make(dtypes.Float32, 2, 3).Hash(true))

	// Without sizes: only rank and dtype matter.
	assert.Equal(t, a.Hash(false), b.Hash(false))
	assert.NotEqual(t, a.Hash(false), c.Hash(false))
	assert.NotEqual(t, a.Hash(false), d.Hash(false))
	assert.NotEqual(t, a.Hash(true), d.Hash(true))
}

func TestWithSymbolicDims(t *testing.T) {
	shape := Make(dtypes.Float32, 2, 3)
	symbolic := shape.WithSymbolicDims([]bool{true, false})

	// Copy keeps the unrelated fields and doesn't touch the original.
	assert.Equal(t, []int{2, 3}, symbolic.Dimensions)
	assert.Equal(t, dtypes.Float32, symbolic.DType)
	assert.False(t, shape.HasSymbolicDims())
	assert.True(t, symbolic.HasSymbolicDims())
	assert.True(t, symbolic.IsSymbolicDim(0))
	assert.False(t, symbolic.IsSymbolicDim(-1))
	assert.Equal(t, "Float32[?2,3]", symbolic.SymbolicString())
	assert.Equal(t, "Float32[2,3]", symbolic.String())

	symbolic.Dimensions[0] = 7
	assert.Equal(t, 2, shape.Dimensions[0])

	cleared := symbolic.WithSymbolicDims(nil)
	assert.False(t, cleared.HasSymbolicDims())

	// Length mismatch is an invariant breach, not a silent truncation.
	require.Panics(t, func() { _ = shape.WithSymbolicDims([]bool{true}) })
	require.Panics(t, func() { _ = shape.WithSymbolicDims([]bool{true, false, true}) })
}

func TestFromAnyValue(t *testing.T) {
	shape := must.M1(FromAnyValue([]int32{1, 2, 3}))
	assert.True(t, shape.Equal(Make(dtypes.Int32, 3)))

	shape = must.M1(FromAnyValue([][][]complex64{{{1, 2, -3}, {3, 4 + 2i, -7 - 1i}}}))
	assert.True(t, shape.Equal(Make(dtypes.Complex64, 1, 2, 3)))

	shape = must.M1(FromAnyValue(float32(1)))
	assert.True(t, shape.IsScalar())

	// Irregular shape is not accepted:
	_, err := FromAnyValue([][]float32{{1, 2, 3}, {4, 5}})
	require.Error(t, err)
	_, err = FromAnyValue(nil)
	require.Error(t, err)
}

func TestFromFlatAndDimensions(t *testing.T) {
	shape := must.M1(FromFlatAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3))
	assert.True(t, shape.Equal(Make(dtypes.Float32, 2, 3)))

	_, err := FromFlatAndDimensions([]float32{1, 2, 3}, 2, 3)
	require.Error(t, err)
	_, err = FromFlatAndDimensions(3.0)
	require.Error(t, err)
	_, err = FromFlatAndDimensions([]string{"a"}, 1)
	require.Error(t, err)
}
