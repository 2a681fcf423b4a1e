package lazyir

import (
	"bytes"
	"testing"

	"github.com/gomlx/lazyir/types/hash"
	"github.com/gomlx/lazyir/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var opMul = GetOpKind("aten::mul")

func buildScaledGraph(name, handle string, dims ...int) (b *Builder, x *DeviceData, c *Cast, mul *Generic) {
	x = NewDeviceData(handle, S(F32, dims...))
	c = NewCast(x.Value(0), F64)
	s := NewScalar(2, F64)
	mul = NewGeneric(opMul, []Value{c.Value(0), s.Value(0)}, []shapes.Shape{S(F64, dims...)}, hash.Seed)
	b = New(name).AddOutputs(mul.Value(0), x.Value(0))
	return
}

func TestBuilder(t *testing.T) {
	b, x, c, mul := buildScaledGraph("my graph", "x", 2, 3)
	assert.Equal(t, "my graph", b.Name())
	assert.Len(t, b.Outputs(), 2)

	order := b.PostOrder()
	require.Len(t, order, 4)
	assert.Same(t, x.Node, order[0])
	assert.Same(t, c.Node, order[1])
	assert.Equal(t, OpScalar, order[2].Op())
	assert.Same(t, mul.Node, order[3])

	program := must.M1(b.Build())
	want := `IR @my_graph {
  %0 = Float32[2,3] lazy::device_data(), handle=x
  %1 = Float64[2,3] lazy::cast(%0), dtype=Float64
  %2 = Float64[] lazy::scalar(), value=2
  %3 = Float64[2,3] aten::mul(%1, %2)
  return %3, %0
}
`
	assert.Equal(t, want, string(program))

	users := b.Users()
	assert.Equal(t, []*Node{c.Node}, users[x.AsOutput(0)])
	assert.Equal(t, []*Node{mul.Node}, users[c.AsOutput(0)])
	assert.NotContains(t, users, mul.AsOutput(0))
}

func TestBuilderMultiOutput(t *testing.T) {
	x := NewDeviceData("x", S(F32, 2, 3))
	m := NewGeneric(opMax, []Value{x.Value(0)}, []shapes.Shape{S(F32, 2), S(I64, 2)}, hash.Seed)
	sum := NewGeneric(opAdd, []Value{m.Value(0), m.Value(1)}, []shapes.Shape{S(F32, 2)}, hash.Seed)
	b := New("multi").AddOutputs(sum.Value(0), m.Value(1))
	var buf bytes.Buffer
	require.NoError(t, b.Write(&buf))
	want := `IR @multi {
  %0 = Float32[2,3] lazy::device_data(), handle=x
  %1 = (Float32[2], Int64[2]) aten::max(%0), num_outputs=2
  %2 = Float32[2] aten::add(%1, %1.1)
  return %2, %1.1
}
`
	assert.Equal(t, want, buf.String())
}

func TestBuilderHash(t *testing.T) {
	b1, _, _, _ := buildScaledGraph("a", "x", 2, 3)
	b2, _, _, _ := buildScaledGraph("b", "y", 2, 3)
	b3, _, _, _ := buildScaledGraph("c", "x", 7, 3)
	assert.Equal(t, b1.HashWithSizes(), b2.HashWithSizes())
	assert.NotEqual(t, b1.HashWithSizes(), b3.HashWithSizes())
	assert.Equal(t, b1.HashWithoutSizes(), b3.HashWithoutSizes())

	withDynamicShapes(t, true)
	assert.Equal(t, b1.Hash(), b3.Hash())

	// Outputs order matters.
	x := b1.Outputs()[1]
	reordered := New("reordered").AddOutputs(x, b1.Outputs()[0])
	assert.NotEqual(t, b1.HashWithSizes(), reordered.HashWithSizes())
}

func TestBuilderErrors(t *testing.T) {
	_, err := New("empty").Build()
	require.Error(t, err)

	x := NewDeviceData("x", S(F32))
	b := New("null").AddOutputs(x.Value(0), Value{})
	_, err = b.Build()
	require.Error(t, err)

	// Write doesn't check.
	var buf bytes.Buffer
	require.NoError(t, b.Write(&buf))
	assert.Contains(t, buf.String(), "return %0, null")
	assert.Len(t, b.PostOrder(), 1)
}
