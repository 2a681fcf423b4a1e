package lazyir

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/types/hash"
	"github.com/gomlx/lazyir/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Aliases
var (
	S   = shapes.Make
	F32 = dtypes.Float32
	F64 = dtypes.Float64
	I64 = dtypes.Int64
)

var (
	opAdd = GetOpKind("aten::add")
	opMax = GetOpKind("aten::max")
)

// withDynamicShapes fixes the dynamic shapes mode for the duration of the test.
func withDynamicShapes(t *testing.T, enabled bool) {
	previous := dynamicShapes
	dynamicShapes = NewLatch("test dynamic shapes", func() bool { return enabled })
	t.Cleanup(func() { dynamicShapes = previous })
}

type testMetaData string

func (m testMetaData) String() string { return string(m) }

func TestOpKind(t *testing.T) {
	assert.Equal(t, GetOpKind("aten::add"), opAdd)
	assert.NotEqual(t, opAdd, opMax)
	assert.Equal(t, "aten::add", opAdd.String())
	assert.Equal(t, hash.String("aten::add"), opAdd.Hash())
	assert.True(t, opAdd.Less(opMax))
	assert.False(t, OpKind{}.Ok())
	assert.Equal(t, "<invalid>", OpKind{}.String())
	assert.Equal(t, "lazy::device_data", OpDeviceData.String())
}

func TestNodeHashOrder(t *testing.T) {
	a := NewDeviceData("a", S(F32, 2))
	b := NewDeviceData("b", S(F32, 3))
	require.NotEqual(t, a.HashWithSizes(), b.HashWithSizes())
	outputShapes := []shapes.Shape{S(F32, 3)}
	ab := NewGeneric(opAdd, []Value{a.Value(0), b.Value(0)}, outputShapes, hash.Seed)
	ba := NewGeneric(opAdd, []Value{b.Value(0), a.Value(0)}, outputShapes, hash.Seed)
	assert.NotEqual(t, ab.HashWithSizes(), ba.HashWithSizes())
	assert.Equal(t, ab.NodeHash(), ba.NodeHash())

	// Same structure: same hashes.
	ab2 := NewGeneric(opAdd, []Value{a.Value(0), b.Value(0)}, outputShapes, hash.Seed)
	assert.Equal(t, ab.HashWithSizes(), ab2.HashWithSizes())
	assert.Equal(t, ab.HashWithoutSizes(), ab2.HashWithoutSizes())

	// Different seed.
	ab3 := NewGeneric(opAdd, []Value{a.Value(0), b.Value(0)}, outputShapes, hash.Int(1))
	assert.NotEqual(t, ab.HashWithSizes(), ab3.HashWithSizes())
}

func TestNodeHashWithoutSizes(t *testing.T) {
	build := func(dims ...int) *Generic {
		x := NewDeviceData("x", S(F32, dims...))
		return NewGeneric(opAdd, []Value{x.Value(0), x.Value(0)}, []shapes.Shape{S(F32, dims...)}, hash.Seed)
	}
	n1, n2 := build(2, 3), build(5, 7)
	assert.NotEqual(t, n1.HashWithSizes(), n2.HashWithSizes())
	assert.Equal(t, n1.HashWithoutSizes(), n2.HashWithoutSizes())

	// Rank is still part of the hash without sizes.
	n3 := build(6)
	assert.NotEqual(t, n1.HashWithoutSizes(), n3.HashWithoutSizes())

	withDynamicShapes(t, true)
	assert.Equal(t, n1.HashWithoutSizes(), n1.Hash())
	assert.Equal(t, n1.Hash(), n2.Hash())
}

func TestNodeHashStaticMode(t *testing.T) {
	withDynamicShapes(t, false)
	x := NewDeviceData("x", S(F32, 2, 3))
	assert.Equal(t, x.HashWithSizes(), x.Hash())
	assert.Equal(t, x.HashWithSizes(), x.NodeHash())
	v := x.Value(0)
	assert.Equal(t, hash.Combine(x.Hash(), hash.Int(0)), v.Hash())
	assert.Equal(t, v.Hash(), v.Output().Hash())
}

func TestLeafNode(t *testing.T) {
	withDynamicShapes(t, true)
	var calls []bool
	n := NewLeafNode(GetOpKind("test::leaf"), 1, func(bakeInSizes bool) hash.Hash {
		calls = append(calls, bakeInSizes)
		return hash.Bool(bakeInSizes)
	})
	assert.Equal(t, []bool{false, true, false}, calls)
	assert.Equal(t, hash.Bool(false), n.NodeHash())
	assert.Equal(t, hash.Bool(true), n.HashWithSizes())
	assert.Equal(t, hash.Bool(false), n.HashWithoutSizes())
	assert.Equal(t, 0, n.NumOperands())

	n = NewNodeWithDAGHash(GetOpKind("test::leaf"), 2, hash.Int(3), hash.Bool)
	assert.Equal(t, hash.Int(3), n.NodeHash())
	assert.Equal(t, hash.Bool(true), n.HashWithSizes())
	assert.Equal(t, 2, n.NumOutputs())
}

func TestAddOperand(t *testing.T) {
	a := NewDeviceData("a", S(F32, 2))
	b := NewGeneric(opMax, []Value{a.Value(0)}, []shapes.Shape{S(F32), S(I64)}, hash.Seed)
	n := NewGeneric(opAdd, []Value{a.Value(0), {}, b.Value(1)}, []shapes.Shape{S(F32, 2)}, hash.Seed)
	require.Equal(t, 2, n.NumOperands())
	require.Len(t, n.Operands(), n.NumOperands())
	for i, operand := range n.Operands() {
		assert.Same(t, n.OperandNode(i), operand.Node)
		assert.Equal(t, operand, n.Operand(i))
	}
	assert.Equal(t, Output{Node: b.Node, Index: 1}, n.Operand(1))
	assert.Equal(t, S(I64), n.Operand(1).Shape())

	// The null operand is still part of the hash.
	withoutNull := NewGeneric(opAdd, []Value{a.Value(0), b.Value(1)}, []shapes.Shape{S(F32, 2)}, hash.Seed)
	assert.NotEqual(t, withoutNull.HashWithSizes(), n.HashWithSizes())
	assert.Equal(t,
		OperandHashes([]Value{a.Value(0), {}, b.Value(1)}, hash.Seed, true),
		OperandHashes([]Value{a.Value(0), {}, b.Value(1)}, hash.Seed, true))

	n.AddOperand(b.Node, 0)
	assert.Equal(t, 3, n.NumOperands())
	assert.Len(t, n.Operands(), 3)
	assert.Same(t, b.Node, n.OperandNode(2))

	require.Panics(t, func() { n.AddOperand(b.Node, 2) })
	require.Panics(t, func() { n.AddOperand(nil, 0) })
	require.Panics(t, func() { _ = n.Operand(10) })
	require.Panics(t, func() { _ = a.Value(1) })
}

func TestNewNodeShapesMismatch(t *testing.T) {
	require.Panics(t, func() {
		_ = NewNode(opAdd, nil, []shapes.Shape{S(F32)}, 2, hash.Seed)
	})
}

func TestLazyShape(t *testing.T) {
	x := NewDeviceData("x", S(F32, 2, 3))
	var calls int
	n := NewNodeLazyShape(GetOpKind("test::lazy"), []Value{x.Value(0)}, func() []shapes.Shape {
		calls++
		return []shapes.Shape{S(F32, 3, 2)}
	}, 1, hash.Seed)
	assert.Equal(t, 0, calls)
	assert.Equal(t, S(F32, 3, 2), n.Shape(0))
	assert.Equal(t, S(F32, 3, 2), n.Shapes()[0])
	assert.Equal(t, 1, calls)

	bad := NewNodeLazyShape(GetOpKind("test::lazy"), []Value{x.Value(0)}, func() []shapes.Shape {
		return []shapes.Shape{S(F32), S(F32)}
	}, 1, hash.Seed)
	require.Panics(t, func() { _ = bad.Shapes() })
}

func TestNodeCast(t *testing.T) {
	x := NewDeviceData("x", S(F32, 2))
	c := NewCast(x.Value(0), F64)
	assert.Same(t, x, NodeCast[*DeviceData](x.Node, OpDeviceData))
	assert.Nil(t, NodeCast[*DeviceData](x.Node, OpCast))
	assert.Nil(t, NodeCast[*Cast](x.Node, OpDeviceData))
	assert.Same(t, c, NodeCast[*Cast](c.Node, OpCast))
	assert.Nil(t, NodeCast[*Cast](nil, OpCast))

	plain := NewNode(opAdd, []Value{x.Value(0)}, []shapes.Shape{S(F32, 2)}, 1, hash.Seed)
	assert.Same(t, plain, NodeCast[*Node](plain, opAdd))
	assert.Nil(t, NodeCast[*Generic](plain, opAdd))
}

func TestUserMetaData(t *testing.T) {
	x := NewDeviceData("x", S(F32, 2))
	assert.Nil(t, x.UserMetaData())
	assert.Nil(t, x.SetUserMetaData(testMetaData("first")))
	previous := x.SetUserMetaData(testMetaData("second"))
	assert.Equal(t, testMetaData("first"), previous)
	assert.Equal(t, "second", x.UserMetaData().String())
	assert.Equal(t, testMetaData("second"), x.SetUserMetaData(nil))
	assert.Nil(t, x.UserMetaData())
}

func TestMetaData(t *testing.T) {
	previous := irDebug
	t.Cleanup(func() { irDebug = previous })

	irDebug = NewLatch("test IR debug", func() bool { return false })
	assert.Empty(t, NewDeviceData("x", S(F32)).MetaData().Frames)

	irDebug = NewLatch("test IR debug", func() bool { return true })
	md := NewDeviceData("x", S(F32)).MetaData()
	require.NotEmpty(t, md.Frames)
	assert.Contains(t, md.Frames[0].Function, "TestMetaData")
	assert.Contains(t, md.String(), "node_test.go")
}

func TestNodeString(t *testing.T) {
	x := NewDeviceData("x", S(F32, 2, 3))
	assert.Equal(t, "Float32[2,3] lazy::device_data, handle=x", x.String())
	m := NewGeneric(opMax, []Value{x.Value(0)}, []shapes.Shape{S(F32, 2), S(I64, 2)}, hash.Seed)
	assert.Equal(t, "(Float32[2], Int64[2]) aten::max, num_outputs=2", m.String())
	assert.Equal(t, "(Float32[2], Int64[2]) aten::max, num_outputs=2, index=1", m.Value(1).String())
	assert.Equal(t, "null", Value{}.String())
	assert.False(t, Value{}.Ok())
}

func TestOutputMap(t *testing.T) {
	x := NewDeviceData("x", S(F32, 2))
	m := NewGeneric(opMax, []Value{x.Value(0)}, []shapes.Shape{S(F32), S(I64)}, hash.Seed)
	outputs := make(OutputMap[string])
	outputs[m.AsOutput(0)] = "max"
	outputs[m.AsOutput(1)] = "argmax"
	assert.Len(t, outputs, 2)
	assert.Equal(t, "argmax", outputs[Output{Node: m.Node, Index: 1}])
	assert.Equal(t, m.Value(1), m.AsOutput(1).Value())
}
