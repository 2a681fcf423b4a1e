package lazyir

import (
	"fmt"
	"math"
	"reflect"
	"sync"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/lazyir/types/hash"
	"github.com/gomlx/lazyir/types/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DeviceData is an input to the graph: data already on a device, referenced by a handle.
//
// The handle is not part of the hash: graphs that only differ on their inputs' data are the same graph.
type DeviceData struct {
	*Node
	Handle string
}

// NewDeviceData creates a DeviceData node with the given shape.
func NewDeviceData(handle string, shape shapes.Shape) *DeviceData {
	return MakeNode(&DeviceData{
		Node:   NewNodeWithShape(OpDeviceData, shape, 1, hash.Seed),
		Handle: handle,
	})
}

// Describe implements describer.
func (d *DeviceData) Describe() string {
	return "handle=" + NormalizeIdentifier(d.Handle)
}

// Constant holds a tensor value embedded in the graph. Its hashes include the hash of its data.
type Constant struct {
	*Node

	// Flat is the slice with the values in row-major order.
	Flat any
}

// NewConstant creates a Constant node from a flat slice of values of a supported dtype and its dimensions.
//
// The data is hashed once, on the first request of a hash, and the slice must not be modified afterwards.
func NewConstant(flat any, dimensions ...int) (*Constant, error) {
	shape, err := shapes.FromFlatAndDimensions(flat, dimensions...)
	if err != nil {
		return nil, errors.WithMessage(err, "lazyir.NewConstant")
	}
	dataHash := sync.OnceValue(func() hash.Hash { return hash.DataHash(flatBytes(flat)) })
	node := NewLeafNode(OpConstant, 1, func(bakeInSizes bool) hash.Hash {
		return hash.Combine(hash.Combine(OpConstant.Hash(), dataHash()), shape.Hash(bakeInSizes))
	})
	node.shapes = []shapes.Shape{shape}
	return MakeNode(&Constant{Node: node, Flat: flat}), nil
}

// NewScalarConstant creates a Constant node from a Go scalar value of a supported dtype.
func NewScalarConstant(value any) (*Constant, error) {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return nil, errors.New("lazyir.NewScalarConstant: nil value")
	}
	flat := reflect.MakeSlice(reflect.SliceOf(v.Type()), 1, 1)
	flat.Index(0).Set(v)
	return NewConstant(flat.Interface())
}

// flatBytes returns a view of the memory of the flat slice.
func flatBytes(flat any) []byte {
	v := reflect.ValueOf(flat)
	if v.Len() == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(v.UnsafePointer()), v.Len()*int(v.Type().Elem().Size()))
}

// Describe implements describer.
func (c *Constant) Describe() string {
	shape := c.Shape(0)
	if shape.Size() <= 4 {
		return fmt.Sprintf("value=%v", c.Flat)
	}
	return "size=" + humanize.Bytes(uint64(shape.Memory()))
}

// Scalar is a scalar value of a dtype, known when building the graph.
type Scalar struct {
	*Node
	Literal float64
}

// NewScalar creates a Scalar node. The value is converted to the dtype before hashing, so values
// that map to the same dtype value (e.g. 0.1 and 0.1000001 in Float16) hash the same.
func NewScalar(value float64, dtype dtypes.DType) *Scalar {
	return MakeNode(&Scalar{
		Node:    NewNodeWithShape(OpScalar, shapes.Make(dtype), 1, scalarHash(value, dtype)),
		Literal: value,
	})
}

func scalarHash(value float64, dtype dtypes.DType) hash.Hash {
	var bits uint64
	switch dtype {
	case dtypes.Float64:
		bits = math.Float64bits(value)
	case dtypes.Float32:
		bits = uint64(math.Float32bits(float32(value)))
	case dtypes.Float16:
		bits = uint64(float16.Fromfloat32(float32(value)).Bits())
	case dtypes.BFloat16:
		bits = uint64(bfloat16.FromFloat32(float32(value)))
	case dtypes.Bool:
		return hash.Combine(hash.Seed, hash.Bool(value != 0))
	case dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64:
		bits = uint64(int64(value))
	case dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64:
		bits = uint64(value)
	default:
		exceptions.Panicf("lazyir.NewScalar: dtype %s not supported for scalars", dtype)
	}
	return hash.Combine(hash.Seed, hash.Uint64(bits))
}

// Describe implements describer.
func (s *Scalar) Describe() string {
	return fmt.Sprintf("value=%g", s.Literal)
}

// Cast converts its operand to another dtype. Its shape is only computed when first used.
type Cast struct {
	*Node
	DType dtypes.DType
}

// NewCast creates a Cast node from operand to dtype.
func NewCast(operand Value, dtype dtypes.DType) *Cast {
	if !operand.Ok() {
		exceptions.Panicf("lazyir.NewCast(%s): null operand", dtype)
	}
	shapeFn := func() []shapes.Shape {
		shape := operand.Shape().Clone()
		shape.DType = dtype
		return []shapes.Shape{shape}
	}
	return MakeNode(&Cast{
		Node:  NewNodeLazyShape(OpCast, []Value{operand}, shapeFn, 1, hash.Combine(hash.Seed, hash.Int(int(dtype)))),
		DType: dtype,
	})
}

// Describe implements describer.
func (c *Cast) Describe() string {
	return "dtype=" + c.DType.String()
}

// Generic is any operation given by its OpKind, operands and output shapes.
type Generic struct {
	*Node
}

// NewGeneric creates a Generic node with one output per shape.
// Null operands are allowed for optional operands, see NewNode.
func NewGeneric(op OpKind, operands []Value, outputShapes []shapes.Shape, seed hash.Hash) *Generic {
	return MakeNode(&Generic{Node: NewNode(op, operands, outputShapes, len(outputShapes), seed)})
}
