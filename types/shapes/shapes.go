// Package shapes defines the Shape of the outputs of IR nodes, and the SymbolicShape descriptors
// exchanged with the shape inference oracle.
//
// A Shape holds a DType (from github.com/gomlx/gopjrt/dtypes), the dimensions, and optionally a
// per-axis "symbolic" annotation, marking the dimensions whose value is only known at runtime.
//
// Shapes have value semantics: methods that "change" a shape, like WithSymbolicDims, return a
// modified copy.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a shape.
//   - Axis: the index of a dimension.
//   - Dimension: the size of a shape in one of its axes.
//   - Symbolic dimension: a dimension whose concrete size is not known when the graph is built.
//   - Bake-in-sizes: whether a hash incorporates the concrete dimensions, or only the rank and dtype.
package shapes

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/types/hash"
)

// Shape describes one output of an IR node.
//
// Use Make to create a new shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int

	// IsSymbolic is either nil (no annotation) or has one entry per axis, true if the
	// dimension is symbolic.
	IsSymbolic []bool
}

// Make returns a Shape with the given dtype and dimensions, without symbolic annotation.
//
// Dimensions can be 0, but not negative.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with a negative dimension", s)
		}
	}
	return s
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" Shape{} is invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar (rank 0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. Negative axes count from the end.
// It panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Size returns the number of elements of the shape: the product of all dimensions, 1 for scalars.
// Overflows are not checked.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the number of bytes needed to store the shape's elements.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal compares DType and dimensions. The symbolic annotation is not compared.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	s2.IsSymbolic = slices.Clone(s.IsSymbolic)
	return
}

// Hash of the shape.
//
// With bakeInSizes it depends on the dtype and the values of the dimensions. Without it, only on
// the dtype and the rank: shapes that differ only on their dimensions (with the same rank) share
// the same hash.
//
// The symbolic annotation is never part of the hash.
func (s Shape) Hash(bakeInSizes bool) hash.Hash {
	if bakeInSizes {
		return hash.Combine(hash.Int(int(s.DType)), hash.Ints(s.Dimensions))
	}
	return hash.Combine(hash.Int(int(s.DType)), hash.Int(s.Rank()))
}

// WithSymbolicDims returns a copy of the shape with the given symbolic annotation.
// A nil isSymbolic clears the annotation.
//
// It panics if isSymbolic is not nil and its length differs from the rank.
func (s Shape) WithSymbolicDims(isSymbolic []bool) Shape {
	if isSymbolic != nil && len(isSymbolic) != s.Rank() {
		exceptions.Panicf("Shape.WithSymbolicDims(%v): %d symbolic flags given for shape %s of rank %d",
			isSymbolic, len(isSymbolic), s, s.Rank())
	}
	s2 := s.Clone()
	s2.IsSymbolic = slices.Clone(isSymbolic)
	return s2
}

// HasSymbolicDims returns whether the shape carries a symbolic annotation. The annotation
// may still mark all axes as concrete.
func (s Shape) HasSymbolicDims() bool { return s.IsSymbolic != nil }

// IsSymbolicDim returns whether the given axis is annotated as symbolic.
// Axes of shapes without annotation are never symbolic.
func (s Shape) IsSymbolicDim(axis int) bool {
	if s.IsSymbolic == nil {
		return false
	}
	if axis < 0 {
		axis += s.Rank()
	}
	return s.IsSymbolic[axis]
}

// Shape returns the shape itself, so Shape can be used where something with a Shape is expected.
func (s Shape) Shape() Shape { return s }

// String implements fmt.Stringer, in the form "Float32[2,3]". Scalars are rendered as "Float32[]".
func (s Shape) String() string {
	var sb strings.Builder
	sb.WriteString(s.DType.String())
	sb.WriteByte('[')
	for i, dim := range s.Dimensions {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(dim))
	}
	sb.WriteByte(']')
	return sb.String()
}

// SymbolicString is like String, but with "?" prefixed to the symbolic axes, e.g. "Float32[?2,3]".
func (s Shape) SymbolicString() string {
	if s.IsSymbolic == nil {
		return s.String()
	}
	var sb strings.Builder
	sb.WriteString(s.DType.String())
	sb.WriteByte('[')
	for i, dim := range s.Dimensions {
		if i > 0 {
			sb.WriteByte(',')
		}
		if s.IsSymbolic[i] {
			sb.WriteByte('?')
		}
		sb.WriteString(strconv.Itoa(dim))
	}
	sb.WriteByte(']')
	return sb.String()
}
