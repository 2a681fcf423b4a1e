package shapes

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
)

// SymbolicDim is one dimension of a SymbolicShape: either a known size or unknown.
// The zero value is an unknown dimension.
type SymbolicDim struct {
	size  int
	known bool
}

// Dim returns a known dimension of the given size.
func Dim(size int) SymbolicDim {
	if size < 0 {
		exceptions.Panicf("shapes.Dim(%d): dimensions cannot be negative", size)
	}
	return SymbolicDim{size: size, known: true}
}

// UnknownDim returns a dimension whose size is not known.
func UnknownDim() SymbolicDim { return SymbolicDim{} }

// IsKnown returns whether the dimension has a known size.
func (d SymbolicDim) IsKnown() bool { return d.known }

// Size returns the dimension size and whether it is known.
func (d SymbolicDim) Size() (int, bool) { return d.size, d.known }

// String returns the size, or "?" if unknown.
func (d SymbolicDim) String() string {
	if !d.known {
		return "?"
	}
	return strconv.Itoa(d.size)
}

// SymbolicShape is the shape descriptor exchanged with the shape inference oracle: the rank may
// be unknown, and each dimension of a ranked shape may be unknown.
//
// The zero value has an unknown rank.
type SymbolicShape struct {
	dims   []SymbolicDim
	ranked bool
}

// UnknownRankShape returns a SymbolicShape where nothing is known, not even the rank.
func UnknownRankShape() SymbolicShape { return SymbolicShape{} }

// ConcreteShape returns a ranked SymbolicShape with all dimensions known.
func ConcreteShape(dimensions []int) SymbolicShape {
	dims := make([]SymbolicDim, len(dimensions))
	for i, d := range dimensions {
		dims[i] = Dim(d)
	}
	return SymbolicShape{dims: dims, ranked: true}
}

// SymbolicShapeOf returns a ranked SymbolicShape with the given dimensions.
func SymbolicShapeOf(dims ...SymbolicDim) SymbolicShape {
	return SymbolicShape{dims: slices.Clone(dims), ranked: true}
}

// Rank returns the rank, and false if the rank is not known.
func (s SymbolicShape) Rank() (int, bool) {
	return len(s.dims), s.ranked
}

// HasRank returns whether the rank is known.
func (s SymbolicShape) HasRank() bool { return s.ranked }

// Dims returns a copy of the dimensions. It is nil for shapes of unknown rank.
func (s SymbolicShape) Dims() []SymbolicDim {
	return slices.Clone(s.dims)
}

// At returns the dimension of the given axis; negative axes count from the end.
// It panics if the rank is unknown or the axis is out of range.
func (s SymbolicShape) At(axis int) SymbolicDim {
	if !s.ranked {
		exceptions.Panicf("SymbolicShape.At(%d) on a shape of unknown rank", axis)
	}
	adjusted := axis
	if adjusted < 0 {
		adjusted += len(s.dims)
	}
	if adjusted < 0 || adjusted >= len(s.dims) {
		exceptions.Panicf("SymbolicShape.At(%d) out-of-bounds for rank %d (shape=%s)", axis, len(s.dims), s)
	}
	return s.dims[adjusted]
}

// SymbolicDims returns, for each axis, whether its dimension is unknown.
// It returns false if the rank itself is unknown.
func (s SymbolicShape) SymbolicDims() ([]bool, bool) {
	if !s.ranked {
		return nil, false
	}
	flags := make([]bool, len(s.dims))
	for i, d := range s.dims {
		flags[i] = !d.known
	}
	return flags, true
}

// IsComplete returns whether the rank and all dimensions are known.
func (s SymbolicShape) IsComplete() bool {
	if !s.ranked {
		return false
	}
	for _, d := range s.dims {
		if !d.known {
			return false
		}
	}
	return true
}

// Sizes returns the concrete dimensions, and false if the shape is not complete.
func (s SymbolicShape) Sizes() ([]int, bool) {
	if !s.IsComplete() {
		return nil, false
	}
	sizes := make([]int, len(s.dims))
	for i, d := range s.dims {
		sizes[i] = d.size
	}
	return sizes, true
}

// Equal returns whether both shapes have the same rank (or both unknown) and the same dimensions.
func (s SymbolicShape) Equal(s2 SymbolicShape) bool {
	return s.ranked == s2.ranked && slices.Equal(s.dims, s2.dims)
}

// String implements fmt.Stringer: "[2,?]" for ranked shapes and "[*]" for unknown rank.
func (s SymbolicShape) String() string {
	if !s.ranked {
		return "[*]"
	}
	parts := make([]string, len(s.dims))
	for i, d := range s.dims {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}
