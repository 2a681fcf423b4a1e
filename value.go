package lazyir

import (
	"fmt"

	"github.com/gomlx/lazyir/types/hash"
	"github.com/gomlx/lazyir/types/shapes"
)

// Value references one output of a node, and keeps the node reachable for as long as it is held.
// It is what operands are built from.
//
// The zero Value is null: it can be passed as an absent (optional) operand.
type Value struct {
	Node  *Node
	Index int
}

// Ok returns whether the value is non-null.
func (v Value) Ok() bool { return v.Node != nil }

// Output returns the value as an Output.
func (v Value) Output() Output {
	return Output{Node: v.Node, Index: v.Index}
}

// Shape returns the shape of the value.
func (v Value) Shape() shapes.Shape {
	return v.Node.Shape(v.Index)
}

// Hash of the value: its node's Hash combined with its index.
func (v Value) Hash() hash.Hash {
	return hash.Combine(v.Node.Hash(), hash.Int(v.Index))
}

// HashWithSizes is like Hash, using the node's HashWithSizes.
func (v Value) HashWithSizes() hash.Hash {
	return hash.Combine(v.Node.HashWithSizes(), hash.Int(v.Index))
}

// HashWithoutSizes is like Hash, using the node's HashWithoutSizes.
func (v Value) HashWithoutSizes() hash.Hash {
	return hash.Combine(v.Node.HashWithoutSizes(), hash.Int(v.Index))
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.Node == nil {
		return "null"
	}
	return fmt.Sprintf("%s, index=%d", v.Node, v.Index)
}
