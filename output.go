package lazyir

import (
	"fmt"

	"github.com/gomlx/lazyir/types/hash"
	"github.com/gomlx/lazyir/types/shapes"
)

// Output references one output of a node. Outputs are comparable, and meant to be used as lookup keys,
// see OutputMap.
type Output struct {
	Node  *Node
	Index int
}

// OutputMap maps node outputs to arbitrary data.
type OutputMap[T any] map[Output]T

// Hash of the output: its node's Hash combined with its index.
func (o Output) Hash() hash.Hash {
	return hash.Combine(o.Node.Hash(), hash.Int(o.Index))
}

// Shape of the output.
func (o Output) Shape() shapes.Shape {
	return o.Node.Shape(o.Index)
}

// Value returns the output as a Value.
func (o Output) Value() Value {
	return Value{Node: o.Node, Index: o.Index}
}

// String implements fmt.Stringer.
func (o Output) String() string {
	if o.Node == nil {
		return "null"
	}
	return fmt.Sprintf("%s, index=%d", o.Node, o.Index)
}
