package lazyir

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyir/types/hash"
	"github.com/gomlx/lazyir/types/shapes"
)

// Node is a vertex of the lazy IR graph: one operation, its operands and the shapes of its outputs.
//
// It caches two DAG hashes, a structural hash of the whole sub-graph rooted at the node: one including
// the concrete dimensions of the shapes (HashWithSizes) and one that only includes their ranks
// (HashWithoutSizes). Hash returns one or the other depending on DynamicShapesEnabled.
//
// Nodes are immutable after construction, except for the user metadata slot (SetUserMetaData) and the
// refinement of their shapes with symbolic dimensions (ApplySymbolicShapes). They are not safe for
// concurrent mutation: finish building a graph before sharing it across goroutines.
//
// Concrete operations embed *Node and are created with MakeNode, see NodeCast.
type Node struct {
	op         OpKind
	numOutputs int

	// operands and operandsAsOutputs are kept in lock-step, see AddOperand.
	operands          []*Node
	operandsAsOutputs []Output

	shapes    []shapes.Shape
	shapeFn   func() []shapes.Shape
	shapeOnce sync.Once

	nodeHash, hashWithSizes, hashWithoutSizes hash.Hash

	metaData     MetaData
	userMetaData UserMetaData

	// impl is the concrete operation embedding this node, set by MakeNode. It defaults to the node itself.
	impl Op
}

// Op is implemented by *Node and every concrete operation embedding it.
type Op interface {
	Base() *Node
}

// Base returns the node itself. It implements Op.
func (n *Node) Base() *Node { return n }

// MakeNode registers op as the concrete operation of its embedded node, and returns it.
//
// Example:
//
//	func NewMyOp(x Value) *MyOp {
//		return MakeNode(&MyOp{Node: NewNode(myOpKind, []Value{x}, []shapes.Shape{x.Shape()}, 1, hash.Seed)})
//	}
func MakeNode[T Op](op T) T {
	op.Base().impl = op
	return op
}

// NodeCast returns the concrete operation of n, if n is of the given kind and its concrete type is T.
// Otherwise, it returns the zero value (nil) of T.
func NodeCast[T Op](n *Node, kind OpKind) (op T) {
	if n == nil || n.op != kind {
		return
	}
	op, _ = n.impl.(T)
	return
}

func newNode(op OpKind, numOutputs int) *Node {
	n := &Node{
		op:         op,
		numOutputs: numOutputs,
		metaData:   newMetaData(),
	}
	n.impl = n
	return n
}

// NewLeafNode creates a node without operands, whose hashes are given by nodeHashFn.
//
// nodeHashFn is called once for each hash variant, with bakeInSizes set to whether the concrete
// dimensions should be included. It allows deferring expensive hashes, like those of constants' data.
func NewLeafNode(op OpKind, numOutputs int, nodeHashFn func(bakeInSizes bool) hash.Hash) *Node {
	n := newNode(op, numOutputs)
	n.nodeHash = nodeHashFn(!DynamicShapesEnabled())
	n.hashWithSizes = nodeHashFn(true)
	n.hashWithoutSizes = nodeHashFn(false)
	return n
}

// NewNode creates a node with the given operands and output shapes.
//
// The node hash is derived from the op and the seed. The DAG hashes further include the shapes (with or
// without their dimensions) and, in order, the hashes of the operands.
//
// Null operands (Value{}) contribute hash.NullOpt to the DAG hashes, but are not added as operands.
func NewNode(op OpKind, operands []Value, outputShapes []shapes.Shape, numOutputs int, seed hash.Hash) *Node {
	if len(outputShapes) != numOutputs {
		exceptions.Panicf("lazyir.NewNode(%s): %d shapes given for %d outputs", op, len(outputShapes), numOutputs)
	}
	n := newNode(op, numOutputs)
	n.shapes = slices.Clone(outputShapes)
	n.nodeHash = hash.Combine(op.Hash(), seed)
	n.addOperands(operands)
	n.hashWithSizes = OperandHashes(operands, n.shapesHash(n.nodeHash, true), true)
	n.hashWithoutSizes = OperandHashes(operands, n.shapesHash(n.nodeHash, false), false)
	return n
}

// NewNodeLazyShape creates a node with the given operands, whose shapes are computed by shapeFn on first use.
//
// shapeFn must return numOutputs shapes. Since the shapes are not known yet, the DAG hashes only include
// the node hash (op and seed) and the hashes of the operands.
func NewNodeLazyShape(op OpKind, operands []Value, shapeFn func() []shapes.Shape, numOutputs int, seed hash.Hash) *Node {
	n := newNode(op, numOutputs)
	n.shapeFn = shapeFn
	n.nodeHash = hash.Combine(op.Hash(), seed)
	n.addOperands(operands)
	n.hashWithSizes = OperandHashes(operands, n.nodeHash, true)
	n.hashWithoutSizes = OperandHashes(operands, n.nodeHash, false)
	return n
}

// NewNodeWithShape creates a node without operands and with a fixed shape, like inputs and constants.
func NewNodeWithShape(op OpKind, shape shapes.Shape, numOutputs int, seed hash.Hash) *Node {
	n := newNode(op, numOutputs)
	n.shapes = []shapes.Shape{shape}
	opHash := func(bakeInSizes bool) hash.Hash {
		return hash.Combine(hash.Combine(op.Hash(), shape.Hash(bakeInSizes)), seed)
	}
	n.hashWithSizes = opHash(true)
	n.hashWithoutSizes = opHash(false)
	n.nodeHash = n.hashWithSizes
	if DynamicShapesEnabled() {
		n.nodeHash = n.hashWithoutSizes
	}
	return n
}

// NewNodeWithDAGHash creates a node without operands with explicitly given hashes.
func NewNodeWithDAGHash(op OpKind, numOutputs int, nodeHash hash.Hash, dagHashFn func(bakeInSizes bool) hash.Hash) *Node {
	n := newNode(op, numOutputs)
	n.nodeHash = nodeHash
	n.hashWithSizes = dagHashFn(true)
	n.hashWithoutSizes = dagHashFn(false)
	return n
}

// OperandHashes folds, in order, the hashes of the operands into seed.
// It uses the operands hashes with or without sizes, according to bakeInSizes.
func OperandHashes(operands []Value, seed hash.Hash, bakeInSizes bool) hash.Hash {
	h := seed
	for _, operand := range operands {
		if !operand.Ok() {
			h = hash.Combine(h, hash.NullOpt)
			continue
		}
		if bakeInSizes {
			h = hash.Combine(h, operand.HashWithSizes())
		} else {
			h = hash.Combine(h, operand.HashWithoutSizes())
		}
	}
	return h
}

func (n *Node) shapesHash(h hash.Hash, bakeInSizes bool) hash.Hash {
	for _, shape := range n.shapes {
		h = hash.Combine(h, shape.Hash(bakeInSizes))
	}
	return h
}

func (n *Node) addOperands(operands []Value) {
	for _, operand := range operands {
		if operand.Ok() {
			n.AddOperand(operand.Node, operand.Index)
		}
	}
}

// AddOperand appends output index of node as an operand.
// It is meant to be used by constructors, the node hashes are not updated.
func (n *Node) AddOperand(node *Node, index int) {
	if node == nil {
		exceptions.Panicf("%s.AddOperand(nil, %d): operand node cannot be nil", n.op, index)
	}
	if index < 0 || index >= node.numOutputs {
		exceptions.Panicf("%s.AddOperand(%s, %d): output index out of range, operand has %d outputs",
			n.op, node.op, index, node.numOutputs)
	}
	n.operands = append(n.operands, node)
	n.operandsAsOutputs = append(n.operandsAsOutputs, Output{Node: node, Index: index})
}

// Op returns the kind of operation of the node.
func (n *Node) Op() OpKind { return n.op }

// NumOutputs of the node.
func (n *Node) NumOutputs() int { return n.numOutputs }

// Shapes returns the shapes of the outputs, computing them first for lazily shaped nodes.
//
// The returned slice is owned by the node and must not be modified.
func (n *Node) Shapes() []shapes.Shape {
	if n.shapeFn != nil {
		n.shapeOnce.Do(func() {
			outputShapes := n.shapeFn()
			if len(outputShapes) != n.numOutputs {
				exceptions.Panicf("%s: shape function returned %d shapes for %d outputs", n.op, len(outputShapes), n.numOutputs)
			}
			n.shapes = slices.Clone(outputShapes)
		})
	}
	return n.shapes
}

// Shape returns the shape of the output i.
func (n *Node) Shape(i int) shapes.Shape {
	return n.Shapes()[i]
}

// Operands returns the operands of the node. The returned slice is owned by the node and must not be modified.
func (n *Node) Operands() []Output { return n.operandsAsOutputs }

// Operand returns the operand i.
func (n *Node) Operand(i int) Output { return n.operandsAsOutputs[i] }

// OperandNode returns the node of operand i.
func (n *Node) OperandNode(i int) *Node { return n.operands[i] }

// NumOperands returns the number of (non-null) operands.
func (n *Node) NumOperands() int { return len(n.operands) }

// NodeHash returns the hash of the node itself, not including its operands.
func (n *Node) NodeHash() hash.Hash { return n.nodeHash }

// Hash returns the DAG hash of the node: HashWithoutSizes if DynamicShapesEnabled, HashWithSizes otherwise.
func (n *Node) Hash() hash.Hash {
	if DynamicShapesEnabled() {
		return n.hashWithoutSizes
	}
	return n.hashWithSizes
}

// HashWithSizes returns the DAG hash including the concrete dimensions.
func (n *Node) HashWithSizes() hash.Hash { return n.hashWithSizes }

// HashWithoutSizes returns the DAG hash including only the ranks of the shapes.
func (n *Node) HashWithoutSizes() hash.Hash { return n.hashWithoutSizes }

// MetaData about the creation of the node.
func (n *Node) MetaData() MetaData { return n.metaData }

// UserMetaData returns the metadata attached with SetUserMetaData, or nil.
func (n *Node) UserMetaData() UserMetaData { return n.userMetaData }

// SetUserMetaData attaches metadata to the node, and returns the previously attached one.
func (n *Node) SetUserMetaData(metaData UserMetaData) (previous UserMetaData) {
	previous, n.userMetaData = n.userMetaData, metaData
	return
}

// Value returns the output i of the node as a Value.
func (n *Node) Value(i int) Value {
	if i < 0 || i >= n.numOutputs {
		exceptions.Panicf("%s.Value(%d): node has %d outputs", n.op, i, n.numOutputs)
	}
	return Value{Node: n, Index: i}
}

// AsOutput returns the output i of the node as an Output.
func (n *Node) AsOutput(i int) Output {
	return n.Value(i).Output()
}

// describer is implemented by concrete operations that extend Node.String.
type describer interface {
	Describe() string
}

// String implements fmt.Stringer. It includes the shapes, the op and what the concrete operation
// describes of itself.
func (n *Node) String() string {
	return n.format("")
}

// format the node, with the operands (if not empty) after the op name.
func (n *Node) format(operands string) string {
	var sb strings.Builder
	outputShapes := n.Shapes()
	switch len(outputShapes) {
	case 0:
	case 1:
		fmt.Fprintf(&sb, "%s ", outputShapes[0].SymbolicString())
	default:
		sb.WriteString("(")
		for i, shape := range outputShapes {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(shape.SymbolicString())
		}
		sb.WriteString(") ")
	}
	sb.WriteString(n.op.String())
	sb.WriteString(operands)
	if n.numOutputs > 1 {
		fmt.Fprintf(&sb, ", num_outputs=%d", n.numOutputs)
	}
	if d, ok := n.impl.(describer); ok {
		if description := d.Describe(); description != "" {
			sb.WriteString(", ")
			sb.WriteString(description)
		}
	}
	return sb.String()
}

// ApplySymbolicShapes refines the shapes of the node with the symbolic dimensions inferred by the bridge
// for the operator schemaLiteral invoked with args. The node hashes are not changed.
//
// See Bridge.ApplySymbolicShapes.
func (n *Node) ApplySymbolicShapes(bridge *Bridge, schemaLiteral string, args []Argument) error {
	return bridge.ApplySymbolicShapes(schemaLiteral, args, n.Shapes())
}
