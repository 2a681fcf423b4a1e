package lazyir

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gomlx/lazyir/types/hash"
	"github.com/pkg/errors"
)

// Builder collects the outputs of a lazy IR graph, and walks, hashes and dumps the graph that produces them.
// See details in New.
type Builder struct {
	name    string
	outputs []Value
}

// New creates a new Builder for the graph with the given name.
//
// Nodes are created independently of the builder, with their constructors (NewDeviceData, NewCast, ...).
// The graph is then defined by the values given to Builder.AddOutputs: every node reachable from them is
// part of the graph.
//
// Once you are all set, call Builder.Build and it will return the text form of the graph, or use
// Builder.Hash to check whether an equivalent graph was already compiled.
func New(name string) *Builder {
	return &Builder{
		name: name,
	}
}

// Name of the graph.
func (b *Builder) Name() string { return b.name }

// AddOutputs appends outputs to the graph.
func (b *Builder) AddOutputs(values ...Value) *Builder {
	b.outputs = append(b.outputs, values...)
	return b
}

// Outputs of the graph.
func (b *Builder) Outputs() []Value { return b.outputs }

// PostOrder returns the nodes of the graph, each once, with every node after its operands.
// Among independent nodes, the order follows the order of the operands and of the outputs.
func (b *Builder) PostOrder() []*Node {
	visited := make(map[*Node]bool)
	var order []*Node
	type frame struct {
		node *Node
		next int
	}
	var stack []frame
	for _, output := range b.outputs {
		if !output.Ok() || visited[output.Node] {
			continue
		}
		visited[output.Node] = true
		stack = append(stack, frame{node: output.Node})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < top.node.NumOperands() {
				operand := top.node.OperandNode(top.next)
				top.next++
				if !visited[operand] {
					visited[operand] = true
					stack = append(stack, frame{node: operand})
				}
				continue
			}
			order = append(order, top.node)
			stack = stack[:len(stack)-1]
		}
	}
	return order
}

// Users returns, for each output of a node of the graph used as an operand, the nodes using it, in post-order.
func (b *Builder) Users() OutputMap[[]*Node] {
	users := make(OutputMap[[]*Node])
	for _, node := range b.PostOrder() {
		for _, operand := range node.Operands() {
			users[operand] = append(users[operand], node)
		}
	}
	return users
}

// Hash of the graph: the outputs' Hash combined in order. It depends on DynamicShapesEnabled.
func (b *Builder) Hash() hash.Hash {
	return b.hashOutputs(Value.Hash)
}

// HashWithSizes of the graph: the outputs' HashWithSizes combined in order.
func (b *Builder) HashWithSizes() hash.Hash {
	return b.hashOutputs(Value.HashWithSizes)
}

// HashWithoutSizes of the graph: the outputs' HashWithoutSizes combined in order.
func (b *Builder) HashWithoutSizes() hash.Hash {
	return b.hashOutputs(Value.HashWithoutSizes)
}

func (b *Builder) hashOutputs(valueHash func(Value) hash.Hash) hash.Hash {
	h := hash.Seed
	for _, output := range b.outputs {
		if !output.Ok() {
			h = hash.Combine(h, hash.NullOpt)
			continue
		}
		h = hash.Combine(h, valueHash(output))
	}
	return h
}

// IndentationStep prefixes each node and return line in the text written by Builder.Write.
const IndentationStep = "  "

// Write the graph (a readable string) to the given writer.
//
// It will write incomplete graphs (without outputs) without an error to help debugging.
//
// See Builder.Build to check and output the graph.
func (b *Builder) Write(writer io.Writer) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	ids := make(map[*Node]int)
	name := func(o Output) string {
		if o.Index == 0 {
			return fmt.Sprintf("%%%d", ids[o.Node])
		}
		return fmt.Sprintf("%%%d.%d", ids[o.Node], o.Index)
	}

	w("IR @%s {\n", NormalizeIdentifier(b.name))
	for id, node := range b.PostOrder() {
		ids[node] = id
		operandNames := make([]string, node.NumOperands())
		for i, operand := range node.Operands() {
			operandNames[i] = name(operand)
		}
		line := node.format("(" + strings.Join(operandNames, ", ") + ")")
		w("%s%%%d = %s\n", IndentationStep, id, line)
	}
	if len(b.outputs) > 0 {
		outputNames := make([]string, len(b.outputs))
		for i, output := range b.outputs {
			if !output.Ok() {
				outputNames[i] = "null"
				continue
			}
			outputNames[i] = name(output.Output())
		}
		w("%sreturn %s\n", IndentationStep, strings.Join(outputNames, ", "))
	}
	w("}\n")
	return err
}

// Build checks the validity of the graph and returns its text form.
//
// If you want the output of an incomplete graph (without the checking), use Builder.Write instead.
func (b *Builder) Build() ([]byte, error) {
	if len(b.outputs) == 0 {
		return nil, errors.Errorf("graph %q has no outputs", b.name)
	}
	for i, output := range b.outputs {
		if !output.Ok() {
			return nil, errors.Errorf("graph %q output #%d is null", b.name, i)
		}
	}

	var buf bytes.Buffer
	err := b.Write(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
