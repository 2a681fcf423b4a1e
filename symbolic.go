package lazyir

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyir/shapeinference"
	"github.com/gomlx/lazyir/types/schema"
	"github.com/gomlx/lazyir/types/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Tensor is a handle to a tensor of the framework using the lazy IR.
// It may be a concrete (eager) tensor, or be backed by the IR (see IRTensor).
type Tensor interface {
	Sizes() []int
}

// IRTensor is a Tensor backed by a Value of the lazy IR.
type IRTensor interface {
	Tensor
	IRValue() Value
}

// SymbolicShapeOf returns the symbolic shape of t, as given to the shape inference oracle:
//
//   - Tensors not backed by the IR are concrete: all their dimensions are known.
//   - IR tensors whose shape has no symbolic annotation are entirely unknown, not even the rank is assumed.
//   - Otherwise, the symbolic dimensions are unknown and the others are known.
func SymbolicShapeOf(t Tensor) shapes.SymbolicShape {
	irTensor, ok := t.(IRTensor)
	if !ok || !irTensor.IRValue().Ok() {
		return shapes.ConcreteShape(t.Sizes())
	}
	shape := irTensor.IRValue().Shape()
	if !shape.HasSymbolicDims() {
		return shapes.UnknownRankShape()
	}
	if len(shape.IsSymbolic) != len(shape.Dimensions) {
		exceptions.Panicf("lazyir.SymbolicShapeOf: shape %s has %d symbolic flags for rank %d",
			shape, len(shape.IsSymbolic), len(shape.Dimensions))
	}
	dims := make([]shapes.SymbolicDim, len(shape.Dimensions))
	for axis, dim := range shape.Dimensions {
		if shape.IsSymbolic[axis] {
			dims[axis] = shapes.UnknownDim()
		} else {
			dims[axis] = shapes.Dim(dim)
		}
	}
	return shapes.SymbolicShapeOf(dims...)
}

// Argument of an operator invocation: a tensor, a list of tensors or any other value (ints, scalars, lists of ints...).
type Argument struct {
	kind    schema.ArgumentKind
	tensors []Tensor
	value   any
}

// TensorArg returns a tensor argument.
func TensorArg(t Tensor) Argument {
	return Argument{kind: schema.TensorKind, tensors: []Tensor{t}}
}

// TensorListArg returns an argument holding a list of tensors.
func TensorListArg(tensors ...Tensor) Argument {
	return Argument{kind: schema.TensorListKind, tensors: tensors}
}

// OpaqueArg returns a non-tensor argument.
func OpaqueArg(value any) Argument {
	return Argument{kind: schema.OtherKind, value: value}
}

// Kind of the argument: schema.TensorKind, schema.TensorListKind or schema.OtherKind.
func (a Argument) Kind() schema.ArgumentKind { return a.kind }

// appendInputs appends the oracle inputs of the argument: one per tensor, lists are flattened.
func (a Argument) appendInputs(inputs []shapeinference.Input) []shapeinference.Input {
	if a.kind == schema.OtherKind {
		return append(inputs, shapeinference.OpaqueInput(a.value))
	}
	for _, t := range a.tensors {
		inputs = append(inputs, shapeinference.ShapeInput(SymbolicShapeOf(t)))
	}
	return inputs
}

// Bridge between the IR shapes and a shape inference oracle.
type Bridge struct {
	// Registry where operator schemas are looked up.
	Registry *schema.Registry

	// Oracle infers the symbolic shapes of operators' outputs.
	Oracle shapeinference.Oracle
}

// NewBridge returns a Bridge using the given registry and oracle. Nil values are replaced by
// schema.DefaultRegistry and shapeinference.DefaultRules.
func NewBridge(registry *schema.Registry, oracle shapeinference.Oracle) *Bridge {
	if registry == nil {
		registry = schema.DefaultRegistry
	}
	if oracle == nil {
		oracle = shapeinference.DefaultRules
	}
	return &Bridge{Registry: registry, Oracle: oracle}
}

var defaultBridge = NewBridge(nil, nil)

// DefaultBridge returns the Bridge used by the package level ApplySymbolicShapes.
func DefaultBridge() *Bridge { return defaultBridge }

// ApplySymbolicShapes infers the symbolic shapes of the outputs of the operator schemaLiteral invoked with
// args, and annotates resultShapes in place with the symbolic dimensions.
//
// If the oracle has no information, the annotations of all resultShapes are cleared. Otherwise, the
// outputs whose rank was inferred are annotated, and the others are left untouched.
//
// It returns an error only if the schema cannot be found. An oracle returning a number of
// shapes different from len(resultShapes) is a fatal error (panic).
func (b *Bridge) ApplySymbolicShapes(schemaLiteral string, args []Argument, resultShapes []shapes.Shape) error {
	if b == nil {
		b = defaultBridge
	}
	s, err := b.Registry.Lookup(schemaLiteral)
	if err != nil {
		return errors.WithMessage(err, "lazyir.ApplySymbolicShapes")
	}
	var inputs []shapeinference.Input
	for _, arg := range args {
		inputs = arg.appendInputs(inputs)
	}
	inferred, ok := b.Oracle.InferSymbolicShapes(s, inputs)
	if !ok {
		klog.Warningf("lazyir: no symbolic shape information for %s, clearing symbolic dimensions of %d outputs",
			s.QualifiedName(), len(resultShapes))
		for i := range resultShapes {
			resultShapes[i] = resultShapes[i].WithSymbolicDims(nil)
		}
		return nil
	}
	if len(inferred) != len(resultShapes) {
		exceptions.Panicf("lazyir.ApplySymbolicShapes(%s): oracle returned %d shapes for %d outputs",
			s.QualifiedName(), len(inferred), len(resultShapes))
	}
	for i, symbolic := range inferred {
		flags, ranked := symbolic.SymbolicDims()
		if !ranked {
			continue
		}
		resultShapes[i] = resultShapes[i].WithSymbolicDims(flags)
	}
	return nil
}

// ApplySymbolicShapes uses the DefaultBridge, see Bridge.ApplySymbolicShapes.
func ApplySymbolicShapes(schemaLiteral string, args []Argument, resultShapes []shapes.Shape) error {
	return defaultBridge.ApplySymbolicShapes(schemaLiteral, args, resultShapes)
}

// MaybeApplySymbolicShapes calls ApplySymbolicShapes only if SymbolicShapesEnabled.
func MaybeApplySymbolicShapes(schemaLiteral string, args []Argument, resultShapes []shapes.Shape) error {
	if !SymbolicShapesEnabled() {
		return nil
	}
	return ApplySymbolicShapes(schemaLiteral, args, resultShapes)
}
