package shapeinference

import (
	"fmt"
	"sync"

	"github.com/gomlx/lazyir/types/schema"
	"github.com/gomlx/lazyir/types/shapes"
	"k8s.io/klog/v2"
)

// Input to the shape inference of an operator: either the symbolic shape of a tensor argument,
// or an opaque value for every other kind of argument (ints, lists of ints, scalars, ...).
type Input struct {
	shape    shapes.SymbolicShape
	opaque   any
	hasShape bool
}

// ShapeInput returns an Input holding a tensor's symbolic shape.
func ShapeInput(shape shapes.SymbolicShape) Input {
	return Input{shape: shape, hasShape: true}
}

// OpaqueInput returns an Input holding a non-tensor value.
func OpaqueInput(value any) Input {
	return Input{opaque: value}
}

// IsShape returns whether the input holds a tensor's shape.
func (in Input) IsShape() bool { return in.hasShape }

// Shape returns the symbolic shape. It is the unknown-rank shape for opaque inputs.
func (in Input) Shape() shapes.SymbolicShape { return in.shape }

// Opaque returns the opaque value, nil for shape inputs.
func (in Input) Opaque() any { return in.opaque }

// String implements fmt.Stringer.
func (in Input) String() string {
	if in.hasShape {
		return in.shape.String()
	}
	return fmt.Sprintf("%v", in.opaque)
}

// Oracle infers the symbolic shapes of the outputs of an operator, given its schema and the inputs
// of one invocation.
//
// It returns false if it has no information. Otherwise, it returns one shape per declared output.
// Implementations must be free of side effects.
type Oracle interface {
	InferSymbolicShapes(s *schema.FunctionSchema, inputs []Input) ([]shapes.SymbolicShape, bool)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(s *schema.FunctionSchema, inputs []Input) ([]shapes.SymbolicShape, bool)

// InferSymbolicShapes implements Oracle.
func (fn OracleFunc) InferSymbolicShapes(s *schema.FunctionSchema, inputs []Input) ([]shapes.SymbolicShape, bool) {
	return fn(s, inputs)
}

// Rule computes the output shapes of one operator.
// Inputs are given in the order of the invocation, with lists of tensors flattened.
type Rule func(inputs []Input) ([]shapes.SymbolicShape, error)

// Rules is an Oracle backed by per-operator rules, indexed by the qualified operator name
// ("aten::add"), so all overloads share the same rule.
//
// It is safe for concurrent use.
type Rules struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRules returns a Rules oracle preloaded with the standard rules.
func NewRules() *Rules {
	r := NewEmptyRules()
	registerStandardRules(r)
	return r
}

// NewEmptyRules returns a Rules oracle without any rule.
func NewEmptyRules() *Rules {
	return &Rules{rules: make(map[string]Rule)}
}

// Register sets the rule for the qualified operator name, replacing any previous one.
func (r *Rules) Register(qualifiedName string, rule Rule) *Rules {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[qualifiedName] = rule
	return r
}

// Has returns whether there is a rule for the qualified operator name.
func (r *Rules) Has(qualifiedName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.rules[qualifiedName]
	return found
}

// InferSymbolicShapes implements Oracle.
func (r *Rules) InferSymbolicShapes(s *schema.FunctionSchema, inputs []Input) ([]shapes.SymbolicShape, bool) {
	name := s.QualifiedName()
	r.mu.RLock()
	rule, found := r.rules[name]
	r.mu.RUnlock()
	if !found {
		klog.V(2).Infof("shapeinference: no rule for %q", name)
		return nil, false
	}
	outputs, err := rule(inputs)
	if err != nil {
		klog.V(2).Infof("shapeinference: rule for %q failed: %v", s, err)
		return nil, false
	}
	return outputs, true
}

// DefaultRules is the Oracle used by default by the symbolic shape bridge.
var DefaultRules = NewRules()
