// Package shapeinference infers the symbolic shapes of operator outputs from the symbolic shapes
// of their inputs.
//
// It defines the Oracle interface consumed by the symbolic shape bridge, and Rules, a rule-based
// Oracle preloaded with the rules for the standard elementwise unary operators, the broadcasting
// binary operators and a few structural operators (mm, cat, expand, view, transpose, unsqueeze).
//
// Dimensions may be unknown (symbolic), and the rank itself may be unknown: rules propagate
// what can be derived and leave the rest unknown.
package shapeinference

import (
	"github.com/gomlx/lazyir/internal/utils"
	"github.com/gomlx/lazyir/types/shapes"
	"github.com/pkg/errors"
)

var (
	// StandardUnaryOperations have one tensor input and an output with the same shape.
	StandardUnaryOperations = utils.SetWith(
		"aten::abs",
		"aten::ceil",
		"aten::clone",
		"aten::cos",
		"aten::erf",
		"aten::exp",
		"aten::floor",
		"aten::gelu",
		"aten::log",
		"aten::log1p",
		"aten::logical_not",
		"aten::neg",
		"aten::reciprocal",
		"aten::relu",
		"aten::round",
		"aten::rsqrt",
		"aten::sigmoid",
		"aten::sign",
		"aten::sin",
		"aten::sqrt",
		"aten::tanh",
	)

	// StandardBinaryOperations have two operands, lhs and rhs, broadcast to each other.
	// The rhs may also be a scalar (opaque) value.
	StandardBinaryOperations = utils.SetWith(
		"aten::add",
		"aten::sub",
		"aten::mul",
		"aten::div",
		"aten::pow",
		"aten::remainder",
		"aten::maximum",
		"aten::minimum",
		"aten::logical_and",
		"aten::logical_or",
		"aten::logical_xor",
	)

	// ComparisonOperations are broadcasting binary operations returning booleans. Only the dimensions
	// are inferred here, so they share the rule of the StandardBinaryOperations.
	ComparisonOperations = utils.SetWith(
		"aten::eq",
		"aten::ne",
		"aten::lt",
		"aten::le",
		"aten::gt",
		"aten::ge",
	)
)

func registerStandardRules(r *Rules) {
	for name := range StandardUnaryOperations {
		r.Register(name, UnaryOp)
	}
	for name := range StandardBinaryOperations.Union(ComparisonOperations) {
		r.Register(name, BinaryOp)
	}
	r.Register("aten::mm", MatMul)
	r.Register("aten::matmul", MatMul)
	r.Register("aten::cat", Concatenate)
	r.Register("aten::expand", Expand)
	r.Register("aten::view", Reshape)
	r.Register("aten::reshape", Reshape)
	r.Register("aten::transpose", Transpose)
	r.Register("aten::unsqueeze", Unsqueeze)
}

// firstShape returns the first tensor input.
func firstShape(inputs []Input) (shapes.SymbolicShape, error) {
	for _, in := range inputs {
		if in.IsShape() {
			return in.Shape(), nil
		}
	}
	return shapes.SymbolicShape{}, errors.Errorf("no tensor input in %v", inputs)
}

// UnaryOp returns the shape of the first tensor input.
func UnaryOp(inputs []Input) ([]shapes.SymbolicShape, error) {
	operand, err := firstShape(inputs)
	if err != nil {
		return nil, err
	}
	return []shapes.SymbolicShape{operand}, nil
}

// BinaryOp broadcasts the lhs and rhs tensors. If the rhs is not a tensor (a scalar value),
// the output has the shape of the lhs.
func BinaryOp(inputs []Input) ([]shapes.SymbolicShape, error) {
	if len(inputs) == 0 || !inputs[0].IsShape() {
		return nil, errors.Errorf("binary operation requires a tensor lhs, got %v", inputs)
	}
	lhs := inputs[0].Shape()
	if len(inputs) < 2 || !inputs[1].IsShape() {
		return []shapes.SymbolicShape{lhs}, nil
	}
	output, err := BroadcastSymbolic(lhs, inputs[1].Shape())
	if err != nil {
		return nil, err
	}
	return []shapes.SymbolicShape{output}, nil
}

// BroadcastSymbolic returns the broadcast of two symbolic shapes, aligning the axes from the right.
//
// Per axis: a dimension 1 broadcasts to the other; two known dimensions must match; an unknown
// dimension against a known dimension d > 1 yields d (it could only be 1 or d); and anything else
// against an unknown dimension is unknown. If either rank is unknown so is the result's.
func BroadcastSymbolic(lhs, rhs shapes.SymbolicShape) (shapes.SymbolicShape, error) {
	if !lhs.HasRank() || !rhs.HasRank() {
		return shapes.UnknownRankShape(), nil
	}
	lhsDims, rhsDims := lhs.Dims(), rhs.Dims()
	rank := max(len(lhsDims), len(rhsDims))
	output := make([]shapes.SymbolicDim, rank)
	for axis := range rank {
		lhsDim, rhsDim := shapes.Dim(1), shapes.Dim(1)
		if idx := len(lhsDims) - rank + axis; idx >= 0 {
			lhsDim = lhsDims[idx]
		}
		if idx := len(rhsDims) - rank + axis; idx >= 0 {
			rhsDim = rhsDims[idx]
		}
		dim, err := broadcastDim(lhsDim, rhsDim)
		if err != nil {
			return shapes.SymbolicShape{}, errors.WithMessagef(err, "axis #%d of broadcast of %s and %s", axis, lhs, rhs)
		}
		output[axis] = dim
	}
	return shapes.SymbolicShapeOf(output...), nil
}

func broadcastDim(lhs, rhs shapes.SymbolicDim) (shapes.SymbolicDim, error) {
	lhsSize, lhsKnown := lhs.Size()
	rhsSize, rhsKnown := rhs.Size()
	switch {
	case lhsKnown && rhsKnown:
		if lhsSize == rhsSize || rhsSize == 1 {
			return lhs, nil
		}
		if lhsSize == 1 {
			return rhs, nil
		}
		return shapes.SymbolicDim{}, errors.Errorf("dimensions %d and %d cannot be broadcast", lhsSize, rhsSize)
	case lhsKnown && lhsSize > 1:
		return lhs, nil
	case rhsKnown && rhsSize > 1:
		return rhs, nil
	}
	return shapes.UnknownDim(), nil
}

// MatMul infers the shape of a rank-2 matrix multiplication: [n, k] x [k, m] -> [n, m].
func MatMul(inputs []Input) ([]shapes.SymbolicShape, error) {
	if len(inputs) < 2 || !inputs[0].IsShape() || !inputs[1].IsShape() {
		return nil, errors.Errorf("matrix multiplication requires two tensors, got %v", inputs)
	}
	lhs, rhs := inputs[0].Shape(), inputs[1].Shape()
	if !lhs.HasRank() || !rhs.HasRank() {
		return []shapes.SymbolicShape{shapes.UnknownRankShape()}, nil
	}
	lhsRank, _ := lhs.Rank()
	rhsRank, _ := rhs.Rank()
	if lhsRank != 2 || rhsRank != 2 {
		return nil, errors.Errorf("matrix multiplication only inferred for rank-2 operands, got %s and %s", lhs, rhs)
	}
	if _, err := mergeDims(lhs.At(1), rhs.At(0)); err != nil {
		return nil, errors.WithMessagef(err, "contracting dimensions of %s and %s", lhs, rhs)
	}
	return []shapes.SymbolicShape{shapes.SymbolicShapeOf(lhs.At(0), rhs.At(1))}, nil
}

// mergeDims returns the dimension that satisfies both constraints: known dimensions must match, and an
// unknown dimension takes the value of the known one.
func mergeDims(a, b shapes.SymbolicDim) (shapes.SymbolicDim, error) {
	aSize, aKnown := a.Size()
	bSize, bKnown := b.Size()
	if aKnown && bKnown && aSize != bSize {
		return shapes.SymbolicDim{}, errors.Errorf("dimensions %d and %d don't match", aSize, bSize)
	}
	if aKnown {
		return a, nil
	}
	return b, nil
}

// Concatenate infers aten::cat: the tensors (the flattened list) are followed by the opaque
// concatenation axis, which defaults to 0.
func Concatenate(inputs []Input) ([]shapes.SymbolicShape, error) {
	var tensors []shapes.SymbolicShape
	axis := 0
	for i, in := range inputs {
		if in.IsShape() {
			tensors = append(tensors, in.Shape())
			continue
		}
		value, ok := toInt(in.Opaque())
		if !ok {
			return nil, errors.Errorf("concatenate axis #%d must be an int, got %T", i, in.Opaque())
		}
		axis = value
		break
	}
	if len(tensors) == 0 {
		return nil, errors.New("concatenate requires at least one tensor")
	}
	for _, t := range tensors {
		if !t.HasRank() {
			return []shapes.SymbolicShape{shapes.UnknownRankShape()}, nil
		}
	}
	rank, _ := tensors[0].Rank()
	adjustedAxis, err := AdjustAxisToRank(axis, rank)
	if err != nil {
		return nil, errors.WithMessagef(err, "concatenate of %v", tensors)
	}
	output := tensors[0].Dims()
	for _, t := range tensors[1:] {
		if r, _ := t.Rank(); r != rank {
			return nil, errors.Errorf("concatenate operands must have the same rank, got %s and %s", tensors[0], t)
		}
		for ii, dim := range t.Dims() {
			if ii == adjustedAxis {
				lhsSize, lhsKnown := output[ii].Size()
				rhsSize, rhsKnown := dim.Size()
				if lhsKnown && rhsKnown {
					output[ii] = shapes.Dim(lhsSize + rhsSize)
				} else {
					output[ii] = shapes.UnknownDim()
				}
				continue
			}
			output[ii], err = mergeDims(output[ii], dim)
			if err != nil {
				return nil, errors.WithMessagef(err, "axis #%d of concatenate operands %s and %s", ii, tensors[0], t)
			}
		}
	}
	return []shapes.SymbolicShape{shapes.SymbolicShapeOf(output...)}, nil
}

// Expand infers aten::expand(self, size): the output has the rank of size, and -1 keeps the
// corresponding (right-aligned) dimension of self.
func Expand(inputs []Input) ([]shapes.SymbolicShape, error) {
	if len(inputs) < 2 || !inputs[0].IsShape() {
		return nil, errors.Errorf("expand requires a tensor and a list of sizes, got %v", inputs)
	}
	operand := inputs[0].Shape()
	sizes, ok := toInts(inputs[1].Opaque())
	if !ok {
		return nil, errors.Errorf("expand sizes must be a list of ints, got %T", inputs[1].Opaque())
	}
	operandDims := operand.Dims()
	if operand.HasRank() && len(operandDims) > len(sizes) {
		return nil, errors.Errorf("expand sizes %v must have at least the rank of the operand %s", sizes, operand)
	}
	output := make([]shapes.SymbolicDim, len(sizes))
	for axis, size := range sizes {
		operandAxis := axis - len(sizes) + len(operandDims)
		switch {
		case size >= 0:
			output[axis] = shapes.Dim(size)
		case size == -1 && operand.HasRank() && operandAxis >= 0:
			output[axis] = operandDims[operandAxis]
		case size == -1 && !operand.HasRank():
			output[axis] = shapes.UnknownDim()
		default:
			return nil, errors.Errorf("invalid size %d for axis #%d of expand of %s", size, axis, operand)
		}
	}
	return []shapes.SymbolicShape{shapes.SymbolicShapeOf(output...)}, nil
}

// Reshape infers aten::view and aten::reshape: the output has the given sizes, where one -1 is
// inferred if the operand's shape is complete.
func Reshape(inputs []Input) ([]shapes.SymbolicShape, error) {
	if len(inputs) < 2 || !inputs[0].IsShape() {
		return nil, errors.Errorf("reshape requires a tensor and a list of sizes, got %v", inputs)
	}
	operand := inputs[0].Shape()
	sizes, ok := toInts(inputs[1].Opaque())
	if !ok {
		return nil, errors.Errorf("reshape sizes must be a list of ints, got %T", inputs[1].Opaque())
	}
	inferredAxis := -1
	knownProduct := 1
	output := make([]shapes.SymbolicDim, len(sizes))
	for axis, size := range sizes {
		switch {
		case size >= 0:
			output[axis] = shapes.Dim(size)
			knownProduct *= size
		case size == -1 && inferredAxis == -1:
			inferredAxis = axis
			output[axis] = shapes.UnknownDim()
		default:
			return nil, errors.Errorf("invalid sizes %v for reshape: only one -1 is allowed and no other negative values", sizes)
		}
	}
	if inferredAxis >= 0 {
		if operandSizes, complete := operand.Sizes(); complete {
			total := product(operandSizes)
			if knownProduct == 0 || total%knownProduct != 0 {
				return nil, errors.Errorf("cannot reshape %s to %v", operand, sizes)
			}
			output[inferredAxis] = shapes.Dim(total / knownProduct)
		}
	} else if operandSizes, complete := operand.Sizes(); complete {
		if total := product(operandSizes); total != knownProduct {
			return nil, errors.Errorf("cannot reshape %s (%d elements) to %v (%d elements)", operand, total, sizes, knownProduct)
		}
	}
	return []shapes.SymbolicShape{shapes.SymbolicShapeOf(output...)}, nil
}

// Transpose infers aten::transpose(self, dim0, dim1): the two axes are swapped.
func Transpose(inputs []Input) ([]shapes.SymbolicShape, error) {
	if len(inputs) < 3 || !inputs[0].IsShape() {
		return nil, errors.Errorf("transpose requires a tensor and two axes, got %v", inputs)
	}
	operand := inputs[0].Shape()
	axis0, ok0 := toInt(inputs[1].Opaque())
	axis1, ok1 := toInt(inputs[2].Opaque())
	if !ok0 || !ok1 {
		return nil, errors.Errorf("transpose axes must be ints, got %v", inputs[1:])
	}
	if !operand.HasRank() {
		return []shapes.SymbolicShape{operand}, nil
	}
	rank, _ := operand.Rank()
	var err error
	if axis0, err = AdjustAxisToRank(axis0, rank); err != nil {
		return nil, errors.WithMessagef(err, "transpose of %s", operand)
	}
	if axis1, err = AdjustAxisToRank(axis1, rank); err != nil {
		return nil, errors.WithMessagef(err, "transpose of %s", operand)
	}
	dims := operand.Dims()
	dims[axis0], dims[axis1] = dims[axis1], dims[axis0]
	return []shapes.SymbolicShape{shapes.SymbolicShapeOf(dims...)}, nil
}

// Unsqueeze infers aten::unsqueeze(self, dim): a new axis of dimension 1 is inserted at dim.
func Unsqueeze(inputs []Input) ([]shapes.SymbolicShape, error) {
	if len(inputs) < 2 || !inputs[0].IsShape() {
		return nil, errors.Errorf("unsqueeze requires a tensor and an axis, got %v", inputs)
	}
	operand := inputs[0].Shape()
	axis, ok := toInt(inputs[1].Opaque())
	if !ok {
		return nil, errors.Errorf("unsqueeze axis must be an int, got %T", inputs[1].Opaque())
	}
	if !operand.HasRank() {
		return []shapes.SymbolicShape{operand}, nil
	}
	rank, _ := operand.Rank()
	adjustedAxis, err := AdjustAxisToRank(axis, rank+1)
	if err != nil {
		return nil, errors.WithMessagef(err, "unsqueeze of %s", operand)
	}
	dims := operand.Dims()
	output := make([]shapes.SymbolicDim, 0, rank+1)
	output = append(output, dims[:adjustedAxis]...)
	output = append(output, shapes.Dim(1))
	output = append(output, dims[adjustedAxis:]...)
	return []shapes.SymbolicShape{shapes.SymbolicShapeOf(output...)}, nil
}

// AdjustAxisToRank returns a positive axis, adjusting negative numbers to the correct rank.
func AdjustAxisToRank(axis, rank int) (int, error) {
	if axis < -rank || axis >= rank {
		return -1, errors.Errorf("axis %d is out of range for the rank %d", axis, rank)
	}
	if axis < 0 {
		axis += rank
	}
	return axis, nil
}

func product(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}
	return p
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	}
	return 0, false
}

func toInts(v any) ([]int, bool) {
	switch x := v.(type) {
	case []int:
		return x, true
	case []int32:
		out := make([]int, len(x))
		for i, e := range x {
			out[i] = int(e)
		}
		return out, true
	case []int64:
		out := make([]int, len(x))
		for i, e := range x {
			out[i] = int(e)
		}
		return out, true
	}
	return nil, false
}
