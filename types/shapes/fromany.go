package shapes

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// FromAnyValue returns the shape of a Go value: a scalar of a supported dtype, or a (multi-level)
// regular slice of them.
//
// Example:
//
//	shape, _ := shapes.FromAnyValue([][]float32{{0, 0}}) // Float32[1,2]
func FromAnyValue(v any) (shape Shape, err error) {
	if v == nil {
		return Invalid(), errors.New("cannot take the shape of a nil value")
	}
	err = shapeForValueRecursive(&shape, reflect.ValueOf(v), reflect.TypeOf(v))
	return
}

func shapeForValueRecursive(shape *Shape, v reflect.Value, t reflect.Type) error {
	if t.Kind() != reflect.Slice {
		shape.DType = dtypes.FromGoType(t)
		if shape.DType == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %q to a valid shape", t)
		}
		return nil
	}

	t = t.Elem()
	shape.Dimensions = append(shape.Dimensions, v.Len())
	prefix := shape.Clone()
	if v.Len() == 0 {
		return errors.Errorf("value with empty slice not valid for shape conversion: %T -- the inner dimensions are unknown", v.Interface())
	}
	if err := shapeForValueRecursive(shape, v.Index(0), t); err != nil {
		return err
	}

	// All sub-slices must match the shape of the first one.
	for ii := 1; ii < v.Len(); ii++ {
		other := prefix.Clone()
		if err := shapeForValueRecursive(&other, v.Index(ii), t); err != nil {
			return err
		}
		if !shape.Equal(other) {
			return errors.Errorf("sub-slices have irregular shapes, found shapes %s and %s", shape, other)
		}
	}
	return nil
}

// FromFlatAndDimensions returns the shape of a flat slice of values laid out with the given dimensions.
// It fails if the slice element type is not a supported dtype, or its length doesn't match the dimensions.
func FromFlatAndDimensions(flat any, dimensions ...int) (Shape, error) {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		return Invalid(), errors.Errorf("flat values must be a slice, got %T", flat)
	}
	dtype := dtypes.FromGoType(flatV.Type().Elem())
	if dtype == dtypes.InvalidDType {
		return Invalid(), errors.Errorf("unsupported flat values type %T -- expected a slice of a basic data type", flat)
	}
	for _, dim := range dimensions {
		if dim < 0 {
			return Invalid(), errors.Errorf("negative dimension in %v", dimensions)
		}
	}
	shape := Make(dtype, dimensions...)
	if shape.Size() != flatV.Len() {
		return Invalid(), errors.Errorf("flat values size %d doesn't match shape size %d (%s)", flatV.Len(), shape.Size(), shape)
	}
	return shape, nil
}
