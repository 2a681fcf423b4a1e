// Package lazyir builds the lazy intermediate representation (IR) of a tensor computation: instead of
// executing operations eagerly, each operation creates a Node in a directed acyclic graph (DAG), later
// compiled or lowered to an executable program by a backend.
//
// Among its features:
//
//   - Every Node carries two structural DAG hashes: one including the concrete dimensions of the shapes
//     involved, and one abstracting over them, so graphs that differ only in concrete sizes can share
//     compiled artifacts when dynamic shapes are enabled (see DynamicShapesEnabled).
//   - Shapes may have symbolic dimensions, refined through a shape inference oracle by the symbolic
//     shape Bridge.
//   - Multi-output nodes are referenced positionally by Value (building operands) and Output (lookup keys).
//
// A minimal graph:
//
//	x := lazyir.NewDeviceData("x", shapes.Make(dtypes.Float32, 2, 3))
//	y := lazyir.NewCast(x.Value(0), dtypes.Float64)
//	b := lazyir.New("example").AddOutputs(y.Value(0))
//	text, err := b.Build()
package lazyir

import "github.com/gomlx/lazyir/internal/utils"

// NormalizeIdentifier converts the name of an identifier (graph name, device data handles, etc.)
// to a valid one: only letters, digits, and underscores are allowed.
//
// Invalid characters are replaced with underscores.
// If the name starts with a digit, it is prefixed with an underscore.
func NormalizeIdentifier(name string) string {
	return utils.NormalizeIdentifier(name)
}
