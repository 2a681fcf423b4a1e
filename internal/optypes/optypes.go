// Package optypes defines OpType, the enum of builtin lazy IR operations.
package optypes

import (
	"github.com/gomlx/lazyir/internal/utils"
)

// OpType is an enum of the operations the lazy IR core builds itself. Every other operation is identified by
// the operator name of its schema.
type OpType int

//go:generate go tool enumer -type=OpType optypes.go

const (
	Invalid OpType = iota
	DeviceData
	Constant
	Scalar
	Cast

	// Last should always be kept the last, it is used as a counter/marker for .
	Last
)

// Namespace of the builtin operations symbols.
const Namespace = "lazy"

// Symbol returns the interned name of the operation, e.g. "lazy::device_data".
func (op OpType) Symbol() string {
	return Namespace + "::" + utils.ToSnakeCase(op.String())
}
