package lazyir

import (
	"sync"

	"github.com/gomlx/lazyir/internal/optypes"
	"github.com/gomlx/lazyir/types/hash"
)

// OpKind identifies the operation of a Node. It is an interned symbol: GetOpKind returns the same
// OpKind for the same name, so they can be compared with ==.
//
// The zero value is an invalid OpKind.
type OpKind struct {
	sym *symbol
}

type symbol struct {
	name string
	hash hash.Hash
}

var (
	symbolsMu sync.Mutex
	symbols   = make(map[string]*symbol)
)

// GetOpKind returns the interned OpKind for name, e.g. "aten::add". It is safe for concurrent use.
func GetOpKind(name string) OpKind {
	symbolsMu.Lock()
	defer symbolsMu.Unlock()
	sym, found := symbols[name]
	if !found {
		sym = &symbol{name: name, hash: hash.String(name)}
		symbols[name] = sym
	}
	return OpKind{sym: sym}
}

// Builtin OpKind of the nodes defined in this package.
var (
	OpDeviceData = GetOpKind(optypes.DeviceData.Symbol())
	OpConstant   = GetOpKind(optypes.Constant.Symbol())
	OpScalar     = GetOpKind(optypes.Scalar.Symbol())
	OpCast       = GetOpKind(optypes.Cast.Symbol())
)

// Ok returns whether the OpKind was created with GetOpKind.
func (k OpKind) Ok() bool { return k.sym != nil }

// String returns the name of the op.
func (k OpKind) String() string {
	if k.sym == nil {
		return "<invalid>"
	}
	return k.sym.name
}

// Hash of the op name.
func (k OpKind) Hash() hash.Hash {
	if k.sym == nil {
		return 0
	}
	return k.sym.hash
}

// Less orders OpKind by name.
func (k OpKind) Less(k2 OpKind) bool {
	return k.String() < k2.String()
}
