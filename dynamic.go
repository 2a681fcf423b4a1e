package lazyir

import (
	"flag"
	"os"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// Latch is a write-once boolean: the first read (Get) or explicit initialization (Init) fixes its value for
// the lifetime of the process. Later changes to whatever it was resolved from are not observed.
//
// It is safe for concurrent use.
type Latch struct {
	name     string
	resolve  func() bool
	once     sync.Once
	value    bool
	resolved atomic.Bool
}

// NewLatch returns a Latch that, unless initialized explicitly, takes its value from resolve on first read.
func NewLatch(name string, resolve func() bool) *Latch {
	return &Latch{name: name, resolve: resolve}
}

// Get returns the latched value, resolving it if needed.
func (l *Latch) Get() bool {
	l.once.Do(func() { l.set(l.resolve(), "resolved") })
	return l.value
}

// Init latches value, if the Latch was not read or initialized before. It returns the effective value,
// which differs from value if it was already latched.
func (l *Latch) Init(value bool) bool {
	l.once.Do(func() { l.set(value, "initialized") })
	return l.value
}

// Resolved returns whether the value is already latched.
func (l *Latch) Resolved() bool { return l.resolved.Load() }

func (l *Latch) set(value bool, how string) {
	l.value = value
	l.resolved.Store(true)
	klog.V(1).Infof("lazyir: %s %s to %v", l.name, how, value)
}

// Environment variables that enable the corresponding mode when present, whatever their value.
const (
	EnvEnableDynamicShapes  = "LTC_ENABLE_DYNAMIC_SHAPES"
	EnvEnableSymbolicShapes = "LTC_ENABLE_SYMBOLIC_SHAPES"
	EnvIRDebug              = "LTC_IR_DEBUG"
)

var (
	// EnableDynamicShapes enables dynamic shapes if the environment variable EnvEnableDynamicShapes is not set.
	// It is only read once, see DynamicShapesEnabled.
	EnableDynamicShapes bool

	// EnableSymbolicShapes enables symbolic shape inference if EnvEnableSymbolicShapes is not set.
	EnableSymbolicShapes bool

	// EnableIRDebug enables capturing the source location of node creation if EnvIRDebug is not set.
	EnableIRDebug bool
)

// RegisterFlags binds the mode variables to flags in fs. Flags must be parsed before the first node is
// created, since modes are latched on first use.
func RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&EnableDynamicShapes, "ltc_enable_dynamic_shapes", EnableDynamicShapes,
		"Hash IR nodes without their concrete dimensions, so graphs differing only in sizes share compiled programs.")
	fs.BoolVar(&EnableSymbolicShapes, "ltc_enable_symbolic_shapes", EnableSymbolicShapes,
		"Annotate IR shapes with symbolic dimensions inferred by the shape inference oracle.")
	fs.BoolVar(&EnableIRDebug, "ltc_ir_debug", EnableIRDebug,
		"Record the source location where each IR node is created.")
}

func envOrFlag(env string, value *bool) func() bool {
	return func() bool {
		if _, found := os.LookupEnv(env); found {
			return true
		}
		return *value
	}
}

var (
	dynamicShapes  = NewLatch("dynamic shapes", envOrFlag(EnvEnableDynamicShapes, &EnableDynamicShapes))
	symbolicShapes = NewLatch("symbolic shapes", envOrFlag(EnvEnableSymbolicShapes, &EnableSymbolicShapes))
	irDebug        = NewLatch("IR debug", envOrFlag(EnvIRDebug, &EnableIRDebug))
)

// DynamicShapesEnabled returns whether Node.Hash uses the hashes without sizes.
//
// It is resolved once, on first use, from EnvEnableDynamicShapes or else EnableDynamicShapes.
func DynamicShapesEnabled() bool { return dynamicShapes.Get() }

// InitDynamicShapes sets the dynamic shapes mode explicitly, if it was not yet used.
// It returns the effective mode.
func InitDynamicShapes(enabled bool) bool { return dynamicShapes.Init(enabled) }

// SymbolicShapesEnabled returns whether MaybeApplySymbolicShapes annotates shapes.
//
// It is resolved once, on first use, from EnvEnableSymbolicShapes or else EnableSymbolicShapes.
func SymbolicShapesEnabled() bool { return symbolicShapes.Get() }

// InitSymbolicShapes sets the symbolic shapes mode explicitly, if it was not yet used.
// It returns the effective mode.
func InitSymbolicShapes(enabled bool) bool { return symbolicShapes.Init(enabled) }

// IRDebugEnabled returns whether nodes record the source location of their creation in their MetaData.
func IRDebugEnabled() bool { return irDebug.Get() }
