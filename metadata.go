package lazyir

import (
	"fmt"
	"runtime"
	"strings"
)

// UserMetaData is arbitrary side data attached to a Node by its users, see Node.SetUserMetaData.
type UserMetaData interface {
	fmt.Stringer
}

// SourceLocation of a stack frame.
type SourceLocation struct {
	Function string
	File     string
	Line     int
}

// String implements fmt.Stringer.
func (l SourceLocation) String() string {
	return fmt.Sprintf("%s (%s:%d)", l.Function, l.File, l.Line)
}

// MetaData about the creation of a Node.
type MetaData struct {
	// Frames is the call stack where the node was created, innermost first.
	// Only captured if IRDebugEnabled.
	Frames []SourceLocation
}

// String implements fmt.Stringer.
func (m MetaData) String() string {
	parts := make([]string, len(m.Frames))
	for i, frame := range m.Frames {
		parts[i] = frame.String()
	}
	return strings.Join(parts, "\n")
}

const maxMetaDataFrames = 16

// packagePrefix of the functions defined in this package, skipped when capturing frames.
const packagePrefix = "github.com/gomlx/lazyir."

func newMetaData() MetaData {
	if !IRDebugEnabled() {
		return MetaData{}
	}
	pcs := make([]uintptr, maxMetaDataFrames+8)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var md MetaData
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, packagePrefix) || strings.HasSuffix(frame.File, "_test.go") {
			md.Frames = append(md.Frames, SourceLocation{Function: frame.Function, File: frame.File, Line: frame.Line})
			if len(md.Frames) == maxMetaDataFrames {
				break
			}
		}
		if !more {
			break
		}
	}
	return md
}
