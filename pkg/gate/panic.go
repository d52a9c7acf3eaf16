package gate

import (
	"bytes"
	"fmt"
	"runtime"
)

// PanicError is a panic recovered inside a frame.
type PanicError struct {
	Value interface{}
	Stack []Frame
}

// Frame is one entry of the stack of a PanicError.
type Frame struct {
	PC   uintptr
	Func string
	File string
	Line int
}

func newPanicError(v interface{}, skip int) *PanicError {
	r := &PanicError{Value: v}
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fname := "<unknown>"
		if fn := runtime.FuncForPC(pc); fn != nil {
			fname = fn.Name()
		}
		r.Stack = append(r.Stack, Frame{pc, fname, file, line})
	}
	return r
}

func (err *PanicError) Error() string {
	var out bytes.Buffer
	fmt.Fprintf(&out, "panic: %v\n", err.Value)
	for _, frame := range err.Stack {
		fmt.Fprintf(&out, "%s (%#x)\n\t%s:%d\n", frame.Func, frame.PC, frame.File, frame.Line)
	}
	return out.String()
}

// Unwrap returns the panic value if it is an error.
func (err *PanicError) Unwrap() error {
	if e, ok := err.Value.(error); ok {
		return e
	}
	return nil
}
