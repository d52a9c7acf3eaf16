// Package native accesses the memory of a live process on the local
// machine.
package native

import (
	"errors"
	"fmt"

	"github.com/jdsd/practice-tool/pkg/logflags"
)

// ErrUnsupported is returned by Attach on platforms without a live
// process backend.
var ErrUnsupported = errors.New("attaching to a live process is not supported on this platform")

// Process is a live process whose memory is read and written directly,
// without stopping it.
type Process struct {
	pid int
	exe string
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.pid
}

// Exe returns the path of the process executable, if known.
func (p *Process) Exe() string {
	return p.exe
}

func (p *Process) String() string {
	return fmt.Sprintf("pid %d (%s)", p.pid, p.exe)
}

// Detach releases the process. Memory is accessed without tracing it, so
// there is nothing to undo.
func (p *Process) Detach() error {
	logflags.NativeLogger().Debugf("detached from %s", p)
	return nil
}
