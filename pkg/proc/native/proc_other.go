//go:build !linux

package native

// Attach always fails outside of Linux.
func Attach(pid int) (*Process, error) {
	return nil, ErrUnsupported
}

// ReadMemory implements proc.MemoryReader.
func (p *Process) ReadMemory(buf []byte, addr uintptr) (int, error) {
	return 0, ErrUnsupported
}

// WriteMemory implements proc.MemoryReadWriter.
func (p *Process) WriteMemory(addr uintptr, data []byte) (int, error) {
	return 0, ErrUnsupported
}

// ModuleBase always fails outside of Linux.
func (p *Process) ModuleBase(name string) (uintptr, error) {
	return 0, ErrUnsupported
}
