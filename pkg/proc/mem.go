package proc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

// WordSize is the size of a pointer in the target process.
const WordSize = 8

// ErrNilAddress is returned when memory at address zero is accessed.
var ErrNilAddress = errors.New("access to address zero")

// MemoryReader is like io.ReaderAt, but the offset is a uintptr so that it
// can address all of 64-bit memory.
// Redundant with MemoryReadWriter but more easily suited to working with
// the standard io package.
type MemoryReader interface {
	// ReadMemory is just like io.ReaderAt.ReadAt.
	ReadMemory(buf []byte, addr uintptr) (n int, err error)
}

// MemoryReadWriter is an interface for reading or writing to
// the target's memory.
type MemoryReadWriter interface {
	MemoryReader
	WriteMemory(addr uintptr, data []byte) (written int, err error)
}

// ShortAccessError is returned when a memory backend transferred fewer
// bytes than requested.
type ShortAccessError struct {
	Addr uintptr
	Want int
	Got  int
}

func (err *ShortAccessError) Error() string {
	return fmt.Sprintf("short access at %#x: %d of %d bytes", err.Addr, err.Got, err.Want)
}

func readFull(mem MemoryReader, buf []byte, addr uintptr) error {
	n, err := mem.ReadMemory(buf, addr)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return &ShortAccessError{Addr: addr, Want: len(buf), Got: n}
	}
	return nil
}

func writeFull(mem MemoryReadWriter, addr uintptr, data []byte) error {
	n, err := mem.WriteMemory(addr, data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return &ShortAccessError{Addr: addr, Want: len(data), Got: n}
	}
	return nil
}

// readWord reads a pointer-sized little endian value.
func readWord(mem MemoryReader, addr uintptr) (uintptr, error) {
	var buf [WordSize]byte
	if err := readFull(mem, buf[:], addr); err != nil {
		return 0, err
	}
	return uintptr(binary.LittleEndian.Uint64(buf[:])), nil
}

// LocalMemory accesses the memory of the current process. It is the
// backend used when the tool is resident inside the host. Addresses are
// trusted: a bad address faults like any other wild pointer.
type LocalMemory struct{}

func (LocalMemory) ReadMemory(buf []byte, addr uintptr) (int, error) {
	if addr == 0 {
		return 0, ErrNilAddress
	}
	if len(buf) == 0 {
		return 0, nil
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(buf))
	return copy(buf, src), nil
}

func (LocalMemory) WriteMemory(addr uintptr, data []byte) (int, error) {
	if addr == 0 {
		return 0, ErrNilAddress
	}
	if len(data) == 0 {
		return 0, nil
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(data))
	return copy(dst, data), nil
}
