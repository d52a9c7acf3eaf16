// Package memtest provides a sparse fake address space for tests of code
// that reads and writes target memory.
package memtest

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// Memory is a sparse byte-addressed memory. Reading a byte that was never
// written fails, like reading an unmapped page of a real process.
type Memory struct {
	mu     sync.Mutex
	bytes  map[uintptr]byte
	Reads  int
	Writes int
}

// New returns an empty memory.
func New() *Memory {
	return &Memory{bytes: make(map[uintptr]byte)}
}

// UnmappedError is returned when an access touches an address that was
// never written.
type UnmappedError struct {
	Addr uintptr
}

func (err UnmappedError) Error() string {
	return fmt.Sprintf("address %#x is not mapped", err.Addr)
}

func (m *Memory) ReadMemory(buf []byte, addr uintptr) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	for i := range buf {
		b, ok := m.bytes[addr+uintptr(i)]
		if !ok {
			return i, UnmappedError{addr + uintptr(i)}
		}
		buf[i] = b
	}
	return len(buf), nil
}

func (m *Memory) WriteMemory(addr uintptr, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	for i := range data {
		if _, ok := m.bytes[addr+uintptr(i)]; !ok {
			return i, UnmappedError{addr + uintptr(i)}
		}
		m.bytes[addr+uintptr(i)] = data[i]
	}
	return len(data), nil
}

// Map makes size zeroed bytes at addr accessible.
func (m *Memory) Map(addr uintptr, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < size; i++ {
		if _, ok := m.bytes[addr+uintptr(i)]; !ok {
			m.bytes[addr+uintptr(i)] = 0
		}
	}
}

// Unmap makes size bytes at addr inaccessible again.
func (m *Memory) Unmap(addr uintptr, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < size; i++ {
		delete(m.bytes, addr+uintptr(i))
	}
}

// Put maps and stores data at addr.
func (m *Memory) Put(addr uintptr, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range data {
		m.bytes[addr+uintptr(i)] = b
	}
}

// PutWord stores a little endian pointer-sized value.
func (m *Memory) PutWord(addr uintptr, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	m.Put(addr, buf[:])
}

// PutByte stores a single byte.
func (m *Memory) PutByte(addr uintptr, v byte) {
	m.Put(addr, []byte{v})
}

// PutUint32 stores a little endian uint32.
func (m *Memory) PutUint32(addr uintptr, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	m.Put(addr, buf[:])
}

// PutFloat32 stores a little endian float32.
func (m *Memory) PutFloat32(addr uintptr, v float32) {
	m.PutUint32(addr, math.Float32bits(v))
}

// PutVec3 stores three consecutive float32 values.
func (m *Memory) PutVec3(addr uintptr, v [3]float32) {
	for i, f := range v {
		m.PutFloat32(addr+uintptr(4*i), f)
	}
}

// Byte returns the byte at addr, or 0 if it is not mapped.
func (m *Memory) Byte(addr uintptr) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytes[addr]
}

// Float32 returns the float32 stored at addr.
func (m *Memory) Float32(addr uintptr) float32 {
	var buf [4]byte
	m.mu.Lock()
	for i := range buf {
		buf[i] = m.bytes[addr+uintptr(i)]
	}
	m.mu.Unlock()
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
}

// Vec3 returns three consecutive float32 values stored at addr.
func (m *Memory) Vec3(addr uintptr) [3]float32 {
	return [3]float32{m.Float32(addr), m.Float32(addr + 4), m.Float32(addr + 8)}
}

// ResetCounters zeroes Reads and Writes.
func (m *Memory) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads, m.Writes = 0, 0
}
