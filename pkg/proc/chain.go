package proc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"fortio.org/safecast"

	"github.com/jdsd/practice-tool/pkg/logflags"
)

// Scalar lists the value types a PointerChain can point to.
type Scalar interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 |
		float32 | float64 | [3]float32 | [4]float32
}

// Kind is the type tag of the value a chain resolves to.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUint8
	KindInt8
	KindUint16
	KindInt16
	KindUint32
	KindInt32
	KindUint64
	KindInt64
	KindFloat32
	KindFloat64
	KindVec3
	KindVec4
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindUint8:   "uint8",
	KindInt8:    "int8",
	KindUint16:  "uint16",
	KindInt16:   "int16",
	KindUint32:  "uint32",
	KindInt32:   "int32",
	KindUint64:  "uint64",
	KindInt64:   "int64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindVec3:    "vec3",
	KindVec4:    "vec4",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

func kindOf[T Scalar]() Kind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return KindUint8
	case int8:
		return KindInt8
	case uint16:
		return KindUint16
	case int16:
		return KindInt16
	case uint32:
		return KindUint32
	case int32:
		return KindInt32
	case uint64:
		return KindUint64
	case int64:
		return KindInt64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	case [3]float32:
		return KindVec3
	case [4]float32:
		return KindVec4
	}
	return KindInvalid
}

// Location is the result of resolving a chain. The zero Location is the
// null location: resolution went through address zero or unreadable
// memory. Locations are transient and must not be kept across frames.
type Location struct {
	Addr uintptr
	Kind Kind
}

// Valid reports whether the location can be read or written.
func (l Location) Valid() bool {
	return l.Addr != 0
}

func (l Location) String() string {
	if !l.Valid() {
		return "<nil>"
	}
	return fmt.Sprintf("%#x (%s)", l.Addr, l.Kind)
}

// PointerChain describes how to reach a value of type T in the target's
// memory: a base address followed by signed offsets. The word stored at
// the base is read and the first offset added to it, and so on; the
// address computed with the last offset is the location of the value
// and is not dereferenced. A chain without offsets points at the base.
//
// A chain is never cached: every access walks it again, since the target
// relocates the intermediate objects.
type PointerChain[T Scalar] struct {
	base    uintptr
	offsets []int64
}

// NewPointerChain returns a chain starting at base.
func NewPointerChain[T Scalar](base uintptr, offsets ...int64) PointerChain[T] {
	return PointerChain[T]{base: base, offsets: append([]int64(nil), offsets...)}
}

// Base returns the first address of the chain.
func (c PointerChain[T]) Base() uintptr {
	return c.base
}

// Offsets returns a copy of the chain's offsets.
func (c PointerChain[T]) Offsets() []int64 {
	return append([]int64(nil), c.offsets...)
}

// Kind returns the type tag of the target value.
func (c PointerChain[T]) Kind() Kind {
	return kindOf[T]()
}

// Eval resolves the chain against mem.
func (c PointerChain[T]) Eval(mem MemoryReader) Location {
	addr, err := resolve(mem, c.base, c.offsets)
	if err != nil {
		if logflags.Memory() {
			logflags.MemoryLogger().WithError(err).Debugf("could not resolve %s", c)
		}
		return Location{}
	}
	return Location{Addr: addr, Kind: kindOf[T]()}
}

// Read resolves the chain and reads the value it points to. On failure
// the zero value is returned with ok set to false.
func (c PointerChain[T]) Read(mem MemoryReader) (v T, ok bool) {
	loc := c.Eval(mem)
	if !loc.Valid() {
		return v, false
	}
	buf := make([]byte, binary.Size(v))
	if err := readFull(mem, buf, loc.Addr); err != nil {
		if logflags.Memory() {
			logflags.MemoryLogger().WithError(err).Debugf("could not read %s at %s", c, loc)
		}
		return v, false
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &v); err != nil {
		return v, false
	}
	return v, true
}

// Write resolves the chain and stores v at the resulting location. It
// reports whether the value was written.
func (c PointerChain[T]) Write(mem MemoryReadWriter, v T) bool {
	loc := c.Eval(mem)
	if !loc.Valid() {
		return false
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return false
	}
	if err := writeFull(mem, loc.Addr, buf.Bytes()); err != nil {
		if logflags.Memory() {
			logflags.MemoryLogger().WithError(err).Debugf("could not write %s at %s", c, loc)
		}
		return false
	}
	return true
}

func (c PointerChain[T]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%#x", c.base)
	for _, off := range c.offsets {
		if off < 0 {
			fmt.Fprintf(&sb, ", -%#x", -off)
		} else {
			fmt.Fprintf(&sb, ", %#x", off)
		}
	}
	fmt.Fprintf(&sb, "] %s", kindOf[T]())
	return sb.String()
}

// ResolveError describes the hop at which a chain could not be followed.
type ResolveError struct {
	Hop  int
	Addr uintptr
	Err  error
}

func (err *ResolveError) Error() string {
	return fmt.Sprintf("hop %d at %#x: %v", err.Hop, err.Addr, err.Err)
}

func (err *ResolveError) Unwrap() error {
	return err.Err
}

func resolve(mem MemoryReader, base uintptr, offsets []int64) (uintptr, error) {
	cur := base
	if cur == 0 {
		return 0, &ResolveError{Hop: 0, Addr: 0, Err: ErrNilAddress}
	}
	for i, off := range offsets {
		word, err := readWord(mem, cur)
		if err != nil {
			return 0, &ResolveError{Hop: i, Addr: cur, Err: err}
		}
		if word == 0 {
			return 0, &ResolveError{Hop: i, Addr: cur, Err: ErrNilAddress}
		}
		next, err := addOffset(word, off)
		if err != nil {
			return 0, &ResolveError{Hop: i, Addr: cur, Err: err}
		}
		cur = next
	}
	return cur, nil
}

func addOffset(addr uintptr, off int64) (uintptr, error) {
	a, err := safecast.Conv[int64](addr)
	if err != nil {
		return 0, err
	}
	sum := a + off
	if (off > 0 && sum < a) || sum <= 0 {
		return 0, fmt.Errorf("offset %d out of range from %#x", off, addr)
	}
	return safecast.Conv[uintptr](sum)
}
