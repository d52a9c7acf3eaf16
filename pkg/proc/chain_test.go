package proc_test

import (
	"errors"
	"runtime"
	"testing"
	"unsafe"

	"github.com/jdsd/practice-tool/pkg/proc"
	"github.com/jdsd/practice-tool/pkg/proc/memtest"
)

func TestChainWithoutOffsetsIsNotDereferenced(t *testing.T) {
	mem := memtest.New()
	c := proc.NewPointerChain[float32](0x1000)
	loc := c.Eval(mem)
	if loc.Addr != 0x1000 {
		t.Fatalf("expected 0x1000, got %s", loc)
	}
	if loc.Kind != proc.KindFloat32 {
		t.Fatalf("expected float32 kind, got %s", loc.Kind)
	}
	if mem.Reads != 0 {
		t.Fatalf("expected no reads, got %d", mem.Reads)
	}
}

func TestChainResolution(t *testing.T) {
	mem := memtest.New()
	mem.PutWord(0x1000, 0x2000)
	mem.PutWord(0x2000+0x48, 0x3000)
	mem.PutWord(0x3000+0x28, 0x4000)
	mem.PutFloat32(0x4000+0x80, 12.5)

	c := proc.NewPointerChain[float32](0x1000, 0x48, 0x28, 0x80)
	loc := c.Eval(mem)
	if loc.Addr != 0x4080 {
		t.Fatalf("expected 0x4080, got %s", loc)
	}
	v, ok := c.Read(mem)
	if !ok || v != 12.5 {
		t.Fatalf("expected 12.5, got %v (ok=%v)", v, ok)
	}
}

func TestChainZeroHop(t *testing.T) {
	mem := memtest.New()
	mem.PutWord(0x1000, 0x2000)
	mem.PutWord(0x2000+0x48, 0)
	mem.PutWord(0x28, 0x4000) // garbage reachable only by ignoring the zero
	mem.PutFloat32(0x4000+0x80, 1)

	c := proc.NewPointerChain[float32](0x1000, 0x48, 0x28, 0x80)
	if loc := c.Eval(mem); loc.Valid() {
		t.Fatalf("expected null location, got %s", loc)
	}
	v, ok := c.Read(mem)
	if ok || v != 0 {
		t.Fatalf("expected default 0, got %v (ok=%v)", v, ok)
	}
	if c.Write(mem, 3) {
		t.Fatalf("write through null location succeeded")
	}
}

func TestChainUnmappedHop(t *testing.T) {
	mem := memtest.New()
	mem.PutWord(0x1000, 0x2000)
	c := proc.NewPointerChain[uint32](0x1000, 0x10, 0x4)
	if loc := c.Eval(mem); loc.Valid() {
		t.Fatalf("expected null location, got %s", loc)
	}
}

func TestChainNegativeOffset(t *testing.T) {
	mem := memtest.New()
	mem.PutWord(0x1000, 0x2000)
	c := proc.NewPointerChain[uint8](0x1000, -3)
	if loc := c.Eval(mem); loc.Addr != 0x2000-3 {
		t.Fatalf("expected %#x, got %s", 0x2000-3, loc)
	}
	c = proc.NewPointerChain[uint8](0x1000, -0x3000)
	if loc := c.Eval(mem); loc.Valid() {
		t.Fatalf("expected null location for underflow, got %s", loc)
	}
}

func TestChainReadWriteVec3(t *testing.T) {
	mem := memtest.New()
	mem.PutWord(0x1000, 0x5000)
	mem.PutVec3(0x5080, [3]float32{1, 2, 3})

	c := proc.NewPointerChain[[3]float32](0x1000, 0x80)
	v, ok := c.Read(mem)
	if !ok || v != [3]float32{1, 2, 3} {
		t.Fatalf("unexpected read %v (ok=%v)", v, ok)
	}
	if !c.Write(mem, [3]float32{4, 5, 6}) {
		t.Fatal("write failed")
	}
	if got := mem.Vec3(0x5080); got != [3]float32{4, 5, 6} {
		t.Fatalf("unexpected memory after write %v", got)
	}
}

func TestChainIsResolvedOnEveryAccess(t *testing.T) {
	mem := memtest.New()
	mem.PutWord(0x1000, 0x2000)
	mem.PutFloat32(0x2010, 1)
	mem.PutFloat32(0x3010, 2)

	c := proc.NewPointerChain[float32](0x1000, 0x10)
	if v, _ := c.Read(mem); v != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
	mem.PutWord(0x1000, 0x3000)
	if v, _ := c.Read(mem); v != 2 {
		t.Fatalf("expected 2 after relocation, got %v", v)
	}
}

func TestChainString(t *testing.T) {
	c := proc.NewPointerChain[uint8](0x143b55048, 0x23c, -2)
	if s := c.String(); s != "[0x143b55048, 0x23c, -0x2] uint8" {
		t.Fatalf("unexpected string %q", s)
	}
}

func TestOffsetsAreCopied(t *testing.T) {
	offs := []int64{0x48, 0x28}
	c := proc.NewPointerChain[float32](0x1000, offs...)
	offs[0] = 0
	if got := c.Offsets(); got[0] != 0x48 {
		t.Fatalf("chain shares caller's slice: %v", got)
	}
}

func TestLocalMemory(t *testing.T) {
	type node struct {
		next  uintptr
		value float32
	}
	leaf := &node{value: 7.25}
	root := &node{next: uintptr(unsafe.Pointer(leaf))}
	slot := uintptr(unsafe.Pointer(root))

	c := proc.NewPointerChain[float32](slot, int64(unsafe.Offsetof(leaf.value)))
	v, ok := c.Read(proc.LocalMemory{})
	if !ok || v != 7.25 {
		t.Fatalf("expected 7.25, got %v (ok=%v)", v, ok)
	}
	if !c.Write(proc.LocalMemory{}, 1.5) || leaf.value != 1.5 {
		t.Fatalf("write did not reach the leaf: %v", leaf.value)
	}
	runtime.KeepAlive(root)
	runtime.KeepAlive(leaf)

	var buf [1]byte
	if _, err := (proc.LocalMemory{}).ReadMemory(buf[:], 0); !errors.Is(err, proc.ErrNilAddress) {
		t.Fatalf("expected ErrNilAddress, got %v", err)
	}
}
