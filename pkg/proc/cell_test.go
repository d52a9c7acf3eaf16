package proc_test

import (
	"testing"

	"github.com/jdsd/practice-tool/pkg/proc"
	"github.com/jdsd/practice-tool/pkg/proc/memtest"
)

func TestCellToggleBitZero(t *testing.T) {
	mem := memtest.New()
	mem.PutByte(0x100, 0b00000001)
	c := proc.NewBitCell(0, 0x100)

	on, ok := c.Toggle(mem)
	if !ok || on {
		t.Fatalf("expected false, got %v (ok=%v)", on, ok)
	}
	if b := mem.Byte(0x100); b != 0 {
		t.Fatalf("expected 0b00000000, got %#08b", b)
	}
}

func TestCellToggleTwiceRestores(t *testing.T) {
	for _, tc := range []struct {
		name string
		cell proc.Cell
		init byte
	}{
		{"bit0-clear", proc.NewBitCell(0, 0x100), 0b10100000},
		{"bit0-set", proc.NewBitCell(0, 0x100), 0b10100001},
		{"bit5", proc.NewBitCell(5, 0x100), 0b00000001},
		{"byte", proc.NewByteCell(0x100), 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mem := memtest.New()
			mem.PutByte(0x100, tc.init)
			before, _ := tc.cell.Get(mem)

			first, ok := tc.cell.Toggle(mem)
			if !ok || first == before {
				t.Fatalf("first toggle returned %v (ok=%v), was %v", first, ok, before)
			}
			if now, _ := tc.cell.Get(mem); now != first {
				t.Fatalf("returned %v but memory reads %v", first, now)
			}
			second, ok := tc.cell.Toggle(mem)
			if !ok || second != before {
				t.Fatalf("second toggle returned %v (ok=%v), expected %v", second, ok, before)
			}
			if b := mem.Byte(0x100); b != tc.init {
				t.Fatalf("expected byte %#08b restored, got %#08b", tc.init, b)
			}
		})
	}
}

func TestCellPreservesNeighbourBits(t *testing.T) {
	mem := memtest.New()
	mem.PutByte(0x100, 0b11110000)
	c := proc.NewBitCell(1, 0x100)
	if !c.Set(mem, true) {
		t.Fatal("set failed")
	}
	if b := mem.Byte(0x100); b != 0b11110010 {
		t.Fatalf("unexpected byte %#08b", b)
	}
	// the target flips a neighbour between our calls
	mem.PutByte(0x100, 0b01110010)
	if on, _ := c.Toggle(mem); on {
		t.Fatal("expected bit cleared")
	}
	if b := mem.Byte(0x100); b != 0b01110000 {
		t.Fatalf("neighbour change lost: %#08b", b)
	}
}

func TestByteCellTreatsNonZeroAsSet(t *testing.T) {
	mem := memtest.New()
	mem.PutByte(0x100, 0x40)
	c := proc.NewByteCell(0x100)
	if on, ok := c.Get(mem); !on || !ok {
		t.Fatalf("expected set, got %v (ok=%v)", on, ok)
	}
	if on, _ := c.Toggle(mem); on {
		t.Fatal("expected cleared")
	}
	if b := mem.Byte(0x100); b != 0 {
		t.Fatalf("expected 0, got %#x", b)
	}
	c.Toggle(mem)
	if b := mem.Byte(0x100); b != 1 {
		t.Fatalf("expected 1, got %#x", b)
	}
}

func TestCellUnresolved(t *testing.T) {
	mem := memtest.New()
	mem.PutWord(0x1000, 0)
	c := proc.NewBitCell(0, 0x1000, 0x10)
	if _, ok := c.Toggle(mem); ok {
		t.Fatal("toggle through null chain succeeded")
	}
	if mem.Writes != 0 {
		t.Fatalf("expected no writes, got %d", mem.Writes)
	}
}

func collision(mem *memtest.Memory, world, dbg0, dbg8 byte) proc.Composite {
	mem.PutByte(0x10, world)
	mem.PutByte(0x20, dbg0)
	mem.PutByte(0x2c, dbg8)
	return proc.NewComposite(
		proc.Member{Cell: proc.NewBitCell(0, 0x10), Inverted: true},
		proc.Member{Cell: proc.NewBitCell(0, 0x20)},
		proc.Member{Cell: proc.NewBitCell(0, 0x2c)},
	)
}

func TestCompositeToggle(t *testing.T) {
	mem := memtest.New()
	c := collision(mem, 0b1001, 0b0110, 0)

	on, ok := c.Toggle(mem)
	if !ok || !on {
		t.Fatalf("expected true, got %v (ok=%v)", on, ok)
	}
	if b := mem.Byte(0x10); b != 0b1000 {
		t.Fatalf("inverted member: %#04b", b)
	}
	if b := mem.Byte(0x20); b != 0b0111 {
		t.Fatalf("member 1: %#04b", b)
	}
	if b := mem.Byte(0x2c); b != 1 {
		t.Fatalf("member 2: %#04b", b)
	}
	if st, _ := c.State(mem); !st {
		t.Fatal("state does not follow the written value")
	}

	on, _ = c.Toggle(mem)
	if on {
		t.Fatal("expected false on second toggle")
	}
	if mem.Byte(0x10) != 0b1001 || mem.Byte(0x20) != 0b0110 || mem.Byte(0x2c) != 0 {
		t.Fatalf("members not restored: %#x %#x %#x", mem.Byte(0x10), mem.Byte(0x20), mem.Byte(0x2c))
	}
}

func TestCompositeCanonicalDecides(t *testing.T) {
	mem := memtest.New()
	// members disagree: world rendered (logical off) but debug render set
	c := collision(mem, 1, 1, 0)
	on, _ := c.Toggle(mem)
	if !on {
		t.Fatal("expected canonical member to drive the new state")
	}
	if mem.Byte(0x10) != 0 || mem.Byte(0x20) != 1 || mem.Byte(0x2c) != 1 {
		t.Fatalf("members not in lock-step: %#x %#x %#x", mem.Byte(0x10), mem.Byte(0x20), mem.Byte(0x2c))
	}
}

func TestCompositeWritesNothingOnFailure(t *testing.T) {
	mem := memtest.New()
	mem.PutByte(0x10, 1)
	mem.PutWord(0x40, 0)
	c := proc.NewComposite(
		proc.Member{Cell: proc.NewBitCell(0, 0x10), Inverted: true},
		proc.Member{Cell: proc.NewBitCell(0, 0x40, 0x8)},
	)
	if _, ok := c.Toggle(mem); ok {
		t.Fatal("expected failure")
	}
	if mem.Writes != 0 || mem.Byte(0x10) != 1 {
		t.Fatalf("partial write happened")
	}
}
