package proc

import "fmt"

// Cell is one boolean owned by the target: a single bit of a byte, or a
// whole byte used as a 0/1 flag. Every operation reads the byte fresh and
// writes back only the bits the cell owns.
type Cell struct {
	loc   PointerChain[uint8]
	mask  uint8
	whole bool
}

// NewBitCell returns a cell for bit number bit of the byte found by
// following base and offsets.
func NewBitCell(bit uint8, base uintptr, offsets ...int64) Cell {
	if bit > 7 {
		panic(fmt.Sprintf("bit index %d out of range", bit))
	}
	return Cell{loc: NewPointerChain[uint8](base, offsets...), mask: 1 << bit}
}

// NewByteCell returns a cell that owns the whole byte found by following
// base and offsets. Any non-zero value reads as set.
func NewByteCell(base uintptr, offsets ...int64) Cell {
	return Cell{loc: NewPointerChain[uint8](base, offsets...), mask: 0xff, whole: true}
}

// Chain returns the chain locating the cell's byte.
func (c Cell) Chain() PointerChain[uint8] {
	return c.loc
}

// Eval resolves the cell's byte.
func (c Cell) Eval(mem MemoryReader) Location {
	return c.loc.Eval(mem)
}

func (c Cell) test(b uint8) bool {
	return b&c.mask != 0
}

func (c Cell) apply(b uint8, on bool) uint8 {
	if c.whole {
		if on {
			return 1
		}
		return 0
	}
	if on {
		return b | c.mask
	}
	return b &^ c.mask
}

// Get reads the cell. ok is false if the byte could not be resolved.
func (c Cell) Get(mem MemoryReader) (on, ok bool) {
	b, ok := c.loc.Read(mem)
	if !ok {
		return false, false
	}
	return c.test(b), true
}

// Set writes the cell, preserving the bits it does not own.
func (c Cell) Set(mem MemoryReadWriter, on bool) bool {
	b, ok := c.loc.Read(mem)
	if !ok {
		return false
	}
	return c.loc.Write(mem, c.apply(b, on))
}

// Toggle flips the cell and returns its new state.
func (c Cell) Toggle(mem MemoryReadWriter) (on, ok bool) {
	b, ok := c.loc.Read(mem)
	if !ok {
		return false, false
	}
	on = !c.test(b)
	if !c.loc.Write(mem, c.apply(b, on)) {
		return false, false
	}
	return on, true
}

func (c Cell) String() string {
	if c.whole {
		return fmt.Sprintf("byte %s", c.loc)
	}
	return fmt.Sprintf("mask %#02x %s", c.mask, c.loc)
}

// Member is a cell taking part in a Composite. An inverted member is
// cleared when the composite is on.
type Member struct {
	Cell     Cell
	Inverted bool
}

func (m Member) logical(b uint8) bool {
	return m.Cell.test(b) != m.Inverted
}

// Composite is a logical flag backed by several cells that must change
// together. The first member is canonical: the composite's state is
// derived from it and the other members follow.
type Composite struct {
	members []Member
}

// NewComposite returns a composite with the given canonical member.
func NewComposite(canonical Member, rest ...Member) Composite {
	members := make([]Member, 0, len(rest)+1)
	members = append(members, canonical)
	members = append(members, rest...)
	return Composite{members: members}
}

// Members returns a copy of the composite's members, canonical first.
func (c Composite) Members() []Member {
	return append([]Member(nil), c.members...)
}

// State returns the logical state of the canonical member.
func (c Composite) State(mem MemoryReader) (on, ok bool) {
	b, ok := c.members[0].Cell.loc.Read(mem)
	if !ok {
		return false, false
	}
	return c.members[0].logical(b), true
}

// Set writes every member. Nothing is written if any member cannot be
// resolved.
func (c Composite) Set(mem MemoryReadWriter, on bool) bool {
	cur, ok := c.read(mem)
	if !ok {
		return false
	}
	return c.write(mem, cur, on)
}

// Toggle flips the composite and returns the logical state written.
func (c Composite) Toggle(mem MemoryReadWriter) (on, ok bool) {
	cur, ok := c.read(mem)
	if !ok {
		return false, false
	}
	on = !c.members[0].logical(cur[0])
	if !c.write(mem, cur, on) {
		return false, false
	}
	return on, true
}

func (c Composite) read(mem MemoryReader) ([]uint8, bool) {
	cur := make([]uint8, len(c.members))
	for i, m := range c.members {
		b, ok := m.Cell.loc.Read(mem)
		if !ok {
			return nil, false
		}
		cur[i] = b
	}
	return cur, true
}

func (c Composite) write(mem MemoryReadWriter, cur []uint8, on bool) bool {
	ok := true
	for i, m := range c.members {
		if !m.Cell.loc.Write(mem, m.Cell.apply(cur[i], on != m.Inverted)) {
			ok = false
		}
	}
	return ok
}
