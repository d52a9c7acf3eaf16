package state

import (
	"github.com/jdsd/practice-tool/pkg/logflags"
	"github.com/jdsd/practice-tool/pkg/proc"
)

// Vec3 is a position in world coordinates.
type Vec3 = [3]float32

// Snapshot is the position shown by the overlay. Live is zero when the
// position cannot be resolved.
type Snapshot struct {
	Live      Vec3
	LiveValid bool
	Saved     Vec3
	HasSaved  bool
}

// Position saves and restores the player position.
type Position struct {
	mem      proc.MemoryReadWriter
	chain    proc.PointerChain[Vec3]
	saved    Vec3
	hasSaved bool
}

// NewPosition returns a position with nothing saved.
func NewPosition(mem proc.MemoryReadWriter, chain proc.PointerChain[Vec3]) *Position {
	return &Position{mem: mem, chain: chain}
}

// Save copies the live position into the snapshot. The snapshot is kept
// if the live position cannot be read.
func (p *Position) Save() bool {
	v, ok := p.chain.Read(p.mem)
	if !ok {
		logflags.StateLogger().Debugf("position not saved, %s unresolved", p.chain)
		return false
	}
	p.saved, p.hasSaved = v, true
	return true
}

// Load writes the snapshot to the live position. Nothing happens before
// the first successful Save.
func (p *Position) Load() bool {
	if !p.hasSaved {
		return false
	}
	if !p.chain.Write(p.mem, p.saved) {
		logflags.StateLogger().Debugf("position not loaded, %s unresolved", p.chain)
		return false
	}
	return true
}

// Nudge moves the live position vertically by dy.
func (p *Position) Nudge(dy float32) bool {
	v, ok := p.chain.Read(p.mem)
	if !ok {
		return false
	}
	v[1] += dy
	return p.chain.Write(p.mem, v)
}

// Snapshot returns the live and saved positions.
func (p *Position) Snapshot() Snapshot {
	live, ok := p.chain.Read(p.mem)
	return Snapshot{Live: live, LiveValid: ok, Saved: p.saved, HasSaved: p.hasSaved}
}
