// Package state is the toggle state store: the named features of the
// target and the position snapshot, each acting directly on target
// memory.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/jdsd/practice-tool/pkg/logflags"
	"github.com/jdsd/practice-tool/pkg/pointers"
	"github.com/jdsd/practice-tool/pkg/proc"
)

// ErrUnknownFeature is returned for feature names the store does not hold.
var ErrUnknownFeature = errors.New("unknown feature")

// CollisionName is the name of the collision meshes composite.
const CollisionName = "collision"

// Feature is one boolean the user can flip.
type Feature struct {
	Name  string
	Label string

	mem  proc.MemoryReadWriter
	cell proc.Cell

	composite bool
	members   proc.Composite
	written   bool
	last      bool
}

// Toggle flips the feature and returns its new state. If the feature's
// memory cannot be resolved nothing is written and the state reported by
// State is returned, false when that is not valid either.
func (f *Feature) Toggle() bool {
	log := logflags.StateLogger().WithField("feature", f.Name)
	var on, ok bool
	if f.composite {
		on, ok = f.members.Toggle(f.mem)
		if ok {
			f.last, f.written = on, true
		}
	} else {
		on, ok = f.cell.Toggle(f.mem)
	}
	if !ok {
		log.Debugf("not toggled, memory unresolved")
		on, _ = f.State()
		return on
	}
	if logflags.State() {
		log.Debugf("toggled to %v", on)
	}
	return on
}

// Set writes the feature.
func (f *Feature) Set(on bool) bool {
	if f.composite {
		if !f.members.Set(f.mem, on) {
			return false
		}
		f.last, f.written = on, true
		return true
	}
	return f.cell.Set(f.mem, on)
}

// State returns the current state of the feature. Single cells are read
// live. A composite reports the value last written by Toggle or Set and
// falls back to its canonical member before the first write. valid is
// false when nothing could be read.
func (f *Feature) State() (on, valid bool) {
	if f.composite {
		if f.written {
			return f.last, true
		}
		return f.members.State(f.mem)
	}
	return f.cell.Get(f.mem)
}

// Store holds the features of one attachment.
type Store struct {
	mem      proc.MemoryReadWriter
	ptrs     *pointers.Pointers
	features []*Feature
	byName   map[string]*Feature
	pos      *Position
	log      logflags.Logger
}

// New builds a store with one feature per name. "collision" is the
// collision meshes composite, every other name must be a flag of ptrs.
func New(mem proc.MemoryReadWriter, ptrs *pointers.Pointers, names []string) (*Store, error) {
	s := &Store{
		mem:    mem,
		ptrs:   ptrs,
		byName: make(map[string]*Feature, len(names)),
		pos:    NewPosition(mem, ptrs.Position),
		log:    logflags.StateLogger(),
	}
	for _, name := range names {
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("feature %q listed twice", name)
		}
		f := &Feature{Name: name, mem: mem}
		if name == CollisionName {
			f.Label = "Collision Meshes"
			f.composite = true
			f.members = ptrs.Collision()
		} else {
			fl, ok := ptrs.Flag(name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
			}
			f.Label = fl.Label
			f.cell = fl.Cell
		}
		s.features = append(s.features, f)
		s.byName[name] = f
	}
	return s, nil
}

// Features returns the features in the order they were listed.
func (s *Store) Features() []*Feature {
	return append([]*Feature(nil), s.features...)
}

// Feature returns the feature called name.
func (s *Store) Feature(name string) (*Feature, error) {
	f, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	return f, nil
}

// Toggle flips the feature called name and returns its new state.
func (s *Store) Toggle(name string) (bool, error) {
	f, err := s.Feature(name)
	if err != nil {
		return false, err
	}
	return f.Toggle(), nil
}

// Position returns the position snapshot.
func (s *Store) Position() *Position {
	return s.pos
}

// Pointers returns the memory map the store was built from.
func (s *Store) Pointers() *pointers.Pointers {
	return s.ptrs
}

// Memory returns the memory the store acts on.
func (s *Store) Memory() proc.MemoryReadWriter {
	return s.mem
}

// Quitout asks the target to quit to the main menu. It reports whether
// the request was written.
func (s *Store) Quitout() bool {
	ok := s.ptrs.Quitout.Write(s.mem, 1)
	if !ok {
		s.log.Debugf("quitout not written, %s unresolved", s.ptrs.Quitout)
	}
	return ok
}

// IGT returns the in-game time. It is zero if the timer cannot be read.
func (s *Store) IGT() time.Duration {
	ms, ok := s.ptrs.IGT.Read(s.mem)
	if !ok {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
