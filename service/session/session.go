// Package session ties the memory map, the state store, the command
// registry, the overlay panel and the frame gate of one attachment
// together.
package session

import (
	"fmt"

	"github.com/jdsd/practice-tool/pkg/command"
	"github.com/jdsd/practice-tool/pkg/gate"
	"github.com/jdsd/practice-tool/pkg/logflags"
	"github.com/jdsd/practice-tool/pkg/overlay"
	"github.com/jdsd/practice-tool/pkg/pointers"
	"github.com/jdsd/practice-tool/pkg/proc"
	"github.com/jdsd/practice-tool/pkg/state"
)

// Bindings supplies the trigger of each command. It is consulted only
// while the session is built.
type Bindings interface {
	Lookup(name string) command.Trigger
	Describe(name string) string
}

// Names of the commands that are not features.
const (
	ShowCmd      = "show"
	SavePosCmd   = "save_pos"
	LoadPosCmd   = "load_pos"
	QuitoutCmd   = "quitout"
	NudgeUpCmd   = "nudge_up"
	NudgeDownCmd = "nudge_down"
)

// Config provides the configuration to start a Session.
type Config struct {
	// Memory is the address space of the target.
	Memory proc.MemoryReadWriter

	// Version selects the memory map.
	Version pointers.Version
	// ModuleBase is the image base of the target. Zero means the
	// executable's preferred base.
	ModuleBase uintptr
	// Overrides replaces individual absolute roots of the memory map.
	Overrides pointers.BaseAddresses

	// Features lists the features shown and bound, in order.
	Features []string
	// Nudge is the distance moved by the nudge commands.
	Nudge float32
	// Bindings supplies the triggers of the commands.
	Bindings Bindings

	// Surface receives the panel. Input supplies the pressed keys of
	// every frame. Setup acquires the host's rendering resources on the
	// first frame; it may be nil.
	Surface    overlay.Surface
	Input      gate.InputSource
	Setup      func() error
	Indicators bool
}

// Session is one attachment of the tool to a target. It owns every
// component; nothing is shared between sessions.
type Session struct {
	config   *Config
	ptrs     *pointers.Pointers
	store    *state.Store
	tracker  *command.Tracker
	registry *command.Registry
	panel    *overlay.Panel
	gate     *gate.Gate
	log      logflags.Logger
}

// New creates a session and registers one command per feature plus the
// show, position and quitout commands.
func New(config *Config) (*Session, error) {
	if config.Memory == nil {
		return nil, fmt.Errorf("no target memory")
	}
	ptrs, err := pointers.ForVersion(config.Version, config.ModuleBase, config.Overrides)
	if err != nil {
		return nil, err
	}
	store, err := state.New(config.Memory, ptrs, config.Features)
	if err != nil {
		return nil, err
	}
	s := &Session{
		config:  config,
		ptrs:    ptrs,
		store:   store,
		tracker: &command.Tracker{},
		log:     logflags.GateLogger().WithField("session", ptrs.Version.String()),
	}
	s.registry = command.NewRegistry(s.tracker)
	s.panel = &overlay.Panel{
		Title:      "ptool",
		Surface:    config.Surface,
		Store:      store,
		Keys:       s,
		Indicators: config.Indicators,
	}
	s.gate = gate.New(gate.Config{
		Setup:    config.Setup,
		Input:    config.Input,
		Registry: s.registry,
		Tracker:  s.tracker,
		Overlay:  s.overlay(),
	})
	s.panel.Frames = s.gate.Frames
	s.registerCommands()
	return s, nil
}

func (s *Session) overlay() gate.Renderer {
	if s.config.Surface == nil {
		return nil
	}
	return s.panel
}

func (s *Session) registerCommands() {
	trigger := func(name string) command.Trigger {
		if s.config.Bindings == nil {
			return command.Unbound
		}
		return s.config.Bindings.Lookup(name)
	}
	s.registry.Register(func() error {
		s.panel.ToggleShown()
		return nil
	}, ShowCmd, trigger(ShowCmd))
	for _, f := range s.store.Features() {
		s.registry.Register(func() error {
			f.Toggle()
			return nil
		}, f.Name, trigger(f.Name))
	}
	pos := s.store.Position()
	s.registry.Register(func() error {
		pos.Save()
		return nil
	}, SavePosCmd, trigger(SavePosCmd))
	s.registry.Register(func() error {
		pos.Load()
		return nil
	}, LoadPosCmd, trigger(LoadPosCmd))
	s.registry.Register(func() error {
		s.store.Quitout()
		return nil
	}, QuitoutCmd, trigger(QuitoutCmd))
	nudge := s.config.Nudge
	if nudge == 0 {
		nudge = 1
	}
	s.registry.Register(func() error {
		pos.Nudge(nudge)
		return nil
	}, NudgeUpCmd, trigger(NudgeUpCmd))
	s.registry.Register(func() error {
		pos.Nudge(-nudge)
		return nil
	}, NudgeDownCmd, trigger(NudgeDownCmd))
}

// Pointers returns the memory map in use.
func (s *Session) Pointers() *pointers.Pointers { return s.ptrs }

// Store returns the state store.
func (s *Session) Store() *state.Store { return s.store }

// Registry returns the command registry.
func (s *Session) Registry() *command.Registry { return s.registry }

// Gate returns the frame gate.
func (s *Session) Gate() *gate.Gate { return s.gate }

// Panel returns the overlay panel.
func (s *Session) Panel() *overlay.Panel { return s.panel }

// Memory returns the target memory.
func (s *Session) Memory() proc.MemoryReadWriter { return s.config.Memory }

// Invoke runs the command called name immediately.
func (s *Session) Invoke(name string) error {
	h, ok := s.registry.Find(name)
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	return s.registry.Invoke(h)
}

// Rebind changes the trigger of the command called name.
func (s *Session) Rebind(name string, t command.Trigger) error {
	h, ok := s.registry.Find(name)
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	return s.registry.Rebind(h, t)
}

// Describe returns the trigger currently bound to the command called
// name, or the empty string if it is unbound.
func (s *Session) Describe(name string) string {
	h, ok := s.registry.Find(name)
	if !ok {
		return ""
	}
	info, err := s.registry.Get(h)
	if err != nil || !info.Trigger.Bound() {
		return ""
	}
	return info.Trigger.String()
}

// Install hooks the session's gate into the host.
func (s *Session) Install(inst gate.Installer) <-chan error {
	s.log.Debugf("installing present hook")
	return gate.Install(inst, s.gate)
}
