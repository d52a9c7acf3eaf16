// Package gate runs the tool once per frame presented by the host.
//
// The gate is a two state machine. The first frame performs the one time
// setup; every later frame polls input, dispatches commands, draws the
// overlay and records the input for edge detection, in that order. No
// failure inside a frame reaches the host: the host's own present
// routine always runs.
package gate

import (
	"fmt"

	"github.com/jdsd/practice-tool/pkg/command"
	"github.com/jdsd/practice-tool/pkg/logflags"
)

// State is the state of a Gate.
type State uint8

const (
	// Uninitialized gates run their setup on the next frame.
	Uninitialized State = iota
	// Active gates run the tool every frame.
	Active
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// InputSource fills in the pressed state of every key for the current
// frame.
type InputSource interface {
	Poll(cur *command.InputState)
}

// Renderer draws the overlay.
type Renderer interface {
	Render()
}

// Config are the collaborators of a Gate.
type Config struct {
	// Setup acquires the host's rendering resources. It is retried on
	// every frame until it succeeds.
	Setup func() error

	Input    InputSource
	Registry *command.Registry
	Tracker  *command.Tracker
	Overlay  Renderer
}

// Gate is the per frame entry point. All of its methods must be called
// from the host's render goroutine.
type Gate struct {
	cfg    Config
	state  State
	frames uint64
	cur    command.InputState

	lastSetupErr string
	log          logflags.Logger
}

// New returns an uninitialized gate.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg, log: logflags.GateLogger()}
}

// State returns the current state of the gate.
func (g *Gate) State() State {
	return g.state
}

// Frames returns the number of frames the gate has seen.
func (g *Gate) Frames() uint64 {
	return g.frames
}

// Frame runs the tool for one host frame.
func (g *Gate) Frame() {
	g.frames++
	if g.state == Uninitialized && !g.setup() {
		return
	}
	g.active()
}

func (g *Gate) setup() bool {
	err := g.protect(func() error {
		if g.cfg.Setup == nil {
			return nil
		}
		return g.cfg.Setup()
	})
	if err != nil {
		if msg := err.Error(); msg != g.lastSetupErr {
			g.lastSetupErr = msg
			g.log.WithError(err).Error("overlay setup failed")
		}
		return false
	}
	g.state = Active
	if logflags.Gate() {
		g.log.Debugf("active after %d frame(s)", g.frames)
	}
	return true
}

func (g *Gate) active() {
	g.cur.Clear()
	defer g.cfg.Tracker.Update(&g.cur)

	err := g.protect(func() error {
		if g.cfg.Input != nil {
			g.cfg.Input.Poll(&g.cur)
		}
		derr := g.cfg.Registry.Dispatch(&g.cur)
		if g.cfg.Overlay != nil {
			g.cfg.Overlay.Render()
		}
		return derr
	})
	if err != nil {
		g.log.WithField("frame", g.frames).WithError(err).Error("frame failed")
	}
}

// protect runs fn, turning a panic into an error.
func (g *Gate) protect(fn func() error) (err error) {
	defer func() {
		if ierr := recover(); ierr != nil {
			err = newPanicError(ierr, 3)
		}
	}()
	return fn()
}
