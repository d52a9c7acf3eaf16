// Package command binds effects to hotkeys and fires them on release
// edges, once per frame.
package command

import (
	"errors"
	"fmt"

	"github.com/jdsd/practice-tool/pkg/keys"
	"github.com/jdsd/practice-tool/pkg/logflags"
)

// ErrInvalidHandle is returned for handles the registry did not issue.
var ErrInvalidHandle = errors.New("invalid command handle")

// Effect is the action of a command.
type Effect func() error

// Handle identifies a registered command.
type Handle int

type cmd struct {
	label   string
	trigger Trigger
	effect  Effect
}

// Info describes a registered command.
type Info struct {
	Handle  Handle
	Label   string
	Trigger Trigger
}

// Registry holds the commands in registration order.
type Registry struct {
	cmds    []cmd
	tracker *Tracker
	log     logflags.Logger
}

// NewRegistry returns an empty registry evaluating edges against tracker.
// The tracker is updated by whoever owns the frame, after Dispatch.
func NewRegistry(tracker *Tracker) *Registry {
	return &Registry{tracker: tracker, log: logflags.CommandLogger()}
}

// Register adds a command. A trigger already used by another command is
// accepted; both commands fire on the same edge.
func (r *Registry) Register(effect Effect, label string, trigger Trigger) Handle {
	r.warnCollision(-1, trigger)
	r.cmds = append(r.cmds, cmd{label: label, trigger: trigger, effect: effect})
	h := Handle(len(r.cmds) - 1)
	r.log.WithField("label", label).Debugf("registered on %s", trigger)
	return h
}

// Rebind changes the trigger of a command.
func (r *Registry) Rebind(h Handle, trigger Trigger) error {
	if h < 0 || int(h) >= len(r.cmds) {
		return ErrInvalidHandle
	}
	r.warnCollision(h, trigger)
	r.cmds[h].trigger = trigger
	r.log.WithField("label", r.cmds[h].label).Debugf("rebound to %s", trigger)
	return nil
}

// Find returns the handle of the first command with the given label.
func (r *Registry) Find(label string) (Handle, bool) {
	for i := range r.cmds {
		if r.cmds[i].label == label {
			return Handle(i), true
		}
	}
	return -1, false
}

// Get describes the command h.
func (r *Registry) Get(h Handle) (Info, error) {
	if h < 0 || int(h) >= len(r.cmds) {
		return Info{}, ErrInvalidHandle
	}
	c := &r.cmds[h]
	return Info{Handle: h, Label: c.label, Trigger: c.trigger}, nil
}

// Commands describes every command in registration order.
func (r *Registry) Commands() []Info {
	r2 := make([]Info, len(r.cmds))
	for i := range r.cmds {
		r2[i] = Info{Handle: Handle(i), Label: r.cmds[i].label, Trigger: r.cmds[i].trigger}
	}
	return r2
}

// Invoke runs the effect of h immediately, regardless of input.
func (r *Registry) Invoke(h Handle) error {
	if h < 0 || int(h) >= len(r.cmds) {
		return ErrInvalidHandle
	}
	return r.cmds[h].effect()
}

// Dispatch runs, in registration order, every command whose key was
// released between the previous frame and cur. While a key's release is
// accompanied by a held modifier that some command on that key asks for,
// commands on the same key without a modifier do not fire.
//
// Errors returned by effects are joined; panics are not recovered.
func (r *Registry) Dispatch(cur *InputState) error {
	var errs []error
	for i := range r.cmds {
		c := &r.cmds[i]
		if !c.trigger.Bound() || !r.tracker.Released(c.trigger.Key, cur) {
			continue
		}
		if c.trigger.Modifier != keys.None {
			if !c.trigger.modifierHeld(cur) {
				continue
			}
		} else if r.shadowed(c.trigger.Key, cur) {
			continue
		}
		r.log.WithField("label", c.label).Debugf("fired on %s", c.trigger)
		if err := c.effect(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.label, err))
		}
	}
	return errors.Join(errs...)
}

// shadowed reports whether a command with a modifier is bound to k and
// its modifier is held.
func (r *Registry) shadowed(k keys.Key, cur *InputState) bool {
	for i := range r.cmds {
		t := r.cmds[i].trigger
		if t.Key == k && t.Modifier != keys.None && t.modifierHeld(cur) {
			return true
		}
	}
	return false
}

func (r *Registry) warnCollision(self Handle, t Trigger) {
	if !t.Bound() {
		return
	}
	for i := range r.cmds {
		if Handle(i) != self && r.cmds[i].trigger == t {
			r.log.Warnf("%s is already bound to %q", t, r.cmds[i].label)
		}
	}
}
