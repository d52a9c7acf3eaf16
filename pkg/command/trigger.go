package command

import (
	"fmt"
	"strings"

	"github.com/jdsd/practice-tool/pkg/keys"
)

// Trigger is the input a command is bound to: a key, optionally
// combined with a modifier that must be held when the key is released.
type Trigger struct {
	Key      keys.Key
	Modifier keys.Key
}

// Unbound is the trigger of a command that cannot be fired by input.
var Unbound = Trigger{}

// Bound reports whether t refers to a key.
func (t Trigger) Bound() bool {
	return t.Key != keys.None
}

func (t Trigger) String() string {
	if !t.Bound() {
		return "unbound"
	}
	if t.Modifier != keys.None {
		return keys.Name(t.Modifier) + "+" + keys.Name(t.Key)
	}
	return keys.Name(t.Key)
}

// ParseTrigger parses triggers of the form "f1" or "shift+f1".
func ParseTrigger(s string) (Trigger, error) {
	parts := strings.Split(s, "+")
	switch len(parts) {
	case 1:
		k, ok := keys.Lookup(parts[0])
		if !ok {
			return Unbound, fmt.Errorf("unknown key %q", parts[0])
		}
		return Trigger{Key: k}, nil
	case 2:
		m, ok := keys.Lookup(parts[0])
		if !ok || !keys.IsModifier(m) {
			return Unbound, fmt.Errorf("%q is not a modifier key", parts[0])
		}
		k, ok := keys.Lookup(parts[1])
		if !ok {
			return Unbound, fmt.Errorf("unknown key %q", parts[1])
		}
		return Trigger{Key: k, Modifier: m}, nil
	}
	return Unbound, fmt.Errorf("malformed trigger %q", s)
}

// modifierHeld reports whether the trigger's modifier is held in cur.
// Generic modifiers match either side.
func (t Trigger) modifierHeld(cur *InputState) bool {
	switch t.Modifier {
	case keys.Shift:
		return cur.Pressed(keys.Shift) || cur.Pressed(keys.LShift) || cur.Pressed(keys.RShift)
	case keys.Control:
		return cur.Pressed(keys.Control) || cur.Pressed(keys.LControl) || cur.Pressed(keys.RControl)
	case keys.Alt:
		return cur.Pressed(keys.Alt) || cur.Pressed(keys.LAlt) || cur.Pressed(keys.RAlt)
	}
	return cur.Pressed(t.Modifier)
}
