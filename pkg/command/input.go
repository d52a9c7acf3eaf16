package command

import "github.com/jdsd/practice-tool/pkg/keys"

// InputState is the pressed state of every input identity for one frame.
type InputState [keys.Count]bool

// Pressed reports whether k is held.
func (s *InputState) Pressed(k keys.Key) bool {
	return int(k) < len(s) && s[k]
}

// Press marks k as held.
func (s *InputState) Press(k keys.Key) {
	if int(k) < len(s) {
		s[k] = true
	}
}

// Release marks k as not held.
func (s *InputState) Release(k keys.Key) {
	if int(k) < len(s) {
		s[k] = false
	}
}

// Clear releases every key.
func (s *InputState) Clear() {
	*s = InputState{}
}

// Tracker remembers the input state of the previous frame so that
// commands fire on the frame a key is released instead of every frame it
// is held.
type Tracker struct {
	prev InputState
}

// Released reports whether k was held on the previous frame and is not
// held in cur.
func (t *Tracker) Released(k keys.Key, cur *InputState) bool {
	return t.prev.Pressed(k) && !cur.Pressed(k)
}

// WasPressed reports whether k was held on the previous frame.
func (t *Tracker) WasPressed(k keys.Key) bool {
	return t.prev.Pressed(k)
}

// Update records cur as the previous frame's state.
func (t *Tracker) Update(cur *InputState) {
	t.prev = *cur
}
