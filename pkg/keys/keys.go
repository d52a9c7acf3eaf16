// Package keys names the input identities hotkeys can be bound to.
//
// Identities are Windows virtual-key codes, the same numbering the host's
// input system uses, inside a table of Count entries.
package keys

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/derekparker/trie"
)

// Key is an input identity.
type Key uint16

// Count is the size of the input identity space.
const Count = 512

// None is the zero Key. No input reports it.
const None Key = 0

const (
	Backspace Key = 0x08
	Tab       Key = 0x09
	Enter     Key = 0x0d
	Shift     Key = 0x10
	Control   Key = 0x11
	Alt       Key = 0x12
	Pause     Key = 0x13
	CapsLock  Key = 0x14
	Escape    Key = 0x1b
	Space     Key = 0x20
	PageUp    Key = 0x21
	PageDown  Key = 0x22
	End       Key = 0x23
	Home      Key = 0x24
	Left      Key = 0x25
	Up        Key = 0x26
	Right     Key = 0x27
	Down      Key = 0x28
	Insert    Key = 0x2d
	Delete    Key = 0x2e
	Digit0    Key = 0x30
	A         Key = 0x41
	Numpad0   Key = 0x60
	Multiply  Key = 0x6a
	Add       Key = 0x6b
	Subtract  Key = 0x6d
	Decimal   Key = 0x6e
	Divide    Key = 0x6f
	F1        Key = 0x70
	F2        Key = 0x71
	F3        Key = 0x72
	F4        Key = 0x73
	F5        Key = 0x74
	F6        Key = 0x75
	F7        Key = 0x76
	F8        Key = 0x77
	F9        Key = 0x78
	F10       Key = 0x79
	F11       Key = 0x7a
	F12       Key = 0x7b
	LShift    Key = 0xa0
	RShift    Key = 0xa1
	LControl  Key = 0xa2
	RControl  Key = 0xa3
	LAlt      Key = 0xa4
	RAlt      Key = 0xa5
	Semicolon Key = 0xba
	Plus      Key = 0xbb
	Comma     Key = 0xbc
	Minus     Key = 0xbd
	Period    Key = 0xbe
	Slash     Key = 0xbf
	Tilde     Key = 0xc0
	LBracket  Key = 0xdb
	Backslash Key = 0xdc
	RBracket  Key = 0xdd
	Quote     Key = 0xde
)

var (
	byName = map[string]Key{}
	names  = map[Key]string{}
	index  = trie.New()
)

func define(name string, k Key) {
	byName[name] = k
	if _, ok := names[k]; !ok {
		names[k] = name
	}
	index.Add(name, k)
}

func init() {
	for _, kv := range []struct {
		name string
		key  Key
	}{
		{"backspace", Backspace}, {"tab", Tab}, {"enter", Enter}, {"return", Enter},
		{"shift", Shift}, {"ctrl", Control}, {"control", Control}, {"alt", Alt},
		{"pause", Pause}, {"capslock", CapsLock}, {"esc", Escape}, {"escape", Escape},
		{"space", Space}, {"pgup", PageUp}, {"pageup", PageUp}, {"pgdn", PageDown},
		{"pagedown", PageDown}, {"end", End}, {"home", Home}, {"left", Left},
		{"up", Up}, {"right", Right}, {"down", Down}, {"insert", Insert},
		{"delete", Delete}, {"multiply", Multiply}, {"add", Add},
		{"subtract", Subtract}, {"decimal", Decimal}, {"divide", Divide},
		{"lshift", LShift}, {"rshift", RShift}, {"lctrl", LControl},
		{"rctrl", RControl}, {"lalt", LAlt}, {"ralt", RAlt},
		{"semicolon", Semicolon}, {"plus", Plus}, {"comma", Comma},
		{"minus", Minus}, {"period", Period}, {"slash", Slash}, {"tilde", Tilde},
		{"lbracket", LBracket}, {"backslash", Backslash}, {"rbracket", RBracket},
		{"quote", Quote},
	} {
		define(kv.name, kv.key)
	}
	for i := Key(0); i < 10; i++ {
		define(strconv.Itoa(int(i)), Digit0+i)
		define("numpad"+strconv.Itoa(int(i)), Numpad0+i)
	}
	for i := Key(0); i < 26; i++ {
		define(string(rune('a'+i)), A+i)
	}
	for i := Key(0); i < 24; i++ {
		define("f"+strconv.Itoa(int(i)+1), F1+i)
	}
}

// Lookup returns the key with the given name. Names are case insensitive.
func Lookup(name string) (Key, bool) {
	k, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Name returns the canonical name of k.
func Name(k Key) string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("vk%#02x", uint16(k))
}

// Complete returns the key names starting with prefix, sorted.
func Complete(prefix string) []string {
	r := index.PrefixSearch(strings.ToLower(prefix))
	sort.Strings(r)
	return r
}

// IsModifier reports whether k is a modifier key.
func IsModifier(k Key) bool {
	switch k {
	case Shift, Control, Alt, LShift, RShift, LControl, RControl, LAlt, RAlt:
		return true
	}
	return false
}
