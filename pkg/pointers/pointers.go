// Package pointers holds the memory map of the supported host
// executables: the static roots of every value the tool touches and the
// chains and cells built from them.
package pointers

import (
	"fmt"
	"sort"

	"github.com/jdsd/practice-tool/pkg/proc"
)

// Flag is a named single-cell feature.
type Flag struct {
	Name  string
	Label string
	Cell  proc.Cell
}

// Pointers are the chains and cells of one host version loaded at one
// image base.
type Pointers struct {
	Version Version
	Bases   BaseAddresses

	Position   proc.PointerChain[[3]float32]
	Quitout    proc.PointerChain[uint8]
	IGT        proc.PointerChain[uint32]
	ShowCursor proc.Cell

	RenderWorld  proc.Cell
	DebugRender0 proc.Cell
	DebugRender8 proc.Cell
	flags        map[string]Flag
}

type flagSpec struct {
	name, label string
	cell        func(b BaseAddresses, v Version) proc.Cell
}

func at(root func(BaseAddresses) uintptr, off int64) func(BaseAddresses, Version) proc.Cell {
	return func(b BaseAddresses, _ Version) proc.Cell {
		return proc.NewBitCell(0, offsetAddr(root(b), off))
	}
}

func byVersion(root func(BaseAddresses) uintptr, old, cur int64) func(BaseAddresses, Version) proc.Cell {
	return func(b BaseAddresses, v Version) proc.Cell {
		off := cur
		if v.Major == 1 && v.Minor <= 4 {
			off = old
		}
		return proc.NewBitCell(0, offsetAddr(root(b), off))
	}
}

func offsetAddr(addr uintptr, off int64) uintptr {
	if off < 0 {
		return addr - uintptr(-off)
	}
	return addr + uintptr(off)
}

var (
	renderWorld = func(b BaseAddresses) uintptr { return b.RenderWorld }
	debugRender = func(b BaseAddresses) uintptr { return b.DebugRender }
	debugFlags  = func(b BaseAddresses) uintptr { return b.DebugFlags }
)

var flagSpecs = []flagSpec{
	{"render_world", "Render World", at(renderWorld, 0)},
	{"render_objects", "Render Objects", at(renderWorld, 1)},
	{"render_mobs", "Render Mobs", at(renderWorld, 2)},
	{"render_effects", "Render Effects", at(renderWorld, 3)},
	{"debug_render0", "Debug Render #0", at(debugRender, 0)},
	{"debug_render1", "Debug Render #1", at(debugRender, 1)},
	{"debug_render2", "Debug Render #2", at(debugRender, 2)},
	{"debug_render3", "Debug Render #3", at(debugRender, 5)},
	{"debug_render4", "Debug Render #4", at(debugRender, 6)},
	{"debug_render5", "Debug Render #5", at(debugRender, 7)},
	{"debug_render6", "Debug Render #6", at(debugRender, 8)},
	{"debug_render7", "Debug Render #7", at(debugRender, 9)},
	{"debug_render8", "Debug Render #8", at(debugRender, 0xC)},
	{"player_no_goods_consume", "No Goods Consume", at(debugFlags, 0)},
	{"player_no_resource_item_consume", "No Resource Consume", at(debugFlags, 1)},
	{"player_no_revival_consume", "No Revival Consume", at(debugFlags, 2)},
	{"player_hide", "Hide", at(debugFlags, 6)},
	{"player_silence", "Silence", at(debugFlags, 7)},
	{"player_no_dead", "No Dead", byVersion(debugFlags, 33, -3)},
	{"player_exterminate", "Exterminate", byVersion(debugFlags, 52, -2)},
	{"player_exterminate_stamina", "Exterminate Stamina", at(debugFlags, -1)},
	{"all_no_dead", "All No Dead", at(debugFlags, 8)},
	{"all_no_damage", "All No Damage", at(debugFlags, 9)},
	{"all_no_hit", "All No Hit", at(debugFlags, 10)},
	{"all_no_attack", "All No Attack", at(debugFlags, 11)},
	{"all_no_move", "All No Move", at(debugFlags, 12)},
	{"all_no_update_ai", "All No Update AI", at(debugFlags, 13)},
	{"all_no_stamina_consume", "All No Stamina Consume", at(debugFlags, 20)},
}

// aliases are the short feature names bound by default.
var aliases = map[string]string{
	"stealth":   "player_hide",
	"ai":        "all_no_update_ai",
	"no_damage": "all_no_damage",
	"consume":   "player_no_goods_consume",
}

// New builds the pointers of version v from absolute base addresses.
func New(v Version, b BaseAddresses) *Pointers {
	p := &Pointers{
		Version:    v,
		Bases:      b,
		Position:   proc.NewPointerChain[[3]float32](b.PlayerPosition, 0x48, 0x28, 0x80),
		Quitout:    proc.NewPointerChain[uint8](b.Quitout, 0x23C),
		IGT:        proc.NewPointerChain[uint32](b.Igt, 0x9C),
		ShowCursor: proc.NewBitCell(0, b.ShowCursor),
		flags:      make(map[string]Flag, len(flagSpecs)),
	}
	for _, fs := range flagSpecs {
		p.flags[fs.name] = Flag{Name: fs.name, Label: fs.label, Cell: fs.cell(b, v)}
	}
	p.RenderWorld = p.flags["render_world"].Cell
	p.DebugRender0 = p.flags["debug_render0"].Cell
	p.DebugRender8 = p.flags["debug_render8"].Cell
	return p
}

// ForVersion looks up the address table of v, relocates it to an image
// loaded at moduleBase and applies the non-zero absolute overrides.
func ForVersion(v Version, moduleBase uintptr, overrides BaseAddresses) (*Pointers, error) {
	rva, err := Lookup(v)
	if err != nil {
		return nil, err
	}
	if moduleBase == 0 {
		moduleBase = DefaultImageBase
	}
	return New(v, rva.WithModuleBase(moduleBase).Override(overrides)), nil
}

// Collision returns the composite that shows collision meshes: the world
// stops rendering while two debug render layers are enabled.
func (p *Pointers) Collision() proc.Composite {
	return proc.NewComposite(
		proc.Member{Cell: p.RenderWorld, Inverted: true},
		proc.Member{Cell: p.DebugRender0},
		proc.Member{Cell: p.DebugRender8},
	)
}

// Flag returns the flag called name. Short aliases such as "stealth"
// are accepted.
func (p *Pointers) Flag(name string) (Flag, bool) {
	if full, ok := aliases[name]; ok {
		name = full
	}
	f, ok := p.flags[name]
	return f, ok
}

// FlagNames returns the name of every flag in a stable order.
func FlagNames() []string {
	r := make([]string, len(flagSpecs))
	for i := range flagSpecs {
		r[i] = flagSpecs[i].name
	}
	return r
}

// Aliases returns the short names accepted by Flag, sorted.
func Aliases() []string {
	r := make([]string, 0, len(aliases))
	for k := range aliases {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

func (p *Pointers) String() string {
	return fmt.Sprintf("pointers for %s (quitout=%#x debug_flags=%#x)", p.Version, p.Bases.Quitout, p.Bases.DebugFlags)
}
