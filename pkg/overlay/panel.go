package overlay

import (
	"fmt"
	"time"

	"github.com/jdsd/practice-tool/pkg/state"
)

// Describer names the key bound to a command.
type Describer interface {
	Describe(name string) string
}

// Panel draws the state store. While shown it lists every feature and
// the position block; while hidden it only draws the indicators.
type Panel struct {
	Title      string
	Surface    Surface
	Store      *state.Store
	Keys       Describer
	Frames     func() uint64
	Indicators bool

	shown bool
}

// Shown reports whether the full panel is drawn.
func (p *Panel) Shown() bool {
	return p.shown
}

// ToggleShown switches between the full panel and the indicators.
func (p *Panel) ToggleShown() bool {
	p.shown = !p.shown
	return p.shown
}

func (p *Panel) describe(name string) string {
	if p.Keys == nil {
		return ""
	}
	return p.Keys.Describe(name)
}

func withKey(label, key string) string {
	if key == "" {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, key)
}

// Render draws one frame of the panel.
func (p *Panel) Render() {
	s := p.Surface
	s.Begin(p.Title)
	defer s.End()
	if !p.shown {
		if p.Indicators {
			p.indicators()
		}
		return
	}
	for _, f := range p.Store.Features() {
		on, valid := f.State()
		s.Checkbox(withKey(f.Label, p.describe(f.Name)), on, valid)
	}
	s.Separator()
	snap := p.Store.Position().Snapshot()
	s.Text(fmt.Sprintf("Position [saved]:\n  x % 12.5f [% 12.5f]\n  y % 12.5f [% 12.5f]\n  z % 12.5f [% 12.5f]\n  (Load %s | Save %s)",
		snap.Live[0], snap.Saved[0],
		snap.Live[1], snap.Saved[1],
		snap.Live[2], snap.Saved[2],
		p.describe("load_pos"), p.describe("save_pos")))
	s.Text(withKey("Quitout", p.describe("quitout")))
	if p.Indicators {
		s.Separator()
		p.indicators()
	}
}

func (p *Panel) indicators() {
	snap := p.Store.Position().Snapshot()
	p.Surface.Text(fmt.Sprintf("[%.2f %.2f %.2f]", snap.Live[0], snap.Live[1], snap.Live[2]))
	p.Surface.Text("IGT " + formatIGT(p.Store.IGT()))
	if p.Frames != nil {
		p.Surface.Text(fmt.Sprintf("Frame %d", p.Frames()))
	}
}

func formatIGT(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
