package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jdsd/practice-tool/pkg/command"
	"github.com/jdsd/practice-tool/pkg/gate"
	"github.com/jdsd/practice-tool/pkg/keys"
)

// DefaultFrameInterval is the frame rate of a Host, about 30 fps.
const DefaultFrameInterval = time.Second / 30

// Host plays the part of the instrumented program's render loop when the
// tool runs outside of it: a terminal program that presents a frame on
// every tick and turns key presses into input states.
//
// A key press is seen as held for exactly one frame, so it is released
// on the frame after. Modifiers stay held one frame longer: the key they
// accompany is released while they are still down.
type Host struct {
	surface  *TextSurface
	interval time.Duration
	quit     key.Binding

	present atomic.Pointer[gate.Present]
	pending []keys.Key
	held    []keys.Key
	frames  uint64
	view    string
}

type tickMsg time.Time

// NewHost returns a host presenting surface every interval.
func NewHost(surface *TextSurface, interval time.Duration) *Host {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	h := &Host{
		surface:  surface,
		interval: interval,
		quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
	base := gate.Present(h.basePresent)
	h.present.Store(&base)
	return h
}

// Install implements gate.Installer.
func (h *Host) Install(hook func(gate.Present) gate.Present) error {
	for {
		old := h.present.Load()
		p := hook(*old)
		if h.present.CompareAndSwap(old, &p) {
			return nil
		}
	}
}

// Poll implements gate.InputSource.
func (h *Host) Poll(cur *command.InputState) {
	for _, k := range h.held {
		cur.Press(k)
	}
	h.held = h.held[:0]
	for _, k := range h.pending {
		cur.Press(k)
		if keys.IsModifier(k) {
			h.held = append(h.held, k)
		}
	}
	h.pending = h.pending[:0]
}

// Press queues k as held during the next frame.
func (h *Host) Press(k keys.Key) {
	h.pending = append(h.pending, k)
}

func (h *Host) basePresent(syncInterval, flags uint32) int32 {
	h.frames++
	h.view = h.surface.View()
	return 0
}

// Frame presents one frame.
func (h *Host) Frame() {
	(*h.present.Load())(0, 0)
}

// Frames returns the number of frames presented.
func (h *Host) Frames() uint64 {
	return h.frames
}

// Overlay returns the overlay drawn on the last frame presented.
func (h *Host) Overlay() string {
	return h.view
}

func (h *Host) tick() tea.Cmd {
	return tea.Tick(h.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (h *Host) Init() tea.Cmd {
	return h.tick()
}

func (h *Host) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		h.Frame()
		return h, h.tick()
	case tea.KeyMsg:
		if key.Matches(msg, h.quit) {
			return h, tea.Quit
		}
		for _, k := range TranslateKey(msg.String()) {
			h.Press(k)
		}
	}
	return h, nil
}

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

func (h *Host) View() string {
	var b strings.Builder
	if h.view == "" {
		b.WriteString("waiting for the overlay...\n")
	} else {
		b.WriteString(h.view)
		b.WriteString("\n")
	}
	help := h.quit.Help()
	b.WriteString(helpStyle.Render(fmt.Sprintf("%s %s", help.Key, help.Desc)))
	b.WriteString("\n")
	return b.String()
}

// Run runs the host until ctx is done or the user quits.
func (h *Host) Run(ctx context.Context) error {
	_, err := tea.NewProgram(h, tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

var terminalKeyNames = map[string]string{
	"pgdown": "pgdn",
	" ":      "space",
}

// TranslateKey converts a terminal key description such as "shift+f7"
// or "pgdown" to the keys held while it was typed.
func TranslateKey(s string) []keys.Key {
	parts := strings.Split(s, "+")
	r := make([]keys.Key, 0, len(parts))
	for _, p := range parts {
		if n, ok := terminalKeyNames[p]; ok {
			p = n
		}
		if k, ok := keys.Lookup(p); ok {
			r = append(r, k)
		}
	}
	return r
}
