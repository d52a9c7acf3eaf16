// Package overlay draws the tool's panel on top of the host's frame.
package overlay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Surface is an immediate mode drawing target. Begin and End bracket
// one window; everything in between is drawn into it.
type Surface interface {
	Begin(title string)
	Checkbox(label string, on, enabled bool)
	Text(s string)
	Separator()
	End()
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	onStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	offStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	disabledStyle = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	windowStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// TextSurface renders windows as styled terminal text. The last
// completed window is returned by View.
type TextSurface struct {
	title string
	lines []string
	width int
	view  string
}

// NewTextSurface returns a surface whose windows are at least width
// cells wide.
func NewTextSurface(width int) *TextSurface {
	return &TextSurface{width: width}
}

func (s *TextSurface) Begin(title string) {
	s.title = title
	s.lines = s.lines[:0]
}

func (s *TextSurface) Checkbox(label string, on, enabled bool) {
	box := offStyle.Render("[ ]")
	if on {
		box = onStyle.Render("[x]")
	}
	if !enabled {
		label = disabledStyle.Render(label)
	}
	s.lines = append(s.lines, box+" "+label)
}

func (s *TextSurface) Text(str string) {
	s.lines = append(s.lines, strings.Split(str, "\n")...)
}

func (s *TextSurface) Separator() {
	s.lines = append(s.lines, strings.Repeat("─", s.width))
}

func (s *TextSurface) End() {
	body := strings.Join(s.lines, "\n")
	if s.title != "" {
		body = titleStyle.Render(s.title) + "\n" + body
	}
	s.view = windowStyle.Width(s.width).Render(body)
}

// View returns the last window drawn.
func (s *TextSurface) View() string {
	return s.view
}
