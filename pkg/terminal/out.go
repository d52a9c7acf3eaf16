package terminal

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// palette colors feature states. Every color is disabled when the
// terminal is dumb.
type palette struct {
	on, off, unknown, title *color.Color
}

func newPalette(dumb bool) palette {
	p := palette{
		on:      color.New(color.FgGreen, color.Bold),
		off:     color.New(color.FgRed),
		unknown: color.New(color.FgYellow),
		title:   color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.on, p.off, p.unknown, p.title} {
		if dumb {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return p
}

// state formats the state of a feature.
func (p palette) state(on, valid bool) string {
	switch {
	case !valid:
		return p.unknown.Sprint("?")
	case on:
		return p.on.Sprint("on")
	default:
		return p.off.Sprint("off")
	}
}

// consoleOutput returns the writer used for console output and whether
// it is a dumb terminal.
func consoleOutput() (io.Writer, bool) {
	if strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdout.Fd()) {
		return os.Stdout, true
	}
	return colorable.NewColorableStdout(), false
}
