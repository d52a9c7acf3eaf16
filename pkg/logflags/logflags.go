package logflags

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var memory = false
var stateLayer = false
var command = false
var gate = false
var native = false
var terminal = false

var logOut io.WriteCloser

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatter()
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if flag {
		return makeLogger(logrus.DebugLevel, fields)
	}
	return makeLogger(logrus.ErrorLevel, fields)
}

func textFormatter() *logrus.TextFormatter {
	f := &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"}
	if logOut == nil {
		f.ForceColors = isatty.IsTerminal(os.Stderr.Fd())
	} else if fl, ok := logOut.(*os.File); ok {
		f.ForceColors = isatty.IsTerminal(fl.Fd())
	}
	f.DisableColors = !f.ForceColors
	return f
}

// Memory returns true if pointer chain resolution failures should be
// logged.
func Memory() bool {
	return memory
}

// MemoryLogger returns a logger for the proc package.
func MemoryLogger() Logger {
	return makeFlaggableLogger(memory, Fields{"layer": "memory"})
}

// State returns true if toggle state changes should be logged.
func State() bool {
	return stateLayer
}

// StateLogger returns a logger for the state store.
func StateLogger() Logger {
	return makeFlaggableLogger(stateLayer, Fields{"layer": "state"})
}

// Command returns true if command registration and dispatch should be
// logged.
func Command() bool {
	return command
}

// CommandLogger returns a logger for the command registry.
func CommandLogger() Logger {
	return makeFlaggableLogger(command, Fields{"layer": "command"})
}

// Gate returns true if the frame gate should log its transitions.
func Gate() bool {
	return gate
}

// GateLogger returns a logger for the frame gate. Contained failures are
// logged at error level, so they are visible even without --log.
func GateLogger() Logger {
	return makeFlaggableLogger(gate, Fields{"layer": "gate"})
}

// Native returns true if the live process backend should log.
func Native() bool {
	return native
}

// NativeLogger returns a logger for the native backend.
func NativeLogger() Logger {
	return makeFlaggableLogger(native, Fields{"layer": "native"})
}

// Terminal returns true if the console should log.
func Terminal() bool {
	return terminal
}

// TerminalLogger returns a logger for the console.
func TerminalLogger() Logger {
	return makeFlaggableLogger(terminal, Fields{"layer": "terminal"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the log flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "ptool-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logOut == nil {
		logOut = nopCloser{colorable.NewColorableStderr()}
	}
	log.SetOutput(logOut)
	if logstr == "" {
		logstr = "gate"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "memory":
			memory = true
		case "state":
			stateLayer = true
		case "command":
			command = true
		case "gate":
			gate = true
		case "native":
			native = true
		case "terminal":
			terminal = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
