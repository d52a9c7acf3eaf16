package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"

	"github.com/jdsd/practice-tool/pkg/config"
	"github.com/jdsd/practice-tool/pkg/keys"
	"github.com/jdsd/practice-tool/pkg/logflags"
	"github.com/jdsd/practice-tool/pkg/overlay"
	"github.com/jdsd/practice-tool/pkg/pointers"
	"github.com/jdsd/practice-tool/pkg/terminal/starbind"
	"github.com/jdsd/practice-tool/service/session"
)

const historyFile string = ".ptool_history"

// Term represents the console attached to a session.
type Term struct {
	sess     *session.Session
	host     *overlay.Host
	conf     *config.Config
	prompt   string
	line     *liner.State
	cmds     *Commands
	dumb     bool
	colors   palette
	stdout   io.Writer
	InitFile string
	// ConfigPath is where "bind -w" saves the configuration. The default
	// configuration file is used when it is empty.
	ConfigPath string

	starlarkEnv *starbind.Env
	names       *trie.Trie
	log         logflags.Logger
}

// New returns a console for sess. Frames are presented through host,
// which must already carry the session's hook.
func New(sess *session.Session, host *overlay.Host, conf *config.Config) *Term {
	stdout, dumb := consoleOutput()
	return newTerm(sess, host, conf, stdout, dumb)
}

func newTerm(sess *session.Session, host *overlay.Host, conf *config.Config, stdout io.Writer, dumb bool) *Term {
	if conf == nil {
		conf = config.Default()
	}
	t := &Term{
		sess:   sess,
		host:   host,
		conf:   conf,
		prompt: "(ptool) ",
		cmds:   PracticeCommands(),
		dumb:   dumb,
		colors: newPalette(dumb),
		stdout: stdout,
		log:    logflags.TerminalLogger(),
	}
	t.starlarkEnv = starbind.New(starlarkContext{t}, stdout)
	t.indexNames()
	return t
}

// indexNames builds the completion index of command and feature names.
func (t *Term) indexNames() {
	t.names = trie.New()
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			t.names.Add(alias, nil)
		}
	}
	for _, info := range t.sess.Registry().Commands() {
		t.names.Add(info.Label, nil)
	}
	for _, name := range pointers.FlagNames() {
		t.names.Add(name, nil)
	}
	for _, alias := range pointers.Aliases() {
		t.names.Add(alias, nil)
	}
}

// complete returns the completions of line. The first word completes to
// command names, the last word of bind to key names and any other word
// to feature and command names.
func (t *Term) complete(line string) []string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	trailing := strings.HasSuffix(line, " ")
	if len(fields) == 1 && !trailing {
		return t.prefixSearch("", fields[0])
	}
	var head, word string
	if trailing {
		head, word = line, ""
	} else {
		word = fields[len(fields)-1]
		head = line[:len(line)-len(word)]
	}
	var c []string
	if fields[0] == "bind" && (len(fields) > 2 || (len(fields) == 2 && trailing)) {
		mod, rest, hasMod := strings.Cut(word, "+")
		if hasMod {
			for _, k := range keys.Complete(rest) {
				c = append(c, head+mod+"+"+k)
			}
			return c
		}
		for _, k := range keys.Complete(word) {
			c = append(c, head+k)
		}
		return c
	}
	return t.prefixSearch(head, word)
}

func (t *Term) prefixSearch(head, word string) []string {
	var c []string
	for _, s := range t.names.PrefixSearch(strings.ToLower(word)) {
		c = append(c, head+s)
	}
	sort.Strings(c)
	return c
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
}

func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		t.starlarkEnv.Cancel()
		fmt.Fprintf(t.stdout, "received SIGINT, interrupting script\n")
	}
}

// Run begins running the console until the user exits or input ends.
func (t *Term) Run() (int, error) {
	t.line = liner.NewLiner()
	defer t.Close()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch)

	t.line.SetCompleter(t.complete)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintf(t.stdout, "Unable to load history file: %v.\n", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Fprintf(t.stdout, "Unable to open history file: %v. History will not be saved for this session.\n", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit(fullHistoryFile)
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit(fullHistoryFile)
			}
			if err == liner.ErrPromptAborted {
				continue
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit(fullHistoryFile)
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit(historyPath string) (int, error) {
	if historyPath != "" {
		if f, err := os.Create(historyPath); err == nil {
			if _, err := t.line.WriteHistory(f); err != nil {
				fmt.Fprintf(t.stdout, "readline history error: %v\n", err)
			}
			f.Close()
		}
	}
	t.log.Debugf("console closed after %d frames", t.host.Frames())
	return 0, nil
}
