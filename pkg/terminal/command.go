// Package terminal implements functions for responding to user
// input and dispatching to the session.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"

	pcommand "github.com/jdsd/practice-tool/pkg/command"
	"github.com/jdsd/practice-tool/pkg/config"
	"github.com/jdsd/practice-tool/pkg/gate"
	"github.com/jdsd/practice-tool/pkg/keys"
	"github.com/jdsd/practice-tool/pkg/pointers"
	"github.com/jdsd/practice-tool/pkg/proc"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases []string
	group   commandGroup
	helpMsg string
	cmdFn   cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the console.
type Commands struct {
	cmds []command
}

// PracticeCommands returns a Commands struct with default commands defined.
func PracticeCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"state", "s"}, group: featureCmds, cmdFn: stateCmd, helpMsg: `Prints the state of the enabled features.

	state [feature...]

A feature whose memory can not be resolved is shown as "?".`},
		{aliases: []string{"toggle", "t"}, group: featureCmds, cmdFn: toggleCmd, helpMsg: `Flips features.

	toggle <feature> [feature...]`},
		{aliases: []string{"set"}, group: featureCmds, cmdFn: setCmd, helpMsg: `Turns a feature on or off.

	set <feature> on|off`},
		{aliases: []string{"flags"}, group: featureCmds, cmdFn: flagsCmd, helpMsg: `Lists every flag of the memory map with its address and value.

	flags [prefix]

Any flag can be listed in the flags section of the configuration file.`},
		{aliases: []string{"pos", "p"}, group: positionCmds, cmdFn: posCmd, helpMsg: `Prints the live and saved player position.`},
		{aliases: []string{"save"}, group: positionCmds, cmdFn: saveCmd, helpMsg: `Saves the player position.`},
		{aliases: []string{"load"}, group: positionCmds, cmdFn: loadCmd, helpMsg: `Moves the player to the saved position.

Does nothing until a position has been saved.`},
		{aliases: []string{"nudge"}, group: positionCmds, cmdFn: nudgeCmd, helpMsg: `Moves the player vertically.

	nudge [distance]

The distance defaults to the nudge step of the configuration; negative values move down.`},
		{aliases: []string{"quitout"}, group: positionCmds, cmdFn: quitoutCmd, helpMsg: `Requests a quitout to the main menu.`},
		{aliases: []string{"read", "r"}, group: memoryCmds, cmdFn: readCmd, helpMsg: `Resolves a pointer chain and prints the value it points to.

	read <type> <base> [offset...]

Types: uint8 int8 uint16 int16 uint32 int32 uint64 int64 float32 float64 vec3 vec4.
Base and offsets are integers, usually written in hexadecimal:

	read f32 0x143d5aac0 0x48 0x28 0x80`},
		{aliases: []string{"write", "w"}, group: memoryCmds, cmdFn: writeCmd, helpMsg: `Resolves a pointer chain and stores a value there.

	write <type> <value> <base> [offset...]

Vectors are written as a comma separated list:

	write vec3 "1,2.5,3" 0x143d5aac0 0x48 0x28 0x80`},
		{aliases: []string{"bind"}, group: bindingCmds, cmdFn: bindCmd, helpMsg: `Changes the hotkey of a command.

	bind [-w] <command> <trigger>

A trigger is a key name optionally preceded by a modifier, such as "f1" or
"shift+f7". The trigger "none" leaves the command unbound. With -w the
configuration file is updated too.`},
		{aliases: []string{"bindings"}, group: bindingCmds, cmdFn: bindingsCmd, helpMsg: `Lists the commands and their hotkeys.`},
		{aliases: []string{"press"}, group: bindingCmds, cmdFn: pressCmd, helpMsg: `Presses hotkeys on one frame and releases them on the next.

	press <trigger> [trigger...]`},
		{aliases: []string{"frame", "f"}, group: bindingCmds, cmdFn: frameCmd, helpMsg: `Presents frames and prints the overlay.

	frame [count]`},
		{aliases: []string{"source"}, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of console commands.

	source <path>

If path ends with the .star extension it will be interpreted as a starlark script.
If path is a single '-' character an interactive starlark interpreter will start instead.
Type 'exit' to exit.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit the console.`},
	}

	return c
}

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			c.cmds[i].helpMsg = helpMsg
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, group: scriptCmds, cmdFn: cf, helpMsg: helpMsg})
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, args)
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		n := 0
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			if n == 0 {
				fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
			}
			n++
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// splitArgs splits a command line the way a shell would, without
// expansions.
func splitArgs(args string) ([]string, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal command line '%s'", args)
	}
	return v[0], nil
}

func stateCmd(t *Term, args string) error {
	names, err := splitArgs(args)
	if err != nil {
		return err
	}
	store := t.sess.Store()
	w := tabwriter.NewWriter(t.stdout, 0, 8, 2, ' ', 0)
	if len(names) == 0 {
		for _, f := range store.Features() {
			names = append(names, f.Name)
		}
	}
	for _, name := range names {
		f, err := store.Feature(name)
		if err != nil {
			return err
		}
		on, valid := f.State()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, t.colors.state(on, valid), bracketKey(t.sess.Describe(f.Name)), f.Label)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintf(t.stdout, "igt %s, frame %d (%s)\n", formatDuration(store.IGT().Milliseconds()), t.sess.Gate().Frames(), t.sess.Gate().State())
	}
	return nil
}

func bracketKey(key string) string {
	if key == "" {
		return "-"
	}
	return "(" + key + ")"
}

func formatDuration(ms int64) string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

func toggleCmd(t *Term, args string) error {
	names, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("wrong number of arguments: toggle <feature> [feature...]")
	}
	for _, name := range names {
		f, err := t.sess.Store().Feature(name)
		if err != nil {
			return err
		}
		f.Toggle()
		on, valid := f.State()
		fmt.Fprintf(t.stdout, "%s: %s\n", f.Name, t.colors.state(on, valid))
	}
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func setCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(v) != 2 {
		return fmt.Errorf("wrong number of arguments: set <feature> on|off")
	}
	on, err := parseOnOff(v[1])
	if err != nil {
		return err
	}
	f, err := t.sess.Store().Feature(v[0])
	if err != nil {
		return err
	}
	if !f.Set(on) {
		return fmt.Errorf("could not write %s", f.Name)
	}
	fmt.Fprintf(t.stdout, "%s: %s\n", f.Name, t.colors.state(on, true))
	return nil
}

func flagsCmd(t *Term, args string) error {
	ptrs := t.sess.Pointers()
	mem := t.sess.Memory()
	w := tabwriter.NewWriter(t.stdout, 0, 8, 2, ' ', 0)
	for _, name := range pointers.FlagNames() {
		if !strings.HasPrefix(name, args) {
			continue
		}
		fl, _ := ptrs.Flag(name)
		on, ok := fl.Cell.Get(mem)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", fl.Name, t.colors.state(on, ok), fl.Cell.Eval(mem), fl.Label)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if args == "" {
		fmt.Fprintln(t.stdout)
		for _, alias := range pointers.Aliases() {
			fl, _ := ptrs.Flag(alias)
			fmt.Fprintf(t.stdout, "%s is %s\n", alias, fl.Name)
		}
		fmt.Fprintln(t.stdout, "collision is the collision meshes composite")
	}
	return nil
}

func formatVec(v []float32) string {
	return fmt.Sprintf("[% 12.5f % 12.5f % 12.5f]", v[0], v[1], v[2])
}

func posCmd(t *Term, args string) error {
	snap := t.sess.Store().Position().Snapshot()
	if snap.LiveValid {
		fmt.Fprintf(t.stdout, "live  %s\n", formatVec(snap.Live[:]))
	} else {
		fmt.Fprintln(t.stdout, "live  unavailable")
	}
	if snap.HasSaved {
		fmt.Fprintf(t.stdout, "saved %s\n", formatVec(snap.Saved[:]))
	} else {
		fmt.Fprintln(t.stdout, "saved none")
	}
	return nil
}

func saveCmd(t *Term, args string) error {
	if !t.sess.Store().Position().Save() {
		return errors.New("could not read the player position")
	}
	return posCmd(t, "")
}

func loadCmd(t *Term, args string) error {
	pos := t.sess.Store().Position()
	if !pos.Snapshot().HasSaved {
		return errors.New("no position saved")
	}
	if !pos.Load() {
		return errors.New("could not write the player position")
	}
	return posCmd(t, "")
}

func nudgeCmd(t *Term, args string) error {
	dy := t.conf.Nudge
	if args != "" {
		f, err := strconv.ParseFloat(args, 32)
		if err != nil {
			return fmt.Errorf("malformed distance %q", args)
		}
		dy = float32(f)
	}
	if !t.sess.Store().Position().Nudge(dy) {
		return errors.New("could not move the player")
	}
	return posCmd(t, "")
}

func quitoutCmd(t *Term, args string) error {
	if !t.sess.Store().Quitout() {
		return errors.New("could not request a quitout")
	}
	fmt.Fprintln(t.stdout, "quitout requested")
	return nil
}

func formatChain(base uintptr, offsets []int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%#x", base)
	for _, off := range offsets {
		if off < 0 {
			fmt.Fprintf(&b, ", -%#x", -off)
		} else {
			fmt.Fprintf(&b, ", %#x", off)
		}
	}
	b.WriteString("]")
	return b.String()
}

func parseChain(args []string) (uintptr, []int64, error) {
	base, err := proc.ParseAddress(args[0])
	if err != nil {
		return 0, nil, err
	}
	offsets, err := proc.ParseOffsets(args[1:])
	if err != nil {
		return 0, nil, err
	}
	return base, offsets, nil
}

func readCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(v) < 2 {
		return fmt.Errorf("wrong number of arguments: read <type> <base> [offset...]")
	}
	k, err := proc.ParseKind(v[0])
	if err != nil {
		return err
	}
	base, offsets, err := parseChain(v[1:])
	if err != nil {
		return err
	}
	val, loc, ok := proc.ReadValue(t.sess.Memory(), k, base, offsets...)
	if !ok {
		return fmt.Errorf("%s %s does not resolve", formatChain(base, offsets), k)
	}
	fmt.Fprintf(t.stdout, "%s = %v\n", loc, val)
	return nil
}

func writeCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(v) < 3 {
		return fmt.Errorf("wrong number of arguments: write <type> <value> <base> [offset...]")
	}
	k, err := proc.ParseKind(v[0])
	if err != nil {
		return err
	}
	base, offsets, err := parseChain(v[2:])
	if err != nil {
		return err
	}
	ok, err := proc.WriteValue(t.sess.Memory(), k, v[1], base, offsets...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s does not resolve", formatChain(base, offsets), k)
	}
	return nil
}

func parseTrigger(s string) (pcommand.Trigger, error) {
	switch strings.ToLower(s) {
	case "none", "-", "":
		return pcommand.Unbound, nil
	}
	return pcommand.ParseTrigger(s)
}

func bindCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	write := false
	if len(v) > 0 && v[0] == "-w" {
		write = true
		v = v[1:]
	}
	if len(v) != 2 {
		return fmt.Errorf("wrong number of arguments: bind [-w] <command> <trigger>")
	}
	trig, err := parseTrigger(v[1])
	if err != nil {
		return err
	}
	if err := t.sess.Rebind(v[0], trig); err != nil {
		return err
	}
	t.conf.SetHotkey(v[0], trig)
	fmt.Fprintf(t.stdout, "%s bound to %s\n", v[0], bracketKey(t.sess.Describe(v[0])))
	if !write {
		return nil
	}
	if t.ConfigPath != "" {
		return config.SaveFile(t.ConfigPath, t.conf)
	}
	return config.SaveConfig(t.conf)
}

func bindingsCmd(t *Term, args string) error {
	w := tabwriter.NewWriter(t.stdout, 0, 8, 2, ' ', 0)
	for _, info := range t.sess.Registry().Commands() {
		fmt.Fprintf(w, "%s\t%s\n", info.Label, bracketKey(t.sess.Describe(info.Label)))
	}
	return w.Flush()
}

func pressCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(v) == 0 {
		return fmt.Errorf("wrong number of arguments: press <trigger> [trigger...]")
	}
	var held []keys.Key
	for _, s := range v {
		trig, err := pcommand.ParseTrigger(s)
		if err != nil {
			return err
		}
		if trig.Modifier != keys.None {
			held = append(held, trig.Modifier)
		}
		held = append(held, trig.Key)
	}
	for _, k := range held {
		t.host.Press(k)
	}
	// keys are released on the second frame, modifiers on the third
	t.host.Frame()
	t.host.Frame()
	return nil
}

func frameCmd(t *Term, args string) error {
	n := 1
	if args != "" {
		var err error
		n, err = strconv.Atoi(args)
		if err != nil || n < 0 {
			return fmt.Errorf("malformed frame count %q", args)
		}
	}
	for i := 0; i < n; i++ {
		t.host.Frame()
	}
	g := t.sess.Gate()
	if g.State() != gate.Active {
		fmt.Fprintf(t.stdout, "overlay %s after %d frames\n", g.State(), t.host.Frames())
		return nil
	}
	if view := t.host.Overlay(); view != "" {
		fmt.Fprintln(t.stdout, view)
	}
	return nil
}

func (c *Commands) sourceCommand(t *Term, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("wrong number of arguments: source <filename>")
	}

	if filepath.Ext(args) == ".star" {
		_, err := t.starlarkEnv.Execute(args, nil, "main", nil)
		return err
	}

	if args == "-" {
		return t.starlarkEnv.REPL()
	}

	return c.executeFile(t, args)
}

// ExitRequestError is returned when the user
// exits the console.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
